// Package videoquiz overlays quizzes on lesson playback.
//
// Machine is the state of one playback session. Its transition methods are
// pure: they return a new Machine and never touch the network or the player.
// Engine connects a Machine to a QuizStore and a PlaybackController.
package videoquiz

import (
	"errors"
	"maps"
	"math"
	"slices"
	"time"

	"github.com/conorfennell/knolstudy/internal/domain"
)

// DefaultTriggerWindow is how long, in seconds, after its timestamp a quiz can
// still be triggered. Time updates from a player arrive a few times a second;
// one second is enough to never step over a quiz during normal playback.
const DefaultTriggerWindow = 1.0

var (
	ErrNotLoaded         = errors.New("videoquiz: lesson has not been loaded")
	ErrInvalidTransition = errors.New("videoquiz: transition not allowed in current state")
	ErrNoSelection       = errors.New("videoquiz: no option selected")
	ErrInvalidOption     = errors.New("videoquiz: option out of range")
	ErrSubmitInFlight    = errors.New("videoquiz: an answer is already being submitted")
	ErrSkipNotAllowed    = errors.New("videoquiz: required quiz cannot be skipped")
)

// State is the overlay state of a playback session.
type State int

const (
	Watching State = iota
	QuizActive
	QuizAnswered
)

func (s State) String() string {
	switch s {
	case Watching:
		return "WATCHING"
	case QuizActive:
		return "QUIZ_ACTIVE"
	case QuizAnswered:
		return "QUIZ_ANSWERED"
	}
	return "UNKNOWN"
}

// Submission is an answer ready to be sent to the quiz store.
type Submission struct {
	QuizID    string
	Answer    int
	TimeSpent int
}

// Machine is the quiz overlay state for one lesson's playback session.
type Machine struct {
	quizzes   []domain.VideoQuiz
	triggered map[string]struct{}
	window    float64

	state       State
	active      int
	selected    int
	submitting  bool
	pausedFor   bool
	activatedAt time.Time
	result      *domain.QuizAnswerResult
	points      int
}

// NewMachine starts a session over quizzes, ordered by timestamp. A window
// of zero or less uses DefaultTriggerWindow.
func NewMachine(quizzes []domain.VideoQuiz, window float64) Machine {
	if window <= 0 {
		window = DefaultTriggerWindow
	}
	own := slices.Clone(quizzes)
	slices.SortStableFunc(own, func(a, b domain.VideoQuiz) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		}
		return 0
	})
	m := Machine{
		quizzes:   own,
		triggered: map[string]struct{}{},
		window:    window,
		active:    -1,
		selected:  -1,
	}
	for _, q := range own {
		if q.IsAnswered && q.IsCorrect != nil && *q.IsCorrect {
			m.points += q.Points
		}
	}
	return m
}

func (m Machine) State() State        { return m.state }
func (m Machine) Window() float64     { return m.window }
func (m Machine) Submitting() bool    { return m.submitting }
func (m Machine) PausedForQuiz() bool { return m.pausedFor }

// Points is the total awarded for correct answers, including earlier sessions.
func (m Machine) Points() int { return m.points }

// Quizzes returns the lesson's quizzes with their current answer state.
func (m Machine) Quizzes() []domain.VideoQuiz { return slices.Clone(m.quizzes) }

// Selected is the chosen option of the active quiz, or -1.
func (m Machine) Selected() int { return m.selected }

// ActiveQuiz returns the quiz shown in the overlay, if any.
func (m Machine) ActiveQuiz() (domain.VideoQuiz, bool) {
	if m.active < 0 {
		return domain.VideoQuiz{}, false
	}
	return m.quizzes[m.active], true
}

// Result is the outcome of the answered quiz while in QuizAnswered.
func (m Machine) Result() (domain.QuizAnswerResult, bool) {
	if m.result == nil {
		return domain.QuizAnswerResult{}, false
	}
	return *m.result, true
}

// Triggered reports whether the quiz has been shown during this session.
func (m Machine) Triggered(quizID string) bool {
	_, ok := m.triggered[quizID]
	return ok
}

// CanSkip reports whether the active quiz may be dismissed unanswered.
func (m Machine) CanSkip() bool {
	q, ok := m.ActiveQuiz()
	return ok && m.state == QuizActive && !m.submitting && !q.IsRequired
}

// AllRequiredCompleted reports whether every required quiz has an answer.
func (m Machine) AllRequiredCompleted() bool {
	for _, q := range m.quizzes {
		if q.IsRequired && !q.IsAnswered {
			return false
		}
	}
	return true
}

// Observe checks playback time t for a quiz to trigger. Only while Watching
// can a quiz trigger, and only one whose window contains t, that has not
// been triggered in this session and that has not been answered. The
// earliest such quiz wins. The returned bool reports whether a quiz was
// triggered.
func (m Machine) Observe(t float64, now time.Time) (Machine, bool) {
	if m.state != Watching {
		return m, false
	}
	for i, q := range m.quizzes {
		if q.IsAnswered || m.Triggered(q.ID) {
			continue
		}
		if t < q.Timestamp || t >= q.Timestamp+m.window {
			continue
		}
		m.triggered = maps.Clone(m.triggered)
		m.triggered[q.ID] = struct{}{}
		m.state = QuizActive
		m.active = i
		m.selected = -1
		m.result = nil
		m.pausedFor = q.PauseVideo
		m.activatedAt = now
		return m, true
	}
	return m, false
}

// Select chooses an option of the active quiz.
func (m Machine) Select(option int) (Machine, error) {
	if m.state != QuizActive {
		return m, ErrInvalidTransition
	}
	if m.submitting {
		return m, ErrSubmitInFlight
	}
	if option < 0 || option >= len(m.quizzes[m.active].Options) {
		return m, ErrInvalidOption
	}
	m.selected = option
	return m, nil
}

// BeginSubmit marks the selected answer as in flight and returns what to send.
func (m Machine) BeginSubmit(now time.Time) (Machine, Submission, error) {
	switch {
	case m.state != QuizActive:
		return m, Submission{}, ErrInvalidTransition
	case m.submitting:
		return m, Submission{}, ErrSubmitInFlight
	case m.selected < 0:
		return m, Submission{}, ErrNoSelection
	}
	spent := int(math.Round(now.Sub(m.activatedAt).Seconds()))
	if spent < 0 {
		spent = 0
	}
	m.submitting = true
	return m, Submission{
		QuizID:    m.quizzes[m.active].ID,
		Answer:    m.selected,
		TimeSpent: spent,
	}, nil
}

// CompleteSubmit records the store's verdict and shows it.
func (m Machine) CompleteSubmit(res domain.QuizAnswerResult) Machine {
	if m.state != QuizActive || !m.submitting {
		return m
	}
	m.quizzes = slices.Clone(m.quizzes)
	m.quizzes[m.active] = m.quizzes[m.active].MarkAnswered(m.selected, res)
	m.points += res.PointsAwarded
	m.submitting = false
	m.state = QuizAnswered
	m.result = &res
	return m
}

// AbortSubmit drops a failed submission. The quiz stays active with its
// selection so the answer can be sent again.
func (m Machine) AbortSubmit() Machine {
	m.submitting = false
	return m
}

// Continue dismisses an answered quiz. resume reports whether playback was
// paused for it and should start again.
func (m Machine) Continue() (next Machine, resume bool, err error) {
	if m.state != QuizAnswered {
		return m, false, ErrInvalidTransition
	}
	next, resume = m.dismiss()
	return next, resume, nil
}

// Skip dismisses the active quiz without answering. Only optional quizzes
// can be skipped, and never while an answer is in flight.
func (m Machine) Skip() (next Machine, resume bool, err error) {
	if m.state != QuizActive {
		return m, false, ErrInvalidTransition
	}
	if m.submitting {
		return m, false, ErrSubmitInFlight
	}
	if m.quizzes[m.active].IsRequired {
		return m, false, ErrSkipNotAllowed
	}
	next, resume = m.dismiss()
	return next, resume, nil
}

func (m Machine) dismiss() (Machine, bool) {
	resume := m.pausedFor
	m.state = Watching
	m.active = -1
	m.selected = -1
	m.result = nil
	m.pausedFor = false
	m.activatedAt = time.Time{}
	return m, resume
}
