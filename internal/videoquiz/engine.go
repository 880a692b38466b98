package videoquiz

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/conorfennell/knolstudy/internal/domain"
)

// QuizStore is the remote lesson quiz service.
type QuizStore interface {
	// FetchForLesson returns the lesson's quizzes, with any earlier answers.
	FetchForLesson(ctx context.Context, lessonID string) ([]domain.VideoQuiz, error)
	// SubmitAnswer grades an answer; timeSpent is in seconds.
	SubmitAnswer(ctx context.Context, quizID string, answer, timeSpent int) (domain.QuizAnswerResult, error)
}

// PlaybackController is the video player. It is the only source of playback
// time; the engine never seeks. Pause and Play must not call back into the
// engine.
type PlaybackController interface {
	CurrentTime() float64
	Pause()
	Play()
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithClock replaces time.Now, used to measure time spent on a quiz.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithTriggerWindow sets the trigger tolerance in seconds.
func WithTriggerWindow(seconds float64) Option {
	return func(e *Engine) { e.window = seconds }
}

// OnAnswer is called after every successful submit.
func OnAnswer(fn func(quizID string, answer int, isCorrect bool)) Option {
	return func(e *Engine) { e.onAnswer = fn }
}

// OnAllRequiredCompleted is called once per loaded lesson, the first time
// every required quiz has an answer.
func OnAllRequiredCompleted(fn func()) Option {
	return func(e *Engine) { e.onAllRequired = fn }
}

// OnQuizTriggered is called when a quiz overlay opens.
func OnQuizTriggered(fn func(domain.VideoQuiz)) Option {
	return func(e *Engine) { e.onTriggered = fn }
}

// Engine runs the quiz overlay for one lesson's playback.
// All methods are safe for concurrent use.
type Engine struct {
	store  QuizStore
	player PlaybackController
	log    *zap.Logger
	now    func() time.Time
	window float64

	onAnswer      func(quizID string, answer int, isCorrect bool)
	onAllRequired func()
	onTriggered   func(domain.VideoQuiz)

	// playerMu orders state changes with the player commands they cause.
	// It is taken before mu.
	playerMu sync.Mutex

	mu               sync.Mutex
	lessonID         string
	loaded           bool
	requiredNotified bool
	machine          Machine
}

// NewEngine returns an engine with no lesson loaded.
func NewEngine(store QuizStore, player PlaybackController, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		player: player,
		log:    zap.NewNop(),
		now:    time.Now,
		window: DefaultTriggerWindow,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.machine = NewMachine(nil, e.window)
	return e
}

// Load fetches the lesson's quizzes and starts a new playback session with
// an empty triggered set.
func (e *Engine) Load(ctx context.Context, lessonID string) error {
	e.mu.Lock()
	if e.machine.Submitting() {
		e.mu.Unlock()
		return ErrSubmitInFlight
	}
	e.mu.Unlock()

	quizzes, err := e.store.FetchForLesson(ctx, lessonID)
	if err != nil {
		e.log.Warn("fetching lesson quizzes failed", zap.String("lesson", lessonID), zap.Error(err))
		return fmt.Errorf("failed to load quizzes for lesson %s: %w", lessonID, err)
	}

	e.mu.Lock()
	if e.machine.Submitting() {
		e.mu.Unlock()
		return ErrSubmitInFlight
	}
	e.lessonID = lessonID
	e.loaded = true
	e.requiredNotified = false
	e.machine = NewMachine(quizzes, e.window)
	fire := e.requiredCompletedLocked()
	e.mu.Unlock()

	e.log.Info("lesson quizzes loaded", zap.String("lesson", lessonID), zap.Int("quizzes", len(quizzes)))
	if fire {
		e.fireAllRequired()
	}
	return nil
}

// OnTimeUpdate is the player's time-update event handler.
func (e *Engine) OnTimeUpdate() {
	e.ObserveTime(e.player.CurrentTime())
}

// ObserveTime checks playback time t for a quiz to show. If one triggers and
// asks for it, the player is paused. The triggered quiz is returned.
func (e *Engine) ObserveTime(t float64) (domain.VideoQuiz, bool) {
	e.playerMu.Lock()
	e.mu.Lock()
	if !e.loaded {
		e.mu.Unlock()
		e.playerMu.Unlock()
		return domain.VideoQuiz{}, false
	}
	next, ok := e.machine.Observe(t, e.now())
	if !ok {
		e.mu.Unlock()
		e.playerMu.Unlock()
		return domain.VideoQuiz{}, false
	}
	e.machine = next
	quiz, _ := next.ActiveQuiz()
	e.mu.Unlock()

	if quiz.PauseVideo {
		e.player.Pause()
	}
	e.playerMu.Unlock()

	e.log.Debug("quiz triggered", zap.String("quiz", quiz.ID), zap.Float64("at", t))
	if e.onTriggered != nil {
		e.onTriggered(quiz)
	}
	return quiz, true
}

// Select chooses an option of the active quiz.
func (e *Engine) Select(option int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	next, err := e.machine.Select(option)
	if err != nil {
		return err
	}
	e.machine = next
	return nil
}

// SubmitAnswer selects option and submits it.
func (e *Engine) SubmitAnswer(ctx context.Context, option int) (domain.QuizAnswerResult, error) {
	if err := e.Select(option); err != nil {
		return domain.QuizAnswerResult{}, err
	}
	return e.Submit(ctx)
}

// Submit sends the selected answer of the active quiz. On failure the quiz
// stays active with its selection, and Submit may be called again.
func (e *Engine) Submit(ctx context.Context) (domain.QuizAnswerResult, error) {
	e.mu.Lock()
	next, sub, err := e.machine.BeginSubmit(e.now())
	if err != nil {
		e.mu.Unlock()
		return domain.QuizAnswerResult{}, err
	}
	e.machine = next
	e.mu.Unlock()

	res, err := e.store.SubmitAnswer(ctx, sub.QuizID, sub.Answer, sub.TimeSpent)

	e.mu.Lock()
	if err != nil {
		e.machine = e.machine.AbortSubmit()
		e.mu.Unlock()
		e.log.Warn("submitting answer failed", zap.String("quiz", sub.QuizID), zap.Error(err))
		return domain.QuizAnswerResult{}, fmt.Errorf("failed to submit answer for quiz %s: %w", sub.QuizID, err)
	}
	e.machine = e.machine.CompleteSubmit(res)
	fire := e.requiredCompletedLocked()
	e.mu.Unlock()

	e.log.Debug("quiz answered",
		zap.String("quiz", sub.QuizID),
		zap.Int("answer", sub.Answer),
		zap.Bool("correct", res.IsCorrect),
		zap.Int("time_spent", sub.TimeSpent),
	)
	if e.onAnswer != nil {
		e.onAnswer(sub.QuizID, sub.Answer, res.IsCorrect)
	}
	if fire {
		e.fireAllRequired()
	}
	return res, nil
}

// Continue closes an answered quiz and resumes playback if it was paused for it.
func (e *Engine) Continue() error {
	return e.dismiss(Machine.Continue)
}

// Skip closes an optional quiz without answering it.
func (e *Engine) Skip() error {
	return e.dismiss(Machine.Skip)
}

func (e *Engine) dismiss(transition func(Machine) (Machine, bool, error)) error {
	e.playerMu.Lock()
	defer e.playerMu.Unlock()

	e.mu.Lock()
	next, resume, err := transition(e.machine)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	e.machine = next
	e.mu.Unlock()

	if resume {
		e.player.Play()
	}
	return nil
}

// AllRequiredCompleted reports whether every required quiz of the lesson has
// been answered. Hosts use it to gate lesson completion.
func (e *Engine) AllRequiredCompleted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded && e.machine.AllRequiredCompleted()
}

// Machine returns a snapshot of the overlay state.
func (e *Engine) Machine() Machine {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.machine
}

// State is the current overlay state.
func (e *Engine) State() State {
	return e.Machine().State()
}

func (e *Engine) LessonID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lessonID
}

func (e *Engine) requiredCompletedLocked() bool {
	if e.requiredNotified || !e.machine.AllRequiredCompleted() {
		return false
	}
	e.requiredNotified = true
	return true
}

func (e *Engine) fireAllRequired() {
	e.log.Info("all required quizzes completed", zap.String("lesson", e.LessonID()))
	if e.onAllRequired != nil {
		e.onAllRequired()
	}
}
