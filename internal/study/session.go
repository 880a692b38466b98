// Package study walks a deck of due flashcards, collecting one difficulty
// judgment per card.
//
// Session is the state value; its transition methods never perform I/O and
// return a new Session. Engine binds a Session to a CardStore.
package study

import (
	"errors"

	"github.com/conorfennell/knolstudy/internal/domain"
)

var (
	ErrNotLoaded         = errors.New("study: session has not been loaded")
	ErrNoActiveCard      = errors.New("study: no active card")
	ErrNotFlipped        = errors.New("study: card must be flipped before it is judged")
	ErrSubmitInFlight    = errors.New("study: a judgment is already being submitted")
	ErrInvalidDifficulty = errors.New("study: invalid difficulty")
)

// Session is the state of one pass over a list of due cards.
// The zero value is a completed session over an empty deck.
type Session struct {
	cards      []domain.Flashcard
	index      int
	flipped    bool
	submitting bool
	results    domain.StudyResults
}

// NewSession starts a session over cards in the order given.
func NewSession(cards []domain.Flashcard) Session {
	own := make([]domain.Flashcard, len(cards))
	copy(own, cards)
	return Session{
		cards:   own,
		results: domain.StudyResults{TotalCards: len(own)},
	}
}

func (s Session) Len() int         { return len(s.cards) }
func (s Session) Index() int       { return s.index }
func (s Session) Flipped() bool    { return s.flipped }
func (s Session) Submitting() bool { return s.submitting }

// Complete reports whether every card has been judged. A session over an
// empty deck is complete from the start.
func (s Session) Complete() bool { return s.index >= len(s.cards) }

// Current returns the card being studied, if any.
func (s Session) Current() (domain.Flashcard, bool) {
	if s.Complete() {
		return domain.Flashcard{}, false
	}
	return s.cards[s.index], true
}

// Results returns the counters so far. Once the session is complete the
// four counts sum to TotalCards.
func (s Session) Results() domain.StudyResults {
	r := s.results
	r.TotalCards = len(s.cards)
	return r
}

// Flip toggles between the front and the back of the current card.
func (s Session) Flip() (Session, error) {
	if s.Complete() {
		return s, ErrNoActiveCard
	}
	if s.submitting {
		return s, ErrSubmitInFlight
	}
	s.flipped = !s.flipped
	return s, nil
}

// BeginJudge validates a judgment of the current card and marks it in flight.
// The returned card is the one the judgment applies to.
func (s Session) BeginJudge(d domain.Difficulty) (Session, domain.Flashcard, error) {
	card, ok := s.Current()
	switch {
	case !ok:
		return s, domain.Flashcard{}, ErrNoActiveCard
	case s.submitting:
		return s, domain.Flashcard{}, ErrSubmitInFlight
	case !d.Valid():
		return s, domain.Flashcard{}, ErrInvalidDifficulty
	case !s.flipped:
		return s, domain.Flashcard{}, ErrNotFlipped
	}
	s.submitting = true
	return s, card, nil
}

// CompleteJudge applies an accepted judgment: the matching counter goes up,
// the session moves to the next card, showing its front.
func (s Session) CompleteJudge(d domain.Difficulty) Session {
	if !s.submitting {
		return s
	}
	s.results = s.results.Record(d)
	s.index++
	s.flipped = false
	s.submitting = false
	return s
}

// AbortJudge drops an in-flight judgment, leaving the card as it was.
func (s Session) AbortJudge() Session {
	s.submitting = false
	return s
}
