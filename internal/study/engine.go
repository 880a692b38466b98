package study

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/conorfennell/knolstudy/internal/domain"
)

// CardStore is the remote deck service.
type CardStore interface {
	// FetchDue returns the deck's due cards in study order.
	FetchDue(ctx context.Context, deckID string) ([]domain.Flashcard, error)
	// SubmitReview records a judgment; the store schedules the card's next review.
	SubmitReview(ctx context.Context, cardID string, d domain.Difficulty) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// OnComplete registers fn to run once, when the loaded session completes.
func OnComplete(fn func(domain.StudyResults)) Option {
	return func(e *Engine) { e.onComplete = fn }
}

// Engine runs a study Session against a CardStore.
// All methods are safe for concurrent use.
type Engine struct {
	store      CardStore
	log        *zap.Logger
	onComplete func(domain.StudyResults)

	mu       sync.Mutex
	deckID   string
	loaded   bool
	notified bool
	session  Session
}

// NewEngine returns an engine with no session loaded.
func NewEngine(store CardStore, opts ...Option) *Engine {
	e := &Engine{store: store, log: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load fetches the deck's due cards and starts a new session over them.
// An empty result is a completed session, not an error. On failure the
// previous state is kept.
func (e *Engine) Load(ctx context.Context, deckID string) error {
	e.mu.Lock()
	if e.session.submitting {
		e.mu.Unlock()
		return ErrSubmitInFlight
	}
	e.mu.Unlock()

	cards, err := e.store.FetchDue(ctx, deckID)
	if err != nil {
		e.log.Warn("fetching due cards failed", zap.String("deck", deckID), zap.Error(err))
		return fmt.Errorf("failed to load deck %s: %w", deckID, err)
	}

	e.mu.Lock()
	if e.session.submitting {
		e.mu.Unlock()
		return ErrSubmitInFlight
	}
	e.deckID = deckID
	e.loaded = true
	e.notified = false
	e.session = NewSession(cards)
	done := e.completionLocked()
	e.mu.Unlock()

	e.log.Info("study session loaded", zap.String("deck", deckID), zap.Int("cards", len(cards)))
	e.notify(done)
	return nil
}

// Flip shows the other face of the current card.
func (e *Engine) Flip() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		return ErrNotLoaded
	}
	next, err := e.session.Flip()
	if err != nil {
		return err
	}
	e.session = next
	return nil
}

// Judge submits a judgment for the current card. Only one judgment may be in
// flight; invalid attempts are rejected without contacting the store. If the
// store call fails the session stays on the same card, still flipped, and
// Judge may be called again.
func (e *Engine) Judge(ctx context.Context, d domain.Difficulty) error {
	e.mu.Lock()
	if !e.loaded {
		e.mu.Unlock()
		return ErrNotLoaded
	}
	next, card, err := e.session.BeginJudge(d)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	e.session = next
	e.mu.Unlock()

	err = e.store.SubmitReview(ctx, card.ID, d)

	e.mu.Lock()
	if err != nil {
		e.session = e.session.AbortJudge()
		e.mu.Unlock()
		e.log.Warn("submitting review failed", zap.String("card", card.ID), zap.String("difficulty", string(d)), zap.Error(err))
		return fmt.Errorf("failed to submit review for card %s: %w", card.ID, err)
	}
	e.session = e.session.CompleteJudge(d)
	done := e.completionLocked()
	e.mu.Unlock()

	e.log.Debug("card judged", zap.String("card", card.ID), zap.String("difficulty", string(d)))
	e.notify(done)
	return nil
}

// Session returns a snapshot of the current state.
func (e *Engine) Session() Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// DeckID is the deck of the loaded session.
func (e *Engine) DeckID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deckID
}

// Results returns the session's counters.
func (e *Engine) Results() domain.StudyResults {
	return e.Session().Results()
}

// completionLocked returns the results to report if the session has just
// completed and nobody has been told yet.
func (e *Engine) completionLocked() *domain.StudyResults {
	if e.notified || !e.session.Complete() {
		return nil
	}
	e.notified = true
	r := e.session.Results()
	return &r
}

func (e *Engine) notify(r *domain.StudyResults) {
	if r == nil {
		return
	}
	e.log.Info("study session complete",
		zap.String("deck", e.DeckID()),
		zap.Int("total", r.TotalCards),
		zap.Int("again", r.AgainCount),
		zap.Int("hard", r.HardCount),
		zap.Int("good", r.GoodCount),
		zap.Int("easy", r.EasyCount),
	)
	if e.onComplete != nil {
		e.onComplete(*r)
	}
}
