package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/knolstudy/internal/domain"
)

// CardState is a stored card with its scheduling state.
type CardState struct {
	domain.Flashcard
	DueAt       time.Time
	LastReview  sql.NullTime
	ReviewCount int
	SourceID    sql.NullInt64
}

// DeckStats summarises a deck's schedule and review history.
type DeckStats struct {
	DeckID     string                    `json:"deckId"`
	CardCount  int                       `json:"cardCount"`
	DueCount   int                       `json:"dueCount"`
	Reviews    map[domain.Difficulty]int `json:"reviews"`
	LastReview *time.Time                `json:"lastReview,omitempty"`
}

// UpsertDeck records a deck, renaming it if it already exists.
func (db *DB) UpsertDeck(ctx context.Context, id, name string, sourceID int64) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO decks (id, name, source_id)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, source_id = excluded.source_id
	`, id, name, sourceID)
	if err != nil {
		return fmt.Errorf("failed to upsert deck %s: %w", id, err)
	}
	return nil
}

// InsertCard inserts a new card, due immediately.
func (db *DB) InsertCard(ctx context.Context, card domain.Flashcard, sourceID int64) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO cards (id, deck_id, front, back, hint, image, order_index, due_at, source_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		card.ID,
		card.DeckID,
		card.Front,
		card.Back,
		card.Hint,
		card.Image,
		card.OrderIndex,
		unix(db.now()),
		sourceID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert card %s: %w", card.ID, err)
	}
	return nil
}

// UpdateCardPresentation sets the fields of an existing card that are not
// part of its content hash: its position in the deck and its image.
func (db *DB) UpdateCardPresentation(ctx context.Context, cardID string, orderIndex int, image string) error {
	_, err := db.conn.ExecContext(ctx, `UPDATE cards SET order_index = ?, image = ? WHERE id = ?`, orderIndex, image, cardID)
	if err != nil {
		return fmt.Errorf("failed to update card %s: %w", cardID, err)
	}
	return nil
}

const cardColumns = `id, deck_id, front, back, hint, image, order_index, due_at, last_review, review_count, source_id`

func scanCard(row interface{ Scan(...any) error }) (CardState, error) {
	var cs CardState
	var due int64
	var last sql.NullInt64
	err := row.Scan(
		&cs.ID,
		&cs.DeckID,
		&cs.Front,
		&cs.Back,
		&cs.Hint,
		&cs.Image,
		&cs.OrderIndex,
		&due,
		&last,
		&cs.ReviewCount,
		&cs.SourceID,
	)
	cs.DueAt = fromUnix(due)
	cs.LastReview = nullTime(last)
	return cs, err
}

// FindCardByID retrieves a card's state by its id.
func (db *DB) FindCardByID(ctx context.Context, id string) (*CardState, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = ?`, id)
	cs, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Card not found
		}
		return nil, fmt.Errorf("failed to find card %s: %w", id, err)
	}
	return &cs, nil
}

func (db *DB) queryCards(ctx context.Context, query string, args ...any) ([]CardState, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []CardState
	for rows.Next() {
		cs, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, cs)
	}
	return cards, rows.Err()
}

// GetCardsBySourceID retrieves all cards provided by a source.
func (db *DB) GetCardsBySourceID(ctx context.Context, sourceID int64) ([]CardState, error) {
	cards, err := db.queryCards(ctx, `SELECT `+cardColumns+` FROM cards WHERE source_id = ?`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards for source ID %d: %w", sourceID, err)
	}
	return cards, nil
}

// DueCards returns the cards of a deck due at or before now, in deck order.
func (db *DB) DueCards(ctx context.Context, deckID string, now time.Time) ([]domain.Flashcard, error) {
	states, err := db.queryCards(ctx, `
		SELECT `+cardColumns+`
		FROM cards
		WHERE deck_id = ? AND due_at <= ?
		ORDER BY order_index, id
	`, deckID, unix(now))
	if err != nil {
		return nil, fmt.Errorf("failed to get due cards for deck %s: %w", deckID, err)
	}
	cards := make([]domain.Flashcard, 0, len(states))
	for _, cs := range states {
		cards = append(cards, cs.Flashcard)
	}
	return cards, nil
}

// RecordReview stores a review and moves the card's due date to r.NextDue.
func (db *DB) RecordReview(ctx context.Context, r domain.Review) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin review of card %s: %w", r.CardID, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE cards
		SET due_at = ?, last_review = ?, review_count = review_count + 1
		WHERE id = ?
	`, unix(r.NextDue), unix(r.ReviewedAt), r.CardID)
	if err != nil {
		return fmt.Errorf("failed to update card %s: %w", r.CardID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("card %s: %w", r.CardID, ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO reviews (id, card_id, difficulty, reviewed_at, next_due)
		VALUES (?, ?, ?, ?, ?)
	`, r.ID, r.CardID, string(r.Difficulty), unix(r.ReviewedAt), unix(r.NextDue)); err != nil {
		return fmt.Errorf("failed to insert review for card %s: %w", r.CardID, err)
	}
	return tx.Commit()
}

// DeckStats counts a deck's cards, due cards and reviews per difficulty.
func (db *DB) DeckStats(ctx context.Context, deckID string, now time.Time) (DeckStats, error) {
	stats := DeckStats{DeckID: deckID, Reviews: map[domain.Difficulty]int{}}
	for _, d := range domain.Difficulties {
		stats.Reviews[d] = 0
	}

	err := db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN due_at <= ? THEN 1 ELSE 0 END), 0)
		FROM cards WHERE deck_id = ?
	`, unix(now), deckID).Scan(&stats.CardCount, &stats.DueCount)
	if err != nil {
		return stats, fmt.Errorf("failed to count cards for deck %s: %w", deckID, err)
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT r.difficulty, COUNT(*), MAX(r.reviewed_at)
		FROM reviews r JOIN cards c ON c.id = r.card_id
		WHERE c.deck_id = ?
		GROUP BY r.difficulty
	`, deckID)
	if err != nil {
		return stats, fmt.Errorf("failed to count reviews for deck %s: %w", deckID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var d string
		var n int
		var last int64
		if err := rows.Scan(&d, &n, &last); err != nil {
			return stats, fmt.Errorf("failed to scan review count: %w", err)
		}
		stats.Reviews[domain.Difficulty(d)] = n
		if t := fromUnix(last); stats.LastReview == nil || t.After(*stats.LastReview) {
			stats.LastReview = &t
		}
	}
	return stats, rows.Err()
}

// DeleteCardByID removes a card from the database.
func (db *DB) DeleteCardByID(ctx context.Context, id string) error {
	_, err := db.conn.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete card %s: %w", id, err)
	}
	return nil
}
