package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/knolstudy/internal/domain"
)

var epoch = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	db.now = func() time.Time { return epoch }
	return db
}

func seedDeck(t *testing.T, db *DB, deckID string, fronts ...string) (int64, []domain.Flashcard) {
	t.Helper()
	ctx := context.Background()
	sourceID, err := db.InsertSource(ctx, "/decks/"+deckID, "local")
	require.NoError(t, err)
	require.NoError(t, db.UpsertDeck(ctx, deckID, deckID, sourceID))

	var cards []domain.Flashcard
	for i, front := range fronts {
		c := domain.Flashcard{ID: deckID + "-" + front, DeckID: deckID, Front: front, Back: "back of " + front, OrderIndex: i}
		require.NoError(t, db.InsertCard(ctx, c, sourceID))
		cards = append(cards, c)
	}
	return sourceID, cards
}

func TestSources(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	id, err := db.InsertSource(ctx, "/tmp/decks", "local")
	require.NoError(t, err)
	_, err = db.InsertSource(ctx, "/tmp/decks", "local")
	assert.Error(t, err, "paths are unique")

	s, err := db.FindSourceByPath(ctx, "/tmp/decks")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, id, s.ID)
	assert.False(t, s.LastScanned.Valid)

	require.NoError(t, db.UpdateSourceLastScanned(ctx, id))
	s, err = db.FindSourceByPath(ctx, "/tmp/decks")
	require.NoError(t, err)
	assert.Equal(t, epoch, s.LastScanned.Time)

	missing, err := db.FindSourceByPath(ctx, "/nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, db.DeleteSource(ctx, id))
	assert.ErrorIs(t, db.DeleteSource(ctx, id), ErrNotFound)
	all, err := db.GetAllSources(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestDueCardsInDeckOrder(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	_, cards := seedDeck(t, db, "go", "c", "a", "b")
	seedDeck(t, db, "other", "x")

	due, err := db.DueCards(ctx, "go", epoch)
	require.NoError(t, err)
	assert.Equal(t, cards, due)

	none, err := db.DueCards(ctx, "go", epoch.Add(-time.Second))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRecordReviewReschedules(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	_, cards := seedDeck(t, db, "go", "a", "b")

	next := epoch.Add(72 * time.Hour)
	require.NoError(t, db.RecordReview(ctx, domain.Review{
		CardID:     cards[0].ID,
		Difficulty: domain.Good,
		ReviewedAt: epoch,
		NextDue:    next,
	}))

	due, err := db.DueCards(ctx, "go", epoch)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, cards[1].ID, due[0].ID)

	cs, err := db.FindCardByID(ctx, cards[0].ID)
	require.NoError(t, err)
	require.NotNil(t, cs)
	assert.Equal(t, next, cs.DueAt)
	assert.Equal(t, 1, cs.ReviewCount)
	assert.Equal(t, epoch, cs.LastReview.Time)

	err = db.RecordReview(ctx, domain.Review{CardID: "missing", Difficulty: domain.Easy, ReviewedAt: epoch, NextDue: next})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeckStats(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	_, cards := seedDeck(t, db, "go", "a", "b", "c")

	for i, d := range []domain.Difficulty{domain.Again, domain.Easy} {
		require.NoError(t, db.RecordReview(ctx, domain.Review{
			CardID:     cards[i].ID,
			Difficulty: d,
			ReviewedAt: epoch.Add(time.Duration(i) * time.Minute),
			NextDue:    epoch.Add(time.Hour),
		}))
	}

	stats, err := db.DeckStats(ctx, "go", epoch)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.CardCount)
	assert.Equal(t, 1, stats.DueCount)
	assert.Equal(t, map[domain.Difficulty]int{domain.Again: 1, domain.Hard: 0, domain.Good: 0, domain.Easy: 1}, stats.Reviews)
	require.NotNil(t, stats.LastReview)
	assert.Equal(t, epoch.Add(time.Minute), *stats.LastReview)
}

func TestDeleteSourceRemovesContent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	sourceID, cards := seedDeck(t, db, "go", "a")
	require.NoError(t, db.UpsertQuiz(ctx, "lesson", domain.QuizDefinition{ID: "q1", Question: "?", Options: []string{"a", "b"}}, sourceID))

	require.NoError(t, db.DeleteSource(ctx, sourceID))

	cs, err := db.FindCardByID(ctx, cards[0].ID)
	require.NoError(t, err)
	assert.Nil(t, cs)
	quizzes, err := db.QuizzesForLesson(ctx, "lesson")
	require.NoError(t, err)
	assert.Empty(t, quizzes)
}
