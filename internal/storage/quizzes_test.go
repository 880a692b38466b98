package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/knolstudy/internal/domain"
)

func seedLesson(t *testing.T, db *DB) int64 {
	t.Helper()
	ctx := context.Background()
	sourceID, err := db.InsertSource(ctx, "/lessons", "local")
	require.NoError(t, err)
	for _, q := range []domain.QuizDefinition{
		{ID: "q2", Timestamp: 30, Question: "Second?", Options: []string{"a", "b"}, CorrectAnswer: 1, Points: 5},
		{ID: "q1", Timestamp: 10, Question: "First?", Options: []string{"x", "y", "z"}, CorrectAnswer: 2, Points: 10, Required: true, PauseVideo: true, Explanation: "z it is"},
	} {
		require.NoError(t, db.UpsertQuiz(ctx, "intro", q, sourceID))
	}
	return sourceID
}

func TestQuizzesForLessonHidesKeyUntilAnswered(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedLesson(t, db)

	quizzes, err := db.QuizzesForLesson(ctx, "intro")
	require.NoError(t, err)
	require.Len(t, quizzes, 2)

	q1 := quizzes[0]
	assert.Equal(t, "intro:q1", q1.ID)
	assert.Equal(t, "intro", q1.LessonID)
	assert.Equal(t, 10.0, q1.Timestamp)
	assert.Equal(t, []string{"x", "y", "z"}, q1.Options)
	assert.True(t, q1.IsRequired)
	assert.True(t, q1.PauseVideo)
	assert.False(t, q1.IsAnswered)
	assert.Nil(t, q1.CorrectAnswer)
	assert.Empty(t, q1.Explanation)
	assert.Equal(t, "intro:q2", quizzes[1].ID)
}

func TestQuizzesForLessonCarriesLatestAnswer(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedLesson(t, db)

	require.NoError(t, db.RecordAnswer(ctx, Answer{QuizID: "intro:q1", Answer: 0, AnsweredAt: epoch}))
	require.NoError(t, db.RecordAnswer(ctx, Answer{QuizID: "intro:q1", Answer: 2, IsCorrect: true, PointsAwarded: 10, AnsweredAt: epoch.Add(time.Minute)}))

	quizzes, err := db.QuizzesForLesson(ctx, "intro")
	require.NoError(t, err)

	q1 := quizzes[0]
	assert.True(t, q1.IsAnswered)
	require.NotNil(t, q1.UserAnswer)
	assert.Equal(t, 2, *q1.UserAnswer)
	require.NotNil(t, q1.IsCorrect)
	assert.True(t, *q1.IsCorrect)
	require.NotNil(t, q1.CorrectAnswer)
	assert.Equal(t, 2, *q1.CorrectAnswer)
	assert.Equal(t, "z it is", q1.Explanation)
	assert.False(t, quizzes[1].IsAnswered)
}

func TestFindAndDeleteQuiz(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	sourceID := seedLesson(t, db)

	sq, err := db.FindQuiz(ctx, "intro:q1")
	require.NoError(t, err)
	require.NotNil(t, sq)
	assert.Equal(t, "intro", sq.LessonID)
	assert.Equal(t, 2, sq.CorrectAnswer)
	assert.Equal(t, []string{"x", "y", "z"}, sq.Options)

	ids, err := db.GetQuizIDsBySourceID(ctx, sourceID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"intro:q1", "intro:q2"}, ids)

	require.NoError(t, db.DeleteQuizByID(ctx, "intro:q1"))
	sq, err = db.FindQuiz(ctx, "intro:q1")
	require.NoError(t, err)
	assert.Nil(t, sq)
}

func TestUpsertQuizReplacesDefinition(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	sourceID := seedLesson(t, db)

	require.NoError(t, db.UpsertQuiz(ctx, "intro", domain.QuizDefinition{
		ID: "q2", Timestamp: 5, Question: "Moved?", Options: []string{"a", "b"},
	}, sourceID))

	quizzes, err := db.QuizzesForLesson(ctx, "intro")
	require.NoError(t, err)
	require.Len(t, quizzes, 2)
	assert.Equal(t, "intro:q2", quizzes[0].ID)
	assert.Equal(t, "Moved?", quizzes[0].Question)
}
