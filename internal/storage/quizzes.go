package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/knolstudy/internal/domain"
)

// QuizKey is the stored id of quiz quizID in lesson lessonID.
func QuizKey(lessonID, quizID string) string {
	return lessonID + ":" + quizID
}

// StoredQuiz is a quiz definition as kept in the database.
type StoredQuiz struct {
	domain.QuizDefinition
	LessonID string
}

// Answer is one graded submission to a quiz.
type Answer struct {
	ID            string
	QuizID        string
	Answer        int
	IsCorrect     bool
	TimeSpent     int
	PointsAwarded int
	AnsweredAt    time.Time
}

// UpsertQuiz stores a lesson quiz under QuizKey(lessonID, q.ID), replacing
// any earlier definition. Answers already given are kept.
func (db *DB) UpsertQuiz(ctx context.Context, lessonID string, q domain.QuizDefinition, sourceID int64) error {
	options, err := json.Marshal(q.Options)
	if err != nil {
		return fmt.Errorf("failed to encode options of quiz %s: %w", q.ID, err)
	}
	id := QuizKey(lessonID, q.ID)
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO quizzes (id, lesson_id, timestamp, question, options, correct_answer, points, is_required, pause_video, explanation, source_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			timestamp = excluded.timestamp,
			question = excluded.question,
			options = excluded.options,
			correct_answer = excluded.correct_answer,
			points = excluded.points,
			is_required = excluded.is_required,
			pause_video = excluded.pause_video,
			explanation = excluded.explanation,
			source_id = excluded.source_id
	`,
		id,
		lessonID,
		q.Timestamp,
		q.Question,
		string(options),
		q.CorrectAnswer,
		q.Points,
		q.Required,
		q.PauseVideo,
		q.Explanation,
		sourceID,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert quiz %s: %w", id, err)
	}
	return nil
}

// FindQuiz retrieves a quiz definition, with its answer key, by stored id.
func (db *DB) FindQuiz(ctx context.Context, id string) (*StoredQuiz, error) {
	var sq StoredQuiz
	var options string
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, lesson_id, timestamp, question, options, correct_answer, points, is_required, pause_video, explanation
		FROM quizzes WHERE id = ?
	`, id)
	err := row.Scan(
		&sq.ID,
		&sq.LessonID,
		&sq.Timestamp,
		&sq.Question,
		&options,
		&sq.CorrectAnswer,
		&sq.Points,
		&sq.Required,
		&sq.PauseVideo,
		&sq.Explanation,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Quiz not found
		}
		return nil, fmt.Errorf("failed to find quiz %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(options), &sq.Options); err != nil {
		return nil, fmt.Errorf("failed to decode options of quiz %s: %w", id, err)
	}
	return &sq, nil
}

// QuizzesForLesson returns a lesson's quizzes ordered by timestamp. A quiz
// that has been answered carries its latest answer, its verdict and the
// answer key; unanswered quizzes never reveal the key.
func (db *DB) QuizzesForLesson(ctx context.Context, lessonID string) ([]domain.VideoQuiz, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT q.id, q.lesson_id, q.timestamp, q.question, q.options, q.points, q.is_required, q.pause_video,
		       q.explanation, q.correct_answer, a.answer, a.is_correct
		FROM quizzes q
		LEFT JOIN quiz_answers a ON a.id = (
			SELECT id FROM quiz_answers
			WHERE quiz_id = q.id
			ORDER BY answered_at DESC, rowid DESC
			LIMIT 1
		)
		WHERE q.lesson_id = ?
		ORDER BY q.timestamp, q.id
	`, lessonID)
	if err != nil {
		return nil, fmt.Errorf("failed to get quizzes for lesson %s: %w", lessonID, err)
	}
	defer rows.Close()

	quizzes := []domain.VideoQuiz{}
	for rows.Next() {
		var q domain.VideoQuiz
		var options, explanation string
		var correctAnswer int
		var answer sql.NullInt64
		var isCorrect sql.NullBool
		if err := rows.Scan(
			&q.ID,
			&q.LessonID,
			&q.Timestamp,
			&q.Question,
			&options,
			&q.Points,
			&q.IsRequired,
			&q.PauseVideo,
			&explanation,
			&correctAnswer,
			&answer,
			&isCorrect,
		); err != nil {
			return nil, fmt.Errorf("failed to scan quiz row for lesson %s: %w", lessonID, err)
		}
		if err := json.Unmarshal([]byte(options), &q.Options); err != nil {
			return nil, fmt.Errorf("failed to decode options of quiz %s: %w", q.ID, err)
		}
		if answer.Valid {
			q = q.MarkAnswered(int(answer.Int64), domain.QuizAnswerResult{
				IsCorrect:     isCorrect.Bool,
				CorrectAnswer: correctAnswer,
				Explanation:   explanation,
			})
		}
		quizzes = append(quizzes, q)
	}
	return quizzes, rows.Err()
}

// RecordAnswer stores a graded answer.
func (db *DB) RecordAnswer(ctx context.Context, a Answer) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO quiz_answers (id, quiz_id, answer, is_correct, time_spent, points_awarded, answered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.QuizID, a.Answer, a.IsCorrect, a.TimeSpent, a.PointsAwarded, unix(a.AnsweredAt))
	if err != nil {
		return fmt.Errorf("failed to record answer for quiz %s: %w", a.QuizID, err)
	}
	return nil
}

// GetQuizIDsBySourceID lists the stored ids of the quizzes a source provided.
func (db *DB) GetQuizIDsBySourceID(ctx context.Context, sourceID int64) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id FROM quizzes WHERE source_id = ?`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get quizzes for source ID %d: %w", sourceID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan quiz id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteQuizByID removes a quiz definition. Its answers are kept.
func (db *DB) DeleteQuizByID(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM quizzes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete quiz %s: %w", id, err)
	}
	return nil
}
