// Package grading scores answers to lesson quizzes.
package grading

import (
	"errors"
	"fmt"

	"github.com/conorfennell/knolstudy/internal/domain"
)

// ErrAnswerOutOfRange is returned for an answer index the quiz has no option for.
var ErrAnswerOutOfRange = errors.New("answer out of range")

// Grade checks answer against the quiz's key. Points are only awarded for a
// correct answer.
func Grade(q domain.QuizDefinition, answer int) (domain.QuizAnswerResult, error) {
	if answer < 0 || answer >= len(q.Options) {
		return domain.QuizAnswerResult{}, fmt.Errorf("quiz %s has %d options, got %d: %w", q.ID, len(q.Options), answer, ErrAnswerOutOfRange)
	}
	res := domain.QuizAnswerResult{
		IsCorrect:     answer == q.CorrectAnswer,
		CorrectAnswer: q.CorrectAnswer,
		Explanation:   q.Explanation,
	}
	if res.IsCorrect {
		res.PointsAwarded = q.Points
	}
	return res, nil
}
