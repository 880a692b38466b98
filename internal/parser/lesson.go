package parser

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/conorfennell/knolstudy/internal/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// IsLessonFile reports whether path names a lesson quiz file.
func IsLessonFile(path string) bool {
	p := strings.ToLower(path)
	return strings.HasSuffix(p, ".quiz.yaml") || strings.HasSuffix(p, ".quiz.yml")
}

// IsDeckFile reports whether path names a markdown deck.
func IsDeckFile(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".md")
}

// ParseLessonFile reads and validates a lesson quiz file.
func ParseLessonFile(path string) (*domain.Lesson, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParseLesson(file)
}

// ParseLesson decodes a lesson from YAML. Unknown keys are rejected, every
// quiz needs an id unique within the lesson, and each answer key must point
// at one of the quiz's options.
func ParseLesson(r io.Reader) (*domain.Lesson, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var lesson domain.Lesson
	if err := dec.Decode(&lesson); err != nil {
		return nil, fmt.Errorf("failed to decode lesson: %w", err)
	}
	if err := validate.Struct(lesson); err != nil {
		return nil, fmt.Errorf("invalid lesson %q: %w", lesson.ID, err)
	}

	seen := make(map[string]bool, len(lesson.Quizzes))
	for _, q := range lesson.Quizzes {
		if seen[q.ID] {
			return nil, fmt.Errorf("lesson %s: duplicate quiz id %q", lesson.ID, q.ID)
		}
		seen[q.ID] = true
		if q.CorrectAnswer >= len(q.Options) {
			return nil, fmt.Errorf("lesson %s: quiz %s: correct_answer %d out of range", lesson.ID, q.ID, q.CorrectAnswer)
		}
	}
	return &lesson, nil
}
