package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lessonYAML = `
lesson: intro-to-go
title: Introduction to Go
quizzes:
  - id: q1
    timestamp: 10
    question: Which keyword starts a goroutine?
    options: [go, async, spawn]
    correct_answer: 0
    points: 10
    required: true
    pause_video: true
    explanation: The go statement runs a call in a new goroutine.
  - id: q2
    timestamp: 30.5
    question: Are maps safe for concurrent writes?
    options: ["yes", "no"]
    correct_answer: 1
`

func TestParseLesson(t *testing.T) {
	lesson, err := ParseLesson(strings.NewReader(lessonYAML))
	require.NoError(t, err)

	assert.Equal(t, "intro-to-go", lesson.ID)
	assert.Equal(t, "Introduction to Go", lesson.Title)
	require.Len(t, lesson.Quizzes, 2)

	q1 := lesson.Quizzes[0]
	assert.Equal(t, "q1", q1.ID)
	assert.Equal(t, 10.0, q1.Timestamp)
	assert.Equal(t, []string{"go", "async", "spawn"}, q1.Options)
	assert.True(t, q1.Required)
	assert.True(t, q1.PauseVideo)
	assert.Equal(t, 10, q1.Points)

	q2 := lesson.Quizzes[1]
	assert.Equal(t, 30.5, q2.Timestamp)
	assert.Equal(t, 1, q2.CorrectAnswer)
	assert.False(t, q2.Required)
}

func TestParseLessonRejects(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{
			name:  "missing lesson id",
			input: "quizzes: []",
		},
		{
			name:  "too few options",
			input: "lesson: l\nquizzes:\n  - {id: q1, question: Q, options: [only]}",
		},
		{
			name:  "answer out of range",
			input: "lesson: l\nquizzes:\n  - {id: q1, question: Q, options: [a, b], correct_answer: 2}",
		},
		{
			name:  "negative timestamp",
			input: "lesson: l\nquizzes:\n  - {id: q1, timestamp: -1, question: Q, options: [a, b]}",
		},
		{
			name:  "duplicate quiz id",
			input: "lesson: l\nquizzes:\n  - {id: q1, question: Q, options: [a, b]}\n  - {id: q1, question: R, options: [a, b]}",
		},
		{
			name:  "slash in lesson id",
			input: "lesson: course1/lesson2\nquizzes:\n  - {id: q1, question: Q, options: [a, b]}",
		},
		{
			name:  "slash in quiz id",
			input: "lesson: l\nquizzes:\n  - {id: part/q1, question: Q, options: [a, b]}",
		},
		{
			name:  "unknown key",
			input: "lesson: l\nvideo: x.mp4",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseLesson(strings.NewReader(tc.input))
			assert.Error(t, err)
		})
	}
}

func TestFileKinds(t *testing.T) {
	assert.True(t, IsLessonFile("lessons/intro.quiz.yaml"))
	assert.True(t, IsLessonFile("INTRO.QUIZ.YML"))
	assert.False(t, IsLessonFile("config.yaml"))
	assert.True(t, IsDeckFile("decks/go.md"))
	assert.False(t, IsDeckFile("decks/go.txt"))
}

func TestParseLessonRejectsSlashInIDs(t *testing.T) {
	// Ids become single URL path segments.
	for _, input := range []string{
		"lesson: course1/lesson2\nquizzes:\n  - id: q1\n    question: Q\n    options: [a, b]\n",
		"lesson: intro\nquizzes:\n  - id: part/q1\n    question: Q\n    options: [a, b]\n",
	} {
		_, err := ParseLesson(strings.NewReader(input))
		assert.ErrorContains(t, err, "excludesall")
	}
}
