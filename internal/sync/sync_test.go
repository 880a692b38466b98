package sync

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/knolstudy/internal/gitsource"
	"github.com/conorfennell/knolstudy/internal/storage"
)

const lessonFile = `
lesson: intro
quizzes:
  - id: q1
    timestamp: 10
    question: First?
    options: [a, b]
    correct_answer: 0
  - id: q2
    timestamp: 20
    question: Second?
    options: [a, b]
    correct_answer: 1
`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func newSyncer(t *testing.T) (*Syncer, *storage.DB) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "sync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, gitsource.New(nil, nil), t.TempDir(), nil), db
}

func TestRunSyncLocalSource(t *testing.T) {
	ctx := context.Background()
	s, db := newSyncer(t)
	dir := t.TempDir()
	writeFile(t, dir, "Go Basics.md", "Q: What is Go?\nA: A language\n\nQ: Who made it?\nA: Google\n")
	writeFile(t, dir, "intro.quiz.yaml", lessonFile)
	writeFile(t, dir, "notes.txt", "Q: ignored\nA: ignored")

	id, err := s.AddSource(ctx, dir)
	require.NoError(t, err)
	again, err := s.AddSource(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, id, again, "adding a source twice is idempotent")

	reports, err := s.RunSync(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, 2, reports[0].Cards)
	assert.Equal(t, 2, reports[0].CardsAdded)
	assert.Equal(t, 2, reports[0].Quizzes)
	assert.Empty(t, reports[0].Errors)

	due, err := db.DueCards(ctx, "go-basics", time.Now())
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "What is Go?", due[0].Front)

	quizzes, err := db.QuizzesForLesson(ctx, "intro")
	require.NoError(t, err)
	assert.Len(t, quizzes, 2)

	// Second pass: one card edited, one quiz removed.
	writeFile(t, dir, "Go Basics.md", "Q: What is Go?\nA: A language\n\nQ: Who made it?\nA: Google engineers\n")
	writeFile(t, dir, "intro.quiz.yaml", `
lesson: intro
quizzes:
  - id: q1
    timestamp: 10
    question: First?
    options: [a, b]
`)

	reports, err = s.RunSync(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Empty(t, reports[0].Errors)
	assert.Equal(t, 1, reports[0].CardsAdded)
	assert.Equal(t, 1, reports[0].CardsDeleted)
	assert.Equal(t, 1, reports[0].QuizzesDeleted)

	due, err = db.DueCards(ctx, "go-basics", time.Now())
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "Google engineers", due[1].Back)
}

func TestRunSyncReportsParseErrors(t *testing.T) {
	ctx := context.Background()
	s, _ := newSyncer(t)
	dir := t.TempDir()
	writeFile(t, dir, "broken.quiz.yaml", "lesson: broken\nquizzes:\n  - {id: q1, question: Q, options: [only]}\n")

	_, err := s.AddSource(ctx, dir)
	require.NoError(t, err)
	reports, err := s.RunSync(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Len(t, reports[0].Errors, 1)
}

func TestRunSyncKeepsContentOfBrokenFiles(t *testing.T) {
	ctx := context.Background()
	s, db := newSyncer(t)
	dir := t.TempDir()
	writeFile(t, dir, "basics.md", "Q: One\nA: 1\n")
	writeFile(t, dir, "intro.quiz.yaml", `
lesson: intro
quizzes:
  - id: q1
    timestamp: 10
    question: Required
    options: [a, b]
    required: true
`)
	_, err := s.AddSource(ctx, dir)
	require.NoError(t, err)
	_, err = s.RunSync(ctx)
	require.NoError(t, err)

	// Files that fail to parse must not delete what they provided. The deck
	// has a line longer than the scanner accepts.
	writeFile(t, dir, "basics.md", "Q: One\nA: "+strings.Repeat("x", 128*1024)+"\n")
	writeFile(t, dir, "intro.quiz.yaml", `
lesson: intro
quizzes:
  - id: q1
    timestamp: 10
    question: Required
    options: [a, b]
    requird: true
`)
	reports, err := s.RunSync(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Len(t, reports[0].Errors, 2)
	assert.Zero(t, reports[0].CardsDeleted)
	assert.Zero(t, reports[0].QuizzesDeleted)

	quizzes, err := db.QuizzesForLesson(ctx, "intro")
	require.NoError(t, err)
	require.Len(t, quizzes, 1)
	assert.True(t, quizzes[0].IsRequired)

	due, err := db.DueCards(ctx, "basics", time.Now())
	require.NoError(t, err)
	assert.Len(t, due, 1)
}

func TestRunSyncUpdatesCardImage(t *testing.T) {
	ctx := context.Background()
	s, db := newSyncer(t)
	dir := t.TempDir()
	writeFile(t, dir, "basics.md", "Q: One\nA: 1\nI: old.png\n")
	_, err := s.AddSource(ctx, dir)
	require.NoError(t, err)
	_, err = s.RunSync(ctx)
	require.NoError(t, err)

	writeFile(t, dir, "basics.md", "Q: One\nA: 1\nI: new.png\n")
	reports, err := s.RunSync(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Zero(t, reports[0].CardsAdded, "the image is not part of the card id")

	due, err := db.DueCards(ctx, "basics", time.Now())
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "new.png", due[0].Image)
}

func TestRunSyncWithoutSources(t *testing.T) {
	s, _ := newSyncer(t)
	reports, err := s.RunSync(context.Background())
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestSourceType(t *testing.T) {
	assert.Equal(t, SourceGit, SourceType("git@github.com:user/decks.git"))
	assert.Equal(t, SourceGit, SourceType("https://github.com/user/decks"))
	assert.Equal(t, SourceGit, SourceType("http://example.com/decks"))
	assert.Equal(t, SourceLocal, SourceType("./decks"))
}

func TestGitURLToLocalPath(t *testing.T) {
	testCases := []struct {
		url      string
		expected string
	}{
		{"https://github.com/user/decks.git", filepath.Join("repos", "github.com", "user", "decks")},
		{"git@github.com:user/decks.git", filepath.Join("repos", "github.com", "user", "decks")},
	}
	for _, tc := range testCases {
		t.Run(tc.url, func(t *testing.T) {
			got, err := gitURLToLocalPath("repos", tc.url)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}

	_, err := gitURLToLocalPath("repos", "not a url")
	assert.Error(t, err)
}
