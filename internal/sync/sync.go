package sync

import (
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/conorfennell/knolstudy/internal/gitsource"
	"github.com/conorfennell/knolstudy/internal/knol"
	"github.com/conorfennell/knolstudy/internal/parser"
	"github.com/conorfennell/knolstudy/internal/storage"
)

const (
	SourceLocal = "local"
	SourceGit   = "git"
)

// SourceType guesses whether path is a git URL or a local directory.
func SourceType(path string) string {
	if strings.HasSuffix(path, ".git") ||
		strings.HasPrefix(path, "git@") ||
		strings.HasPrefix(path, "https://") ||
		strings.HasPrefix(path, "http://") {
		return SourceGit
	}
	return SourceLocal
}

// Report summarises the reconciliation of one source.
type Report struct {
	SourceID       int64
	Path           string
	Cards          int
	CardsAdded     int
	CardsDeleted   int
	Quizzes        int
	QuizzesDeleted int
	Errors         []error
}

// Syncer reconciles the database with the content of every source.
type Syncer struct {
	db       *storage.DB
	git      *gitsource.Syncer
	reposDir string
	log      *zap.Logger
}

// New returns a Syncer that keeps git checkouts under reposDir.
func New(db *storage.DB, git *gitsource.Syncer, reposDir string, log *zap.Logger) *Syncer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Syncer{db: db, git: git, reposDir: reposDir, log: log}
}

// AddSource registers a local directory or git URL.
func (s *Syncer) AddSource(ctx context.Context, path string) (int64, error) {
	sourceType := SourceType(path)
	if sourceType == SourceLocal {
		abs, err := filepath.Abs(path)
		if err != nil {
			return 0, fmt.Errorf("failed to resolve %s: %w", path, err)
		}
		path = abs
	}
	existing, err := s.db.FindSourceByPath(ctx, path)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return existing.ID, nil
	}
	id, err := s.db.InsertSource(ctx, path, sourceType)
	if err != nil {
		return 0, err
	}
	s.log.Info("source added", zap.Int64("id", id), zap.String("type", sourceType), zap.String("path", path))
	return id, nil
}

// RunSync iterates over all sources and reconciles them. A source that
// fails is logged and skipped.
func (s *Syncer) RunSync(ctx context.Context) ([]Report, error) {
	s.log.Info("starting sync process for all sources")
	sources, err := s.db.GetAllSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get sources: %w", err)
	}

	if len(sources) == 0 {
		s.log.Info("no sources configured, add one with add-source <path/or/url.git>")
		return nil, nil
	}

	var reports []Report
	for _, source := range sources {
		s.log.Info("syncing source", zap.Int64("id", source.ID), zap.String("type", source.Type), zap.String("path", source.Path))

		dir := source.Path
		if source.Type == SourceGit {
			localRepoPath, err := gitURLToLocalPath(s.reposDir, source.Path)
			if err != nil {
				s.log.Error("error determining local path for git repo", zap.String("url", source.Path), zap.Error(err))
				continue
			}
			if err := os.MkdirAll(filepath.Dir(localRepoPath), os.ModePerm); err != nil {
				return reports, fmt.Errorf("failed to create repos directory: %w", err)
			}
			if err := s.git.Sync(ctx, source.Path, localRepoPath); err != nil {
				s.log.Error("error syncing git repo", zap.String("url", source.Path), zap.Error(err))
				continue
			}
			dir = localRepoPath
		}

		report, err := s.reconcile(ctx, source.ID, dir)
		if err != nil {
			s.log.Error("error reconciling source", zap.Int64("id", source.ID), zap.Error(err))
			continue
		}
		reports = append(reports, report)
	}
	s.log.Info("sync process complete", zap.Int("sources", len(reports)))
	return reports, nil
}

// reconcile walks dir, inserting new cards and quizzes, then deletes what
// the source no longer provides.
func (s *Syncer) reconcile(ctx context.Context, sourceID int64, dir string) (Report, error) {
	report := Report{SourceID: sourceID, Path: dir}
	foundCards := make(map[string]bool)
	foundQuizzes := make(map[string]bool)
	// Content of files that could not be read is kept until they are fixed.
	brokenDecks := make(map[string]bool)
	brokenLessons := 0

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		switch {
		case parser.IsDeckFile(path):
			if !s.reconcileDeck(ctx, sourceID, path, foundCards, &report) {
				brokenDecks[parser.DeckID(path)] = true
			}
		case parser.IsLessonFile(path):
			if !s.reconcileLesson(ctx, sourceID, path, foundQuizzes, &report) {
				brokenLessons++
			}
		}
		return nil
	})
	if walkErr != nil {
		return report, fmt.Errorf("error walking directory %s: %w", dir, walkErr)
	}

	dbCards, err := s.db.GetCardsBySourceID(ctx, sourceID)
	if err != nil {
		return report, err
	}
	for _, dbCard := range dbCards {
		if foundCards[dbCard.ID] || brokenDecks[dbCard.DeckID] {
			continue
		}
		s.log.Info("orphaned card, deleting", zap.String("id", dbCard.ID))
		if err := s.db.DeleteCardByID(ctx, dbCard.ID); err != nil {
			s.log.Warn("failed to delete orphaned card", zap.String("id", dbCard.ID), zap.Error(err))
			continue
		}
		report.CardsDeleted++
	}

	quizIDs, err := s.db.GetQuizIDsBySourceID(ctx, sourceID)
	if err != nil {
		return report, err
	}
	if brokenLessons > 0 {
		// A lesson's id lives inside its file, so an unreadable file could
		// own any of the stored quizzes.
		s.log.Warn("lesson files failed to parse, keeping stored quizzes",
			zap.Int64("source_id", sourceID), zap.Int("files", brokenLessons))
		quizIDs = nil
	}
	for _, id := range quizIDs {
		if foundQuizzes[id] {
			continue
		}
		if err := s.db.DeleteQuizByID(ctx, id); err != nil {
			s.log.Warn("failed to delete orphaned quiz", zap.String("id", id), zap.Error(err))
			continue
		}
		report.QuizzesDeleted++
	}

	if err := s.db.UpdateSourceLastScanned(ctx, sourceID); err != nil {
		s.log.Warn("failed to update last scanned for source", zap.Int64("source_id", sourceID), zap.Error(err))
	}

	s.log.Info("reconciliation complete",
		zap.String("path", dir),
		zap.Int("cards", report.Cards),
		zap.Int("cards_added", report.CardsAdded),
		zap.Int("cards_deleted", report.CardsDeleted),
		zap.Int("quizzes", report.Quizzes),
		zap.Int("quizzes_deleted", report.QuizzesDeleted),
		zap.Int("errors", len(report.Errors)),
	)
	return report, nil
}

// reconcileDeck stores the cards of one deck file. It reports false when the
// file could not be read.
func (s *Syncer) reconcileDeck(ctx context.Context, sourceID int64, path string, found map[string]bool, report *Report) bool {
	cards, err := parser.ParseFile(path)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Errorf("parsing %s: %w", path, err))
		return false
	}
	if len(cards) == 0 {
		return true
	}

	deckID := cards[0].DeckID
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if err := s.db.UpsertDeck(ctx, deckID, name, sourceID); err != nil {
		report.Errors = append(report.Errors, err)
		return false
	}

	for _, card := range cards {
		card.ID = knol.Hash(card)
		if found[card.ID] {
			continue // duplicate card within the deck
		}
		found[card.ID] = true
		report.Cards++

		existing, err := s.db.FindCardByID(ctx, card.ID)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("db check for %s: %w", card.ID, err))
			continue
		}
		if existing != nil {
			if existing.OrderIndex != card.OrderIndex || existing.Image != card.Image {
				if err := s.db.UpdateCardPresentation(ctx, card.ID, card.OrderIndex, card.Image); err != nil {
					report.Errors = append(report.Errors, err)
				}
			}
			continue
		}
		s.log.Debug("new card found, inserting", zap.String("id", card.ID), zap.String("deck", deckID))
		if err := s.db.InsertCard(ctx, card, sourceID); err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("db insert for %s: %w", card.ID, err))
			continue
		}
		report.CardsAdded++
	}
	return true
}

// reconcileLesson stores the quizzes of one lesson file. It reports false
// when the file could not be read.
func (s *Syncer) reconcileLesson(ctx context.Context, sourceID int64, path string, found map[string]bool, report *Report) bool {
	lesson, err := parser.ParseLessonFile(path)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Errorf("parsing %s: %w", path, err))
		return false
	}
	for _, q := range lesson.Quizzes {
		found[storage.QuizKey(lesson.ID, q.ID)] = true
		if err := s.db.UpsertQuiz(ctx, lesson.ID, q, sourceID); err != nil {
			report.Errors = append(report.Errors, err)
			continue
		}
		report.Quizzes++
	}
	return true
}

func gitURLToLocalPath(baseDir, repoURL string) (string, error) {
	parsedURL, err := url.Parse(repoURL)
	if err != nil || (parsedURL.Scheme != "https" && parsedURL.Scheme != "http") {
		if strings.Contains(repoURL, "@") {
			parts := strings.Split(repoURL, ":")
			if len(parts) == 2 {
				hostAndUser := strings.Split(parts[0], "@")
				if len(hostAndUser) == 2 {
					host := hostAndUser[1]
					repoPath := strings.TrimSuffix(parts[1], ".git")
					return filepath.Join(baseDir, host, repoPath), nil
				}
			}
		}
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}

	sanitizedPath := strings.TrimSuffix(parsedURL.Path, ".git")
	return filepath.Join(baseDir, parsedURL.Host, sanitizedPath), nil
}
