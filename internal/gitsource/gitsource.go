package gitsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-git/go-git/v5"
	"go.uber.org/zap"
)

// Syncer clones or updates git repositories holding decks and lessons.
type Syncer struct {
	log      *zap.Logger
	progress io.Writer
}

// New returns a Syncer. progress receives git's progress output and may be nil.
func New(log *zap.Logger, progress io.Writer) *Syncer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Syncer{log: log, progress: progress}
}

// Sync clones a git repository if it doesn't exist at the given path,
// or pulls the latest changes if it does.
func (s *Syncer) Sync(ctx context.Context, url, localPath string) error {
	_, err := os.Stat(localPath)
	switch {
	case os.IsNotExist(err):
		s.log.Info("cloning repository", zap.String("url", url), zap.String("path", localPath))
		_, err := git.PlainCloneContext(ctx, localPath, false, &git.CloneOptions{
			URL:      url,
			Progress: s.progress,
		})
		if err != nil {
			return fmt.Errorf("failed to clone repo %s: %w", url, err)
		}
		s.log.Info("clone successful", zap.String("url", url))
	case err == nil:
		s.log.Info("pulling latest changes", zap.String("path", localPath))
		repo, err := git.PlainOpen(localPath)
		if err != nil {
			return fmt.Errorf("failed to open existing repo at %s: %w", localPath, err)
		}

		worktree, err := repo.Worktree()
		if err != nil {
			return fmt.Errorf("failed to get worktree for repo at %s: %w", localPath, err)
		}

		err = worktree.PullContext(ctx, &git.PullOptions{
			RemoteName: "origin",
			Progress:   s.progress,
		})
		if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return fmt.Errorf("failed to pull changes for repo at %s: %w", localPath, err)
		}
		s.log.Info("pull successful (or already up-to-date)", zap.String("path", localPath))
	default:
		return fmt.Errorf("error checking path %s: %w", localPath, err)
	}

	return nil
}
