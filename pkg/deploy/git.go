package deploy

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ErrNotInRepository is returned when the flake is not inside a git worktree.
var ErrNotInRepository = errors.New("flake is not in a git repository")

// GitCommitter commits flake updates to the repository containing the flake.
type GitCommitter struct {
	AuthorName  string
	AuthorEmail string

	now func() time.Time
}

// NewGitCommitter creates a committer that signs commits as name <email>.
func NewGitCommitter(name, email string) *GitCommitter {
	return &GitCommitter{
		AuthorName:  name,
		AuthorEmail: email,
		now:         time.Now,
	}
}

// Commit stages path and commits it with message, returning the new commit hash.
func (c *GitCommitter) Commit(ctx context.Context, path, message string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	abs, err = filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}

	repo, err := git.PlainOpenWithOptions(filepath.Dir(abs), &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return "", fmt.Errorf("%w: %s", ErrNotInRepository, path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to open git repository: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to get worktree: %w", err)
	}

	root, err := filepath.EvalSymlinks(wt.Filesystem.Root())
	if err != nil {
		return "", fmt.Errorf("resolving worktree root: %w", err)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", fmt.Errorf("flake path relative to worktree: %w", err)
	}

	if _, err := wt.Add(filepath.ToSlash(rel)); err != nil {
		return "", fmt.Errorf("failed to stage %s: %w", rel, err)
	}

	now := time.Now
	if c.now != nil {
		now = c.now
	}
	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  c.AuthorName,
			Email: c.AuthorEmail,
			When:  now(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to commit: %w", err)
	}
	return hash.String(), nil
}
