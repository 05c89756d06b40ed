package worktree

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"
)

// Author signs commits on the storage branch.
type Author struct {
	Name  string
	Email string
}

// Commit stages paths (absolute, inside mountDir) and commits them on the
// storage branch. go-git is tried first; the git executable is the fallback
// for worktree layouts go-git cannot write to.
func Commit(ctx context.Context, mountDir string, paths []string, message string, author Author, log *zap.Logger) (string, error) {
	if log == nil {
		log = zap.NewNop()
	}

	rels := make([]string, 0, len(paths))
	for _, p := range paths {
		rel, err := filepath.Rel(mountDir, p)
		if err != nil {
			return "", fmt.Errorf("path %s is outside %s: %w", p, mountDir, err)
		}
		rels = append(rels, filepath.ToSlash(rel))
	}

	sha, err := commitGoGit(mountDir, rels, message, author)
	if err == nil {
		return sha, nil
	}
	log.Debug("go-git commit failed, falling back to git", zap.Error(err))

	args := append([]string{"add", "--"}, rels...)
	if _, err := runGit(ctx, mountDir, args...); err != nil {
		return "", fmt.Errorf("staging records: %w", err)
	}
	if _, err := runGit(ctx, mountDir,
		"-c", "user.name="+author.Name, "-c", "user.email="+author.Email,
		"commit", "-m", message); err != nil {
		return "", fmt.Errorf("committing records: %w", err)
	}
	return runGit(ctx, mountDir, "rev-parse", "HEAD")
}

func commitGoGit(mountDir string, rels []string, message string, author Author) (string, error) {
	repo, err := git.PlainOpenWithOptions(mountDir, &git.PlainOpenOptions{EnableDotGitCommonDir: true})
	if err != nil {
		return "", fmt.Errorf("opening storage worktree: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("opening worktree: %w", err)
	}
	for _, rel := range rels {
		if _, err := wt.Add(rel); err != nil {
			return "", fmt.Errorf("staging %s: %w", rel, err)
		}
	}
	sig := &object.Signature{Name: author.Name, Email: author.Email, When: time.Now()}
	hash, err := wt.Commit(message, &git.CommitOptions{Author: sig, Committer: sig})
	if err != nil {
		return "", fmt.Errorf("committing: %w", err)
	}
	return hash.String(), nil
}
