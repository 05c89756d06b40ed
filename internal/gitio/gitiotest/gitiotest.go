// Package gitiotest builds throwaway git repositories for tests.
package gitiotest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Repo is a git repository in a temp directory.
type Repo struct {
	t    testing.TB
	Dir  string
	Repo *git.Repository
	when time.Time
}

// New initializes an empty repository in t.TempDir().
func New(t testing.TB) *Repo {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("git init: %v", err)
	}
	return &Repo{
		t:    t,
		Dir:  dir,
		Repo: repo,
		when: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

// Commit writes files (path -> content) and commits them. Each commit is one
// minute after the previous so history order is stable.
func (r *Repo) Commit(message string, files map[string]string) string {
	r.t.Helper()
	wt, err := r.Repo.Worktree()
	if err != nil {
		r.t.Fatalf("worktree: %v", err)
	}
	for path, content := range files {
		full := filepath.Join(r.Dir, path)
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			r.t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0644); err != nil {
			r.t.Fatalf("write %s: %v", path, err)
		}
		if _, err := wt.Add(path); err != nil {
			r.t.Fatalf("add %s: %v", path, err)
		}
	}

	r.when = r.when.Add(time.Minute)
	sig := &object.Signature{Name: "Test Author", Email: "test@example.com", When: r.when}
	hash, err := wt.Commit(message, &git.CommitOptions{Author: sig, Committer: sig, AllowEmptyCommits: true})
	if err != nil {
		r.t.Fatalf("commit: %v", err)
	}
	return hash.String()
}
