// Package worktree provisions and maintains the storage checkout: an orphan
// branch mounted as a linked worktree inside the source repository.
package worktree

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/filesystem"
	"go.uber.org/zap"

	"github.com/ducks/arf/internal/arferr"
)

const readme = `# ARF Records

This branch contains Agent Reasoning Format records.

Records are organized by commit SHA prefix:
` + "```" + `
records/
  <commit-sha-prefix>/
    <agent>-<timestamp>.toml
specs/
  <name>.arf
` + "```" + `

See https://github.com/ducks/arf for the ARF specification.
`

// Options configures Init.
type Options struct {
	Branch      string
	MountDir    string // absolute
	AuthorName  string
	AuthorEmail string
	Now         func() time.Time
}

// Result reports what Init did.
type Result struct {
	// Created is true when the branch was created by this call.
	Created bool
	// Mounted is true when the worktree was added by this call.
	Mounted bool
	Branch  string
	Commit  string
}

// Init creates the storage branch and mounts it. It is idempotent: an
// existing branch is left alone, and only mounted if the mount is missing.
func Init(ctx context.Context, repoRoot string, opts Options, log *zap.Logger) (*Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	repo, err := git.PlainOpenWithOptions(repoRoot, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, arferr.New(arferr.KindRepositoryNotFound, repoRoot,
				"not a git repository. Run 'git init' first")
		}
		return nil, fmt.Errorf("opening repository: %w", err)
	}

	res := &Result{Branch: opts.Branch}
	refName := plumbing.NewBranchReferenceName(opts.Branch)
	ref, err := repo.Reference(refName, true)
	switch {
	case err == nil:
		res.Commit = ref.Hash().String()
		log.Debug("storage branch exists", zap.String("branch", opts.Branch))
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		hash, err := writeInitialCommit(repo, refName, object.Signature{
			Name:  opts.AuthorName,
			Email: opts.AuthorEmail,
			When:  opts.Now(),
		})
		if err != nil {
			return nil, arferr.Wrap(arferr.KindStorage, opts.Branch, "creating storage branch", err)
		}
		res.Created = true
		res.Commit = hash.String()
		log.Debug("created storage branch", zap.String("branch", opts.Branch), zap.String("commit", res.Commit))
	default:
		return nil, fmt.Errorf("reading branch %s: %w", opts.Branch, err)
	}

	if !isMounted(opts.MountDir) {
		if _, err := runGit(ctx, repoRoot, "worktree", "add", opts.MountDir, opts.Branch); err != nil {
			return nil, arferr.Wrap(arferr.KindStorage, opts.MountDir, "mounting storage worktree", err)
		}
		res.Mounted = true
	}

	for _, dir := range []string{"records", "specs"} {
		if err := os.MkdirAll(filepath.Join(opts.MountDir, dir), 0755); err != nil {
			return nil, arferr.Wrap(arferr.KindStorage, opts.MountDir, "creating storage layout", err)
		}
	}

	if err := excludeMount(repo, repoRoot, opts.MountDir); err != nil {
		log.Warn("could not add mount to info/exclude", zap.Error(err))
	}
	return res, nil
}

// isMounted reports whether dir is a checked-out worktree.
func isMounted(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

// writeInitialCommit builds a parentless commit holding the README and the
// empty directory layout, and points ref at it.
func writeInitialCommit(repo *git.Repository, ref plumbing.ReferenceName, sig object.Signature) (plumbing.Hash, error) {
	keep, err := writeBlob(repo, nil)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	readmeHash, err := writeBlob(repo, []byte(readme))
	if err != nil {
		return plumbing.ZeroHash, err
	}
	sub, err := writeTree(repo, &object.Tree{Entries: []object.TreeEntry{
		{Name: ".gitkeep", Mode: filemode.Regular, Hash: keep},
	}})
	if err != nil {
		return plumbing.ZeroHash, err
	}
	// Entries are in git's tree order.
	root, err := writeTree(repo, &object.Tree{Entries: []object.TreeEntry{
		{Name: "README.md", Mode: filemode.Regular, Hash: readmeHash},
		{Name: "records", Mode: filemode.Dir, Hash: sub},
		{Name: "specs", Mode: filemode.Dir, Hash: sub},
	}})
	if err != nil {
		return plumbing.ZeroHash, err
	}

	commit := &object.Commit{
		Author:    sig,
		Committer: sig,
		Message:   "Initialize ARF\n",
		TreeHash:  root,
	}
	obj := repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("encoding commit: %w", err)
	}
	hash, err := repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("storing commit: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(ref, hash)); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("setting %s: %w", ref, err)
	}
	return hash, nil
}

func writeBlob(repo *git.Repository, content []byte) (plumbing.Hash, error) {
	obj := repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if _, err := w.Write(content); err != nil {
		w.Close()
		return plumbing.ZeroHash, err
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, err
	}
	return repo.Storer.SetEncodedObject(obj)
}

func writeTree(repo *git.Repository, tree *object.Tree) (plumbing.Hash, error) {
	obj := repo.Storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("encoding tree: %w", err)
	}
	return repo.Storer.SetEncodedObject(obj)
}

// excludeMount keeps the mount out of the source worktree's status.
func excludeMount(repo *git.Repository, repoRoot, mountDir string) error {
	fs, ok := repo.Storer.(*filesystem.Storage)
	if !ok {
		return nil
	}
	rel, err := filepath.Rel(repoRoot, mountDir)
	if err != nil || strings.HasPrefix(rel, "..") {
		return nil
	}
	pattern := "/" + filepath.ToSlash(rel) + "/"

	path := filepath.Join(fs.Filesystem().Root(), "info", "exclude")
	existing, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	for _, line := range strings.Split(string(existing), "\n") {
		if strings.TrimSpace(line) == pattern {
			return nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	if len(existing) > 0 && !strings.HasSuffix(string(existing), "\n") {
		pattern = "\n" + pattern
	}
	_, err = f.WriteString(pattern + "\n")
	return err
}
