package worktree

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducks/arf/internal/arferr"
	"github.com/ducks/arf/internal/gitio/gitiotest"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git executable not available")
	}
}

func testOptions(root string) Options {
	return Options{
		Branch:      "arf",
		MountDir:    filepath.Join(root, ".arf"),
		AuthorName:  "arf",
		AuthorEmail: "arf@localhost",
		Now:         func() time.Time { return time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC) },
	}
}

func testSig() object.Signature {
	return object.Signature{Name: "arf", Email: "arf@localhost", When: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)}
}

func TestInitOutsideRepository(t *testing.T) {
	_, err := Init(context.Background(), t.TempDir(), testOptions(t.TempDir()), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, arferr.ErrRepositoryNotFound))
}

func TestWriteInitialCommit(t *testing.T) {
	fx := gitiotest.New(t)
	head := fx.Commit("source", map[string]string{"main.go": "package main\n"})

	ref := plumbing.NewBranchReferenceName("arf")
	hash, err := writeInitialCommit(fx.Repo, ref, testSig())
	require.NoError(t, err)

	got, err := fx.Repo.Reference(ref, true)
	require.NoError(t, err)
	assert.Equal(t, hash, got.Hash())

	commit, err := fx.Repo.CommitObject(hash)
	require.NoError(t, err)
	assert.Equal(t, 0, commit.NumParents())
	assert.Equal(t, "Initialize ARF\n", commit.Message)

	tree, err := commit.Tree()
	require.NoError(t, err)
	_, err = tree.File("README.md")
	assert.NoError(t, err)
	_, err = tree.File("records/.gitkeep")
	assert.NoError(t, err)
	_, err = tree.File("specs/.gitkeep")
	assert.NoError(t, err)

	// The source branch is untouched.
	headRef, err := fx.Repo.Head()
	require.NoError(t, err)
	assert.Equal(t, head, headRef.Hash().String())
}

func TestInitCreatesAndMounts(t *testing.T) {
	requireGit(t)
	fx := gitiotest.New(t)
	fx.Commit("source", map[string]string{"main.go": "package main\n"})
	opts := testOptions(fx.Dir)

	res, err := Init(context.Background(), fx.Dir, opts, nil)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.True(t, res.Mounted)

	for _, p := range []string{"README.md", "records", "specs"} {
		_, err := os.Stat(filepath.Join(opts.MountDir, p))
		assert.NoError(t, err, p)
	}

	exclude, err := os.ReadFile(filepath.Join(fx.Dir, ".git", "info", "exclude"))
	require.NoError(t, err)
	assert.Contains(t, string(exclude), "/.arf/\n")

	again, err := Init(context.Background(), fx.Dir, opts, nil)
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.False(t, again.Mounted)
	assert.Equal(t, res.Commit, again.Commit)

	exclude2, err := os.ReadFile(filepath.Join(fx.Dir, ".git", "info", "exclude"))
	require.NoError(t, err)
	assert.Equal(t, string(exclude), string(exclude2))
}

func TestCommitRecords(t *testing.T) {
	requireGit(t)
	fx := gitiotest.New(t)
	fx.Commit("source", map[string]string{"main.go": "package main\n"})
	opts := testOptions(fx.Dir)
	_, err := Init(context.Background(), fx.Dir, opts, nil)
	require.NoError(t, err)

	path := filepath.Join(opts.MountDir, "records", "abcd1234", "claude-20260115-100000.toml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("what = 'w'\nwhy = 'y'\n"), 0644))

	sha, err := Commit(context.Background(), opts.MountDir, []string{path}, "Record: w", Author{Name: "arf", Email: "arf@localhost"}, nil)
	require.NoError(t, err)
	require.Len(t, sha, 40)

	repo, err := git.PlainOpen(fx.Dir)
	require.NoError(t, err)
	ref, err := repo.Reference(plumbing.NewBranchReferenceName("arf"), true)
	require.NoError(t, err)
	assert.Equal(t, sha, ref.Hash().String())

	commit, err := repo.CommitObject(ref.Hash())
	require.NoError(t, err)
	assert.Equal(t, "Record: w", strings.TrimSpace(commit.Message))
	_, err = commit.File("records/abcd1234/claude-20260115-100000.toml")
	assert.NoError(t, err)
}

func TestSyncUninitialized(t *testing.T) {
	_, err := Sync(context.Background(), filepath.Join(t.TempDir(), ".arf"), "arf", false, false)
	assert.True(t, errors.Is(err, arferr.ErrStorageUninitialized))
}

func TestSyncWithoutRemoteReportsSteps(t *testing.T) {
	requireGit(t)
	fx := gitiotest.New(t)
	fx.Commit("source", map[string]string{"main.go": "package main\n"})
	opts := testOptions(fx.Dir)
	_, err := Init(context.Background(), fx.Dir, opts, nil)
	require.NoError(t, err)

	steps, err := Sync(context.Background(), opts.MountDir, "arf", false, false)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "pull", steps[0].Op)
	assert.False(t, steps[0].OK)
	assert.NotEmpty(t, steps[0].Message)
	assert.Equal(t, "push", steps[1].Op)
	assert.False(t, steps[1].OK)
}
