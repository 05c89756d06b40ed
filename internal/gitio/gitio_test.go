package gitio

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducks/arf/internal/arferr"
	"github.com/ducks/arf/internal/gitio/gitiotest"
)

func TestOpenOutsideRepository(t *testing.T) {
	dir := t.TempDir()
	_, err := Open(dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, arferr.ErrRepositoryNotFound))
	assert.Equal(t, arferr.ExitRepositoryNotFound, arferr.ExitCode(err))
}

func TestOpenFromSubdirectory(t *testing.T) {
	fx := gitiotest.New(t)
	fx.Commit("initial", map[string]string{"src/main.go": "package main\n"})

	repo, err := Open(filepath.Join(fx.Dir, "src"))
	require.NoError(t, err)
	assert.Equal(t, fx.Dir, repo.Root())
}

func TestListCommitsEmptyRepository(t *testing.T) {
	fx := gitiotest.New(t)
	repo, err := Open(fx.Dir)
	require.NoError(t, err)

	commits, err := repo.ListCommits(Range{})
	require.NoError(t, err)
	assert.NotNil(t, commits)
	assert.Empty(t, commits)
}

func TestListCommitsNewestFirst(t *testing.T) {
	fx := gitiotest.New(t)
	first := fx.Commit("first\n\nbody text", map[string]string{"a.txt": "a\n"})
	second := fx.Commit("second", map[string]string{"b.txt": "b\n"})
	third := fx.Commit("third", map[string]string{"c.txt": "c\n"})

	repo, err := Open(fx.Dir)
	require.NoError(t, err)

	commits, err := repo.ListCommits(Range{})
	require.NoError(t, err)
	require.Len(t, commits, 3)
	assert.Equal(t, third, commits[0].SHA)
	assert.Equal(t, second, commits[1].SHA)
	assert.Equal(t, first, commits[2].SHA)

	assert.Equal(t, "first", commits[2].Subject)
	assert.Equal(t, first[:7], commits[2].ShortSHA)
	assert.Empty(t, commits[2].Parents)
	assert.Equal(t, []string{first}, commits[1].Parents)
	assert.Equal(t, "Test Author", commits[0].Author)

	limited, err := repo.ListCommits(Range{Limit: 2})
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, third, limited[0].SHA)

	fromSecond, err := repo.ListCommits(Range{From: second})
	require.NoError(t, err)
	require.Len(t, fromSecond, 2)
	assert.Equal(t, second, fromSecond[0].SHA)
}

func TestShortLength(t *testing.T) {
	fx := gitiotest.New(t)
	sha := fx.Commit("only", map[string]string{"a.txt": "a\n"})

	repo, err := Open(fx.Dir)
	require.NoError(t, err)
	repo.SetShortLength(10)

	commits, err := repo.ListCommits(Range{})
	require.NoError(t, err)
	assert.Equal(t, sha[:10], commits[0].ShortSHA)
}

func TestResolveRef(t *testing.T) {
	fx := gitiotest.New(t)
	first := fx.Commit("first", map[string]string{"a.txt": "a\n"})
	second := fx.Commit("second", map[string]string{"b.txt": "b\n"})

	repo, err := Open(fx.Dir)
	require.NoError(t, err)

	cases := map[string]string{
		"":                         second,
		"HEAD":                     second,
		"HEAD~1":                   first,
		second:                     second,
		first[:8]:                  first,
		strings.ToUpper(first[:8]): first,
	}
	for input, want := range cases {
		got, err := repo.ResolveRef(input)
		require.NoError(t, err, "input %q", input)
		assert.Equal(t, want, got, "input %q", input)
	}

	head, err := repo.HeadSHA()
	require.NoError(t, err)
	assert.Equal(t, second, head)
}

func TestResolveRefNotFound(t *testing.T) {
	fx := gitiotest.New(t)
	fx.Commit("first", map[string]string{"a.txt": "a\n"})

	repo, err := Open(fx.Dir)
	require.NoError(t, err)

	for _, input := range []string{"0000000", "no-such-branch", strings.Repeat("0", 40)} {
		_, err := repo.ResolveRef(input)
		require.Error(t, err, input)
		assert.True(t, errors.Is(err, arferr.ErrRefNotFound), "input %q: %v", input, err)
		assert.Contains(t, err.Error(), input)
	}
}

func TestResolveRefAmbiguous(t *testing.T) {
	fx := gitiotest.New(t)
	var shas []string
	// Seventeen commits guarantee two share a first hex digit.
	for i := 0; i < 17; i++ {
		shas = append(shas, fx.Commit("commit", map[string]string{"f.txt": strings.Repeat("x", i+1)}))
	}

	seen := map[byte]bool{}
	var prefix string
	for _, sha := range shas {
		if seen[sha[0]] {
			prefix = sha[:1]
			break
		}
		seen[sha[0]] = true
	}
	require.NotEmpty(t, prefix)

	repo, err := Open(fx.Dir)
	require.NoError(t, err)

	// One hex digit is below the ResolveRef minimum, so go through the scanner.
	_, err = repo.resolvePrefix(prefix)
	require.Error(t, err)
	assert.True(t, errors.Is(err, arferr.ErrAmbiguousRef))
	assert.Contains(t, err.Error(), "ambiguous prefix")
}

func TestResolveHeadOnEmptyRepository(t *testing.T) {
	fx := gitiotest.New(t)
	repo, err := Open(fx.Dir)
	require.NoError(t, err)

	_, err = repo.HeadSHA()
	require.Error(t, err)
	assert.True(t, errors.Is(err, arferr.ErrRefNotFound))
}

func TestShowCommit(t *testing.T) {
	fx := gitiotest.New(t)
	root := fx.Commit("root", map[string]string{"hello.txt": "hello\n"})
	second := fx.Commit("change", map[string]string{"hello.txt": "hello\nworld\n", "new.txt": "new\n"})

	repo, err := Open(fx.Dir)
	require.NoError(t, err)

	stat, err := repo.ShowCommit(second, ShowStat)
	require.NoError(t, err)
	assert.Contains(t, stat, "hello.txt")
	assert.Contains(t, stat, "new.txt")
	assert.Contains(t, stat, "2 files changed")

	patch, err := repo.ShowCommit(second, ShowPatch)
	require.NoError(t, err)
	assert.Contains(t, patch, "+world")
	assert.Contains(t, patch, "diff --git a/hello.txt b/hello.txt")

	rootPatch, err := repo.ShowCommit(root, ShowPatch)
	require.NoError(t, err)
	assert.Contains(t, rootPatch, "+hello")

	_, err = repo.ShowCommit(strings.Repeat("1", 40), ShowStat)
	assert.True(t, errors.Is(err, arferr.ErrRefNotFound))
}

func TestLookupCommit(t *testing.T) {
	fx := gitiotest.New(t)
	sha := fx.Commit("subject line\n\nbody", map[string]string{"a.txt": "a"})

	repo, err := Open(fx.Dir)
	require.NoError(t, err)

	c, err := repo.LookupCommit(sha)
	require.NoError(t, err)
	assert.Equal(t, "subject line", c.Subject)
	assert.Equal(t, sha[:7], c.ShortSHA)
}

func TestFormatStatEmpty(t *testing.T) {
	assert.Equal(t, "", formatStat(nil))
}

func TestIsHex(t *testing.T) {
	assert.True(t, isHex("deadBEEF01"))
	assert.False(t, isHex(""))
	assert.False(t, isHex("main"))
}
