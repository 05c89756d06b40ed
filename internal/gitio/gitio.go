// Package gitio provides Git repository I/O operations using go-git.
package gitio

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"github.com/ducks/arf/internal/arferr"
)

// DefaultShortLength matches git's default abbreviation.
const DefaultShortLength = 7

// minPrefixLength is the shortest hex string treated as an abbreviated commit id.
const minPrefixLength = 4

// maxCandidates bounds the candidates listed in an ambiguity error.
const maxCandidates = 10

// Commit is a commit as seen by arf. It is rebuilt from git on every
// invocation and never persisted.
type Commit struct {
	SHA        string
	ShortSHA   string
	Parents    []string
	Subject    string
	Author     string
	AuthorTime time.Time
}

// Range selects commits for ListCommits.
type Range struct {
	// From is the starting revision; empty means HEAD.
	From string
	// Limit caps the number of commits; zero or negative means no cap.
	Limit int
}

// ShowMode selects how ShowCommit renders a change.
type ShowMode int

const (
	// ShowStat renders a per-file summary like `git show --stat`.
	ShowStat ShowMode = iota
	// ShowPatch renders the full unified diff.
	ShowPatch
)

// History is the narrow view of version control the core depends on.
type History interface {
	ListCommits(r Range) ([]Commit, error)
	ResolveRef(ref string) (string, error)
	ShowCommit(sha string, mode ShowMode) (string, error)
}

// Repository wraps a go-git repository.
type Repository struct {
	repo     *git.Repository
	root     string
	shortLen int
}

var _ History = (*Repository)(nil)

// Open opens the Git repository enclosing path.
func Open(path string) (*Repository, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, arferr.New(arferr.KindRepositoryNotFound, path,
				"not a git repository (or any parent up to the filesystem root). Run 'git init' first")
		}
		return nil, fmt.Errorf("opening repository: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		if errors.Is(err, git.ErrIsBareRepository) {
			return nil, arferr.New(arferr.KindRepositoryNotFound, path,
				"bare repository has no worktree; run arf inside a checkout")
		}
		return nil, fmt.Errorf("opening worktree: %w", err)
	}

	return &Repository{repo: repo, root: wt.Filesystem.Root(), shortLen: DefaultShortLength}, nil
}

// Root returns the worktree root directory.
func (r *Repository) Root() string {
	return r.root
}

// SetShortLength sets the display length used for Commit.ShortSHA.
func (r *Repository) SetShortLength(n int) {
	if n >= minPrefixLength && n <= 40 {
		r.shortLen = n
	}
}

// Short abbreviates a sha to the configured display length.
func (r *Repository) Short(sha string) string {
	if len(sha) > r.shortLen {
		return sha[:r.shortLen]
	}
	return sha
}

// ListCommits returns commits newest-first, like `git log`.
// An empty repository yields an empty slice.
func (r *Repository) ListCommits(rg Range) ([]Commit, error) {
	commits := []Commit{}

	var from plumbing.Hash
	if rg.From == "" || rg.From == "HEAD" {
		head, err := r.repo.Head()
		if err != nil {
			if errors.Is(err, plumbing.ErrReferenceNotFound) {
				return commits, nil
			}
			return nil, fmt.Errorf("reading HEAD: %w", err)
		}
		from = head.Hash()
	} else {
		sha, err := r.ResolveRef(rg.From)
		if err != nil {
			return nil, err
		}
		from = plumbing.NewHash(sha)
	}

	iter, err := r.repo.Log(&git.LogOptions{From: from, Order: git.LogOrderCommitterTime})
	if err != nil {
		return nil, fmt.Errorf("walking history: %w", err)
	}
	defer iter.Close()

	err = iter.ForEach(func(c *object.Commit) error {
		if rg.Limit > 0 && len(commits) >= rg.Limit {
			return storer.ErrStop
		}
		commits = append(commits, r.toCommit(c))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking history: %w", err)
	}

	return commits, nil
}

// HeadSHA returns the full sha HEAD points to.
func (r *Repository) HeadSHA() (string, error) {
	return r.ResolveRef("HEAD")
}

// ResolveRef resolves a git reference (HEAD, branch name, tag, full or
// abbreviated commit hash, or revision expression) to a full commit sha.
func (r *Repository) ResolveRef(refName string) (string, error) {
	refName = strings.TrimSpace(refName)
	if refName == "" || refName == "HEAD" {
		head, err := r.repo.Head()
		if err != nil {
			return "", arferr.New(arferr.KindRefNotFound, "HEAD",
				"HEAD does not point to a commit yet; commit something first or pass --commit")
		}
		return head.Hash().String(), nil
	}

	// Try as a branch first
	if sha, ok := r.resolveReference(plumbing.NewBranchReferenceName(refName)); ok {
		return sha, nil
	}

	// Try as a tag
	if sha, ok := r.resolveReference(plumbing.NewTagReferenceName(refName)); ok {
		return sha, nil
	}

	// Try as a commit hash or abbreviation
	if isHex(refName) {
		lower := strings.ToLower(refName)
		if len(lower) == 40 {
			if _, err := r.repo.CommitObject(plumbing.NewHash(lower)); err != nil {
				return "", arferr.New(arferr.KindRefNotFound, refName, fmt.Sprintf("commit not found: %s", refName))
			}
			return lower, nil
		}
		if len(lower) >= minPrefixLength {
			return r.resolvePrefix(lower)
		}
	}

	// Fall back to revision expressions (HEAD~2, main^, ...)
	hash, err := r.repo.ResolveRevision(plumbing.Revision(refName))
	if err != nil {
		return "", arferr.New(arferr.KindRefNotFound, refName,
			fmt.Sprintf("cannot resolve %q: not a branch, tag, or commit hash", refName))
	}
	return hash.String(), nil
}

// resolveReference follows a named reference to a commit, peeling annotated tags.
func (r *Repository) resolveReference(name plumbing.ReferenceName) (string, bool) {
	ref, err := r.repo.Reference(name, true)
	if err != nil {
		return "", false
	}
	hash := ref.Hash()
	if tag, err := r.repo.TagObject(hash); err == nil {
		c, err := tag.Commit()
		if err != nil {
			return "", false
		}
		return c.Hash.String(), true
	}
	if _, err := r.repo.CommitObject(hash); err != nil {
		return "", false
	}
	return hash.String(), true
}

// resolvePrefix resolves an abbreviated hash by scanning commit objects.
func (r *Repository) resolvePrefix(prefix string) (string, error) {
	iter, err := r.repo.CommitObjects()
	if err != nil {
		return "", fmt.Errorf("listing commits: %w", err)
	}
	defer iter.Close()

	var candidates []*object.Commit
	err = iter.ForEach(func(c *object.Commit) error {
		if strings.HasPrefix(c.Hash.String(), prefix) {
			candidates = append(candidates, c)
			if len(candidates) > maxCandidates {
				return storer.ErrStop
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("scanning commits: %w", err)
	}

	switch len(candidates) {
	case 0:
		return "", arferr.New(arferr.KindRefNotFound, prefix, fmt.Sprintf("commit not found: %s", prefix))
	case 1:
		return candidates[0].Hash.String(), nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Hash.String() < candidates[j].Hash.String()
	})
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}
	var parts []string
	for _, c := range candidates {
		parts = append(parts, fmt.Sprintf("%s %s", c.Hash.String()[:12], subject(c.Message)))
	}
	return "", arferr.New(arferr.KindAmbiguousRef, prefix,
		fmt.Sprintf("ambiguous prefix '%s' matches:\n  %s\nprovide more characters or use a ref",
			prefix, strings.Join(parts, "\n  ")))
}

// LookupCommit returns the commit for a full sha.
func (r *Repository) LookupCommit(sha string) (Commit, error) {
	c, err := r.repo.CommitObject(plumbing.NewHash(sha))
	if err != nil {
		return Commit{}, arferr.Wrap(arferr.KindRefNotFound, sha, "commit not found", err)
	}
	return r.toCommit(c), nil
}

// ShowCommit renders the change a commit introduces relative to its first
// parent, or to the empty tree for a root commit.
func (r *Repository) ShowCommit(sha string, mode ShowMode) (string, error) {
	c, err := r.repo.CommitObject(plumbing.NewHash(sha))
	if err != nil {
		return "", arferr.Wrap(arferr.KindRefNotFound, sha, "commit not found", err)
	}

	tree, err := c.Tree()
	if err != nil {
		return "", fmt.Errorf("getting tree: %w", err)
	}

	parentTree := &object.Tree{}
	if c.NumParents() > 0 {
		parent, err := c.Parent(0)
		if err != nil {
			return "", fmt.Errorf("getting parent: %w", err)
		}
		parentTree, err = parent.Tree()
		if err != nil {
			return "", fmt.Errorf("getting parent tree: %w", err)
		}
	}

	patch, err := parentTree.Patch(tree)
	if err != nil {
		return "", fmt.Errorf("computing diff: %w", err)
	}

	if mode == ShowPatch {
		return patch.String(), nil
	}
	return formatStat(patch.Stats()), nil
}

// formatStat renders file stats with a git-style summary line.
func formatStat(stats object.FileStats) string {
	if len(stats) == 0 {
		return ""
	}
	var added, deleted int
	for _, s := range stats {
		added += s.Addition
		deleted += s.Deletion
	}

	var b strings.Builder
	b.WriteString(stats.String())
	fmt.Fprintf(&b, " %d file%s changed", len(stats), plural(len(stats)))
	if added > 0 {
		fmt.Fprintf(&b, ", %d insertion%s(+)", added, plural(added))
	}
	if deleted > 0 {
		fmt.Fprintf(&b, ", %d deletion%s(-)", deleted, plural(deleted))
	}
	b.WriteString("\n")
	return b.String()
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func (r *Repository) toCommit(c *object.Commit) Commit {
	sha := c.Hash.String()
	parents := make([]string, 0, len(c.ParentHashes))
	for _, p := range c.ParentHashes {
		parents = append(parents, p.String())
	}
	return Commit{
		SHA:        sha,
		ShortSHA:   r.Short(sha),
		Parents:    parents,
		Subject:    subject(c.Message),
		Author:     c.Author.Name,
		AuthorTime: c.Author.When,
	}
}

// subject returns the first line of a commit message.
func subject(message string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(message), "\n")
	return strings.TrimSpace(line)
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
