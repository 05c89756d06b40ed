// Package associate joins commit history with record directories.
//
// A directory belongs to a commit when its name is a prefix of the commit's
// sha. No prefix length is assumed: every length present in storage is tried,
// so directories written with different prefix lengths over the life of a
// repository still associate.
package associate

import (
	"sort"

	"github.com/ducks/arf/internal/gitio"
	"github.com/ducks/arf/internal/store"
)

// Index maps commits to their records. Built once per invocation.
type Index struct {
	commits []gitio.Commit
	records map[string][]store.Entry
	orphans []store.Directory
}

// Build associates dirs with commits. Commits keep the order given.
func Build(commits []gitio.Commit, dirs []store.Directory) *Index {
	// Merge case-folded duplicates and group by prefix length.
	byPrefix := make(map[string]*store.Directory)
	var prefixes []string
	for _, d := range dirs {
		if existing, ok := byPrefix[d.Prefix]; ok {
			existing.Entries = append(existing.Entries, d.Entries...)
			continue
		}
		merged := store.Directory{Prefix: d.Prefix, Shape: d.Shape}
		merged.Entries = append([]store.Entry{}, d.Entries...)
		byPrefix[d.Prefix] = &merged
		prefixes = append(prefixes, d.Prefix)
	}

	lengthSet := make(map[int]bool)
	for p := range byPrefix {
		lengthSet[len(p)] = true
	}
	lengths := make([]int, 0, len(lengthSet))
	for l := range lengthSet {
		lengths = append(lengths, l)
	}
	sort.Ints(lengths)

	ix := &Index{
		commits: commits,
		records: make(map[string][]store.Entry, len(commits)),
	}
	matched := make(map[string]bool)
	for _, c := range commits {
		entries := []store.Entry{}
		for _, l := range lengths {
			if l > len(c.SHA) {
				break
			}
			d, ok := byPrefix[c.SHA[:l]]
			if !ok {
				continue
			}
			matched[d.Prefix] = true
			entries = append(entries, d.Entries...)
		}
		sortEntries(entries)
		ix.records[c.SHA] = entries
	}

	sort.Strings(prefixes)
	for _, p := range prefixes {
		if !matched[p] {
			ix.orphans = append(ix.orphans, *byPrefix[p])
		}
	}
	return ix
}

// sortEntries orders records by timestamp, then agent, then filename.
func sortEntries(entries []store.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.Record.Timestamp.Equal(b.Record.Timestamp) {
			return a.Record.Timestamp.Before(b.Record.Timestamp)
		}
		if a.Record.Agent != b.Record.Agent {
			return a.Record.Agent < b.Record.Agent
		}
		return a.FileName < b.FileName
	})
}

// Commits returns the commits in history order.
func (ix *Index) Commits() []gitio.Commit {
	return ix.commits
}

// Records returns the records of a commit, oldest first. Never nil.
func (ix *Index) Records(sha string) []store.Entry {
	if entries, ok := ix.records[sha]; ok {
		return entries
	}
	return []store.Entry{}
}

// Orphans returns the directories that matched no commit in range.
func (ix *Index) Orphans() []store.Directory {
	return ix.orphans
}

// OrphanCount returns the number of orphaned directories and the records they hold.
func (ix *Index) OrphanCount() (dirs, records int) {
	for _, d := range ix.orphans {
		records += len(d.Entries)
	}
	return len(ix.orphans), records
}

// RecordCount returns the number of records attached to commits.
func (ix *Index) RecordCount() int {
	n := 0
	for _, entries := range ix.records {
		n += len(entries)
	}
	return n
}
