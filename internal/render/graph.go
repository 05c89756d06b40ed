package render

import (
	"fmt"
	"io"

	"github.com/ducks/arf/internal/associate"
)

// UninitializedNote follows commit output when no storage exists.
const UninitializedNote = "(ARF not initialized - run 'arf init' for reasoning context)"

// GraphOptions controls the graph projection.
type GraphOptions struct {
	// Limit caps the commits shown; zero or negative means all.
	Limit int
	// Uninitialized marks that no storage exists; commits still render.
	Uninitialized bool
}

// WriteGraph writes commits in history order with their reasoning nested
// beneath each one.
func WriteGraph(w io.Writer, ix *associate.Index, opts GraphOptions) error {
	commits := ix.Commits()
	if opts.Limit > 0 && len(commits) > opts.Limit {
		commits = commits[:opts.Limit]
	}
	if len(commits) == 0 {
		fmt.Fprintln(w, "No commits found.")
		return nil
	}

	fmt.Fprint(w, "Git + ARF History:\n\n")
	for i, c := range commits {
		last := i == len(commits)-1
		connector, continuation := "├", "│"
		if last {
			connector, continuation = "└", " "
		}
		fmt.Fprintf(w, "%s─● %s %s\n", connector, c.ShortSHA, c.Subject)

		entries := ix.Records(c.SHA)
		for j, e := range entries {
			lastRecord := j == len(entries)-1
			recConnector, recContinuation := "├", "│"
			if lastRecord {
				recConnector, recContinuation = "└", " "
			}
			fmt.Fprintf(w, "%s  %s─ what: %s\n", continuation, recConnector, e.Record.What)
			fmt.Fprintf(w, "%s  %s   why: %s\n", continuation, recContinuation, e.Record.Why)
			if e.Record.How != "" {
				fmt.Fprintf(w, "%s  %s   how: %s\n", continuation, recContinuation, e.Record.How)
			}
		}
	}

	if opts.Uninitialized {
		fmt.Fprintln(w, "\n"+UninitializedNote)
		return nil
	}
	if dirs, records := ix.OrphanCount(); dirs > 0 {
		fmt.Fprintf(w, "\n(%d orphaned record %s with %d %s; see 'arf orphans')\n",
			dirs, plural(dirs, "directory", "directories"), records, plural(records, "record", "records"))
	}
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
