package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/ducks/arf/internal/gitio"
	"github.com/ducks/arf/internal/store"
)

var (
	heavyRule = strings.Repeat("═", 63)
	lightRule = strings.Repeat("─", 63)
)

// WriteDiff writes a commit's reasoning followed by its content change.
// changes is the output of ShowCommit.
func WriteDiff(w io.Writer, c gitio.Commit, entries []store.Entry, changes string) error {
	fmt.Fprintln(w, heavyRule)
	fmt.Fprintf(w, "Commit: %s %s\n", c.ShortSHA, c.Subject)
	fmt.Fprintln(w, heavyRule)
	fmt.Fprintln(w)

	if len(entries) == 0 {
		fmt.Fprintln(w, "(no reasoning recorded for this commit)")
		fmt.Fprintln(w)
	} else {
		fmt.Fprintln(w, "REASONING:")
		for _, e := range entries {
			writeFields(w, "  ", e.Record, true)
			fmt.Fprintf(w, "  %-11s %s", "agent:", e.Record.Agent)
			if !e.Record.Timestamp.IsZero() {
				fmt.Fprintf(w, " at %s", e.Record.Timestamp.Format("2006-01-02 15:04:05 MST"))
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w)
		}
	}

	fmt.Fprintln(w, lightRule)
	fmt.Fprintln(w, "CHANGES:")
	fmt.Fprintln(w)
	if changes == "" {
		fmt.Fprintln(w, "(no content changes)")
		return nil
	}
	fmt.Fprint(w, changes)
	if !strings.HasSuffix(changes, "\n") {
		fmt.Fprintln(w)
	}
	return nil
}
