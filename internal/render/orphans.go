package render

import (
	"fmt"
	"io"

	"github.com/ducks/arf/internal/associate"
)

// WriteOrphans lists record directories that match no commit in range.
// Typically left behind by rebases or history rewrites.
func WriteOrphans(w io.Writer, ix *associate.Index) error {
	dirs, records := ix.OrphanCount()
	if dirs == 0 {
		fmt.Fprintln(w, "No orphaned records.")
		return nil
	}

	fmt.Fprintf(w, "Orphaned record directories (%d, %d %s):\n\n", dirs, records, plural(records, "record", "records"))
	for _, d := range ix.Orphans() {
		fmt.Fprintf(w, "  %s  (%d %s)\n", d.Prefix, len(d.Entries), plural(len(d.Entries), "record", "records"))
		for _, e := range d.Entries {
			fmt.Fprintf(w, "    - %s [%s, %s]\n", e.Record.What, e.Record.Agent, e.FileName)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "These commits are not in the scanned history. Check for rebased or amended commits.")
	return nil
}
