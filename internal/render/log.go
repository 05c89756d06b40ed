// Package render turns an association index into terminal output.
//
// Every projection writes to an io.Writer and keeps no state between calls.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/ducks/arf/internal/arferr"
	"github.com/ducks/arf/internal/associate"
	"github.com/ducks/arf/internal/gitio"
	"github.com/ducks/arf/internal/record"
	"github.com/ducks/arf/internal/store"
)

// Format selects text or JSON output.
type Format int

const (
	// FormatText is the human-readable listing.
	FormatText Format = iota
	// FormatJSON is a JSON array, one object per record.
	FormatJSON
)

// LogOptions filters the log projection.
type LogOptions struct {
	// Limit caps the number of records; zero or negative means no cap.
	Limit int
	// Commit restricts output to one commit (full sha).
	Commit string
	// AgentGlob keeps only records whose agent matches, e.g. "claude*".
	AgentGlob string
}

// LogEntry is one record with the commit it is attached to.
type LogEntry struct {
	Commit gitio.Commit
	Entry  store.Entry
}

// LogEntries flattens the index newest commit first, newest record first
// within a commit.
func LogEntries(ix *associate.Index, opts LogOptions) ([]LogEntry, error) {
	if opts.AgentGlob != "" && !doublestar.ValidatePattern(opts.AgentGlob) {
		return nil, arferr.New(arferr.KindValidation, opts.AgentGlob,
			fmt.Sprintf("invalid agent pattern %q", opts.AgentGlob))
	}

	out := []LogEntry{}
	for _, c := range ix.Commits() {
		if opts.Commit != "" && c.SHA != opts.Commit {
			continue
		}
		entries := ix.Records(c.SHA)
		for i := len(entries) - 1; i >= 0; i-- {
			e := entries[i]
			if opts.AgentGlob != "" {
				ok, _ := doublestar.Match(opts.AgentGlob, e.Record.Agent)
				if !ok {
					continue
				}
			}
			out = append(out, LogEntry{Commit: c, Entry: e})
			if opts.Limit > 0 && len(out) >= opts.Limit {
				return out, nil
			}
		}
	}
	return out, nil
}

// WriteLog writes log entries in the given format.
func WriteLog(w io.Writer, entries []LogEntry, format Format) error {
	if format == FormatJSON {
		return writeLogJSON(w, entries)
	}
	return writeLogText(w, entries)
}

func writeLogText(w io.Writer, entries []LogEntry) error {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No ARF records found.")
		return nil
	}

	fmt.Fprintf(w, "ARF Records (%d):\n\n", len(entries))
	for _, le := range entries {
		rec := le.Entry.Record
		fmt.Fprintf(w, "commit %s %s\n", le.Commit.ShortSHA, le.Commit.Subject)
		writeFields(w, "", rec, false)
		fmt.Fprintf(w, "agent: %s\n", rec.Agent)
		if !rec.Timestamp.IsZero() {
			fmt.Fprintf(w, "time: %s\n", rec.Timestamp.Format(time.RFC3339))
		}
		fmt.Fprintln(w)
	}
	return nil
}

// writeFields writes the record's content fields, omitting absent optionals.
// With align set, values start in one column.
func writeFields(w io.Writer, indent string, rec *record.Record, align bool) {
	line := func(label, value string) {
		if align {
			fmt.Fprintf(w, "%s%-11s %s\n", indent, label+":", value)
			return
		}
		fmt.Fprintf(w, "%s%s: %s\n", indent, label, value)
	}
	line("what", rec.What)
	line("why", rec.Why)
	if rec.How != "" {
		line("how", rec.How)
	}
	if rec.Backup != "" {
		line("backup", rec.Backup)
	}
	if rec.Outcome != nil {
		line("outcome", rec.Outcome.String())
	}
	if len(rec.Context) > 0 {
		line("context", formatContext(rec))
	}
	if rec.Supersedes != "" {
		line("supersedes", rec.Supersedes)
	}
}

func formatContext(rec *record.Record) string {
	parts := make([]string, 0, len(rec.Context))
	for _, k := range rec.ContextKeys() {
		parts = append(parts, fmt.Sprintf("%s=%v", k, rec.Context[k]))
	}
	return strings.Join(parts, ", ")
}

type jsonOutcome struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type jsonRecord struct {
	Commit      string         `json:"commit"`
	ShortCommit string         `json:"shortCommit"`
	Subject     string         `json:"subject"`
	ID          string         `json:"id,omitempty"`
	What        string         `json:"what"`
	Why         string         `json:"why"`
	How         string         `json:"how,omitempty"`
	Backup      string         `json:"backup,omitempty"`
	Outcome     *jsonOutcome   `json:"outcome,omitempty"`
	Context     map[string]any `json:"context,omitempty"`
	Agent       string         `json:"agent"`
	Timestamp   string         `json:"timestamp,omitempty"`
	Supersedes  string         `json:"supersedes,omitempty"`
	File        string         `json:"file"`
	Digest      string         `json:"digest,omitempty"`
}

func toJSON(le LogEntry) jsonRecord {
	rec := le.Entry.Record
	out := jsonRecord{
		Commit:      le.Commit.SHA,
		ShortCommit: le.Commit.ShortSHA,
		Subject:     le.Commit.Subject,
		ID:          rec.ID,
		What:        rec.What,
		Why:         rec.Why,
		How:         rec.How,
		Backup:      rec.Backup,
		Context:     rec.Context,
		Agent:       rec.Agent,
		Supersedes:  rec.Supersedes,
		File:        le.Entry.String(),
		Digest:      le.Entry.Digest,
	}
	if rec.Outcome != nil {
		out.Outcome = &jsonOutcome{Status: string(rec.Outcome.Status), Detail: rec.Outcome.Detail}
	}
	if !rec.Timestamp.IsZero() {
		out.Timestamp = rec.Timestamp.Format(time.RFC3339Nano)
	}
	return out
}

func writeLogJSON(w io.Writer, entries []LogEntry) error {
	out := make([]jsonRecord, 0, len(entries))
	for _, le := range entries {
		out = append(out, toJSON(le))
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
