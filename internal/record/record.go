// Package record defines the reasoning record document: its fields, the
// structural validation applied before a record is written, and the outcome
// tagged value.
package record

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ducks/arf/internal/arferr"
)

// Status classifies the result of the recorded action.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusPartial Status = "partial"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusSuccess, StatusFailure, StatusPartial:
		return true
	}
	return false
}

// Outcome is the post-action result with optional detail text.
type Outcome struct {
	Status Status
	Detail string
}

// ParseOutcome parses "status" or "status: detail".
func ParseOutcome(s string) (*Outcome, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	status, detail, _ := strings.Cut(s, ":")
	o := &Outcome{
		Status: Status(strings.ToLower(strings.TrimSpace(status))),
		Detail: strings.TrimSpace(detail),
	}
	if !o.Status.Valid() {
		return nil, arferr.New(arferr.KindValidation, "outcome",
			fmt.Sprintf("invalid outcome %q: must be success, failure or partial", status))
	}
	return o, nil
}

func (o Outcome) String() string {
	if o.Detail == "" {
		return string(o.Status)
	}
	return fmt.Sprintf("%s (%s)", o.Status, o.Detail)
}

// Record is one reasoning record. Records are immutable once written;
// corrections are new records that name the corrected one in Supersedes.
type Record struct {
	ID         string
	What       string
	Why        string
	How        string
	Backup     string
	Outcome    *Outcome
	Context    map[string]any
	Agent      string
	Timestamp  time.Time
	Commit     string
	Supersedes string
}

// Validate checks structural completeness. Content correctness is never judged.
func (r *Record) Validate() error {
	if strings.TrimSpace(r.What) == "" {
		return arferr.New(arferr.KindValidation, "what", "field 'what' is required and must not be empty")
	}
	if strings.TrimSpace(r.Why) == "" {
		return arferr.New(arferr.KindValidation, "why", "field 'why' is required and must not be empty")
	}
	if r.Outcome != nil && !r.Outcome.Status.Valid() {
		return arferr.New(arferr.KindValidation, "outcome",
			fmt.Sprintf("invalid outcome %q: must be success, failure or partial", r.Outcome.Status))
	}
	for k := range r.Context {
		if strings.TrimSpace(k) == "" {
			return arferr.New(arferr.KindValidation, "context", "context keys must not be empty")
		}
	}
	return nil
}

// ShortID returns the first eight characters of the record id.
func (r *Record) ShortID() string {
	if len(r.ID) > 8 {
		return r.ID[:8]
	}
	return r.ID
}

// ContextKeys returns the context keys in sorted order.
func (r *Record) ContextKeys() []string {
	keys := make([]string, 0, len(r.Context))
	for k := range r.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParseContext parses key=value pairs as given on the command line.
func ParseContext(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	ctx := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, arferr.New(arferr.KindValidation, pair,
				fmt.Sprintf("invalid context %q: expected key=value", pair))
		}
		ctx[k] = strings.TrimSpace(v)
	}
	return ctx, nil
}
