package record

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducks/arf/internal/arferr"
)

func TestValidateRequiresWhatAndWhy(t *testing.T) {
	tests := []struct {
		name    string
		rec     Record
		subject string
	}{
		{"missing what", Record{Why: "because"}, "what"},
		{"blank what", Record{What: "   ", Why: "because"}, "what"},
		{"missing why", Record{What: "did it"}, "why"},
		{"bad outcome", Record{What: "x", Why: "y", Outcome: &Outcome{Status: "meh"}}, "outcome"},
		{"empty context key", Record{What: "x", Why: "y", Context: map[string]any{"": "v"}}, "context"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rec.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, arferr.ErrValidation))
			assert.Equal(t, arferr.ExitValidation, arferr.ExitCode(err))

			var ae *arferr.Error
			require.True(t, errors.As(err, &ae))
			assert.Equal(t, tt.subject, ae.Subject)
		})
	}

	ok := Record{What: "Implement ARF CLI v0.1", Why: "Need a reasoning trail"}
	assert.NoError(t, ok.Validate())
}

func TestParseOutcome(t *testing.T) {
	o, err := ParseOutcome("success")
	require.NoError(t, err)
	assert.Equal(t, &Outcome{Status: StatusSuccess}, o)

	o, err = ParseOutcome("Partial: tests pending")
	require.NoError(t, err)
	assert.Equal(t, &Outcome{Status: StatusPartial, Detail: "tests pending"}, o)
	assert.Equal(t, "partial (tests pending)", o.String())

	o, err = ParseOutcome("")
	require.NoError(t, err)
	assert.Nil(t, o)

	_, err = ParseOutcome("great")
	assert.True(t, errors.Is(err, arferr.ErrValidation))
}

func TestEncodeDecodeTOML(t *testing.T) {
	ts := time.Date(2026, 1, 15, 10, 30, 0, 123000000, time.UTC)
	rec := &Record{
		ID:         "6f1c2a8e-0d1b-4c4e-9a55-1b2c3d4e5f60",
		What:       "Implement ARF CLI v0.1",
		Why:        "Need a reasoning trail next to commits",
		How:        "Cobra commands over a storage layer",
		Backup:     "git revert",
		Outcome:    &Outcome{Status: StatusPartial, Detail: "graph pending"},
		Context:    map[string]any{"ticket": "ARF-1"},
		Agent:      "claude",
		Timestamp:  ts,
		Commit:     "8ec6c98",
		Supersedes: "0b7e7f4a-5a55-4b4e-8f0e-1a2b3c4d5e6f",
	}

	data, err := Encode(rec, TOML)
	require.NoError(t, err)
	assert.Contains(t, string(data), "what = 'Implement ARF CLI v0.1'")

	got, err := Decode(data, TOML)
	require.NoError(t, err)
	assert.Equal(t, rec.What, got.What)
	assert.Equal(t, rec.Why, got.Why)
	assert.Equal(t, rec.How, got.How)
	assert.Equal(t, rec.Backup, got.Backup)
	assert.Equal(t, rec.Outcome, got.Outcome)
	assert.Equal(t, "ARF-1", got.Context["ticket"])
	assert.True(t, ts.Equal(got.Timestamp))
	assert.Equal(t, rec.Supersedes, got.Supersedes)
}

func TestEncodeOmitsEmptyOptionalFields(t *testing.T) {
	data, err := Encode(&Record{What: "w", Why: "y"}, TOML)
	require.NoError(t, err)
	s := string(data)
	assert.NotContains(t, s, "how")
	assert.NotContains(t, s, "backup")
	assert.NotContains(t, s, "outcome")
	assert.NotContains(t, s, "context")
}

func TestDecodeLegacyTOML(t *testing.T) {
	data := []byte(`what = "Add parser"
why = "Needed structured input"
how = "Hand-written recursive descent"
outcome = "success"
timestamp = "2026-01-15T10:30:00Z"
commit = "8ae882e6"

[context]
files = "parser.go"
`)
	rec, err := Decode(data, TOML)
	require.NoError(t, err)
	assert.Equal(t, "Add parser", rec.What)
	assert.Equal(t, &Outcome{Status: StatusSuccess}, rec.Outcome)
	assert.Equal(t, "parser.go", rec.Context["files"])
	assert.Equal(t, 2026, rec.Timestamp.Year())
	assert.Empty(t, rec.ID)
}

func TestDecodeNativeTOMLDatetime(t *testing.T) {
	rec, err := Decode([]byte("what = \"w\"\nwhy = \"y\"\ntimestamp = 2026-01-15T10:30:00Z\n"), TOML)
	require.NoError(t, err)
	assert.Equal(t, 10, rec.Timestamp.Hour())
}

func TestDecodeYAML(t *testing.T) {
	data := []byte(`what: Add cache
why: Parsing was slow
outcome:
  status: failure
  detail: sqlite locked
context:
  attempt: 2
`)
	rec, err := Decode(data, YAML)
	require.NoError(t, err)
	assert.Equal(t, "Add cache", rec.What)
	assert.Equal(t, &Outcome{Status: StatusFailure, Detail: "sqlite locked"}, rec.Outcome)
	assert.Equal(t, 2, rec.Context["attempt"])
}

func TestDecodeYAMLNonStringKeys(t *testing.T) {
	data := []byte(`what: w
why: y
context:
  ports:
    80: http
    443: https
  hosts:
    - {1: a}
`)
	rec, err := Decode(data, YAML)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"80": "http", "443": "https"}, rec.Context["ports"])
	assert.Equal(t, []any{map[string]any{"1": "a"}}, rec.Context["hosts"])

	_, err = json.Marshal(rec.Context)
	assert.NoError(t, err)
}

func TestDecodeTimestampIsUTC(t *testing.T) {
	rec, err := Decode([]byte("what = \"w\"\nwhy = \"y\"\ntimestamp = \"2026-01-15T12:30:00+02:00\"\n"), TOML)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC), rec.Timestamp)
}

func TestDecodeRejectsIncompleteOrInvalid(t *testing.T) {
	bad := [][]byte{
		[]byte(`why = "only why"`),
		[]byte(`what = "only what"`),
		[]byte(`what = "w"` + "\n" + `why = "y"` + "\n" + `outcome = "great"`),
		[]byte(`what = "w"` + "\n" + `why = "y"` + "\n" + `timestamp = "yesterday"`),
		[]byte(`this is not toml`),
	}
	for _, data := range bad {
		_, err := Decode(data, TOML)
		assert.Error(t, err, string(data))
	}
}

func TestCodecFor(t *testing.T) {
	c, ok := CodecFor("claude-20260115-103000.toml")
	require.True(t, ok)
	assert.Equal(t, "toml", c.Name())

	c, ok = CodecFor("claude-20260115-103000.YML")
	require.True(t, ok)
	assert.Equal(t, "yaml", c.Name())

	_, ok = CodecFor("notes.md")
	assert.False(t, ok)
}

func TestFileNameShapes(t *testing.T) {
	ts := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	assert.Equal(t, "claude-20260115-103000.toml", FileName("claude", ts, 0, ".toml"))
	assert.Equal(t, "claude-20260115-103000-2.toml", FileName("claude", ts, 2, ".toml"))
	assert.Equal(t, "my_bot-20260115-103000.toml", FileName("My Bot", ts, 0, ".toml"))

	n, ok := ParseFileName("claude-code-20260115-103000-3.toml")
	require.True(t, ok)
	assert.Equal(t, "claude-code", n.Agent)
	assert.Equal(t, 3, n.Suffix)
	assert.Equal(t, ".toml", n.Ext)
	assert.True(t, ts.Equal(n.Time))

	for _, name := range []string{"README.md", ".tmp-123", "claude.toml", "claude-2026-103000.toml"} {
		_, ok := ParseFileName(name)
		assert.False(t, ok, name)
	}
}

func TestSanitizeAgent(t *testing.T) {
	assert.Equal(t, "unknown", SanitizeAgent("  "))
	assert.Equal(t, "a_b", SanitizeAgent("a/b"))
	assert.Equal(t, "gpt-4o", SanitizeAgent("GPT-4o"))
}

func TestIDAndDigest(t *testing.T) {
	id := NewID()
	assert.True(t, ValidID(id))
	assert.False(t, ValidID("nope"))

	d1 := Digest([]byte("what = 'x'"))
	d2 := Digest([]byte("what = 'y'"))
	assert.Len(t, d1, 64)
	assert.NotEqual(t, d1, d2)
	assert.Equal(t, d1, Digest([]byte("what = 'x'")))
}

func TestContextHelpers(t *testing.T) {
	ctx, err := ParseContext([]string{"ticket=ARF-1", "files = a.go,b.go"})
	require.NoError(t, err)
	r := Record{Context: ctx}
	assert.Equal(t, []string{"files", "ticket"}, r.ContextKeys())
	assert.Equal(t, "a.go,b.go", ctx["files"])

	_, err = ParseContext([]string{"novalue"})
	assert.True(t, errors.Is(err, arferr.ErrValidation))
}
