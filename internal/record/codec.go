package record

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// document is the on-disk shape shared by every codec. Outcome and Timestamp
// are untyped because older records store them in more than one form.
type document struct {
	ID         string         `toml:"id,omitempty" yaml:"id,omitempty"`
	What       string         `toml:"what" yaml:"what"`
	Why        string         `toml:"why" yaml:"why"`
	How        string         `toml:"how,omitempty" yaml:"how,omitempty"`
	Backup     string         `toml:"backup,omitempty" yaml:"backup,omitempty"`
	Outcome    any            `toml:"outcome,omitempty,inline" yaml:"outcome,omitempty"`
	Timestamp  any            `toml:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Commit     string         `toml:"commit,omitempty" yaml:"commit,omitempty"`
	Agent      string         `toml:"agent,omitempty" yaml:"agent,omitempty"`
	Supersedes string         `toml:"supersedes,omitempty" yaml:"supersedes,omitempty"`
	Context    map[string]any `toml:"context,omitempty" yaml:"context,omitempty"`
}

// Codec reads and writes record documents in one file format.
type Codec interface {
	// Name identifies the format.
	Name() string
	// Exts lists the file extensions handled, canonical first.
	Exts() []string
	marshal(doc *document) ([]byte, error)
	unmarshal(data []byte, doc *document) error
}

type tomlCodec struct{}

func (tomlCodec) Name() string   { return "toml" }
func (tomlCodec) Exts() []string { return []string{".toml"} }

func (tomlCodec) marshal(doc *document) ([]byte, error) {
	return toml.Marshal(doc)
}

func (tomlCodec) unmarshal(data []byte, doc *document) error {
	return toml.Unmarshal(data, doc)
}

type yamlCodec struct{}

func (yamlCodec) Name() string   { return "yaml" }
func (yamlCodec) Exts() []string { return []string{".yaml", ".yml"} }

func (yamlCodec) marshal(doc *document) ([]byte, error) {
	return yaml.Marshal(doc)
}

func (yamlCodec) unmarshal(data []byte, doc *document) error {
	return yaml.Unmarshal(data, doc)
}

var (
	// TOML is the canonical format written by arf.
	TOML Codec = tomlCodec{}
	// YAML is accepted on read.
	YAML Codec = yamlCodec{}

	codecs = []Codec{TOML, YAML}
)

// CodecFor returns the codec for a filename, by extension.
func CodecFor(filename string) (Codec, bool) {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, c := range codecs {
		for _, e := range c.Exts() {
			if e == ext {
				return c, true
			}
		}
	}
	return nil, false
}

// Encode serializes a record.
func Encode(r *Record, c Codec) ([]byte, error) {
	doc := &document{
		ID:         r.ID,
		What:       r.What,
		Why:        r.Why,
		How:        r.How,
		Backup:     r.Backup,
		Commit:     r.Commit,
		Agent:      r.Agent,
		Supersedes: r.Supersedes,
	}
	if len(r.Context) > 0 {
		doc.Context = r.Context
	}
	if !r.Timestamp.IsZero() {
		doc.Timestamp = r.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	if r.Outcome != nil {
		if r.Outcome.Detail == "" {
			doc.Outcome = string(r.Outcome.Status)
		} else {
			doc.Outcome = map[string]string{
				"status": string(r.Outcome.Status),
				"detail": r.Outcome.Detail,
			}
		}
	}

	data, err := c.marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding %s record: %w", c.Name(), err)
	}
	return data, nil
}

// Decode parses a record and checks that the required fields are present.
func Decode(data []byte, c Codec) (*Record, error) {
	var doc document
	if err := c.unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", c.Name(), err)
	}

	r := &Record{
		ID:         doc.ID,
		What:       doc.What,
		Why:        doc.Why,
		How:        doc.How,
		Backup:     doc.Backup,
		Commit:     doc.Commit,
		Agent:      doc.Agent,
		Supersedes: doc.Supersedes,
	}
	if len(doc.Context) > 0 {
		r.Context = normalizeMap(doc.Context)
	}
	if strings.TrimSpace(r.What) == "" {
		return nil, fmt.Errorf("missing required field 'what'")
	}
	if strings.TrimSpace(r.Why) == "" {
		return nil, fmt.Errorf("missing required field 'why'")
	}

	ts, err := decodeTimestamp(doc.Timestamp)
	if err != nil {
		return nil, err
	}
	if !ts.IsZero() {
		ts = ts.UTC()
	}
	r.Timestamp = ts

	outcome, err := decodeOutcome(doc.Outcome)
	if err != nil {
		return nil, err
	}
	r.Outcome = outcome

	return r, nil
}

func decodeTimestamp(v any) (time.Time, error) {
	switch ts := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return ts, nil
	case toml.LocalDateTime:
		return ts.AsTime(time.UTC), nil
	case string:
		if ts == "" {
			return time.Time{}, nil
		}
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", ts, err)
		}
		return t, nil
	default:
		return time.Time{}, fmt.Errorf("invalid timestamp of type %T", v)
	}
}

func decodeOutcome(v any) (*Outcome, error) {
	switch o := v.(type) {
	case nil:
		return nil, nil
	case string:
		return ParseOutcome(o)
	case map[string]any:
		status, _ := o["status"].(string)
		detail, _ := o["detail"].(string)
		out := &Outcome{
			Status: Status(strings.ToLower(strings.TrimSpace(status))),
			Detail: strings.TrimSpace(detail),
		}
		if !out.Status.Valid() {
			return nil, fmt.Errorf("invalid outcome status %q", status)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("invalid outcome of type %T", v)
	}
}

// normalizeMap rewrites nested context values so every mapping has string
// keys. yaml.v3 decodes maps with non-string keys as map[any]any.
func normalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return normalizeMap(t)
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeValue(val)
		}
		return out
	default:
		return v
	}
}
