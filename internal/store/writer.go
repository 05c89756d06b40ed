package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ducks/arf/internal/arferr"
	"github.com/ducks/arf/internal/record"
)

// DefaultMaxSuffix bounds the collision retries of a single write.
const DefaultMaxSuffix = 100

// WriterOptions configures a Writer.
type WriterOptions struct {
	// PrefixLength is the number of sha characters naming a new directory.
	PrefixLength int
	// MaxSuffix is the highest collision suffix tried before WriteConflict.
	MaxSuffix int
	// Now supplies the record timestamp. Defaults to time.Now.
	Now func() time.Time
}

// Writer publishes new records. It is safe for concurrent use, including
// by several processes sharing the same storage root.
type Writer struct {
	root      string
	prefixLen int
	maxSuffix int
	now       func() time.Time
	log       *zap.Logger
}

// Written describes a published record.
type Written struct {
	Path   string
	Dir    string
	Record *record.Record
	Suffix int
}

// NewWriter creates a writer over the storage root.
func NewWriter(root string, opts WriterOptions, log *zap.Logger) *Writer {
	if opts.PrefixLength <= 0 {
		opts.PrefixLength = 8
	}
	if opts.MaxSuffix <= 0 {
		opts.MaxSuffix = DefaultMaxSuffix
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{
		root:      root,
		prefixLen: opts.PrefixLength,
		maxSuffix: opts.MaxSuffix,
		now:       opts.Now,
		log:       log,
	}
}

// Write validates rec and publishes it against the commit sha. Nothing is
// written when validation fails. The returned record carries the assigned
// id, timestamp, commit and agent.
func (w *Writer) Write(sha string, rec record.Record) (*Written, error) {
	sha = strings.ToLower(strings.TrimSpace(sha))
	if !isHex(sha) || len(sha) < 4 {
		return nil, arferr.New(arferr.KindValidation, sha, fmt.Sprintf("invalid commit id %q", sha))
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if rec.Supersedes != "" && !record.ValidID(rec.Supersedes) {
		return nil, arferr.New(arferr.KindValidation, "supersedes",
			fmt.Sprintf("invalid record id %q in supersedes", rec.Supersedes))
	}

	if info, err := os.Stat(w.root); err != nil || !info.IsDir() {
		return nil, arferr.Uninitialized(w.root)
	}

	if rec.ID == "" {
		rec.ID = record.NewID()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = w.now().UTC()
	}
	if strings.TrimSpace(rec.Agent) == "" {
		rec.Agent = "unknown"
	}
	rec.Commit = sha

	data, err := record.Encode(&rec, record.TOML)
	if err != nil {
		return nil, arferr.Wrap(arferr.KindStorage, sha, "encoding record", err)
	}

	dir := filepath.Join(w.root, DirName(sha, w.prefixLen))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, arferr.Wrap(arferr.KindStorage, dir, "creating record directory", err)
	}

	tmp, err := writeTemp(dir, data)
	if err != nil {
		return nil, arferr.Wrap(arferr.KindStorage, dir, "writing record", err)
	}
	defer os.Remove(tmp)

	for suffix := 0; suffix <= w.maxSuffix; suffix++ {
		name := record.FileName(rec.Agent, rec.Timestamp, suffix, ".toml")
		final := filepath.Join(dir, name)
		err := os.Link(tmp, final)
		if err == nil {
			w.log.Debug("published record",
				zap.String("path", final),
				zap.String("id", rec.ID),
				zap.Int("suffix", suffix))
			return &Written{Path: final, Dir: dir, Record: &rec, Suffix: suffix}, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, arferr.Wrap(arferr.KindStorage, final, "publishing record", err)
		}
	}

	return nil, arferr.New(arferr.KindWriteConflict, dir,
		fmt.Sprintf("could not find a free filename for agent %q after %d attempts", rec.Agent, w.maxSuffix+1))
}

// writeTemp writes data to a hidden temp file in dir and syncs it to disk.
func writeTemp(dir string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return "", err
	}
	name := f.Name()
	if err := f.Chmod(0644); err != nil {
		f.Close()
		os.Remove(name)
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(name)
		return "", err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(name)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", err
	}
	return name, nil
}
