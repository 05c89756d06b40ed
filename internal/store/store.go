// Package store reads and writes reasoning records under the storage root.
//
// The root holds one directory per commit prefix:
//
//	records/
//	  8ec6c98a/
//	    claude-20260115-103000.toml
//	    claude-20260115-103000-1.toml
//
// Reads never lock. Records are append-only, and writers publish with a
// hard link so a reader sees either the whole file or nothing.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ducks/arf/internal/arferr"
	"github.com/ducks/arf/internal/cache"
	"github.com/ducks/arf/internal/record"
)

// tempPrefix marks in-flight writes. Such files are never read as records.
const tempPrefix = ".tmp-"

// Entry is one parsed record file.
type Entry struct {
	Record   *record.Record
	Prefix   string
	FileName string
	Path     string
	Digest   string
}

// Directory is a record directory whose name matched a naming shape.
type Directory struct {
	Prefix  string
	Shape   string
	Entries []Entry
}

// ScanResult is the outcome of a full storage scan.
type ScanResult struct {
	Directories []Directory
	// Malformed lists files and directories that were skipped: MalformedRecord
	// for unparseable files, StorageError for unreadable directories.
	Malformed []*arferr.Error
}

// RecordCount returns the number of parsed records across all directories.
func (r *ScanResult) RecordCount() int {
	n := 0
	for _, d := range r.Directories {
		n += len(d.Entries)
	}
	return n
}

// Store scans the storage root.
type Store struct {
	root  string
	log   *zap.Logger
	cache *cache.Cache
}

// New creates a store over root. The cache may be nil.
func New(root string, log *zap.Logger, c *cache.Cache) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{root: root, log: log, cache: c}
}

// Root returns the storage root.
func (s *Store) Root() string {
	return s.root
}

// Exists reports whether the storage root has been initialized.
func (s *Store) Exists() bool {
	info, err := os.Stat(s.root)
	return err == nil && info.IsDir()
}

// readDir lists a record directory. Tests replace it to simulate I/O errors.
var readDir = os.ReadDir

// Scan reads every record directory under the root. Malformed files are
// skipped with a warning; a missing root is StorageUninitialized.
func (s *Store) Scan() (*ScanResult, error) {
	dirents, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, arferr.Uninitialized(s.root)
		}
		return nil, arferr.Wrap(arferr.KindStorage, s.root, "reading storage root", err)
	}

	result := &ScanResult{Directories: []Directory{}}
	for _, de := range dirents {
		if !de.IsDir() {
			continue
		}
		prefix, shape, ok := MatchShape(de.Name())
		if !ok {
			s.log.Debug("skipping non-record directory", zap.String("name", de.Name()))
			continue
		}

		dir := Directory{Prefix: prefix, Shape: shape, Entries: []Entry{}}
		dirPath := filepath.Join(s.root, de.Name())
		files, err := readDir(dirPath)
		if err != nil {
			derr := arferr.Wrap(arferr.KindStorage, dirPath, "skipping unreadable record directory", err)
			s.log.Warn("skipping unreadable record directory", zap.String("path", dirPath), zap.Error(err))
			result.Malformed = append(result.Malformed, derr)
			continue
		}
		for _, f := range files {
			name := f.Name()
			if f.IsDir() || strings.HasPrefix(name, ".") {
				continue
			}
			codec, ok := record.CodecFor(name)
			if !ok {
				continue
			}

			path := filepath.Join(dirPath, name)
			entry, err := s.load(path, codec)
			if err != nil {
				merr := arferr.Wrap(arferr.KindMalformedRecord, path, "skipping malformed record", err)
				s.log.Warn("skipping malformed record", zap.String("path", path), zap.Error(err))
				result.Malformed = append(result.Malformed, merr)
				continue
			}
			entry.Prefix = prefix
			dir.Entries = append(dir.Entries, entry)
		}
		sort.Slice(dir.Entries, func(i, j int) bool {
			return dir.Entries[i].FileName < dir.Entries[j].FileName
		})
		result.Directories = append(result.Directories, dir)
	}

	sort.Slice(result.Directories, func(i, j int) bool {
		return result.Directories[i].Prefix < result.Directories[j].Prefix
	})
	s.log.Debug("scanned storage",
		zap.String("root", s.root),
		zap.Int("directories", len(result.Directories)),
		zap.Int("records", result.RecordCount()),
		zap.Int("malformed", len(result.Malformed)))
	return result, nil
}

// load parses one record file, consulting the cache first.
func (s *Store) load(path string, codec record.Codec) (Entry, error) {
	name := filepath.Base(path)
	info, err := os.Stat(path)
	if err != nil {
		return Entry{}, err
	}

	if s.cache != nil {
		cached, ok, err := s.cache.Get(path, info)
		if err != nil {
			s.log.Debug("cache read failed", zap.String("path", path), zap.Error(err))
		} else if ok {
			rec, err := record.Decode(cached.Payload, codec)
			if err == nil {
				fillFromName(rec, name)
				return Entry{Record: rec, FileName: name, Path: path, Digest: cached.Digest}, nil
			}
			s.log.Debug("dropping unreadable cache entry", zap.String("path", path), zap.Error(err))
			if err := s.cache.Remove(path); err != nil {
				s.log.Debug("cache remove failed", zap.String("path", path), zap.Error(err))
			}
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Entry{}, err
	}
	rec, err := record.Decode(data, codec)
	if err != nil {
		return Entry{}, err
	}
	fillFromName(rec, name)
	digest := record.Digest(data)

	if s.cache != nil {
		// The payload uses the file's own codec so a hit decodes to the same values.
		if payload, err := record.Encode(rec, codec); err == nil {
			if err := s.cache.Put(path, info, cache.Entry{Digest: digest, Payload: payload}); err != nil {
				s.log.Debug("cache write failed", zap.String("path", path), zap.Error(err))
			}
		}
	}

	return Entry{Record: rec, FileName: name, Path: path, Digest: digest}, nil
}

// fillFromName supplies agent and timestamp from the filename when the body
// omits them, as older records do.
func fillFromName(rec *record.Record, name string) {
	n, ok := record.ParseFileName(name)
	if !ok {
		return
	}
	if rec.Agent == "" {
		rec.Agent = n.Agent
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = n.Time
	}
}

// DirName returns the record directory name for a commit sha.
func DirName(sha string, prefixLen int) string {
	sha = strings.ToLower(sha)
	if prefixLen > 0 && len(sha) > prefixLen {
		return sha[:prefixLen]
	}
	return sha
}

func (e Entry) String() string {
	return fmt.Sprintf("%s/%s", e.Prefix, e.FileName)
}
