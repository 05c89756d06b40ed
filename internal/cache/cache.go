// Package cache provides parsed-record caching to speed up repeated scans.
package cache

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"
)

// Cache holds parsed records keyed by (path, size, mtime).
// Records are immutable once published, so a hit never needs re-parsing.
type Cache struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS record_cache (
	path TEXT PRIMARY KEY,
	size INTEGER NOT NULL,
	mtime INTEGER NOT NULL,
	digest TEXT NOT NULL,
	payload BLOB NOT NULL
);
`

// Entry is a cached parse result.
type Entry struct {
	Digest  string
	Payload []byte
}

// Open opens or creates the cache database at dbPath.
func Open(dbPath string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying cache schema: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close closes the cache database.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Get returns the cached entry for path if it matches the current stat.
// A miss or a stale entry returns ok=false.
func (c *Cache) Get(path string, info os.FileInfo) (Entry, bool, error) {
	var cachedSize, cachedMtime int64
	var digest string
	var compressed []byte
	err := c.db.QueryRow(
		"SELECT size, mtime, digest, payload FROM record_cache WHERE path = ?",
		path,
	).Scan(&cachedSize, &cachedMtime, &digest, &compressed)

	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("reading cache: %w", err)
	}
	if cachedSize != info.Size() || cachedMtime != info.ModTime().UnixNano() {
		return Entry{}, false, nil // Stale
	}

	payload, err := decompress(compressed)
	if err != nil {
		return Entry{}, false, err
	}
	return Entry{Digest: digest, Payload: payload}, true, nil
}

// Put stores a parse result for path.
func (c *Cache) Put(path string, info os.FileInfo, e Entry) error {
	compressed, err := compress(e.Payload)
	if err != nil {
		return err
	}
	_, err = c.db.Exec(
		`INSERT OR REPLACE INTO record_cache (path, size, mtime, digest, payload)
		 VALUES (?, ?, ?, ?, ?)`,
		path, info.Size(), info.ModTime().UnixNano(), e.Digest, compressed,
	)
	if err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	return nil
}

// Clear removes all entries from the cache.
func (c *Cache) Clear() error {
	_, err := c.db.Exec("DELETE FROM record_cache")
	return err
}

// Remove removes a single entry from the cache.
func (c *Cache) Remove(path string) error {
	_, err := c.db.Exec("DELETE FROM record_cache WHERE path = ?", path)
	return err
}

// Stats returns cache statistics.
type Stats struct {
	TotalEntries int64
}

func (c *Cache) Stats() (*Stats, error) {
	var count int64
	err := c.db.QueryRow("SELECT COUNT(*) FROM record_cache").Scan(&count)
	if err != nil {
		return nil, err
	}
	return &Stats{TotalEntries: count}, nil
}

func compress(data []byte) ([]byte, error) {
	var compressed bytes.Buffer
	encoder, err := zstd.NewWriter(&compressed)
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	if _, err := encoder.Write(data); err != nil {
		encoder.Close()
		return nil, fmt.Errorf("compressing: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("closing encoder: %w", err)
	}
	return compressed.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer decoder.Close()

	out, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("decompressing: %w", err)
	}
	return out, nil
}
