// Package cache provides a content-addressed store for compiled code
// images, keyed by the SHA-256 digest of the source text and backed by
// SQLite.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store is a compiled-code cache. It is safe for use from a single
// process; the busy timeout covers concurrent CLI invocations sharing
// one database file.
type Store struct {
	db   *sql.DB
	path string
}

// Hash returns the cache key for a source text.
func Hash(source []byte) [32]byte {
	return sha256.Sum256(source)
}

// Open opens (or creates) a cache database at path, creating parent
// directories as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Create table if needed
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS images (
		hash BLOB PRIMARY KEY,
		image BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Put stores a code image under the given source hash, replacing any
// prior entry.
func (s *Store) Put(hash [32]byte, image []byte) error {
	if _, err := s.db.Exec(
		"INSERT OR REPLACE INTO images (hash, image) VALUES (?, ?)",
		hash[:], image,
	); err != nil {
		return fmt.Errorf("storing image: %w", err)
	}
	return nil
}

// Get returns the code image for a source hash. The second result is
// false on a cache miss.
func (s *Store) Get(hash [32]byte) ([]byte, bool, error) {
	var image []byte
	err := s.db.QueryRow(
		"SELECT image FROM images WHERE hash = ?", hash[:],
	).Scan(&image)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("loading image: %w", err)
	}
	return image, true, nil
}

// Count returns the number of cached images.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM images").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting images: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
