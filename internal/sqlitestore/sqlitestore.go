// Package sqlitestore is a reference ChunkStore: it persists
// chunkio-encoded chunk blobs in a SQLite table via modernc.org/sqlite,
// a pure-Go driver that needs no cgo toolchain. spec.md leaves
// persistence an external collaborator; this package exists to give
// that hook a concrete backing store, not to commit the engine to SQLite.
package sqlitestore

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/ruleshard/ruleengine/internal/hashkey"
)

// ChunkStore persists serialized chunk blobs keyed by chunk key.
type ChunkStore struct {
	db *sql.DB
}

// Open opens (creating if necessary) a SQLite database at path and
// ensures its chunks table exists.
func Open(path string) (*ChunkStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open %s: %w", path, err)
	}
	const schema = `
		CREATE TABLE IF NOT EXISTS chunks (
			key        INTEGER PRIMARY KEY,
			data       BLOB NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: create schema: %w", err)
	}
	return &ChunkStore{db: db}, nil
}

// Close closes the underlying database handle.
func (s *ChunkStore) Close() error {
	return s.db.Close()
}

// Save upserts data under chunkKey, refreshing updated_at.
func (s *ChunkStore) Save(chunkKey hashkey.Key, data []byte) error {
	const stmt = `
		INSERT INTO chunks (key, data, updated_at)
		VALUES (?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		ON CONFLICT(key) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at`
	if _, err := s.db.Exec(stmt, int64(chunkKey), data); err != nil {
		return fmt.Errorf("sqlitestore: save chunk %d: %w", chunkKey, err)
	}
	return nil
}

// Load returns the blob stored under chunkKey, and false if no row
// exists for it.
func (s *ChunkStore) Load(chunkKey hashkey.Key) ([]byte, bool, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM chunks WHERE key = ?`, int64(chunkKey)).Scan(&data)
	switch {
	case err == sql.ErrNoRows:
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("sqlitestore: load chunk %d: %w", chunkKey, err)
	default:
		return data, true, nil
	}
}

// Delete removes chunkKey's row, if present.
func (s *ChunkStore) Delete(chunkKey hashkey.Key) error {
	if _, err := s.db.Exec(`DELETE FROM chunks WHERE key = ?`, int64(chunkKey)); err != nil {
		return fmt.Errorf("sqlitestore: delete chunk %d: %w", chunkKey, err)
	}
	return nil
}

// Keys returns every chunk key with a stored blob.
func (s *ChunkStore) Keys() ([]hashkey.Key, error) {
	rows, err := s.db.Query(`SELECT key FROM chunks`)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: list keys: %w", err)
	}
	defer rows.Close()

	var keys []hashkey.Key
	for rows.Next() {
		var k int64
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("sqlitestore: scan key: %w", err)
		}
		keys = append(keys, hashkey.Key(k))
	}
	return keys, rows.Err()
}
