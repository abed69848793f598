// Package cache persists the last-known snapshot per (scope, domain) so the
// UI can paint immediately on startup before the first authoritative fetch
// completes. It is strictly a cache: the REST backend remains the source of
// truth and every cached value is replaced wholesale on reconciliation.
package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Store is a sqlite-backed snapshot cache. Payloads are JSON, zstd
// compressed at rest.
type Store struct {
	db  *sql.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewStore opens (or creates) the cache database under dir.
func NewStore(dir string) (*Store, error) {
	dbPath := filepath.Join(dir, "snapshots.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", pragma, err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS snapshots (
			scope      TEXT NOT NULL,
			domain     TEXT NOT NULL,
			payload    BLOB NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (scope, domain)
		)`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating snapshots table: %w", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}

	return &Store{db: db, enc: enc, dec: dec}, nil
}

// Close releases the database and codec resources.
func (s *Store) Close() error {
	s.dec.Close()
	_ = s.enc.Close()
	return s.db.Close()
}

// Put stores v as the last-known snapshot for (scope, domain).
func (s *Store) Put(scope, domain string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling snapshot %s/%s: %w", scope, domain, err)
	}
	compressed := s.enc.EncodeAll(raw, nil)

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO snapshots (scope, domain, payload, updated_at)
		VALUES (?, ?, ?, ?)`,
		scope, domain, compressed, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("storing snapshot %s/%s: %w", scope, domain, err)
	}
	return nil
}

// Get loads the snapshot for (scope, domain) into out. Returns false when
// nothing is cached.
func (s *Store) Get(scope, domain string, out any) (bool, error) {
	var compressed []byte
	err := s.db.QueryRow(`
		SELECT payload FROM snapshots WHERE scope = ? AND domain = ?`,
		scope, domain).Scan(&compressed)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("loading snapshot %s/%s: %w", scope, domain, err)
	}

	raw, err := s.dec.DecodeAll(compressed, nil)
	if err != nil {
		return false, fmt.Errorf("decompressing snapshot %s/%s: %w", scope, domain, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("unmarshaling snapshot %s/%s: %w", scope, domain, err)
	}
	return true, nil
}

// Entry describes one cached snapshot row without its payload decoded.
type Entry struct {
	Scope     string
	Domain    string
	Size      int
	UpdatedAt time.Time
}

// List returns every cached snapshot, ordered by scope then domain.
func (s *Store) List() ([]Entry, error) {
	rows, err := s.db.Query(`
		SELECT scope, domain, length(payload), updated_at
		FROM snapshots ORDER BY scope, domain`)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Scope, &e.Domain, &e.Size, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes one cached snapshot.
func (s *Store) Delete(scope, domain string) error {
	_, err := s.db.Exec(`DELETE FROM snapshots WHERE scope = ? AND domain = ?`, scope, domain)
	if err != nil {
		return fmt.Errorf("deleting snapshot %s/%s: %w", scope, domain, err)
	}
	return nil
}

// DeleteScope removes every cached snapshot for a scope. Used when a
// livestream session ends or the user logs out.
func (s *Store) DeleteScope(scope string) error {
	_, err := s.db.Exec(`DELETE FROM snapshots WHERE scope = ?`, scope)
	if err != nil {
		return fmt.Errorf("deleting snapshots for scope %s: %w", scope, err)
	}
	return nil
}

// Clear removes all cached snapshots.
func (s *Store) Clear() error {
	_, err := s.db.Exec(`DELETE FROM snapshots`)
	if err != nil {
		return fmt.Errorf("clearing snapshots: %w", err)
	}
	return nil
}
