// Package sqlite is a single-file backend for local runs. The working state
// lives in a memory.Store and is snapshotted to SQLite after every write.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/enjaz/request-service/internal/store"
	"github.com/enjaz/request-service/internal/store/memory"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Store persists the in-memory state to a single SQLite table as JSON blobs.
type Store struct {
	*memory.Store
	db   *sql.DB
	path string
}

var _ store.Store = (*Store)(nil)

var buckets = []string{"agencies", "services", "requests", "messages", "status_changes"}

// NewStore opens (or creates) the database at path and loads its state.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "requests.db"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection so that ":memory:" databases are shared by every call
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}
	snap, err := load(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &Store{db: db, path: path}
	s.Store = memory.NewWithSnapshot(snap, s.save)
	log.Printf("[REQUEST-SQLITE] Loaded %d agencies, %d services, %d requests from %s",
		len(snap.Agencies), len(snap.Services), len(snap.Requests), path)
	return s, nil
}

func load(db *sql.DB) (memory.Snapshot, error) {
	var snap memory.Snapshot
	rows, err := db.Query(`SELECT bucket, payload FROM state`)
	if err != nil {
		return snap, fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return snap, fmt.Errorf("scan: %w", err)
		}
		var target interface{}
		switch bucket {
		case "agencies":
			target = &snap.Agencies
		case "services":
			target = &snap.Services
		case "requests":
			target = &snap.Requests
		case "messages":
			target = &snap.Messages
		case "status_changes":
			target = &snap.StatusChanges
		default:
			continue
		}
		if err := json.Unmarshal(payload, target); err != nil {
			return snap, fmt.Errorf("decode %s: %w", bucket, err)
		}
	}
	return snap, rows.Err()
}

// save writes every bucket in one transaction.
func (s *Store) save(snap memory.Snapshot) error {
	payloads := map[string]interface{}{
		"agencies":       snap.Agencies,
		"services":       snap.Services,
		"requests":       snap.Requests,
		"messages":       snap.Messages,
		"status_changes": snap.StatusChanges,
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, bucket := range buckets {
		b, err := json.Marshal(payloads[bucket])
		if err != nil {
			return fmt.Errorf("encode %s: %w", bucket, err)
		}
		if _, err := tx.Exec(`INSERT INTO state (bucket, payload) VALUES (?, ?)
			ON CONFLICT(bucket) DO UPDATE SET payload = excluded.payload`, bucket, b); err != nil {
			return fmt.Errorf("write %s: %w", bucket, err)
		}
	}
	return tx.Commit()
}

// Ping checks both the working state and the database file.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.Store.Ping(ctx); err != nil {
		return err
	}
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() {
	s.Store.Close()
	if err := s.db.Close(); err != nil {
		log.Printf("[REQUEST-SQLITE] close %s: %v", s.path, err)
	}
}
