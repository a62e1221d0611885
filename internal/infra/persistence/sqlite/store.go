// Package sqlite persists the in-memory store to a SQLite database: keyed
// entity buckets as JSON blobs and the event log as append-only rows.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"growcore/internal/infra/persistence/memory"
	"growcore/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var _ domain.PersistentStore = (*Store)(nil)

const defaultPath = "growcore.db"

// Store persists committed transactions to SQLite before they become visible.
type Store struct {
	*memory.Store
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the database at path and hydrates the store from it.
func NewStore(path string, engine *domain.RulesEngine) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection serialises writers and keeps :memory: databases coherent
	db.SetMaxOpenConns(1)
	ctx := context.Background()
	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &Store{db: db, path: path}
	s.Store = memory.NewStore(engine, memory.WithCommitHook(s.persist))
	snapshot, err := s.load(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.ImportState(snapshot)
	return s, nil
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS state (
			bucket TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS plant_events (
			seq INTEGER PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			trackable_type TEXT NOT NULL,
			trackable_id TEXT NOT NULL,
			payload BLOB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS plant_events_trackable ON plant_events(trackable_type, trackable_id)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

func (s *Store) load(ctx context.Context) (memory.Snapshot, error) {
	var snapshot memory.Snapshot
	rows, err := s.db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return snapshot, fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return snapshot, fmt.Errorf("scan: %w", err)
		}
		target, ok := snapshot.Target(bucket)
		if !ok {
			continue
		}
		if err := json.Unmarshal(payload, target); err != nil {
			return snapshot, fmt.Errorf("decode %s: %w", bucket, err)
		}
	}
	if err := rows.Err(); err != nil {
		return snapshot, fmt.Errorf("iterate state: %w", err)
	}

	events, err := s.db.QueryContext(ctx, `SELECT payload FROM plant_events ORDER BY seq`)
	if err != nil {
		return snapshot, fmt.Errorf("select events: %w", err)
	}
	defer func() { _ = events.Close() }()
	for events.Next() {
		var payload []byte
		if err := events.Scan(&payload); err != nil {
			return snapshot, fmt.Errorf("scan event: %w", err)
		}
		var e domain.PlantEvent
		if err := json.Unmarshal(payload, &e); err != nil {
			return snapshot, fmt.Errorf("decode event: %w", err)
		}
		snapshot.Events = append(snapshot.Events, e)
	}
	if err := events.Err(); err != nil {
		return snapshot, fmt.Errorf("iterate events: %w", err)
	}
	return snapshot, nil
}

// persist writes the dirty buckets and new events of one commit atomically.
func (s *Store) persist(ctx context.Context, commit memory.Commit) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for bucket, value := range commit.Buckets {
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode %s: %w", bucket, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, bucket, data); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	for _, e := range commit.Events {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode event %d: %w", e.Seq, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO plant_events(seq,id,trackable_type,trackable_id,payload) VALUES(?,?,?,?,?)`,
			int64(e.Seq), e.ID, string(e.TrackableType), e.TrackableID, data); err != nil {
			return fmt.Errorf("insert event %d: %w", e.Seq, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
