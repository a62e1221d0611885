// Package badger persists the in-memory store to an embedded BadgerDB. Entity
// buckets live under "state/<bucket>" and events under "event/<seq>" with a
// big-endian sequence so key order is log order.
package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"growcore/internal/infra/persistence/memory"
	"growcore/pkg/domain"

	"github.com/dgraph-io/badger/v4"
)

var _ domain.PersistentStore = (*Store)(nil)

var (
	statePrefix = []byte("state/")
	eventPrefix = []byte("event/")
)

// Config holds configuration for the Badger-backed store.
type Config struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory is true.
	Path string
	// InMemory keeps everything in RAM; useful for tests.
	InMemory bool
	// SyncWrites fsyncs every commit.
	SyncWrites bool
	// Logger receives Badger's internal logs. Nil disables them.
	Logger *slog.Logger
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func open(cfg Config) (*badger.DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return db, nil
}

// Store persists committed transactions to Badger before they become visible.
type Store struct {
	*memory.Store
	db *badger.DB
}

// NewStore opens the database and hydrates the in-memory store from it.
func NewStore(cfg Config, engine *domain.RulesEngine) (*Store, error) {
	db, err := open(cfg)
	if err != nil {
		return nil, err
	}
	snapshot, err := load(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &Store{db: db}
	s.Store = memory.NewStore(engine, memory.WithCommitHook(s.persist))
	s.ImportState(snapshot)
	return s, nil
}

func eventKey(seq uint64) []byte {
	key := make([]byte, len(eventPrefix)+8)
	copy(key, eventPrefix)
	binary.BigEndian.PutUint64(key[len(eventPrefix):], seq)
	return key
}

func load(db *badger.DB) (memory.Snapshot, error) {
	var snapshot memory.Snapshot
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(statePrefix); it.ValidForPrefix(statePrefix); it.Next() {
			item := it.Item()
			bucket := string(item.Key()[len(statePrefix):])
			target, ok := snapshot.Target(bucket)
			if !ok {
				continue
			}
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, target)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", bucket, err)
			}
		}
		for it.Seek(eventPrefix); it.ValidForPrefix(eventPrefix); it.Next() {
			var e domain.PlantEvent
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return fmt.Errorf("decode event: %w", err)
			}
			snapshot.Events = append(snapshot.Events, e)
		}
		return nil
	})
	return snapshot, err
}

func (s *Store) persist(_ context.Context, commit memory.Commit) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for bucket, value := range commit.Buckets {
			data, err := json.Marshal(value)
			if err != nil {
				return fmt.Errorf("encode %s: %w", bucket, err)
			}
			key := append(append([]byte(nil), statePrefix...), bucket...)
			if err := txn.Set(key, data); err != nil {
				return fmt.Errorf("set %s: %w", bucket, err)
			}
		}
		for _, e := range commit.Events {
			data, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("encode event %d: %w", e.Seq, err)
			}
			if err := txn.Set(eventKey(e.Seq), data); err != nil {
				return fmt.Errorf("set event %d: %w", e.Seq, err)
			}
		}
		return nil
	})
}

// Close flushes and closes the database.
func (s *Store) Close() error { return s.db.Close() }
