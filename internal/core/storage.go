package core

import (
	"fmt"
	"log/slog"

	"growcore/internal/infra/persistence/badger"
	"growcore/internal/infra/persistence/memory"
	"growcore/internal/infra/persistence/postgres"
	"growcore/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
	StorageBadger   StorageDriver = "badger"   // embedded badger key-value store
)

// StorageConfig selects and configures a backend. An empty Driver means sqlite.
type StorageConfig struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
	BadgerPath  string
	Logger      *slog.Logger
}

// OpenPersistentStore opens the configured backend and hydrates it.
func OpenPersistentStore(cfg StorageConfig, engine *RulesEngine) (PersistentStore, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageSQLite:
		return sqlite.NewStore(cfg.SQLitePath, engine)
	case StoragePostgres:
		return postgres.NewStore(cfg.PostgresDSN, engine)
	case StorageBadger:
		path := cfg.BadgerPath
		if path == "" {
			path = "growcore-badger"
		}
		return badger.NewStore(badger.Config{Path: path, Logger: cfg.Logger}, engine)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
