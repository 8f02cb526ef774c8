// internal/storage/factory.go
package storage

import (
	"fmt"
	"log/slog"

	"github.com/OCAP2/timeslider/internal/config"
	"github.com/OCAP2/timeslider/internal/database"
	gormstorage "github.com/OCAP2/timeslider/internal/storage/gormstore"
	"github.com/OCAP2/timeslider/internal/storage/memory"
	"github.com/rs/zerolog"
)

// Dependencies holds what the factory needs to open a backend.
type Dependencies struct {
	Storage  config.StorageConfig
	DB       config.DBConfig
	Logger   *slog.Logger
	DBLogger zerolog.Logger
}

// NewBackend creates a storage backend based on configuration
func NewBackend(deps Dependencies) (Backend, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	gormCfg := gormstorage.Config{
		FlushInterval: deps.Storage.FlushInterval,
		DumpInterval:  deps.Storage.SQLite.DumpInterval,
		DumpPath:      deps.Storage.SQLite.DumpPath,
	}

	switch deps.Storage.Type {
	case "postgres":
		m := database.NewManager(deps.DBLogger, deps.DB)
		m.SqliteFilePath = deps.Storage.SQLite.Path
		if err := m.Connect(); err != nil {
			return nil, err
		}
		return gormstorage.New(gormstorage.Dependencies{DB: m.DB, Logger: deps.Logger}, gormCfg), nil
	case "sqlite":
		db, err := database.GetSqliteDB(deps.Storage.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite DB: %w", err)
		}
		return gormstorage.New(gormstorage.Dependencies{DB: db, Logger: deps.Logger}, gormCfg), nil
	case "memory", "":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", deps.Storage.Type)
	}
}
