package storage

import (
	"fmt"
	"log/slog"

	"github.com/terrasite/siting/internal/config"
	"github.com/terrasite/siting/internal/storage/memory"
	"github.com/terrasite/siting/internal/storage/postgres"
	sqlitestorage "github.com/terrasite/siting/internal/storage/sqlite"
)

// NewBackend creates a storage backend based on configuration
func NewBackend(cfg config.StorageConfig, log *slog.Logger) (Backend, error) {
	switch cfg.Type {
	case "postgres":
		return postgres.New(cfg.Postgres, log)
	case "sqlite", "":
		return sqlitestorage.New(cfg.SQLite.Path, log)
	case "memory":
		return memory.New(cfg.Memory, log), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
