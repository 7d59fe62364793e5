// Package postgres stores layouts in PostgreSQL through the GORM backend.
package postgres

import (
	"log/slog"

	"github.com/terrasite/siting/internal/config"
	"github.com/terrasite/siting/internal/database"
	gormstorage "github.com/terrasite/siting/internal/storage/gorm"
)

// Backend is the GORM backend on a PostgreSQL connection.
type Backend struct {
	*gormstorage.Backend
}

// New connects using cfg. The connection is validated before returning.
func New(cfg config.PostgresConfig, log *slog.Logger) (*Backend, error) {
	db, err := database.OpenPostgres(cfg, log)
	if err != nil {
		return nil, err
	}
	return &Backend{
		Backend: gormstorage.New(db, log, func() error { return database.Close(db) }),
	}, nil
}
