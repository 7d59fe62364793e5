// Package sqlitestorage stores layouts in an embedded SQLite database. It
// wraps the GORM backend via composition; the only SQLite-specific
// concerns are opening the file and writing snapshots.
package sqlitestorage

import (
	"fmt"
	"log/slog"

	"github.com/terrasite/siting/internal/database"
	gormstorage "github.com/terrasite/siting/internal/storage/gorm"
	"gorm.io/gorm"
)

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db  *gorm.DB
	log *slog.Logger
}

// New opens the database at path. An empty path keeps everything in
// memory for the life of the backend.
func New(path string, log *slog.Logger) (*Backend, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := database.OpenSQLite(path, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQLite DB: %w", err)
	}

	return &Backend{
		Backend: gormstorage.New(db, log, func() error { return database.Close(db) }),
		db:      db,
		log:     log,
	}, nil
}

// Snapshot writes a copy of the database to path.
func (b *Backend) Snapshot(path string) error {
	return database.Snapshot(b.db, path, b.log)
}
