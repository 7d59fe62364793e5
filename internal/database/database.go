// Package database opens the GORM connections used by the layout store.
package database

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/terrasite/siting/internal/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MemoryPath opens a private in-memory SQLite database.
const MemoryPath = ""

var pragmas = []string{
	"PRAGMA user_version = 1;",
	"PRAGMA journal_mode = WAL;",
	"PRAGMA synchronous = NORMAL;",
	"PRAGMA foreign_keys = ON;",
	"PRAGMA cache_size = -32000;",
	"PRAGMA temp_store = MEMORY;",
}

var memoryPragmas = []string{
	"PRAGMA user_version = 1;",
	"PRAGMA journal_mode = MEMORY;",
	"PRAGMA foreign_keys = ON;",
	"PRAGMA temp_store = MEMORY;",
}

// OpenSQLite opens the SQLite database at path. MemoryPath gives a
// database private to the returned handle.
func OpenSQLite(path string, log *slog.Logger) (*gorm.DB, error) {
	if log == nil {
		log = slog.Default()
	}
	dsn := path
	if path == MemoryPath {
		dsn = ":memory:"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:     true,
		CreateBatchSize: 2000,
		Logger:          logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql interface: %w", err)
	}

	set := pragmas
	if path == MemoryPath {
		// every pooled connection would get its own empty database
		sqlDB.SetMaxOpenConns(1)
		set = memoryPragmas
		log.Info("Using in-memory SQLite DB")
	} else {
		log.Info("Using local SQLite DB", "path", path)
	}

	for _, pragma := range set {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %w", err)
		}
	}
	return db, nil
}

// OpenPostgres connects to PostgreSQL and validates the connection.
func OpenPostgres(cfg config.PostgresConfig, log *slog.Logger) (*gorm.DB, error) {
	if log == nil {
		log = slog.Default()
	}
	log.Debug("Connecting to Postgres DB", "host", cfg.Host, "port", cfg.Port, "database", cfg.Database)

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN(),
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		CreateBatchSize: 10000,
		Logger:          logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to validate connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)

	log.Info("Connected to database", "dialect", db.Dialector.Name())
	return db, nil
}

// Snapshot writes a consistent copy of a SQLite database to path using
// VACUUM INTO. An existing file at path is replaced.
func Snapshot(db *gorm.DB, path string, log *slog.Logger) error {
	if path == "" {
		return fmt.Errorf("sqlite snapshot path not set")
	}
	if db.Dialector.Name() != "sqlite" {
		return fmt.Errorf("snapshot not supported for %s", db.Dialector.Name())
	}
	if log == nil {
		log = slog.Default()
	}

	if _, err := os.Stat(path); err == nil {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("error removing existing DB file: %w", err)
		}
	}

	start := time.Now()
	if err := db.Exec("VACUUM INTO ?", path).Error; err != nil {
		return fmt.Errorf("error writing DB snapshot: %w", err)
	}

	log.Debug("Wrote DB snapshot", "path", path, "duration", time.Since(start))
	return nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
