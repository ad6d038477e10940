// Package database opens the shared GORM connection used by every repository.
package database

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/example/product-catalog/domain/notification"
	"github.com/example/product-catalog/domain/product"
	"github.com/example/product-catalog/domain/user"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrUnsupportedDriver is returned for an unknown DB_DRIVER value.
var ErrUnsupportedDriver = errors.New("unsupported database driver")

// Config holds connection settings.
type Config struct {
	Driver string
	// Path is the SQLite file (or ":memory:").
	Path string
	// DSN is the Postgres connection string.
	DSN   string
	Debug bool
}

// DefaultConfig returns a SQLite configuration writing to catalog.db.
func DefaultConfig() Config {
	return Config{
		Driver: DriverSQLite,
		Path:   "catalog.db",
	}
}

// Models lists every entity migrated at startup.
func Models() []any {
	return []any{
		&product.Product{},
		&user.User{},
		&notification.Notification{},
	}
}

// Open connects to the configured database and runs auto-migrations.
func Open(cfg Config) (*gorm.DB, error) {
	logLevel := logger.Silent
	if cfg.Debug {
		logLevel = logger.Info
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", DriverSQLite:
		log.Printf("[database] Connecting to SQLite database: %s", cfg.Path)
		dialector = sqlite.Open(cfg.Path)
	case DriverPostgres:
		log.Printf("[database] Connecting to PostgreSQL")
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Driver == "" || cfg.Driver == DriverSQLite {
		// SQLite allows a single writer; an in-memory database also exists per connection.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(Models()...); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// OpenMemory opens a migrated in-memory SQLite database. Used by tests.
func OpenMemory() (*gorm.DB, error) {
	return Open(Config{Driver: DriverSQLite, Path: ":memory:"})
}

// Close closes the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
