package database

import (
	"context"
	"fmt"
	"log"

	"github.com/go-monolith/mono"
	"gorm.io/gorm"
)

// DatabaseModule owns the shared connection's lifecycle inside the mono app.
// The connection itself is opened before modules are constructed so that
// repositories can be injected.
type DatabaseModule struct {
	db     *gorm.DB
	driver string
}

// Compile-time interface checks.
var _ mono.Module = (*DatabaseModule)(nil)
var _ mono.HealthCheckableModule = (*DatabaseModule)(nil)

// NewModule wraps an opened connection.
func NewModule(db *gorm.DB, driver string) *DatabaseModule {
	if driver == "" {
		driver = DriverSQLite
	}
	return &DatabaseModule{db: db, driver: driver}
}

// Name returns the module name.
func (m *DatabaseModule) Name() string {
	return "database"
}

// DB returns the shared connection.
func (m *DatabaseModule) DB() *gorm.DB {
	return m.db
}

// Start is a no-op; the connection is already open.
func (m *DatabaseModule) Start(_ context.Context) error {
	log.Printf("[database] Module started (driver=%s)", m.driver)
	return nil
}

// Stop closes the database connection.
func (m *DatabaseModule) Stop(_ context.Context) error {
	if m.db == nil {
		return nil
	}
	log.Println("[database] Closing database connection...")
	if err := Close(m.db); err != nil {
		return err
	}
	log.Println("[database] Database connection closed")
	return nil
}

// Health pings the database.
func (m *DatabaseModule) Health(ctx context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("failed to get sql.DB: %v", err),
		}
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	stats := sqlDB.Stats()
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"driver":           m.driver,
			"open_connections": stats.OpenConnections,
			"in_use":           stats.InUse,
		},
	}
}
