// Package postgresstorage implements the storage.Backend interface using
// GORM/PostgreSQL. It wraps the GORM backend via composition; the only
// Postgres-specific concerns are the connection and schema migration.
package postgresstorage

import (
	"fmt"

	"github.com/marchline/extension/internal/logging"
	"github.com/marchline/extension/internal/model"
	gormstorage "github.com/marchline/extension/internal/storage/gorm"

	"gorm.io/gorm"
)

// Backend wraps the GORM backend for Postgres-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db *gorm.DB
}

// New creates a new Postgres storage backend on an established connection.
func New(db *gorm.DB, logManager *logging.SlogManager) (*Backend, error) {
	if db == nil {
		return nil, fmt.Errorf("postgres backend requires a database connection")
	}

	if err := db.AutoMigrate(model.DatabaseModels...); err != nil {
		return nil, fmt.Errorf("failed to migrate Postgres schema: %w", err)
	}

	gormBackend := gormstorage.New(gormstorage.Dependencies{
		DB:         db,
		LogManager: logManager,
	})

	return &Backend{
		Backend: gormBackend,
		db:      db,
	}, nil
}
