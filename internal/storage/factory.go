// internal/storage/factory.go
package storage

import (
	"fmt"
	"time"

	"github.com/marchline/extension/internal/logging"
	"github.com/marchline/extension/internal/storage/memory"
	postgresstorage "github.com/marchline/extension/internal/storage/postgres"
	sqlitestorage "github.com/marchline/extension/internal/storage/sqlite"

	"gorm.io/gorm"
)

// Config selects and configures a storage backend.
type Config struct {
	Type         string
	Memory       memory.Config
	DumpPath     string
	DumpInterval time.Duration
}

// NewBackend creates a storage backend based on configuration. The db
// handle is only required for the postgres backend.
func NewBackend(cfg Config, db *gorm.DB, logManager *logging.SlogManager) (Backend, error) {
	switch cfg.Type {
	case "postgres":
		return postgresstorage.New(db, logManager)
	case "sqlite":
		return sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: cfg.DumpInterval,
			DumpPath:     cfg.DumpPath,
		}, logManager)
	case "memory":
		return memory.New(cfg.Memory), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
