package acquired

import (
	"context"
	"fmt"
	"strings"

	"gpbackup/pkg/config"
	"gpbackup/pkg/logger"
)

// Store persists the acquired id list between runs
type Store interface {
	// Load returns the stored set; a store that was never written yields an empty set
	Load(ctx context.Context) (*Set, error)

	// Persist replaces the stored list with ids
	Persist(ctx context.Context, ids []string) error

	// Location describes where the list lives
	Location() string

	Close() error
}

// NewStore opens the store selected by the configuration
func NewStore(cfg config.AcquiredConfig, log logger.Logger) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "json":
		store := NewJSONStore(cfg.File, log)
		store.SetBackupBeforeWrite(cfg.BackupBeforeWrite)
		return store, nil
	case "sqlite":
		return NewSQLiteStore(cfg.File, log)
	default:
		return nil, fmt.Errorf("unknown acquired backend: %s", cfg.Backend)
	}
}
