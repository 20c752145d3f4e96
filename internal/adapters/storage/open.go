package storage

import (
	"fmt"

	"github.com/thewijay/intima-chat/internal/adapters/duckdb"
	"github.com/thewijay/intima-chat/internal/config"
	"github.com/thewijay/intima-chat/internal/core/ports"
)

// Open selects the storage backend once from configuration. Call sites only
// ever see the KeyValueStore interface.
func Open(cfg config.Config, secret *config.SecretKey) (ports.KeyValueStore, error) {
	switch cfg.Storage {
	case "file", "":
		return NewFileStore(cfg.StoragePath, secret)
	case "duckdb":
		return duckdb.NewStore(cfg.DBPath)
	case "memory":
		return NewMemStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}
