package storage

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/scrypster/attune/internal/config"
	"github.com/scrypster/attune/internal/storage/postgres"
	"github.com/scrypster/attune/internal/storage/sqlite"
)

// Open builds the record store described by the storage configuration,
// wrapped in the circuit breaker. An empty driver means persistence is
// disabled and Open returns (nil, nil); callers treat a nil store as
// "don't persist".
func Open(cfg config.StorageConfig, logger *zap.Logger) (RecordStore, error) {
	var inner RecordStore
	var err error

	switch cfg.Driver {
	case "":
		return nil, nil
	case "sqlite":
		inner, err = sqlite.NewRecordStore(cfg.DSN)
	case "postgres":
		inner, err = postgres.NewRecordStore(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s record store: %w", cfg.Driver, err)
	}

	return NewBreakerStore(inner, DefaultBreakerConfig(), logger), nil
}
