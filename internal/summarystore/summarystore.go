// Package summarystore persists prediction summaries.
package summarystore

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/polybot/internal/prediction"
)

// Store writes prediction summaries. Insert returns the store-generated id
// as a string.
type Store interface {
	Insert(ctx context.Context, summary *prediction.Summary) (string, error)
	Close() error
}

// New opens the store selected by driver ("postgres", "sqlite" or "none") and
// makes sure its schema exists.
func New(ctx context.Context, driver, dsn string, logger *zap.Logger) (Store, error) {
	switch driver {
	case "postgres":
		store, err := OpenPostgres(ctx, dsn, logger)
		if err != nil {
			return nil, err
		}
		if err := store.AutoMigrate(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to migrate summary store: %w", err)
		}
		return store, nil
	case "sqlite":
		store, err := OpenSQLite(dsn)
		if err != nil {
			return nil, err
		}
		logger.Info("initializing summary schema (ensuring tables exist)")
		if err := store.CreateSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to create summary schema: %w", err)
		}
		return store, nil
	case "none":
		return NopStore{}, nil
	default:
		return nil, fmt.Errorf("unsupported summary store driver: %s", driver)
	}
}

// NopStore discards summaries.
type NopStore struct{}

func (NopStore) Insert(ctx context.Context, summary *prediction.Summary) (string, error) {
	return "", nil
}

func (NopStore) Close() error { return nil }
