package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"studybot/config"
)

// Open builds the backend named by cfg.Driver.
func Open(ctx context.Context, cfg config.Store, log *zap.Logger) (Store, error) {
	log.Info("opening_store", zap.String("driver", cfg.Driver))

	switch cfg.Driver {
	case "memory":
		return NewMemoryStore(), nil
	case "dynamodb":
		client, err := NewDynamoClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return NewDynamoStore(ctx, client, cfg.DynamoTable)
	case "postgres":
		return OpenPostgres(ctx, cfg.URI)
	case "sqlite":
		return OpenSQLite(ctx, cfg.URI)
	case "pebble":
		return OpenPebble(cfg.URI)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
