package bootstrap

import (
	"context"
	"fmt"

	"github.com/Domenick1991/skyline/config"
	"github.com/Domenick1991/skyline/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OpenStore opens the ledger selected by cfg.Driver and makes sure its schema
// exists. The memory driver keeps nothing across restarts.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig) (repository.Store, error) {
	switch cfg.Driver {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		store := repository.NewPGStore(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil
	case "sqlite":
		store, err := repository.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "memory":
		return repository.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
