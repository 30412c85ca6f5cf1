package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fastygo/taskhub/internal/config"
	pgInfra "github.com/fastygo/taskhub/internal/infrastructure/postgres"
	"github.com/fastygo/taskhub/repository"
	"github.com/fastygo/taskhub/repository/postgres"
	"github.com/fastygo/taskhub/repository/sqlite"
)

// storage is an opened repository bundle with its health probe.
type storage struct {
	store repository.Store
	ping  func(ctx context.Context) error
	close func() error
}

func migrateStorage(cfg *config.Config, log *zap.Logger) error {
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		return sqlite.Migrate(cfg.SQLite.Path, log)
	case config.DriverPostgres:
		return pgInfra.RunMigrations(cfg, log)
	default:
		return fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func openStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) (*storage, error) {
	if cfg.Migrations.Enabled {
		if err := migrateStorage(cfg, log); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}

	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		log.Info("using sqlite storage", zap.String("path", cfg.SQLite.Path))
		return &storage{
			store: sqlite.NewStore(db),
			ping:  db.PingContext,
			close: db.Close,
		}, nil
	case config.DriverPostgres:
		pool, err := pgInfra.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return nil, err
		}
		return &storage{
			store: postgres.NewStore(pool),
			ping:  pool.Ping,
			close: func() error {
				pool.Close()
				return nil
			},
		}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
