package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"orderbot/internal/config"
	"orderbot/internal/db"
	"orderbot/internal/store"
)

// openBackend connects the configured identity storage. The returned close
// func is never nil.
func openBackend(ctx context.Context, cfg config.Config, log *zap.Logger) (store.Backend, func() error, error) {
	noop := func() error { return nil }
	switch cfg.SessionBackend {
	case config.BackendMemory:
		return store.NewMemoryBackend(""), noop, nil
	case config.BackendFile:
		return store.NewFileBackend(cfg.SessionFile, cfg.SessionKey), noop, nil
	case config.BackendRedis:
		rdb, err := store.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, noop, err
		}
		return store.NewRedisBackend(rdb, cfg.SessionKey), rdb.Close, nil
	case config.BackendPostgres:
		database, err := db.New(cfg.DatabaseURL, log)
		if err != nil {
			return nil, noop, err
		}
		if cfg.RunMigrations {
			if err := database.RunMigrations(db.Migrations()); err != nil {
				database.Close()
				return nil, noop, fmt.Errorf("failed to run migrations: %w", err)
			}
		}
		return store.NewDatabaseBackend(database, cfg.SessionKey), database.Close, nil
	}
	return nil, noop, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
}

type closers []func() error

func (c closers) Close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		errs = append(errs, c[i]())
	}
	return errors.Join(errs...)
}
