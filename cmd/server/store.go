package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/datacleaner/internal/config"
	"github.com/JonMunkholm/datacleaner/internal/store"
)

// openStore builds the configured session backend, optionally behind the
// read cache. The returned func closes the store and then any pool it uses;
// it is safe to call more than once.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	var (
		st        store.Store
		closePool = func() {}
	)

	switch strings.ToLower(cfg.Session.Backend) {
	case store.BackendMemory:
		st = store.NewMemory(cfg.Session.TTL)

	case store.BackendBadger:
		b, err := store.OpenBadger(cfg.Session.BadgerDir, cfg.Session.TTL)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("opened badger session store", "dir", cfg.Session.BadgerDir)
		st = b

	case store.BackendPostgres:
		pool, err := openPool(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		closePool = pool.Close

		pg := store.NewPostgres(pool, cfg.Session.TTL)
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		st = pg

	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}

	if cfg.Session.CacheEnabled {
		cached, err := store.NewCached(st, cfg.Session.CacheMaxBytes, cfg.Session.TTL)
		if err != nil {
			st.Close()
			closePool()
			return nil, nil, err
		}
		slog.Info("session read cache enabled", "max_bytes", cfg.Session.CacheMaxBytes)
		st = cached
	}

	var once sync.Once
	closeAll := func() {
		once.Do(func() {
			if err := st.Close(); err != nil {
				slog.Warn("close session store failed", "error", err)
			}
			closePool()
		})
	}
	return st, closeAll, nil
}

// openPool connects to postgres with the configured pool limits.
func openPool(ctx context.Context, dbCfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dbCfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(dbCfg.MaxConns)
	poolConfig.MinConns = int32(dbCfg.MinConns)
	poolConfig.MaxConnLifetime = dbCfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = dbCfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Log which database we connected to
	if u, err := url.Parse(dbCfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}
