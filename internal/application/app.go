// Package application wires configuration, the database and the import
// service together for the server and the CLI.
package application

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/contactimport/internal/config"
	"github.com/JonMunkholm/contactimport/internal/core"
	"github.com/JonMunkholm/contactimport/internal/store"
)

// App holds the long-lived dependencies of a process.
type App struct {
	Config  *config.Config
	Pool    *pgxpool.Pool
	Store   *store.Store
	Service *core.Service
}

// Open connects to the database, applies the schema when AutoMigrate is
// set, and builds the import service.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	pool, err := store.OpenPool(ctx, cfg.Database.URL, PoolConfig(cfg.Database))
	if err != nil {
		return nil, err
	}
	slog.Info("connected to database", "name", databaseName(cfg.Database.URL))

	if cfg.Database.AutoMigrate {
		if err := store.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
	}

	st := store.New(pool)
	return &App{
		Config:  cfg,
		Pool:    pool,
		Store:   st,
		Service: core.NewService(st, st, cfg.ServiceConfig()),
	}, nil
}

// Close releases the connection pool.
func (a *App) Close() {
	a.Pool.Close()
}

// PoolConfig converts database settings to pool sizing.
func PoolConfig(db config.DatabaseConfig) store.PoolConfig {
	return store.PoolConfig{
		MaxConns:        int32(db.MaxConns),
		MinConns:        int32(db.MinConns),
		MaxConnLifetime: db.MaxConnLifetime,
		MaxConnIdleTime: db.MaxConnIdleTime,
	}
}

// databaseName returns the path component of a connection URL, or "" for
// key/value connection strings.
func databaseName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}

