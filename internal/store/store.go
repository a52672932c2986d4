// Package store persists the contact directory in PostgreSQL.
//
// Store implements core.Store and core.Refresher over any DBTX, which is
// satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
package store

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/contactimport/internal/logging"
)

// DBTX is the query surface the store needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// RefreshChannel is the NOTIFY channel used to tell other processes that
// contacts or DSPs changed.
const RefreshChannel = "directory_refresh"

//go:embed schema.sql
var schemaSQL string

// Store reads and writes the directory.
type Store struct {
	db DBTX
}

// New creates a Store on db.
func New(db DBTX) *Store {
	return &Store{db: db}
}

// PoolConfig sizes the connection pool.
type PoolConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// OpenPool connects to url and pings the server.
func OpenPool(ctx context.Context, url string, pc PoolConfig) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if pc.MaxConns > 0 {
		cfg.MaxConns = pc.MaxConns
	}
	if pc.MinConns > 0 {
		cfg.MinConns = pc.MinConns
	}
	if pc.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = pc.MaxConnLifetime
	}
	if pc.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = pc.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Migrate creates any missing tables and indexes.
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logging.FromContext(ctx).Info("database schema up to date")
	return nil
}

// RefreshContacts announces that contacts changed.
func (s *Store) RefreshContacts(ctx context.Context) {
	s.notify(ctx, "contacts")
}

// RefreshDSPs announces that DSPs changed.
func (s *Store) RefreshDSPs(ctx context.Context) {
	s.notify(ctx, "dsps")
}

// notify is best effort; a failed refresh never fails an import.
func (s *Store) notify(ctx context.Context, what string) {
	if _, err := s.db.Exec(ctx, "SELECT pg_notify($1, $2)", RefreshChannel, what); err != nil {
		logging.FromContext(ctx).Warn("refresh notification failed", "what", what, "error", err)
	}
}
