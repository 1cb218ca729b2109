// Package store provides storage backends for FarmFinBot.
//
// This file implements a PostgreSQL-backed transaction log and dedup record.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/BTreeMap/FarmFinBot/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

var (
	_ TransactionLog = (*PostgresStore)(nil)
	_ DedupRepo      = (*PostgresStore)(nil)
)

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Append(ctx context.Context, rec models.TransferRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transfers (id, user_id, from_account, to_account, amount, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.UserID, rec.FromAccount, rec.ToAccount, rec.Amount.StringFixed(2), rec.Timestamp,
	)
	if err != nil {
		slog.Error("PostgresStore Append failed", "error", err, "id", rec.ID)
		return fmt.Errorf("failed to insert transfer %s: %w", rec.ID, err)
	}
	slog.Debug("PostgresStore Append succeeded", "id", rec.ID, "user_id", rec.UserID)
	return nil
}

// Transfers returns the logged transfers made by userID, oldest first.
func (s *PostgresStore) Transfers(ctx context.Context, userID string) ([]models.TransferRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, from_account, to_account, amount, created_at FROM transfers WHERE user_id = $1 ORDER BY created_at, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfers: %w", err)
	}
	defer rows.Close()
	return scanTransfers(rows)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
