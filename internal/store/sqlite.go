// Package store provides storage backends for FarmFinBot.
//
// This file implements an SQLite-backed transaction log and dedup record.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/BTreeMap/FarmFinBot/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// Compile-time checks that SQLiteStore implements the store interfaces.
var (
	_ TransactionLog = (*SQLiteStore)(nil)
	_ DedupRepo      = (*SQLiteStore)(nil)
)

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Append(ctx context.Context, rec models.TransferRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transfers (id, user_id, from_account, to_account, amount, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.FromAccount, rec.ToAccount, rec.Amount.StringFixed(2), rec.Timestamp.UTC(),
	)
	if err != nil {
		slog.Error("SQLiteStore Append failed", "error", err, "id", rec.ID)
		return fmt.Errorf("failed to insert transfer %s: %w", rec.ID, err)
	}
	slog.Debug("SQLiteStore Append succeeded", "id", rec.ID, "user_id", rec.UserID)
	return nil
}

// Transfers returns the logged transfers made by userID, oldest first.
func (s *SQLiteStore) Transfers(ctx context.Context, userID string) ([]models.TransferRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, from_account, to_account, amount, created_at FROM transfers WHERE user_id = ? ORDER BY created_at, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfers: %w", err)
	}
	defer rows.Close()
	return scanTransfers(rows)
}

func (s *SQLiteStore) Close() error {
	slog.Debug("SQLiteStore.Close: closing database")
	return s.db.Close()
}

func scanTransfers(rows *sql.Rows) ([]models.TransferRecord, error) {
	var out []models.TransferRecord
	for rows.Next() {
		var rec models.TransferRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.FromAccount, &rec.ToAccount, &rec.Amount, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan transfer row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transfer rows: %w", err)
	}
	return out, nil
}
