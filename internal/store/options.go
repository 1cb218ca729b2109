package store

import (
	"strings"
	"time"
)

// Opts holds configuration for store backends.
type Opts struct {
	DSN         string        // database connection string or file path
	RedisPrefix string        // key prefix for RedisStore
	SessionTTL  time.Duration // zero keeps sessions until reset
	DedupTTL    time.Duration // how long a processed inbound reply is remembered
}

// Option configures a store.
type Option func(*Opts)

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithRedisPrefix overrides DefaultRedisPrefix.
func WithRedisPrefix(prefix string) Option {
	return func(o *Opts) { o.RedisPrefix = prefix }
}

// WithSessionTTL expires idle sessions in Redis.
func WithSessionTTL(ttl time.Duration) Option {
	return func(o *Opts) { o.SessionTTL = ttl }
}

// WithDedupTTL sets the retention of dedup records.
func WithDedupTTL(ttl time.Duration) Option {
	return func(o *Opts) { o.DedupTTL = ttl }
}

// DetectDSNType returns "postgres" for PostgreSQL connection strings and
// "sqlite3" for anything else.
func DetectDSNType(dsn string) string {
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return "postgres"
	}
	if strings.Contains(lower, "host=") && strings.Contains(lower, "dbname=") {
		return "postgres"
	}
	return "sqlite3"
}
