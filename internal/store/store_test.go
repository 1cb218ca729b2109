package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/BTreeMap/FarmFinBot/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	_, err := s.Get(ctx, "+123")
	require.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, s.Put(ctx, "+123", models.NewScoringSession().Answer("Edad", "40")))
	got, err := s.Get(ctx, "+123")
	require.NoError(t, err)
	assert.Equal(t, models.ModeScoring, got.Mode())

	require.NoError(t, s.Put(ctx, "+123", models.NewEducationalSession()))
	got, err = s.Get(ctx, "+123")
	require.NoError(t, err)
	assert.Equal(t, models.ModeEducational, got.Mode())
	assert.Equal(t, 1, s.Len())

	require.NoError(t, Reset(ctx, s, "+123"))
	_, err = s.Get(ctx, "+123")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, 0, s.Len())
	require.NoError(t, Reset(ctx, s, "+123"), "resetting a missing session is a no-op")
}

func TestDetectDSNType(t *testing.T) {
	cases := map[string]string{
		"postgres://u:p@localhost/db":       "postgres",
		"postgresql://localhost/db":         "postgres",
		"host=localhost dbname=farm user=x": "postgres",
		"/var/lib/farmfin/farmfin.db":       "sqlite3",
		"file:test.db?cache=shared":         "sqlite3",
	}
	for dsn, want := range cases {
		assert.Equal(t, want, DetectDSNType(dsn), dsn)
	}
}

func sampleRecord(id string, amount string) models.TransferRecord {
	return models.TransferRecord{
		ID:          id,
		Timestamp:   time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC),
		UserID:      "whatsapp:+5215555555555",
		FromAccount: "ACC001",
		ToAccount:   "ACC002",
		Amount:      decimal.RequireFromString(amount),
	}
}

func TestFormatLogLine(t *testing.T) {
	line := FormatLogLine(sampleRecord("t1", "250"))
	assert.Equal(t, "[2024-05-01T10:30:00Z] User: whatsapp:+5215555555555, Destino: ACC002, Monto: 250.00\n", line)
}

func TestFileLogAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", DefaultLogFileName)
	log, err := NewFileLog(path)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, log.Append(ctx, sampleRecord("t1", "10")))
	require.NoError(t, log.Append(ctx, sampleRecord("t2", "20.5")))
	require.NoError(t, log.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[1], "Monto: 20.50"), lines[1])
}

func TestInMemoryDedup(t *testing.T) {
	d := NewInMemoryDedup()

	first, err := d.RecordInbound("SM1", "+1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := d.RecordInbound("SM1", "+1")
	require.NoError(t, err)
	assert.False(t, again)

	_, ok, _ := d.ProcessedReply("SM1")
	assert.False(t, ok, "unprocessed message must not report a reply")

	require.NoError(t, d.MarkProcessed("SM1", "hola"))
	reply, ok, err := d.ProcessedReply("SM1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hola", reply)
}

func TestInMemoryDedupExpires(t *testing.T) {
	d := NewInMemoryDedup(WithDedupTTL(20 * time.Millisecond))
	_, _ = d.RecordInbound("SM2", "+1")
	time.Sleep(40 * time.Millisecond)
	fresh, err := d.RecordInbound("SM2", "+1")
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(WithSQLiteDSN(filepath.Join(t.TempDir(), "farmfin.db")))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Append(ctx, sampleRecord("t1", "250")))
	require.NoError(t, s.Append(ctx, sampleRecord("t2", "0.75")))

	recs, err := s.Transfers(ctx, "whatsapp:+5215555555555")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "250.00", recs[0].Amount.StringFixed(2))
	assert.Equal(t, "ACC002", recs[1].ToAccount)

	fresh, err := s.RecordInbound("SM9", "+1")
	require.NoError(t, err)
	assert.True(t, fresh)
	fresh, err = s.RecordInbound("SM9", "+1")
	require.NoError(t, err)
	assert.False(t, fresh)

	require.NoError(t, s.MarkProcessed("SM9", "respuesta"))
	reply, ok, err := s.ProcessedReply("SM9")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "respuesta", reply)
}

func TestNewSQLiteStoreRequiresDSN(t *testing.T) {
	_, err := NewSQLiteStore()
	assert.Error(t, err)
}

func TestPostgresStore(t *testing.T) {
	// Requires a running PostgreSQL instance; set DATABASE_URL to enable.
	connStr := getenvOrSkip(t, "DATABASE_URL")
	pgStore, err := NewPostgresStore(WithPostgresDSN(connStr))
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	defer pgStore.Close()
	pgStore.db.Exec("DELETE FROM transfers WHERE user_id = 'pg-test'")

	rec := sampleRecord("pg-1", "12.34")
	rec.UserID = "pg-test"
	require.NoError(t, pgStore.Append(context.Background(), rec))
	recs, err := pgStore.Transfers(context.Background(), "pg-test")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Amount.Equal(decimal.RequireFromString("12.34")))
}

func getenvOrSkip(t *testing.T, key string) string {
	v := ""
	if val, ok := syscall.Getenv(key); ok {
		v = val
	}
	if v == "" {
		t.Skipf("env %s not set", key)
	}
	return v
}
