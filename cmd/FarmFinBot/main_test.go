package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BTreeMap/FarmFinBot/internal/models"
	"github.com/BTreeMap/FarmFinBot/internal/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"FARMFIN_STATE_DIR", "API_ADDR", "OPENAI_API_KEY", "OPENAI_MODEL", "SCORING_URL",
		"ACCOUNTS_FILE", "DATABASE_URL", "REDIS_URL", "SESSION_TTL", "TWILIO_VALIDATE_SIGNATURE",
		"PUBLIC_BASE_URL", "TWILIO_ASYNC_REPLY", "WHATSAPP_ENABLED", "WHATSAPP_DB_DSN", "LOG_FILE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadEnvironmentConfigDefaults(t *testing.T) {
	clearEnv(t)
	config := loadEnvironmentConfig()

	if config.StateDir != DefaultStateDir {
		t.Errorf("Expected default state dir %q, got %q", DefaultStateDir, config.StateDir)
	}
	if config.APIAddr != ":8080" {
		t.Errorf("Expected default API address, got %q", config.APIAddr)
	}
	if config.OpenAIModel == "" {
		t.Error("Expected a default chat model")
	}
	if config.ValidateSignature || config.AsyncReply || config.WhatsAppEnabled {
		t.Errorf("Optional features should default off: %+v", config)
	}
}

func TestLoadEnvironmentConfigFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("FARMFIN_STATE_DIR", "/tmp/farmfin")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("TWILIO_ASYNC_REPLY", "true")

	config := loadEnvironmentConfig()
	if config.StateDir != "/tmp/farmfin" || config.SessionTTL != 2*time.Hour || !config.AsyncReply {
		t.Errorf("environment not applied: %+v", config)
	}
}

func TestParseCommandLineFlags(t *testing.T) {
	clearEnv(t)
	config := loadEnvironmentConfig()

	flags, err := parseCommandLineFlags(config, []string{"-state-dir", "/srv/farmfin", "-api-addr", ":9000", "-scoring-url", "http://model:5000/predict"})
	if err != nil {
		t.Fatal(err)
	}
	if flags.stateDir != "/srv/farmfin" || flags.apiAddr != ":9000" || flags.scoringURL != "http://model:5000/predict" {
		t.Errorf("flags not applied: %+v", flags)
	}
	want := "file:" + filepath.Join("/srv/farmfin", DefaultWhatsAppDBFileName) + "?_foreign_keys=on"
	if flags.whatsappDSN != want {
		t.Errorf("Expected WhatsApp DSN %q, got %q", want, flags.whatsappDSN)
	}
}

func TestParseCommandLineFlagsSignatureNeedsURL(t *testing.T) {
	clearEnv(t)
	if _, err := parseCommandLineFlags(loadEnvironmentConfig(), []string{"-validate-signature"}); err == nil {
		t.Error("expected an error without -public-base-url")
	}
	if _, err := parseCommandLineFlags(loadEnvironmentConfig(), []string{"-validate-signature", "-public-base-url", "https://farmfin.example.com"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestOpenTransactionLogFile(t *testing.T) {
	dir := t.TempDir()
	txLog, dedup, err := openTransactionLog(Flags{stateDir: dir})
	if err != nil {
		t.Fatal(err)
	}
	defer txLog.Close()
	if _, ok := dedup.(*store.InMemoryDedup); !ok {
		t.Errorf("expected in-memory dedup, got %T", dedup)
	}

	rec := models.TransferRecord{Timestamp: time.Now(), UserID: "u1", ToAccount: "ACC002", Amount: decimal.NewFromInt(250)}
	if err := txLog.Append(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, store.DefaultLogFileName))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "User: u1, Destino: ACC002, Monto: 250.00") {
		t.Errorf("unexpected log contents %q", data)
	}
}

func TestOpenTransactionLogSQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "farmfin.db")
	txLog, dedup, err := openTransactionLog(Flags{dbDSN: dsn})
	if err != nil {
		t.Fatal(err)
	}
	defer txLog.Close()
	if _, ok := txLog.(*store.SQLiteStore); !ok {
		t.Errorf("expected SQLite store, got %T", txLog)
	}
	if dedup == nil {
		t.Error("database backend should provide dedup records")
	}
}

func TestOpenSessionStore(t *testing.T) {
	sessions, closeFn, err := openSessionStore(context.Background(), Flags{})
	if err != nil {
		t.Fatal(err)
	}
	closeFn()
	if _, ok := sessions.(*store.InMemoryStore); !ok {
		t.Errorf("expected in-memory store, got %T", sessions)
	}

	mr := miniredis.RunT(t)
	sessions, closeFn, err = openSessionStore(context.Background(), Flags{redisURL: "redis://" + mr.Addr(), sessionTTL: time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()
	if _, ok := sessions.(*store.RedisStore); !ok {
		t.Errorf("expected Redis store, got %T", sessions)
	}

	if _, _, err := openSessionStore(context.Background(), Flags{redisURL: "redis://127.0.0.1:1"}); err == nil {
		t.Error("expected an error for an unreachable Redis")
	}
}

func TestOptionalCollaborators(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if g := openGenerator(Flags{}); g != nil {
		t.Errorf("expected nil generator without a key, got %T", g)
	}
	if g := openGenerator(Flags{openaiKey: "sk-test", openaiModel: "gpt-4o-mini"}); g == nil {
		t.Error("expected a generator with a key")
	}
	if c := openClassifier(Flags{}); c != nil {
		t.Errorf("expected nil classifier, got %T", c)
	}
	if c := openClassifier(Flags{scoringURL: "http://model:5000/predict"}); c == nil {
		t.Error("expected an HTTP classifier")
	}
}

func TestOpenLedger(t *testing.T) {
	l, err := openLedger(Flags{})
	if err != nil {
		t.Fatal(err)
	}
	if !l.Has("ACC001") || !l.Has("ACC002") {
		t.Error("expected demo accounts")
	}

	path := filepath.Join(t.TempDir(), "accounts.yaml")
	seed := "accounts:\n  - id: ACC100\n    holder: Ana\n    balance: \"20.50\"\n"
	if err := os.WriteFile(path, []byte(seed), 0644); err != nil {
		t.Fatal(err)
	}
	l, err = openLedger(Flags{accountsFile: path})
	if err != nil {
		t.Fatal(err)
	}
	if ids := l.IDs(); len(ids) != 1 || ids[0] != "ACC100" {
		t.Errorf("unexpected ids %v", ids)
	}
}

func TestBuildAPIOptions(t *testing.T) {
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	if _, err := buildAPIOptions(Flags{validateSignature: true, publicBaseURL: "https://x"}, nil, nil); err == nil {
		t.Error("signature validation without a token should fail")
	}
	opts, err := buildAPIOptions(Flags{apiAddr: ":8080"}, store.NewInMemoryDedup(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(opts) != 3 {
		t.Errorf("expected 3 options, got %d", len(opts))
	}
}
