package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/BTreeMap/FarmFinBot/internal/api"
	"github.com/BTreeMap/FarmFinBot/internal/flow"
	"github.com/BTreeMap/FarmFinBot/internal/genai"
	"github.com/BTreeMap/FarmFinBot/internal/ledger"
	"github.com/BTreeMap/FarmFinBot/internal/lockfile"
	"github.com/BTreeMap/FarmFinBot/internal/metrics"
	"github.com/BTreeMap/FarmFinBot/internal/scoring"
	"github.com/BTreeMap/FarmFinBot/internal/store"
	"github.com/BTreeMap/FarmFinBot/internal/twiliowhatsapp"
	"github.com/BTreeMap/FarmFinBot/internal/util"
	"github.com/BTreeMap/FarmFinBot/internal/whatsapp"
	"github.com/joho/godotenv"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for FarmFinBot state data
	DefaultStateDir = "/var/lib/farmfin"
	// DefaultWhatsAppDBFileName is the whatsmeow device database inside the state directory
	DefaultWhatsAppDBFileName = "whatsmeow.db"
)

func main() {
	initializeLogger(os.Stdout)

	config := loadEnvironmentConfig()
	flags, err := parseCommandLineFlags(config, os.Args[1:])
	if err != nil {
		slog.Error("Failed to parse flags", "error", err)
		os.Exit(2)
	}
	if flags.logFile != "" {
		initializeLogger(io.MultiWriter(os.Stdout, rotatingLog(flags.logFile)))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping FarmFinBot", "state_dir", flags.stateDir, "api_addr", flags.apiAddr)
	if err := run(ctx, flags); err != nil {
		slog.Error("FarmFinBot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("FarmFinBot exited successfully")
}

// Config holds environment configuration
type Config struct {
	StateDir          string
	APIAddr           string
	OpenAIKey         string
	OpenAIModel       string
	GenAIDebug        bool
	ScoringURL        string
	AccountsFile      string
	DatabaseURL       string
	RedisURL          string
	SessionTTL        time.Duration
	ValidateSignature bool
	PublicBaseURL     string
	AsyncReply        bool
	WhatsAppEnabled   bool
	WhatsAppDBDSN     string
	LogFile           string
}

// Flags holds command line flag values
type Flags struct {
	stateDir          string
	apiAddr           string
	openaiKey         string
	openaiModel       string
	genaiDebug        bool
	scoringURL        string
	accountsFile      string
	dbDSN             string
	redisURL          string
	sessionTTL        time.Duration
	validateSignature bool
	publicBaseURL     string
	asyncReply        bool
	whatsapp          bool
	whatsappDSN       string
	qrOutput          string
	numeric           bool
	logFile           string
}

// initializeLogger sets up structured logging with debug level
func initializeLogger(w io.Writer) {
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

func rotatingLog(path string) io.Writer {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	}
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		StateDir:          util.GetEnv("FARMFIN_STATE_DIR", DefaultStateDir),
		APIAddr:           util.GetEnv("API_ADDR", api.DefaultAddr),
		OpenAIKey:         os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:       util.GetEnv("OPENAI_MODEL", genai.DefaultModel),
		GenAIDebug:        util.ParseBoolEnv("GENAI_DEBUG", false),
		ScoringURL:        os.Getenv("SCORING_URL"),
		AccountsFile:      os.Getenv("ACCOUNTS_FILE"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		SessionTTL:        util.ParseDurationEnv("SESSION_TTL", 0),
		ValidateSignature: util.ParseBoolEnv("TWILIO_VALIDATE_SIGNATURE", false),
		PublicBaseURL:     os.Getenv("PUBLIC_BASE_URL"),
		AsyncReply:        util.ParseBoolEnv("TWILIO_ASYNC_REPLY", false),
		WhatsAppEnabled:   util.ParseBoolEnv("WHATSAPP_ENABLED", false),
		WhatsAppDBDSN:     os.Getenv("WHATSAPP_DB_DSN"),
		LogFile:           os.Getenv("LOG_FILE"),
	}

	slog.Debug("environment variables loaded",
		"FARMFIN_STATE_DIR", config.StateDir,
		"API_ADDR", config.APIAddr,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"SCORING_URL_SET", config.ScoringURL != "",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"REDIS_URL_SET", config.RedisURL != "",
		"WHATSAPP_ENABLED", config.WhatsAppEnabled)
	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config, args []string) (Flags, error) {
	var f Flags
	fs := flag.NewFlagSet("FarmFinBot", flag.ContinueOnError)
	fs.StringVar(&f.stateDir, "state-dir", config.StateDir, "state directory for FarmFinBot data (overrides $FARMFIN_STATE_DIR)")
	fs.StringVar(&f.apiAddr, "api-addr", config.APIAddr, "API server address (overrides $API_ADDR)")
	fs.StringVar(&f.openaiKey, "openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)")
	fs.StringVar(&f.openaiModel, "openai-model", config.OpenAIModel, "chat model (overrides $OPENAI_MODEL)")
	fs.BoolVar(&f.genaiDebug, "genai-debug", config.GenAIDebug, "write generation calls to the state directory (overrides $GENAI_DEBUG)")
	fs.StringVar(&f.scoringURL, "scoring-url", config.ScoringURL, "credit classifier endpoint (overrides $SCORING_URL)")
	fs.StringVar(&f.accountsFile, "accounts-file", config.AccountsFile, "YAML account registry (overrides $ACCOUNTS_FILE)")
	fs.StringVar(&f.dbDSN, "db-dsn", config.DatabaseURL, "transaction log database DSN (overrides $DATABASE_URL)")
	fs.StringVar(&f.redisURL, "redis-url", config.RedisURL, "Redis URL for sessions (overrides $REDIS_URL)")
	fs.DurationVar(&f.sessionTTL, "session-ttl", config.SessionTTL, "expire idle Redis sessions, 0 keeps them (overrides $SESSION_TTL)")
	fs.BoolVar(&f.validateSignature, "validate-signature", config.ValidateSignature, "reject unsigned Twilio webhooks (overrides $TWILIO_VALIDATE_SIGNATURE)")
	fs.StringVar(&f.publicBaseURL, "public-base-url", config.PublicBaseURL, "public URL Twilio signs against (overrides $PUBLIC_BASE_URL)")
	fs.BoolVar(&f.asyncReply, "async-reply", config.AsyncReply, "acknowledge webhooks and reply via the Twilio API (overrides $TWILIO_ASYNC_REPLY)")
	fs.BoolVar(&f.whatsapp, "whatsapp", config.WhatsAppEnabled, "serve a linked WhatsApp device (overrides $WHATSAPP_ENABLED)")
	fs.StringVar(&f.whatsappDSN, "whatsapp-db-dsn", config.WhatsAppDBDSN, "whatsmeow database DSN (overrides $WHATSAPP_DB_DSN)")
	fs.StringVar(&f.qrOutput, "qr-output", "", "path to write login QR code")
	fs.BoolVar(&f.numeric, "numeric-code", false, "use numeric login code instead of QR code")
	fs.StringVar(&f.logFile, "log-file", config.LogFile, "rotating log file (overrides $LOG_FILE)")

	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}
	if f.whatsappDSN == "" {
		f.whatsappDSN = "file:" + filepath.Join(f.stateDir, DefaultWhatsAppDBFileName) + "?_foreign_keys=on"
	}
	if f.validateSignature && f.publicBaseURL == "" {
		return Flags{}, errors.New("-validate-signature requires -public-base-url")
	}

	slog.Debug("flags parsed",
		"stateDir", f.stateDir,
		"apiAddr", f.apiAddr,
		"openaiKeySet", f.openaiKey != "",
		"dbDSN_set", f.dbDSN != "",
		"redisURL_set", f.redisURL != "",
		"whatsapp", f.whatsapp)
	return f, nil
}

// run wires the components and serves until ctx is cancelled.
func run(ctx context.Context, flags Flags) error {
	lock, err := lockfile.Acquire(flags.stateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	accounts, err := openLedger(flags)
	if err != nil {
		return err
	}

	sessions, closeSessions, err := openSessionStore(ctx, flags)
	if err != nil {
		return err
	}
	defer closeSessions()

	txLog, dedup, err := openTransactionLog(flags)
	if err != nil {
		return err
	}
	defer txLog.Close()

	m := metrics.New()
	assistant := flow.NewAssistant(flow.Dependencies{
		Sessions:  sessions,
		Generator: openGenerator(flags),
		Scorer:    scoring.NewService(openClassifier(flags)),
		Ledger:    accounts,
		Log:       txLog,
		Metrics:   m,
	})
	slog.Info("Assistant ready", "generator_loaded", assistant.GeneratorLoaded(), "scoring_loaded", assistant.ScoringLoaded())

	apiOpts, err := buildAPIOptions(flags, dedup, m)
	if err != nil {
		return err
	}

	if flags.whatsapp {
		wa, err := whatsapp.NewClient(ctx, buildWhatsAppOptions(flags)...)
		if err != nil {
			return fmt.Errorf("failed to start WhatsApp transport: %w", err)
		}
		go wa.Serve(ctx, assistant)
	}

	return api.NewServer(assistant, apiOpts...).Run(ctx)
}

func openLedger(flags Flags) (*ledger.Ledger, error) {
	if flags.accountsFile == "" {
		slog.Debug("No accounts file provided, using demo accounts")
		return ledger.NewDefault(), nil
	}
	return ledger.LoadFile(flags.accountsFile)
}

// openSessionStore returns Redis when configured, otherwise the in-process store.
func openSessionStore(ctx context.Context, flags Flags) (store.SessionStore, func(), error) {
	if flags.redisURL == "" {
		slog.Debug("No Redis URL provided, keeping sessions in memory")
		return store.NewInMemoryStore(), func() {}, nil
	}
	rs, err := store.NewRedisStore(flags.redisURL, buildSessionOptions(flags)...)
	if err != nil {
		return nil, nil, err
	}
	if err := rs.Ping(ctx); err != nil {
		rs.Close()
		return nil, nil, fmt.Errorf("failed to reach Redis: %w", err)
	}
	return rs, func() { rs.Close() }, nil
}

// openTransactionLog picks the database backend for the DSN, or the append-only
// file in the state directory. Database backends also hold webhook dedup records.
func openTransactionLog(flags Flags) (store.TransactionLog, store.DedupRepo, error) {
	if flags.dbDSN == "" {
		fl, err := store.NewFileLog(filepath.Join(flags.stateDir, store.DefaultLogFileName))
		if err != nil {
			return nil, nil, err
		}
		return fl, store.NewInMemoryDedup(), nil
	}

	opts := buildStoreOptions(flags)
	if store.DetectDSNType(flags.dbDSN) == "postgres" {
		pg, err := store.NewPostgresStore(opts...)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg, nil
	}
	sq, err := store.NewSQLiteStore(opts...)
	if err != nil {
		return nil, nil, err
	}
	return sq, sq, nil
}

// openGenerator returns nil, not a typed nil, when generation is unavailable.
func openGenerator(flags Flags) flow.TextGenerator {
	client, err := genai.NewClient(buildGenAIOptions(flags)...)
	if err != nil {
		slog.Warn("Text generator unavailable, serving canned replies", "error", err)
		return nil
	}
	return client
}

func openClassifier(flags Flags) scoring.Classifier {
	if flags.scoringURL == "" {
		slog.Warn("No scoring URL provided, credit profile disabled")
		return nil
	}
	return scoring.NewHTTPClassifier(flags.scoringURL)
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	if store.DetectDSNType(flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return []store.Option{store.WithPostgresDSN(flags.dbDSN)}
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", flags.dbDSN)
	return []store.Option{store.WithSQLiteDSN(flags.dbDSN)}
}

func buildSessionOptions(flags Flags) []store.Option {
	var opts []store.Option
	if flags.sessionTTL > 0 {
		opts = append(opts, store.WithSessionTTL(flags.sessionTTL))
	}
	return opts
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var opts []genai.Option
	if flags.openaiKey != "" {
		opts = append(opts, genai.WithAPIKey(flags.openaiKey))
	}
	if flags.openaiModel != "" {
		opts = append(opts, genai.WithModel(flags.openaiModel))
	}
	if flags.genaiDebug {
		opts = append(opts, genai.WithDebugMode(true, flags.stateDir))
	}
	return opts
}

// buildWhatsAppOptions constructs WhatsApp configuration options
func buildWhatsAppOptions(flags Flags) []whatsapp.Option {
	var opts []whatsapp.Option
	if flags.qrOutput != "" {
		opts = append(opts, whatsapp.WithQRCodeOutput(flags.qrOutput))
	}
	if flags.numeric {
		opts = append(opts, whatsapp.WithNumericCode())
	}
	if flags.whatsappDSN != "" {
		opts = append(opts, whatsapp.WithDBDSN(flags.whatsappDSN))
	}
	return opts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags, dedup store.DedupRepo, m *metrics.Metrics) ([]api.Option, error) {
	opts := []api.Option{api.WithAddr(flags.apiAddr), api.WithDedup(dedup), api.WithMetrics(m)}
	if flags.validateSignature {
		v, err := twiliowhatsapp.NewValidator()
		if err != nil {
			return nil, fmt.Errorf("signature validation enabled: %w", err)
		}
		opts = append(opts, api.WithSignatureValidation(v, flags.publicBaseURL))
	}
	if flags.asyncReply {
		sender, err := twiliowhatsapp.NewClient()
		if err != nil {
			return nil, fmt.Errorf("async reply enabled: %w", err)
		}
		opts = append(opts, api.WithAsyncReply(sender))
	}
	return opts, nil
}
