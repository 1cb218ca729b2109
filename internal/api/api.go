// Package api provides the HTTP adapter for FarmFinBot.
//
// It exposes the Twilio WhatsApp webhook, a JSON chat endpoint, session reset,
// a status page and Prometheus metrics. Every turn is delegated to the flow
// router; the adapter only decodes requests and renders replies.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/BTreeMap/FarmFinBot/internal/metrics"
	"github.com/BTreeMap/FarmFinBot/internal/store"
	"github.com/BTreeMap/FarmFinBot/internal/twiliowhatsapp"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

const (
	// DefaultAddr is the listen address used when none is configured.
	DefaultAddr = ":8080"
	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 10 * time.Second
	// DefaultAsyncReplyTimeout bounds one asynchronous webhook turn.
	DefaultAsyncReplyTimeout = 60 * time.Second
	// readHeaderTimeout guards against slow clients.
	readHeaderTimeout = 10 * time.Second
)

// Assistant is the conversation core the adapter drives.
type Assistant interface {
	Handle(ctx context.Context, message, userID string) (string, error)
	Reset(ctx context.Context, userID string) error
	GeneratorLoaded() bool
	ScoringLoaded() bool
}

// SignatureValidator checks Twilio webhook signatures.
type SignatureValidator interface {
	Validate(url string, params map[string]string, signature string) bool
}

// Opts holds configuration options for the API server.
type Opts struct {
	Addr          string
	PublicBaseURL string
	AsyncReply    bool
	Dedup         store.DedupRepo
	Sender        twiliowhatsapp.Sender
	Validator     SignatureValidator
	Metrics       *metrics.Metrics
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithDedup answers Twilio retries from the reply cached for their MessageSid.
func WithDedup(d store.DedupRepo) Option {
	return func(o *Opts) { o.Dedup = d }
}

// WithSignatureValidation rejects webhooks whose X-Twilio-Signature does not
// match publicBaseURL plus the request path.
func WithSignatureValidation(v SignatureValidator, publicBaseURL string) Option {
	return func(o *Opts) {
		o.Validator = v
		o.PublicBaseURL = strings.TrimRight(publicBaseURL, "/")
	}
}

// WithAsyncReply acknowledges webhooks at once and delivers the reply through sender.
func WithAsyncReply(sender twiliowhatsapp.Sender) Option {
	return func(o *Opts) {
		o.Sender = sender
		o.AsyncReply = sender != nil
	}
}

// WithMetrics exposes m on /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Opts) { o.Metrics = m }
}

// Server is the HTTP adapter.
type Server struct {
	assistant Assistant
	opts      Opts
	validate  *validator.Validate
	inflight  sync.WaitGroup
}

// NewServer creates a server over assistant.
func NewServer(assistant Assistant, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		assistant: assistant,
		opts:      cfg,
		validate:  validator.New(),
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(s.recoverer)

	r.Get("/", s.statusHandler)
	r.Post("/chat", s.chatHandler)
	r.Post("/reset", s.resetHandler)
	r.Post("/webhook", s.webhookHandler)
	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics.Handler())
	}
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully and waits for
// pending asynchronous replies.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: listening", "addr", s.opts.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Server.Run: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api server shutdown failed: %w", err)
	}
	s.inflight.Wait()
	return nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("Server: request served",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start))
	})
}
