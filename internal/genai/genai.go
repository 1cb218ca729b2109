// Package genai provides text generation for the educational flow using the OpenAI API.
package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Default generation settings
const (
	DefaultModel       = string(openai.ChatModelGPT4oMini)
	DefaultTemperature = 0.7
	// ApologyMessage is returned in place of a reply when generation fails.
	ApologyMessage = "Lo siento, hubo un error procesando tu pregunta."
	// replyMarker separates the echoed prompt from the reply in completion-style output.
	replyMarker = "Asistente:"
)

var (
	ErrNoChoicesReturned = errors.New("no choices returned")
	ErrNoAPIKey          = errors.New("OPENAI_API_KEY not set")
)

// chatService defines minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// completionsAdapter adapts the SDK service to chatService.
type completionsAdapter struct {
	svc *openai.ChatCompletionService
}

func (a completionsAdapter) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := a.svc.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// Opts holds configuration for the GenAI client.
type Opts struct {
	APIKey      string
	Model       string
	Temperature float64
	BaseURL     string
	Timeout     time.Duration
	DebugMode   bool
	StateDir    string
}

// Option configures a GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel sets the chat model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *Opts) { o.Temperature = t }
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithTimeout bounds each generation call.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// WithDebugMode writes every request and reply under <stateDir>/debug.
func WithDebugMode(enabled bool, stateDir string) Option {
	return func(o *Opts) {
		o.DebugMode = enabled
		o.StateDir = stateDir
	}
}

// Client wraps the OpenAI ChatCompletion service for generating replies.
type Client struct {
	chat        chatService
	model       string
	temperature float64
	timeout     time.Duration
	debugMode   bool
	stateDir    string
}

// NewClient initializes a new GenAI client. The API key falls back to OPENAI_API_KEY.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{Model: DefaultModel, Temperature: DefaultTemperature, Timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	cli := openai.NewClient(reqOpts...)
	slog.Debug("GenAI.NewClient: client created", "model", cfg.Model, "base_url_set", cfg.BaseURL != "")

	return &Client{
		chat:        completionsAdapter{svc: &cli.Chat.Completions},
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		debugMode:   cfg.DebugMode,
		stateDir:    cfg.StateDir,
	}, nil
}

// Generate returns the model's reply to prompt, bounded to maxLength tokens.
// Failures are logged and replaced with ApologyMessage.
func (c *Client) Generate(ctx context.Context, prompt string, maxLength int) string {
	reply, err := c.GenerateWithContext(ctx, prompt, maxLength)
	if err != nil {
		slog.Error("GenAI.Generate: generation failed", "error", err)
		return ApologyMessage
	}
	return reply
}

// GenerateWithContext performs one completion and surfaces errors.
func (c *Client) GenerateWithContext(ctx context.Context, prompt string, maxLength int) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		Temperature: openai.Float(c.temperature),
	}
	if maxLength > 0 {
		params.MaxCompletionTokens = openai.Int(int64(maxLength))
	}

	start := time.Now()
	resp, err := c.chat.Create(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	reply := extractReply(resp.Choices[0].Message.Content)
	slog.Debug("GenAI.GenerateWithContext: completion received",
		"model", c.model, "prompt_len", len(prompt), "reply_len", len(reply), "elapsed", time.Since(start))

	if c.debugMode {
		c.writeDebug(prompt, reply)
	}
	return reply, nil
}

// extractReply keeps only the text after the last reply marker, if the model echoed one.
func extractReply(content string) string {
	if idx := strings.LastIndex(content, replyMarker); idx >= 0 {
		content = content[idx+len(replyMarker):]
	}
	return strings.TrimSpace(content)
}

type debugRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Model     string    `json:"model"`
	Prompt    string    `json:"prompt"`
	Reply     string    `json:"reply"`
}

func (c *Client) writeDebug(prompt, reply string) {
	dir := filepath.Join(c.stateDir, "debug")
	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Warn("GenAI.writeDebug: cannot create debug dir", "dir", dir, "error", err)
		return
	}
	rec := debugRecord{Timestamp: time.Now(), Model: c.model, Prompt: prompt, Reply: reply}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		slog.Warn("GenAI.writeDebug: marshal failed", "error", err)
		return
	}
	name := filepath.Join(dir, fmt.Sprintf("genai_%d.json", rec.Timestamp.UnixNano()))
	if err := os.WriteFile(name, data, 0644); err != nil {
		slog.Warn("GenAI.writeDebug: write failed", "path", name, "error", err)
	}
}
