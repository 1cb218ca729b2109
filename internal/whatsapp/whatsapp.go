// Package whatsapp wraps the whatsmeow client so FarmFinBot can talk to
// farmers over a linked WhatsApp device instead of the Twilio webhook.
//
// Inbound text messages are routed through the same conversation core as the
// webhook, keyed by "whatsapp:+<number>" so both channels share a session.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/BTreeMap/FarmFinBot/internal/store"
	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
)

const (
	// DefaultSQLitePath is the default path for the whatsmeow device database.
	DefaultSQLitePath = "/var/lib/farmfin/whatsmeow.db"
	// UserIDPrefix matches the From field Twilio sends for WhatsApp users.
	UserIDPrefix = "whatsapp:+"
)

var (
	ErrNotConnected   = errors.New("whatsapp client not initialized")
	ErrEmptyRecipient = errors.New("recipient cannot be empty")
	ErrEmptyBody      = errors.New("message body cannot be empty")
)

// Handler answers one inbound message.
type Handler interface {
	Handle(ctx context.Context, message, userID string) (string, error)
}

// messenger is the part of *whatsmeow.Client used to send replies.
type messenger interface {
	SendMessage(ctx context.Context, to types.JID, message *waE2E.Message, extra ...whatsmeow.SendRequestExtra) (whatsmeow.SendResponse, error)
}

// Opts holds configuration options for the WhatsApp client.
type Opts struct {
	DBDSN       string // whatsmeow database connection string
	QRPath      string // path to write login QR code
	NumericCode bool   // print the raw pairing code instead of a QR code
}

// Option defines a configuration option for the WhatsApp client.
type Option func(*Opts)

// WithDBDSN sets the whatsmeow database connection string.
func WithDBDSN(dsn string) Option {
	return func(o *Opts) { o.DBDSN = dsn }
}

// WithQRCodeOutput writes the login QR code to path instead of stdout.
func WithQRCodeOutput(path string) Option {
	return func(o *Opts) { o.QRPath = path }
}

// WithNumericCode prints the pairing code as text.
func WithNumericCode() Option {
	return func(o *Opts) { o.NumericCode = true }
}

// Client is a logged-in WhatsApp device.
type Client struct {
	waClient *whatsmeow.Client
	wa       messenger
}

// NewClient opens the device store, logs in if needed and connects.
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}

	dsn := cfg.DBDSN
	if dsn == "" {
		dsn = DefaultSQLitePath
	}
	driver := store.DetectDSNType(dsn)
	if driver == "sqlite3" && !strings.Contains(dsn, "foreign_keys") {
		slog.Warn("whatsapp.NewClient: SQLite DSN without foreign keys; whatsmeow recommends enabling them",
			"dsn_example", "file:"+dsn+"?_foreign_keys=on")
	}

	container, err := sqlstore.New(ctx, driver, dsn, waLog.Stdout("Database", "INFO", true))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize WhatsApp database store: %w", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device from WhatsApp store: %w", err)
	}

	waClient := whatsmeow.NewClient(device, waLog.Stdout("Client", "INFO", true))
	if waClient.Store.ID == nil {
		if err := login(ctx, waClient, cfg); err != nil {
			return nil, err
		}
	} else if err := waClient.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to WhatsApp server: %w", err)
	}

	slog.Info("whatsapp.NewClient: connected")
	return &Client{waClient: waClient, wa: waClient}, nil
}

func login(ctx context.Context, waClient *whatsmeow.Client, cfg Opts) error {
	slog.Info("whatsapp.login: device not linked, starting pairing")
	qrChan, err := waClient.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("failed to open QR channel: %w", err)
	}
	if err := waClient.Connect(); err != nil {
		return fmt.Errorf("failed to connect to WhatsApp during login: %w", err)
	}

	writer := io.Writer(os.Stdout)
	if cfg.QRPath != "" {
		f, err := os.Create(cfg.QRPath)
		if err != nil {
			return fmt.Errorf("failed to create QR file: %w", err)
		}
		defer f.Close()
		writer = f
	}

	for evt := range qrChan {
		if evt.Event != "code" {
			slog.Info("whatsapp.login: pairing event", "event", evt.Event)
			continue
		}
		if cfg.NumericCode {
			fmt.Fprintln(writer, evt.Code)
		} else {
			qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, writer)
		}
	}
	return nil
}

// Serve routes inbound messages to h until ctx is cancelled.
func (c *Client) Serve(ctx context.Context, h Handler) {
	id := c.waClient.AddEventHandler(func(evt interface{}) {
		if msg, ok := evt.(*events.Message); ok {
			go c.handleMessage(ctx, h, msg)
		}
	})
	slog.Info("Client.Serve: routing inbound WhatsApp messages")
	<-ctx.Done()
	c.waClient.RemoveEventHandler(id)
	c.waClient.Disconnect()
	slog.Info("Client.Serve: disconnected")
}

func (c *Client) handleMessage(ctx context.Context, h Handler, evt *events.Message) {
	if evt.Info.IsFromMe || evt.Info.IsGroup {
		return
	}
	text := messageText(evt.Message)
	if text == "" {
		slog.Debug("Client.handleMessage: ignoring non-text message", "chat", evt.Info.Chat.String())
		return
	}

	userID := UserID(evt.Info.Chat)
	reply, err := h.Handle(ctx, text, userID)
	if err != nil {
		slog.Error("Client.handleMessage: turn failed", "user_id", userID, "error", err)
		return
	}
	if err := c.send(ctx, evt.Info.Chat, reply); err != nil {
		slog.Error("Client.handleMessage: reply failed", "user_id", userID, "error", err)
	}
}

// SendMessage sends body to a phone number in "+52155..." or "whatsapp:+52155..." form.
func (c *Client) SendMessage(ctx context.Context, to string, body string) error {
	number := Number(to)
	if number == "" {
		return ErrEmptyRecipient
	}
	return c.send(ctx, types.NewJID(number, types.DefaultUserServer), body)
}

func (c *Client) send(ctx context.Context, jid types.JID, body string) error {
	if c == nil || c.wa == nil {
		return ErrNotConnected
	}
	if body == "" {
		return ErrEmptyBody
	}
	if _, err := c.wa.SendMessage(ctx, jid, &waE2E.Message{Conversation: &body}); err != nil {
		return fmt.Errorf("failed to send message to %s: %w", jid.User, err)
	}
	slog.Debug("Client.send: message sent", "to", jid.User, "body_length", len(body))
	return nil
}

// messageText extracts plain or extended text; other message kinds yield "".
func messageText(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if t := msg.GetConversation(); t != "" {
		return t
	}
	return msg.GetExtendedTextMessage().GetText()
}

// UserID maps a chat JID to the session key shared with the webhook.
func UserID(jid types.JID) string {
	return UserIDPrefix + jid.User
}

// Number strips the "whatsapp:" and "+" prefixes from a recipient.
func Number(to string) string {
	to = strings.TrimSpace(to)
	to = strings.TrimPrefix(to, "whatsapp:")
	return strings.TrimPrefix(to, "+")
}
