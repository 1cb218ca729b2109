// Package models defines the core data structures for FarmFinBot.
//
// It includes the ledger account and transfer record types, the chat request and
// response payloads, and the JSON envelope used by the HTTP API.
package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Validation constants for chat input
const (
	// MaxMessageLength defines the maximum accepted length of an incoming chat message
	MaxMessageLength = 4096
	// DefaultChatUserID is used when a JSON chat request omits user_id
	DefaultChatUserID = "default_user"
	// DefaultTwilioUserID is used when a webhook form omits From
	DefaultTwilioUserID = "default_twilio_user"
)

var (
	ErrEmptyAccountID   = errors.New("account id cannot be empty")
	ErrNegativeBalance  = errors.New("account balance cannot be negative")
	ErrMessageTooLong   = errors.New("message exceeds maximum length")
	ErrEmptyHolder      = errors.New("account holder cannot be empty")
	ErrDuplicateAccount = errors.New("duplicate account id")
)

// Account is a ledger entry in the fixed demo registry.
type Account struct {
	ID      string          `json:"id"`
	Holder  string          `json:"holder"`
	Balance decimal.Decimal `json:"balance"`
}

// Validate checks the account invariants.
func (a Account) Validate() error {
	if a.ID == "" {
		return ErrEmptyAccountID
	}
	if a.Holder == "" {
		return ErrEmptyHolder
	}
	if a.Balance.IsNegative() {
		return ErrNegativeBalance
	}
	return nil
}

// TransferRecord is an append-only log entry written after a transfer is applied.
type TransferRecord struct {
	ID          string          `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	UserID      string          `json:"user_id"`
	FromAccount string          `json:"from_account"`
	ToAccount   string          `json:"to_account"`
	Amount      decimal.Decimal `json:"amount"`
}

// ChatRequest is the JSON body of POST /chat.
type ChatRequest struct {
	Message string `json:"message" validate:"max=4096"`
	UserID  string `json:"user_id" validate:"max=256"`
}

// ChatResponse is the JSON reply of POST /chat.
type ChatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
	Error     string `json:"error,omitempty"`
}

// ResetRequest is the JSON body of POST /reset.
type ResetRequest struct {
	UserID string `json:"user_id" validate:"max=256"`
}

// ResetResponse is the JSON reply of POST /reset.
type ResetResponse struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// StatusResponse is the JSON reply of GET /.
type StatusResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	AIModelLoaded string `json:"modelo_IA_cargado"`
	ScoringLoaded string `json:"modelo_Scoring_cargado"`
}

// APIStatus represents the status of an API response.
type APIStatus string

// APIStatusError indicates an API request failed with an error.
const APIStatusError APIStatus = "error"

// APIResponse is the JSON error envelope.
type APIResponse struct {
	Status  string `json:"status"`            // status of the API response
	Message string `json:"message,omitempty"` // error message
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}
