// Package flow implements the conversation core: the router that picks a flow
// for each message, and the educational, scoring and transfer flows.
//
// Flows never return errors to the caller. Each flow operation takes the
// current session and returns the reply together with the next session; a nil
// next session leaves the stored one untouched.
package flow

import (
	"context"
	"time"

	"github.com/BTreeMap/FarmFinBot/internal/ledger"
	"github.com/BTreeMap/FarmFinBot/internal/metrics"
	"github.com/BTreeMap/FarmFinBot/internal/models"
	"github.com/BTreeMap/FarmFinBot/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TextGenerator produces a reply for a prompt. Implementations return an
// apology string instead of failing.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, maxLength int) string
}

// CreditScorer classifies a completed questionnaire into user-facing text.
type CreditScorer interface {
	Available() bool
	CreditScore(ctx context.Context, answers map[string]string) string
}

// Ledger is the account registry used by the transfer flow.
type Ledger interface {
	IDs() []string
	Has(id string) bool
	Account(id string) (models.Account, error)
	Transfer(from, to string, amount decimal.Decimal) (ledger.TransferResult, error)
}

// Dependencies holds everything the flows need. Generator, Scorer, Log and
// Metrics may be nil.
type Dependencies struct {
	Sessions  store.SessionStore
	Generator TextGenerator
	Scorer    CreditScorer
	Ledger    Ledger
	Log       store.TransactionLog
	Metrics   *metrics.Metrics

	Now   func() time.Time
	NewID func() string
}

func (d *Dependencies) withDefaults() {
	if d.Sessions == nil {
		d.Sessions = store.NewInMemoryStore()
	}
	if d.Ledger == nil {
		d.Ledger = ledger.NewDefault()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
}
