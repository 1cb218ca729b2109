package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/BTreeMap/FarmFinBot/internal/ledger"
	"github.com/BTreeMap/FarmFinBot/internal/metrics"
	"github.com/BTreeMap/FarmFinBot/internal/models"
	"github.com/shopspring/decimal"
)

// Transfer results recorded in metrics.
const (
	transferApplied  = "applied"
	transferDeclined = "declined"
	transferRejected = "rejected"
)

// TransferFlow runs the source, destination, amount and confirmation dialogue.
type TransferFlow struct {
	deps *Dependencies
}

// NewTransferFlow creates the flow over deps.Ledger and deps.Log.
func NewTransferFlow(deps *Dependencies) *TransferFlow {
	deps.withDefaults()
	return &TransferFlow{deps: deps}
}

// Start begins a new transfer, replacing any current session.
func (f *TransferFlow) Start(_ context.Context) (string, models.Session) {
	f.deps.Metrics.FlowStarted(string(models.ModeTransfer))
	return fmt.Sprintf(TransferStartMessage, f.accountChoices(false)), models.NewTransferSession()
}

// Advance processes one answer at the session's current step.
func (f *TransferFlow) Advance(ctx context.Context, userID, answer string, sess models.Session) (string, models.Session) {
	tr, ok := sess.(models.TransferSession)
	if !ok {
		return GreetingMessage, nil
	}
	if IsCancel(answer) {
		f.deps.Metrics.FlowEnded(string(models.ModeTransfer), metrics.OutcomeCancelled)
		return TransferCancelledMessage, models.NewEducationalSession()
	}

	switch tr.Step {
	case models.StepWaitingForSource:
		return f.source(answer, tr)
	case models.StepWaitingForDestination:
		return f.destination(answer, tr)
	case models.StepWaitingForAmount:
		return f.amount(answer, tr)
	case models.StepWaitingForConfirmation:
		return f.confirm(ctx, userID, answer, tr)
	default:
		slog.Warn("TransferFlow.Advance: unknown step", "user_id", userID, "step", tr.Step)
		f.deps.Metrics.FlowEnded(string(models.ModeTransfer), metrics.OutcomeFailed)
		return SomethingWentWrongMessage, models.NewEducationalSession()
	}
}

func (f *TransferFlow) source(answer string, tr models.TransferSession) (string, models.Session) {
	id := strings.ToUpper(strings.TrimSpace(answer))
	if !f.deps.Ledger.Has(id) {
		return fmt.Sprintf(accountNotFoundMessage, id, f.accountChoices(true)), nil
	}
	tr.Data.FromAccount = id
	tr.Step = models.StepWaitingForDestination
	return askDestinationMessage, tr
}

func (f *TransferFlow) destination(answer string, tr models.TransferSession) (string, models.Session) {
	id := strings.ToUpper(strings.TrimSpace(answer))
	if !f.deps.Ledger.Has(id) {
		return fmt.Sprintf(accountNotFoundMessage, id, f.accountChoices(true)), nil
	}
	if id == tr.Data.FromAccount {
		return sameAccountMessage, nil
	}
	from, err := f.deps.Ledger.Account(tr.Data.FromAccount)
	if err != nil {
		return f.fail("destination", err)
	}
	tr.Data.ToAccount = id
	tr.Step = models.StepWaitingForAmount
	return fmt.Sprintf(askAmountMessage, from.Balance.StringFixed(2)), tr
}

func (f *TransferFlow) amount(answer string, tr models.TransferSession) (string, models.Session) {
	amount, ok := ParseAmount(answer)
	if !ok {
		return invalidAmountMessage, nil
	}
	if !amount.IsPositive() {
		return nonPositiveAmountMessage, nil
	}
	from, err := f.deps.Ledger.Account(tr.Data.FromAccount)
	if err != nil {
		return f.fail("amount", err)
	}
	if amount.GreaterThan(from.Balance) {
		return fmt.Sprintf(insufficientFundsMessage, from.Balance.StringFixed(2)), nil
	}
	to, err := f.deps.Ledger.Account(tr.Data.ToAccount)
	if err != nil {
		return f.fail("amount", err)
	}

	tr.Data.Amount = amount
	tr.Step = models.StepWaitingForConfirmation
	return fmt.Sprintf(transferSummaryMessage,
		from.Holder, from.ID, to.Holder, to.ID, amount.StringFixed(2)), tr
}

func (f *TransferFlow) confirm(ctx context.Context, userID, answer string, tr models.TransferSession) (string, models.Session) {
	switch {
	case equalsAny(answer, affirmativeKeywords):
	case equalsAny(answer, negativeKeywords):
		f.deps.Metrics.Transfer(transferDeclined)
		f.deps.Metrics.FlowEnded(string(models.ModeTransfer), metrics.OutcomeCancelled)
		return transferDeclinedMessage, models.NewEducationalSession()
	default:
		return confirmPromptMessage, nil
	}

	d := tr.Data
	res, err := f.deps.Ledger.Transfer(d.FromAccount, d.ToAccount, d.Amount)
	if errors.Is(err, ledger.ErrInsufficientFunds) {
		// balance dropped since the amount was accepted
		f.deps.Metrics.Transfer(transferRejected)
		from, aerr := f.deps.Ledger.Account(d.FromAccount)
		if aerr != nil {
			return f.fail("confirm", aerr)
		}
		tr.Step = models.StepWaitingForAmount
		tr.Data.Amount = decimal.Zero
		return fmt.Sprintf(insufficientFundsMessage, from.Balance.StringFixed(2)), tr
	}
	if err != nil {
		f.deps.Metrics.Transfer(transferRejected)
		return f.fail("confirm", err)
	}
	f.deps.Metrics.Transfer(transferApplied)

	f.record(ctx, models.TransferRecord{
		ID:          f.deps.NewID(),
		Timestamp:   f.deps.Now(),
		UserID:      userID,
		FromAccount: d.FromAccount,
		ToAccount:   d.ToAccount,
		Amount:      d.Amount,
	})

	f.deps.Metrics.FlowEnded(string(models.ModeTransfer), metrics.OutcomeCompleted)
	return fmt.Sprintf(transferSuccessMessage,
		res.Amount.StringFixed(2), res.From.Holder, res.To.Holder,
		res.From.ID, res.From.Balance.StringFixed(2),
		res.To.ID, res.To.Balance.StringFixed(2),
	), models.NewEducationalSession()
}

// record appends to the transaction log. Failures are logged only.
func (f *TransferFlow) record(ctx context.Context, rec models.TransferRecord) {
	if f.deps.Log == nil {
		return
	}
	if err := f.deps.Log.Append(ctx, rec); err != nil {
		slog.Error("TransferFlow.record: transaction log append failed", "id", rec.ID, "user_id", rec.UserID, "error", err)
		return
	}
	slog.Info("TransferFlow.record: transaction logged", "id", rec.ID, "user_id", rec.UserID, "to", rec.ToAccount, "amount", rec.Amount.StringFixed(2))
}

func (f *TransferFlow) fail(step string, err error) (string, models.Session) {
	slog.Error("TransferFlow: unexpected ledger error", "step", step, "error", err)
	f.deps.Metrics.FlowEnded(string(models.ModeTransfer), metrics.OutcomeFailed)
	return SomethingWentWrongMessage, models.NewEducationalSession()
}

// accountChoices lists the registry ids as "ACC001 o ACC002".
func (f *TransferFlow) accountChoices(quoted bool) string {
	ids := append([]string(nil), f.deps.Ledger.IDs()...)
	if quoted {
		for i, id := range ids {
			ids[i] = "'" + id + "'"
		}
	}
	if len(ids) <= 1 {
		return strings.Join(ids, "")
	}
	return strings.Join(ids[:len(ids)-1], ", ") + " o " + ids[len(ids)-1]
}

// ParseAmount reads a currency amount such as "$100.50", rounded to cents.
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, "$", ""))
	// No exponent forms: Round expands the exponent into a big.Int.
	if s == "" || strings.ContainsAny(s, "eE") {
		return decimal.Zero, false
	}
	if f, err := strconv.ParseFloat(s, 64); err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d.Round(2), true
}
