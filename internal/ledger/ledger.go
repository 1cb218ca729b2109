// Package ledger holds the fixed registry of demo accounts mutated by transfers.
//
// Accounts are seeded once at startup and never created or destroyed at runtime.
// Balances use decimal arithmetic so that a transfer conserves the total exactly.
package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/BTreeMap/FarmFinBot/internal/models"
	"github.com/shopspring/decimal"
)

var (
	ErrUnknownAccount    = errors.New("unknown account")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrSameAccount       = errors.New("source and destination accounts are the same")
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrEmptyRegistry     = errors.New("ledger requires at least one account")
)

// DefaultAccounts returns the demo registry used when no seed file is configured.
func DefaultAccounts() []models.Account {
	return []models.Account{
		{ID: "ACC001", Holder: "Sergio Rock", Balance: decimal.NewFromInt(1000)},
		{ID: "ACC002", Holder: "Emilio Pinelo", Balance: decimal.NewFromInt(500)},
	}
}

// TransferResult reports the balances after an applied transfer.
type TransferResult struct {
	From   models.Account
	To     models.Account
	Amount decimal.Decimal
}

// Ledger is an in-memory account registry safe for concurrent use.
type Ledger struct {
	mu       sync.RWMutex
	accounts map[string]*models.Account
	ids      []string
}

// New builds a ledger from the given accounts. IDs are stored upper-cased,
// matching how the transfer flow reads them.
func New(accounts []models.Account) (*Ledger, error) {
	if len(accounts) == 0 {
		return nil, ErrEmptyRegistry
	}
	l := &Ledger{accounts: make(map[string]*models.Account, len(accounts))}
	for _, acc := range accounts {
		acc.ID = strings.ToUpper(strings.TrimSpace(acc.ID))
		if err := acc.Validate(); err != nil {
			return nil, fmt.Errorf("invalid account %q: %w", acc.ID, err)
		}
		if _, dup := l.accounts[acc.ID]; dup {
			return nil, fmt.Errorf("%w: %s", models.ErrDuplicateAccount, acc.ID)
		}
		a := acc
		l.accounts[acc.ID] = &a
		l.ids = append(l.ids, acc.ID)
	}
	sort.Strings(l.ids)
	slog.Debug("Ledger.New: registry loaded", "accounts", len(l.ids))
	return l, nil
}

// NewDefault builds a ledger seeded with DefaultAccounts.
func NewDefault() *Ledger {
	l, err := New(DefaultAccounts())
	if err != nil {
		panic(fmt.Sprintf("default ledger is invalid: %v", err))
	}
	return l
}

// IDs returns the account identifiers in sorted order.
func (l *Ledger) IDs() []string {
	out := make([]string, len(l.ids))
	copy(out, l.ids)
	return out
}

// Has reports whether id is a registered account.
func (l *Ledger) Has(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.accounts[id]
	return ok
}

// Account returns a snapshot of the account.
func (l *Ledger) Account(id string) (models.Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acc, ok := l.accounts[id]
	if !ok {
		return models.Account{}, fmt.Errorf("%w: %s", ErrUnknownAccount, id)
	}
	return *acc, nil
}

// GetBalance returns the current balance of an account.
func (l *Ledger) GetBalance(id string) (decimal.Decimal, error) {
	acc, err := l.Account(id)
	if err != nil {
		return decimal.Zero, err
	}
	return acc.Balance, nil
}

// Debit subtracts amount from an account.
func (l *Ledger) Debit(id string, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debitLocked(id, amount)
}

// Credit adds amount to an account.
func (l *Ledger) Credit(id string, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.creditLocked(id, amount)
}

// Transfer debits from and credits to by exactly amount as one step. Either both
// balances change or neither does.
func (l *Ledger) Transfer(from, to string, amount decimal.Decimal) (TransferResult, error) {
	if from == to {
		return TransferResult{}, ErrSameAccount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.accounts[to]; !ok {
		return TransferResult{}, fmt.Errorf("%w: %s", ErrUnknownAccount, to)
	}
	if err := l.debitLocked(from, amount); err != nil {
		return TransferResult{}, err
	}
	if err := l.creditLocked(to, amount); err != nil {
		// unreachable: destination existence was checked above
		l.accounts[from].Balance = l.accounts[from].Balance.Add(amount)
		return TransferResult{}, err
	}

	slog.Info("Ledger.Transfer: applied", "from", from, "to", to, "amount", amount.StringFixed(2))
	return TransferResult{From: *l.accounts[from], To: *l.accounts[to], Amount: amount}, nil
}

// Total returns the sum of all balances.
func (l *Ledger) Total() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := decimal.Zero
	for _, acc := range l.accounts {
		total = total.Add(acc.Balance)
	}
	return total
}

func (l *Ledger) debitLocked(id string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	acc, ok := l.accounts[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAccount, id)
	}
	if amount.GreaterThan(acc.Balance) {
		return fmt.Errorf("%w: %s has %s", ErrInsufficientFunds, id, acc.Balance.StringFixed(2))
	}
	acc.Balance = acc.Balance.Sub(amount)
	return nil
}

func (l *Ledger) creditLocked(id string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	acc, ok := l.accounts[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAccount, id)
	}
	acc.Balance = acc.Balance.Add(amount)
	return nil
}
