// Package models defines session state management structures for FarmFinBot flows.
package models

import (
	"github.com/shopspring/decimal"
)

// Mode identifies which flow owns a user's session.
type Mode string

const (
	// ModeEducational is the open-ended Q&A flow backed by the text generator.
	ModeEducational Mode = "educational"
	// ModeScoring is the fixed credit-scoring questionnaire.
	ModeScoring Mode = "scoring"
	// ModeTransfer is the funds-transfer dialogue.
	ModeTransfer Mode = "transfer"
)

// MaxHistoryEntries is the number of turn strings kept in an educational session (3 exchanges).
const MaxHistoryEntries = 6

// Session is the per-user conversational state. Exactly one of EducationalSession,
// ScoringSession or TransferSession is active at a time; a nil Session means the
// user has no session yet.
type Session interface {
	Mode() Mode
	isSession()
}

// EducationalSession holds the bounded rolling history of the educational flow.
type EducationalSession struct {
	History []string
}

// NewEducationalSession returns the default session every flow falls back to.
func NewEducationalSession() EducationalSession {
	return EducationalSession{History: []string{}}
}

func (EducationalSession) Mode() Mode { return ModeEducational }
func (EducationalSession) isSession() {}

// Append returns a copy of the session with lines added, keeping only the most
// recent MaxHistoryEntries entries.
func (s EducationalSession) Append(lines ...string) EducationalSession {
	history := make([]string, 0, len(s.History)+len(lines))
	history = append(history, s.History...)
	history = append(history, lines...)
	if len(history) > MaxHistoryEntries {
		history = history[len(history)-MaxHistoryEntries:]
	}
	return EducationalSession{History: history}
}

// Recent returns up to the last n history entries.
func (s EducationalSession) Recent(n int) []string {
	if n >= len(s.History) {
		return s.History
	}
	return s.History[len(s.History)-n:]
}

// ScoringSession tracks progress through the credit questionnaire.
// Answers maps a feature key to the raw answer value.
type ScoringSession struct {
	Step    int
	Answers map[string]string
}

// NewScoringSession returns a questionnaire positioned at the first question.
func NewScoringSession() ScoringSession {
	return ScoringSession{Step: 0, Answers: map[string]string{}}
}

func (ScoringSession) Mode() Mode { return ModeScoring }
func (ScoringSession) isSession() {}

// Answer returns the session advanced by one step with key recorded. The
// receiver's Answers map is left untouched.
func (s ScoringSession) Answer(key, value string) ScoringSession {
	answers := make(map[string]string, len(s.Answers)+1)
	for k, v := range s.Answers {
		answers[k] = v
	}
	answers[key] = value
	return ScoringSession{Step: s.Step + 1, Answers: answers}
}

// TransferStep is the state of the transfer dialogue.
type TransferStep string

const (
	StepWaitingForSource       TransferStep = "WAITING_FOR_SOURCE"
	StepWaitingForDestination  TransferStep = "WAITING_FOR_DESTINATION"
	StepWaitingForAmount       TransferStep = "WAITING_FOR_AMOUNT"
	StepWaitingForConfirmation TransferStep = "WAITING_FOR_CONFIRMATION"
)

// TransferData is the partial transfer collected so far.
type TransferData struct {
	FromAccount string          `json:"from_account,omitempty"`
	ToAccount   string          `json:"to_account,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
}

// TransferSession tracks the transfer dialogue.
type TransferSession struct {
	Step TransferStep
	Data TransferData
}

// NewTransferSession returns a transfer dialogue waiting for the source account.
func NewTransferSession() TransferSession {
	return TransferSession{Step: StepWaitingForSource}
}

func (TransferSession) Mode() Mode { return ModeTransfer }
func (TransferSession) isSession() {}
