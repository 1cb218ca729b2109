package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/FarmFinBot/internal/models"
	"github.com/BTreeMap/FarmFinBot/internal/store"
)

// Assistant routes each incoming message to the right flow and persists the
// resulting session. Turns for the same user are serialized.
type Assistant struct {
	deps        *Dependencies
	locks       *userLocks
	educational *EducationalFlow
	scoring     *ScoringFlow
	transfer    *TransferFlow
}

// NewAssistant wires the flows over deps.
func NewAssistant(deps Dependencies) *Assistant {
	d := &deps
	d.withDefaults()
	return &Assistant{
		deps:        d,
		locks:       newUserLocks(),
		educational: NewEducationalFlow(d.Generator, d.Metrics),
		scoring:     NewScoringFlow(d.Scorer, d.Metrics),
		transfer:    NewTransferFlow(d),
	}
}

// GeneratorLoaded reports whether replies come from the text generator.
func (a *Assistant) GeneratorLoaded() bool {
	return a.deps.Generator != nil
}

// ScoringLoaded reports whether the credit classifier is available.
func (a *Assistant) ScoringLoaded() bool {
	return a.scoring.Available()
}

// Handle processes one message from userID and returns the reply. Errors come
// only from the session store or from ctx ending while the turn waits behind
// another turn of the same user; flow problems are answered in the reply.
func (a *Assistant) Handle(ctx context.Context, message, userID string) (string, error) {
	msg := strings.TrimSpace(message)
	if IsGreeting(msg) {
		a.deps.Metrics.Turn("greeting")
		return GreetingMessage, nil
	}

	var reply string
	err := a.locks.WithLock(ctx, userID, func(ctx context.Context) error {
		sess, err := a.deps.Sessions.Get(ctx, userID)
		if err != nil && !errors.Is(err, store.ErrSessionNotFound) {
			return fmt.Errorf("failed to load session for %s: %w", userID, err)
		}

		var next models.Session
		reply, next = a.dispatch(ctx, userID, msg, sess)
		if next == nil {
			return nil
		}
		if err := a.deps.Sessions.Put(ctx, userID, next); err != nil {
			return fmt.Errorf("failed to save session for %s: %w", userID, err)
		}
		slog.Debug("Assistant.Handle: session updated", "user_id", userID, "mode", next.Mode())
		return nil
	})
	if err != nil {
		slog.Error("Assistant.Handle: turn failed", "user_id", userID, "error", err)
		return "", err
	}
	return reply, nil
}

func (a *Assistant) dispatch(ctx context.Context, userID, msg string, sess models.Session) (string, models.Session) {
	switch s := sess.(type) {
	case models.ScoringSession:
		a.deps.Metrics.Turn(string(models.ModeScoring))
		return a.scoring.Advance(ctx, msg, s)
	case models.TransferSession:
		a.deps.Metrics.Turn(string(models.ModeTransfer))
		return a.transfer.Advance(ctx, userID, msg, s)
	}

	intent := ClassifyIntent(msg)
	a.deps.Metrics.Turn(intent.String())
	slog.Debug("Assistant.dispatch: routed by keyword", "user_id", userID, "intent", intent.String())
	switch intent {
	case IntentTransfer:
		return a.transfer.Start(ctx)
	case IntentScoring:
		return a.scoring.Start(ctx)
	default:
		return a.educational.Handle(ctx, msg, sess)
	}
}

// Reset discards the user's session entirely.
func (a *Assistant) Reset(ctx context.Context, userID string) error {
	return a.locks.WithLock(ctx, userID, func(ctx context.Context) error {
		if err := store.Reset(ctx, a.deps.Sessions, userID); err != nil {
			return err
		}
		slog.Info("Assistant.Reset: session discarded", "user_id", userID)
		return nil
	})
}

// Session returns the user's current session, or nil if there is none.
func (a *Assistant) Session(ctx context.Context, userID string) (models.Session, error) {
	sess, err := a.deps.Sessions.Get(ctx, userID)
	if errors.Is(err, store.ErrSessionNotFound) {
		return nil, nil
	}
	return sess, err
}
