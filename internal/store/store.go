// Package store provides storage backends for FarmFinBot.
//
// It includes the per-user session repository (in-process or Redis), the
// append-only transaction log (file, SQLite or PostgreSQL) and the inbound
// webhook deduplication record.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/FarmFinBot/internal/models"
	"github.com/patrickmn/go-cache"
)

// ErrSessionNotFound is returned by SessionStore.Get when the user has no session.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore maps a user identifier to that user's current session.
// At most one session exists per user.
type SessionStore interface {
	Get(ctx context.Context, userID string) (models.Session, error)
	Put(ctx context.Context, userID string, s models.Session) error
	Delete(ctx context.Context, userID string) error
}

// Reset discards the user's session. A missing session is not an error.
func Reset(ctx context.Context, s SessionStore, userID string) error {
	if err := s.Delete(ctx, userID); err != nil {
		return fmt.Errorf("failed to reset session for %s: %w", userID, err)
	}
	return nil
}

// InMemoryStore keeps sessions for the lifetime of the process.
type InMemoryStore struct {
	cache *cache.Cache
}

// NewInMemoryStore creates an in-process session store. Sessions never expire.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{cache: cache.New(cache.NoExpiration, 10*time.Minute)}
}

func (s *InMemoryStore) Get(_ context.Context, userID string) (models.Session, error) {
	if x, found := s.cache.Get(userID); found {
		return x.(models.Session), nil
	}
	return nil, ErrSessionNotFound
}

func (s *InMemoryStore) Put(_ context.Context, userID string, sess models.Session) error {
	s.cache.Set(userID, sess, cache.NoExpiration)
	slog.Debug("InMemoryStore.Put: session stored", "user_id", userID, "mode", sess.Mode())
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, userID string) error {
	s.cache.Delete(userID)
	return nil
}

// Len returns the number of stored sessions.
func (s *InMemoryStore) Len() int {
	return s.cache.ItemCount()
}
