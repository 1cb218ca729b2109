package store

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// DefaultDedupTTL is how long InMemoryDedup remembers an inbound message.
const DefaultDedupTTL = 10 * time.Minute

// DedupRecord represents an inbound message deduplication record.
type DedupRecord struct {
	MessageID   string     `json:"message_id"`
	UserID      string     `json:"user_id"`
	ReceivedAt  time.Time  `json:"received_at"`
	ProcessedAt *time.Time `json:"processed_at"`
	Reply       string     `json:"reply"`
}

// DedupRepo defines the interface for inbound message deduplication.
type DedupRepo interface {
	// RecordInbound inserts a new inbound message record. Returns false if the
	// message was already recorded (duplicate).
	RecordInbound(messageID, userID string) (bool, error)

	// MarkProcessed stores the reply produced for a message.
	MarkProcessed(messageID, reply string) error

	// ProcessedReply returns the stored reply, if the message was processed.
	ProcessedReply(messageID string) (string, bool, error)
}

var _ DedupRepo = (*InMemoryDedup)(nil)

// InMemoryDedup keeps dedup records in a TTL cache.
type InMemoryDedup struct {
	cache *cache.Cache
	ttl   time.Duration
}

// NewInMemoryDedup creates an in-process dedup record.
func NewInMemoryDedup(opts ...Option) *InMemoryDedup {
	cfg := Opts{DedupTTL: DefaultDedupTTL}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &InMemoryDedup{cache: cache.New(cfg.DedupTTL, cfg.DedupTTL), ttl: cfg.DedupTTL}
}

func (d *InMemoryDedup) RecordInbound(messageID, userID string) (bool, error) {
	rec := &DedupRecord{MessageID: messageID, UserID: userID, ReceivedAt: time.Now()}
	if err := d.cache.Add(messageID, rec, cache.DefaultExpiration); err != nil {
		return false, nil
	}
	return true, nil
}

func (d *InMemoryDedup) MarkProcessed(messageID, reply string) error {
	now := time.Now()
	rec := &DedupRecord{MessageID: messageID, ReceivedAt: now}
	if x, found := d.cache.Get(messageID); found {
		prev := *x.(*DedupRecord)
		rec = &prev
	}
	rec.ProcessedAt = &now
	rec.Reply = reply
	d.cache.Set(messageID, rec, cache.DefaultExpiration)
	return nil
}

func (d *InMemoryDedup) ProcessedReply(messageID string) (string, bool, error) {
	x, found := d.cache.Get(messageID)
	if !found {
		return "", false, nil
	}
	rec := x.(*DedupRecord)
	if rec.ProcessedAt == nil {
		return "", false, nil
	}
	return rec.Reply, true, nil
}
