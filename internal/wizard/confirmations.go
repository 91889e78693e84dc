package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wizardoma/radiance-wellness/internal/booking"
)

const confirmationKeyPrefix = "wizard:confirmation:"

// ConfirmationStore keeps the confirmation of each wizard session so it
// can be shown after the session ended or expired. Load returns ErrNotFound
// when nothing was recorded.
type ConfirmationStore interface {
	Save(ctx context.Context, sessionID string, conf *booking.Confirmation) error
	Load(ctx context.Context, sessionID string) (*booking.Confirmation, error)
}

type storedConfirmation struct {
	conf      *booking.Confirmation
	expiresAt time.Time
}

// MemoryConfirmationStore keeps confirmations in process for a TTL.
// Expired entries are invisible to Load and removed by Prune.
type MemoryConfirmationStore struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.RWMutex
	confs map[string]storedConfirmation
}

// NewMemoryConfirmationStore keeps confirmations for ttl (default 24h).
func NewMemoryConfirmationStore(ttl time.Duration) *MemoryConfirmationStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryConfirmationStore{ttl: ttl, now: time.Now, confs: make(map[string]storedConfirmation)}
}

// WithClock overrides the expiry clock.
func (s *MemoryConfirmationStore) WithClock(now func() time.Time) *MemoryConfirmationStore {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *MemoryConfirmationStore) Save(ctx context.Context, sessionID string, conf *booking.Confirmation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confs[sessionID] = storedConfirmation{conf: conf, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryConfirmationStore) Load(ctx context.Context, sessionID string) (*booking.Confirmation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.confs[sessionID]
	if !ok || !s.now().Before(stored.expiresAt) {
		return nil, ErrNotFound
	}
	return stored.conf, nil
}

// Prune drops expired confirmations and returns how many were removed.
func (s *MemoryConfirmationStore) Prune() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, stored := range s.confs {
		if !now.Before(stored.expiresAt) {
			delete(s.confs, id)
			removed++
		}
	}
	return removed
}

// RedisConfirmationStore shares confirmations between API replicas.
type RedisConfirmationStore struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisConfirmationStore keeps confirmations for ttl (default 24h).
func NewRedisConfirmationStore(client *redis.Client, ttl time.Duration) *RedisConfirmationStore {
	if client == nil {
		panic("wizard: redis client required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisConfirmationStore{redis: client, ttl: ttl}
}

func (s *RedisConfirmationStore) Save(ctx context.Context, sessionID string, conf *booking.Confirmation) error {
	data, err := json.Marshal(conf)
	if err != nil {
		return fmt.Errorf("wizard: marshal confirmation: %w", err)
	}
	if err := s.redis.Set(ctx, confirmationKeyPrefix+sessionID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("wizard: save confirmation: %w", err)
	}
	return nil
}

func (s *RedisConfirmationStore) Load(ctx context.Context, sessionID string) (*booking.Confirmation, error) {
	data, err := s.redis.Get(ctx, confirmationKeyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("wizard: load confirmation: %w", err)
	}
	var conf booking.Confirmation
	if err := json.Unmarshal(data, &conf); err != nil {
		return nil, fmt.Errorf("wizard: decode confirmation: %w", err)
	}
	return &conf, nil
}
