package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProcessedTracker remembers which events a consumer already handled, so
// side effects survive redelivery.
type ProcessedTracker interface {
	AlreadyProcessed(ctx context.Context, consumer, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, consumer, eventID string) (bool, error)
}

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ProcessedStore is the Postgres ProcessedTracker.
type ProcessedStore struct {
	pool rowQuerier
}

func NewProcessedStore(pool *pgxpool.Pool) *ProcessedStore {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return &ProcessedStore{pool: pool}
}

func newProcessedStoreWithExec(exec rowQuerier) *ProcessedStore {
	if exec == nil {
		panic("events: exec required")
	}
	return &ProcessedStore{pool: exec}
}

// AlreadyProcessed checks if the consumer has seen this event id.
func (s *ProcessedStore) AlreadyProcessed(ctx context.Context, consumer, eventID string) (bool, error) {
	query := `SELECT 1 FROM processed_events WHERE consumer = $1 AND event_id = $2`
	var exists int
	if err := s.pool.QueryRow(ctx, query, consumer, eventID).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("events: check processed: %w", err)
	}
	return true, nil
}

// MarkProcessed records the event id, returning false if it already exists.
func (s *ProcessedStore) MarkProcessed(ctx context.Context, consumer, eventID string) (bool, error) {
	query := `
		INSERT INTO processed_events (consumer, event_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	ct, err := s.pool.Exec(ctx, query, consumer, eventID)
	if err != nil {
		return false, fmt.Errorf("events: mark processed: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// MemoryProcessedStore is the in-process ProcessedTracker.
type MemoryProcessedStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryProcessedStore() *MemoryProcessedStore {
	return &MemoryProcessedStore{seen: make(map[string]struct{})}
}

func (m *MemoryProcessedStore) AlreadyProcessed(ctx context.Context, consumer, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.seen[consumer+"\x00"+eventID]
	return ok, nil
}

func (m *MemoryProcessedStore) MarkProcessed(ctx context.Context, consumer, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := consumer + "\x00" + eventID
	if _, ok := m.seen[key]; ok {
		return false, nil
	}
	m.seen[key] = struct{}{}
	return true, nil
}
