package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wizardoma/radiance-wellness/pkg/logging"
)

// OutboxEntry represents a pending event.
type OutboxEntry struct {
	ID        uuid.UUID
	Aggregate string
	Type      string
	Envelope  Envelope
	CreatedAt time.Time
}

// DeliveryHandler emits events to downstream transports.
type DeliveryHandler interface {
	Handle(ctx context.Context, entry OutboxEntry) error
}

// Outbox is the delivery side of an event store.
type Outbox interface {
	FetchPending(ctx context.Context, limit int32) ([]OutboxEntry, error)
	MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error)
}

type outboxExec interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// OutboxStore persists events in Postgres for reliable delivery.
type OutboxStore struct {
	pool outboxExec
}

func NewOutboxStore(pool *pgxpool.Pool) *OutboxStore {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return &OutboxStore{pool: pool}
}

func newOutboxStoreWithExec(exec outboxExec) *OutboxStore {
	if exec == nil {
		panic("events: exec required")
	}
	return &OutboxStore{pool: exec}
}

// Insert appends an event outside any transaction.
func (s *OutboxStore) Insert(ctx context.Context, env Envelope) error {
	return Append(ctx, s.pool, env)
}

func (s *OutboxStore) FetchPending(ctx context.Context, limit int32) ([]OutboxEntry, error) {
	query := `
		SELECT id, aggregate, event_type, payload, created_at
		FROM outbox
		WHERE delivered_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("events: fetch pending: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var entry OutboxEntry
		var payload []byte
		if err := rows.Scan(&entry.ID, &entry.Aggregate, &entry.Type, &payload, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("events: scan outbox: %w", err)
		}
		if err := json.Unmarshal(payload, &entry.Envelope); err != nil {
			return nil, fmt.Errorf("events: decode envelope %s: %w", entry.ID, err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *OutboxStore) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE outbox
		SET delivered_at = now()
		WHERE id = $1 AND delivered_at IS NULL
	`
	ct, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("events: mark delivered: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// MemoryOutbox keeps events in process for single-node deployments
// without Postgres.
type MemoryOutbox struct {
	mu        sync.Mutex
	entries   []OutboxEntry
	delivered map[uuid.UUID]bool
}

func NewMemoryOutbox() *MemoryOutbox {
	return &MemoryOutbox{delivered: make(map[uuid.UUID]bool)}
}

func (m *MemoryOutbox) Insert(ctx context.Context, env Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, OutboxEntry{
		ID:        env.EventID,
		Aggregate: env.Aggregate,
		Type:      env.EventType,
		Envelope:  env,
		CreatedAt: nowFunc().UTC(),
	})
	return nil
}

func (m *MemoryOutbox) FetchPending(ctx context.Context, limit int32) ([]OutboxEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []OutboxEntry
	for _, e := range m.entries {
		if m.delivered[e.ID] {
			continue
		}
		out = append(out, e)
		if limit > 0 && int32(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryOutbox) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.delivered[id] {
		return false, nil
	}
	m.delivered[id] = true
	return true, nil
}

// Pending returns how many events await delivery.
func (m *MemoryOutbox) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries) - len(m.delivered)
}

// Deliverer polls the outbox and invokes the handler.
type Deliverer struct {
	store     Outbox
	handler   DeliveryHandler
	logger    *logging.Logger
	batchSize int32
	interval  time.Duration
}

func NewDeliverer(store Outbox, handler DeliveryHandler, logger *logging.Logger) *Deliverer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Deliverer{
		store:     store,
		handler:   handler,
		logger:    logger,
		batchSize: 25,
		interval:  2 * time.Second,
	}
}

func (d *Deliverer) WithBatchSize(size int32) *Deliverer {
	if size > 0 {
		d.batchSize = size
	}
	return d
}

func (d *Deliverer) WithInterval(interval time.Duration) *Deliverer {
	if interval > 0 {
		d.interval = interval
	}
	return d
}

// Start polls until ctx is done.
func (d *Deliverer) Start(ctx context.Context) {
	if d.store == nil || d.handler == nil {
		return
	}
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.drain(ctx)
		}
	}
}

// drain delivers one batch and returns how many entries were delivered.
// Failed entries stay pending for the next tick.
func (d *Deliverer) drain(ctx context.Context) int {
	entries, err := d.store.FetchPending(ctx, d.batchSize)
	if err != nil {
		d.logger.Error("outbox fetch failed", "error", err)
		return 0
	}
	delivered := 0
	for _, entry := range entries {
		if err := d.handler.Handle(ctx, entry); err != nil {
			d.logger.Error("outbox delivery failed", "error", err, "event_id", entry.ID, "type", entry.Type)
			continue
		}
		if ok, err := d.store.MarkDelivered(ctx, entry.ID); err != nil {
			d.logger.Error("failed to mark outbox delivered", "error", err, "event_id", entry.ID)
		} else if ok {
			delivered++
			d.logger.Debug("outbox delivered", "event_id", entry.ID, "type", entry.Type)
		}
	}
	return delivered
}
