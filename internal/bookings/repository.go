package bookings

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/wizardoma/radiance-wellness/internal/availability"
	"github.com/wizardoma/radiance-wellness/internal/booking"
	"github.com/wizardoma/radiance-wellness/internal/events"
)

var (
	// ErrNotFound is returned when no booking matches.
	ErrNotFound = errors.New("bookings: not found")

	// ErrDuplicateReference is returned when a generated reference collides
	// with a stored one. The caller retries with a new reference.
	ErrDuplicateReference = errors.New("bookings: duplicate reference")
)

// Repository persists bookings. Create stores the record and its event
// together; when a record with the same idempotency key already exists it
// returns that record and created=false without storing the event.
type Repository interface {
	Create(ctx context.Context, rec *Record, event events.Envelope) (stored *Record, created bool, err error)
	GetByIdempotencyKey(ctx context.Context, key string) (*Record, error)
	GetByReference(ctx context.Context, reference string) (*Record, error)
	ListReservations(ctx context.Context, date string) ([]availability.Reservation, error)
}

// EventSink receives events from the memory repository.
type EventSink interface {
	Insert(ctx context.Context, env events.Envelope) error
}

// MemoryRepository keeps bookings in process.
type MemoryRepository struct {
	sink EventSink

	mu          sync.RWMutex
	byKey       map[string]*Record
	byReference map[string]*Record
}

// NewMemoryRepository creates an empty repository. sink may be nil.
func NewMemoryRepository(sink EventSink) *MemoryRepository {
	return &MemoryRepository{
		sink:        sink,
		byKey:       make(map[string]*Record),
		byReference: make(map[string]*Record),
	}
}

func (m *MemoryRepository) Create(ctx context.Context, rec *Record, event events.Envelope) (*Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.byKey[rec.IdempotencyKey]; ok {
		return cloneRecord(existing), false, nil
	}
	if _, ok := m.byReference[rec.Reference]; ok {
		return nil, false, ErrDuplicateReference
	}
	if m.sink != nil {
		if err := m.sink.Insert(ctx, event); err != nil {
			return nil, false, err
		}
	}
	stored := cloneRecord(rec)
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	m.byKey[stored.IdempotencyKey] = stored
	m.byReference[stored.Reference] = stored
	return cloneRecord(stored), true, nil
}

func (m *MemoryRepository) GetByIdempotencyKey(ctx context.Context, key string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.byKey[key]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (m *MemoryRepository) GetByReference(ctx context.Context, reference string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.byReference[reference]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (m *MemoryRepository) ListReservations(ctx context.Context, date string) ([]availability.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []availability.Reservation
	for _, rec := range m.byKey {
		if rec.Date == date && rec.Status == StatusConfirmed {
			out = append(out, availability.Reservation{Time: rec.Time, Minutes: rec.Minutes})
		}
	}
	return out, nil
}

// Len returns the number of stored bookings.
func (m *MemoryRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byKey)
}

func cloneRecord(r *Record) *Record {
	out := *r
	out.AddOnIDs = append([]string(nil), r.AddOnIDs...)
	out.Items = append([]booking.LineItem(nil), r.Items...)
	return &out
}
