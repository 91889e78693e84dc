// Package wizard hosts booking wizards for HTTP clients: one live
// booking.Wizard per session id with an explicit start, end and idle
// expiry.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wizardoma/radiance-wellness/internal/booking"
	"github.com/wizardoma/radiance-wellness/internal/catalog"
	"github.com/wizardoma/radiance-wellness/internal/session"
	"github.com/wizardoma/radiance-wellness/pkg/logging"
)

var (
	// ErrNotFound is returned for unknown or expired wizard sessions.
	ErrNotFound = errors.New("wizard: session not found")

	// ErrForbidden is returned when the caller may not use the flow or
	// session.
	ErrForbidden = errors.New("wizard: forbidden")
)

// Config wires a Manager.
type Config struct {
	Catalog         catalog.Provider
	Availability    booking.AvailabilityChecker
	Submitter       *booking.Submitter
	Confirmations   ConfirmationStore
	// ConfirmationTTL bounds the in-memory store used when Confirmations
	// is nil.
	ConfirmationTTL time.Duration
	MaxGuests       int
	LookupTimeout   time.Duration
	IdleTTL         time.Duration
	Location        *time.Location
	Logger          *logging.Logger
}

type entry struct {
	wizard   *booking.Wizard
	owner    session.Session
	lastSeen time.Time
}

// Manager owns the live wizards.
type Manager struct {
	cfg Config
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

// NewManager validates cfg. Without a confirmation store confirmations are
// kept in memory.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("wizard: catalog provider required")
	}
	if cfg.Submitter == nil {
		return nil, fmt.Errorf("wizard: submitter required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Confirmations == nil {
		cfg.Confirmations = NewMemoryConfirmationStore(cfg.ConfirmationTTL)
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Manager{cfg: cfg, now: time.Now, sessions: make(map[string]*entry)}, nil
}

// WithClock overrides the clock used for idle tracking and walk-in times.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	if now != nil {
		m.now = now
		if mem, ok := m.cfg.Confirmations.(*MemoryConfirmationStore); ok {
			mem.WithClock(now)
		}
	}
	return m
}

// Start opens a wizard for variant on behalf of sess. Walk-ins need staff;
// portal sessions of signed-in clients start with their contact details.
func (m *Manager) Start(ctx context.Context, variant booking.Variant, sess session.Session) (*booking.Wizard, error) {
	flow, err := booking.FlowFor(variant)
	if err != nil {
		return nil, err
	}
	if variant == booking.VariantWalkIn && !sess.IsStaff() {
		return nil, fmt.Errorf("%w: walk-in bookings require staff", ErrForbidden)
	}
	if variant == booking.VariantPortal && !sess.IsClient() && !sess.IsStaff() {
		return nil, fmt.Errorf("%w: portal bookings require a signed-in client", ErrForbidden)
	}
	cat, err := m.cfg.Catalog.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("wizard: load catalog: %w", err)
	}

	id := uuid.NewString()
	w, err := booking.NewWizard(booking.WizardConfig{
		SessionID:     id,
		Flow:          flow,
		Catalog:       cat,
		MaxGuests:     m.cfg.MaxGuests,
		Availability:  m.cfg.Availability,
		LookupTimeout: m.cfg.LookupTimeout,
		Submitter:     m.cfg.Submitter,
		Recorder:      m,
		Location:      m.cfg.Location,
		Now:           m.now,
		Logger:        m.cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	if variant == booking.VariantPortal && sess.IsClient() {
		if err := w.SetContact(booking.Contact{Name: sess.Name, Email: sess.Email, Phone: sess.Phone}); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	m.sessions[id] = &entry{wizard: w, owner: sess, lastSeen: m.now()}
	m.mu.Unlock()

	m.cfg.Logger.Info("wizard started", "session_id", id, "variant", variant, "role", sess.Role)
	return w, nil
}

// Get returns the wizard if sess may use it and marks it active.
func (m *Manager) Get(id string, sess session.Session) (*booking.Wizard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !owns(e.owner, sess) {
		return nil, ErrForbidden
	}
	e.lastSeen = m.now()
	return e.wizard, nil
}

// End cancels the draft and forgets the wizard. A submission in flight
// still completes and is recorded.
func (m *Manager) End(id string, sess session.Session) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	if ok && !owns(e.owner, sess) {
		m.mu.Unlock()
		return ErrForbidden
	}
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	e.wizard.Cancel()
	m.cfg.Logger.Info("wizard ended", "session_id", id)
	return nil
}

// Len returns the number of live wizards.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep drops wizards idle for longer than the TTL. Wizards with a
// submission in flight are kept until it settles.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.cfg.IdleTTL)
	var expired []*entry

	m.mu.Lock()
	for id, e := range m.sessions {
		if e.lastSeen.After(cutoff) || e.wizard.Snapshot().Submitting {
			continue
		}
		delete(m.sessions, id)
		expired = append(expired, e)
	}
	m.mu.Unlock()

	for _, e := range expired {
		e.wizard.Cancel()
	}
	if len(expired) > 0 {
		m.cfg.Logger.Info("expired idle wizards", "count", len(expired))
	}
	if pruner, ok := m.cfg.Confirmations.(interface{ Prune() int }); ok {
		if n := pruner.Prune(); n > 0 {
			m.cfg.Logger.Info("pruned expired confirmations", "count", n)
		}
	}
	return len(expired)
}

// Run sweeps on interval until ctx is cancelled.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// RecordConfirmation implements booking.ConfirmationRecorder.
func (m *Manager) RecordConfirmation(ctx context.Context, sessionID string, conf *booking.Confirmation) error {
	if err := m.cfg.Confirmations.Save(ctx, sessionID, conf); err != nil {
		return fmt.Errorf("wizard: record confirmation: %w", err)
	}
	m.cfg.Logger.Info("booking confirmation recorded", "session_id", sessionID, "reference", conf.Reference)
	return nil
}

// Confirmation returns the confirmation recorded for a session, including
// sessions that already ended.
func (m *Manager) Confirmation(ctx context.Context, sessionID string) (*booking.Confirmation, error) {
	return m.cfg.Confirmations.Load(ctx, sessionID)
}

func owns(owner, caller session.Session) bool {
	if owner.UserID == "" {
		return true
	}
	return owner.UserID == caller.UserID && owner.Role == caller.Role
}
