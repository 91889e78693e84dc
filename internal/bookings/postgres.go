package bookings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wizardoma/radiance-wellness/internal/availability"
	"github.com/wizardoma/radiance-wellness/internal/booking"
	"github.com/wizardoma/radiance-wellness/internal/events"
)

const uniqueViolation = "23505"

type pgxConn interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores bookings and their outbox events in one
// transaction.
type PostgresRepository struct {
	db pgxConn
}

// NewPostgresRepository creates a repository backed by a pgx pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("bookings: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

// newPostgresRepositoryWithConn allows injecting mocks for tests.
func newPostgresRepositoryWithConn(db pgxConn) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const bookingColumns = `id, reference, idempotency_key, variant, service_id, duration,
	booking_date, start_time, minutes, guests, addon_ids, notes,
	contact_name, contact_email, contact_phone, staff_id, items,
	service_subtotal, addons_total, grand_total, amount_charged, currency,
	payment_ref, status, created_at`

func (r *PostgresRepository) Create(ctx context.Context, rec *Record, event events.Envelope) (*Record, bool, error) {
	created, err := r.insert(ctx, rec, event)
	if err != nil {
		return nil, false, err
	}
	stored, err := r.GetByIdempotencyKey(ctx, rec.IdempotencyKey)
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

func (r *PostgresRepository) insert(ctx context.Context, rec *Record, event events.Envelope) (bool, error) {
	date, err := time.Parse(booking.DateLayout, rec.Date)
	if err != nil {
		return false, fmt.Errorf("bookings: parse date: %w", err)
	}
	items, err := json.Marshal(rec.Items)
	if err != nil {
		return false, fmt.Errorf("bookings: marshal items: %w", err)
	}
	id := rec.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	addOns := rec.AddOnIDs
	if addOns == nil {
		addOns = []string{}
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("bookings: begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	query := `
		INSERT INTO bookings (
			id, reference, idempotency_key, variant, service_id, duration,
			booking_date, start_time, minutes, guests, addon_ids, notes,
			contact_name, contact_email, contact_phone, staff_id, items,
			service_subtotal, addons_total, grand_total, amount_charged, currency,
			payment_ref, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING id
	`
	var inserted uuid.UUID
	err = tx.QueryRow(ctx, query,
		id, rec.Reference, rec.IdempotencyKey, string(rec.Variant), rec.ServiceID, rec.Duration,
		date, rec.Time, rec.Minutes, rec.Guests, addOns, rec.Notes,
		rec.Contact.Name, rec.Contact.Email, rec.Contact.Phone, rec.StaffID, items,
		rec.Totals.ServiceSubtotal, rec.Totals.AddOnsTotal, rec.Totals.GrandTotal, rec.AmountCharged, rec.Currency,
		rec.PaymentRef, rec.Status,
	).Scan(&inserted)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == "bookings_reference_key" {
			return false, ErrDuplicateReference
		}
		return false, fmt.Errorf("bookings: insert: %w", err)
	}

	if err := events.Append(ctx, tx, event); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("bookings: commit: %w", err)
	}
	committed = true
	return true, nil
}

func (r *PostgresRepository) GetByIdempotencyKey(ctx context.Context, key string) (*Record, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE idempotency_key = $1`
	rec, err := scanRecord(r.db.QueryRow(ctx, query, key))
	if err != nil {
		return nil, fmt.Errorf("bookings: load by idempotency key: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) GetByReference(ctx context.Context, reference string) (*Record, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE reference = $1`
	rec, err := scanRecord(r.db.QueryRow(ctx, query, reference))
	if err != nil {
		return nil, fmt.Errorf("bookings: load by reference: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) ListReservations(ctx context.Context, date string) ([]availability.Reservation, error) {
	day, err := time.Parse(booking.DateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("bookings: parse date: %w", err)
	}
	query := `
		SELECT start_time, minutes
		FROM bookings
		WHERE booking_date = $1 AND status = $2
		ORDER BY start_time
	`
	rows, err := r.db.Query(ctx, query, day, StatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("bookings: list reservations: %w", err)
	}
	defer rows.Close()

	var out []availability.Reservation
	for rows.Next() {
		var res availability.Reservation
		if err := rows.Scan(&res.Time, &res.Minutes); err != nil {
			return nil, fmt.Errorf("bookings: scan reservation: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// scanRecord maps ErrNoRows to ErrNotFound.
func scanRecord(row pgx.Row) (*Record, error) {
	var (
		rec     Record
		variant string
		date    time.Time
		items   []byte
	)
	err := row.Scan(
		&rec.ID, &rec.Reference, &rec.IdempotencyKey, &variant, &rec.ServiceID, &rec.Duration,
		&date, &rec.Time, &rec.Minutes, &rec.Guests, &rec.AddOnIDs, &rec.Notes,
		&rec.Contact.Name, &rec.Contact.Email, &rec.Contact.Phone, &rec.StaffID, &items,
		&rec.Totals.ServiceSubtotal, &rec.Totals.AddOnsTotal, &rec.Totals.GrandTotal, &rec.AmountCharged, &rec.Currency,
		&rec.PaymentRef, &rec.Status, &rec.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.Variant = booking.Variant(variant)
	rec.Date = date.Format(booking.DateLayout)
	if len(items) > 0 {
		if err := json.Unmarshal(items, &rec.Items); err != nil {
			return nil, fmt.Errorf("decode items: %w", err)
		}
	}
	return &rec, nil
}
