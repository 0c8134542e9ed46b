package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vivekvardhan7/homesaloon/libs/db"
	"github.com/vivekvardhan7/homesaloon/services/booking-service/internal/model"
)

// ErrVersionConflict means the row moved between read and write. Callers
// reload and retry or surface a conflict to the client.
var ErrVersionConflict = errors.New("booking version conflict")

type BookingRepository struct {
	pool *db.Pool
}

func NewBookingRepository(pool *db.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *BookingRepository) Create(ctx context.Context, tx pgx.Tx, b *model.Booking) (string, error) {
	items, err := json.Marshal(b.Items)
	if err != nil {
		return "", fmt.Errorf("encode items: %w", err)
	}
	address, err := json.Marshal(b.Address)
	if err != nil {
		return "", fmt.Errorf("encode address: %w", err)
	}

	var id string
	err = tx.QueryRow(ctx, `
		INSERT INTO bookings
			(customer_id, items, scheduled_date, scheduled_time, salon_visit, address,
			 notes, payment_method, total, status, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1)
		RETURNING id, created_at, updated_at
	`, b.CustomerID, items, b.ScheduledDate, b.ScheduledTime, b.SalonVisit, address,
		b.Notes, b.PaymentMethod, b.TotalCents, b.Status).Scan(&id, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return "", err
	}
	b.ID = id
	b.Version = 1
	return id, nil
}

const bookingColumns = `
	id, customer_id, COALESCE(vendor_id, ''), beautician, items,
	scheduled_date, scheduled_time, salon_visit, address, notes,
	payment_method, COALESCE(payment_ref, ''), total, status,
	COALESCE(rejection_reason, ''), version, created_at, updated_at`

func scanBooking(row pgx.Row) (model.Booking, error) {
	var b model.Booking
	var beautician, items, address []byte
	err := row.Scan(
		&b.ID,
		&b.CustomerID,
		&b.VendorID,
		&beautician,
		&items,
		&b.ScheduledDate,
		&b.ScheduledTime,
		&b.SalonVisit,
		&address,
		&b.Notes,
		&b.PaymentMethod,
		&b.PaymentRef,
		&b.TotalCents,
		&b.Status,
		&b.RejectionReason,
		&b.Version,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return model.Booking{}, err
	}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &b.Items); err != nil {
			return model.Booking{}, fmt.Errorf("decode items: %w", err)
		}
	}
	if len(address) > 0 {
		if err := json.Unmarshal(address, &b.Address); err != nil {
			return model.Booking{}, fmt.Errorf("decode address: %w", err)
		}
	}
	if len(beautician) > 0 {
		var bt model.Beautician
		if err := json.Unmarshal(beautician, &bt); err != nil {
			return model.Booking{}, fmt.Errorf("decode beautician: %w", err)
		}
		b.Beautician = &bt
	}
	return b, nil
}

func (r *BookingRepository) Get(ctx context.Context, id string) (model.Booking, error) {
	return scanBooking(r.pool.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
}

func (r *BookingRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Booking, error) {
	return scanBooking(tx.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id))
}

// ListFilter narrows List. Zero values mean no constraint.
type ListFilter struct {
	CustomerID string
	VendorID   string
	VendorType string
	Status     model.Status
	Limit      int
	Offset     int
}

func (r *BookingRepository) List(ctx context.Context, f ListFilter) ([]model.Booking, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	var conds []string
	var args []any
	add := func(cond string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.CustomerID != "" {
		add("customer_id = $%d", f.CustomerID)
	}
	if f.VendorID != "" {
		add("vendor_id = $%d", f.VendorID)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.VendorType != "" {
		add("vendor_id IN (SELECT id FROM vendors WHERE type = $%d)", f.VendorType)
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, f.Limit, f.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return bookings, nil
}

// Update writes the mutated booking back guarded by the version the caller
// read. The version column is bumped atomically; any concurrent write in
// between surfaces as ErrVersionConflict.
func (r *BookingRepository) Update(ctx context.Context, tx pgx.Tx, b *model.Booking, expectedVersion int64) error {
	var beautician []byte
	if b.Beautician != nil {
		var err error
		beautician, err = json.Marshal(b.Beautician)
		if err != nil {
			return fmt.Errorf("encode beautician: %w", err)
		}
	}

	err := tx.QueryRow(ctx, `
		UPDATE bookings
		SET vendor_id = NULLIF($3, ''),
			beautician = $4,
			payment_ref = NULLIF($5, ''),
			status = $6,
			rejection_reason = NULLIF($7, ''),
			version = version + 1,
			updated_at = now()
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at
	`, b.ID, expectedVersion, b.VendorID, beautician, b.PaymentRef,
		b.Status, b.RejectionReason).Scan(&b.Version, &b.UpdatedAt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	// Either the row is gone or somebody else bumped the version first.
	var exists bool
	if qErr := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`, b.ID).Scan(&exists); qErr != nil {
		return qErr
	}
	if exists {
		return ErrVersionConflict
	}
	return pgx.ErrNoRows
}

func IsConflict(err error) bool {
	if errors.Is(err, ErrVersionConflict) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "23P01" || pgErr.Code == "40001")
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
