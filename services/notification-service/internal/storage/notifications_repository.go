package storage

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/vivekvardhan7/homesaloon/libs/db"
)

type Notification struct {
	BookingID string
	EventType string
	Channel   string
	Recipient string
	Payload   map[string]any
	Status    string
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO notifications (booking_id, event_type, channel, recipient, payload, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, n.BookingID, n.EventType, n.Channel, n.Recipient, payload, n.Status)
	return err
}

// Contact is the customer address book entry resolved from the shared users
// table.
type Contact struct {
	Email string
	Phone string
}

func (r *Repository) LookupContact(ctx context.Context, userID string) (Contact, bool, error) {
	var c Contact
	err := r.pool.QueryRow(ctx, `
		SELECT email, COALESCE(phone, '')
		FROM users
		WHERE id = $1
	`, userID).Scan(&c.Email, &c.Phone)
	if err == pgx.ErrNoRows {
		return Contact{}, false, nil
	}
	if err != nil {
		return Contact{}, false, err
	}
	return c, true, nil
}
