package inbox

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vivekvardhan7/homesaloon/libs/db"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record claims an event id. The unique constraint is the dedupe: a second
// delivery of the same event returns false.
func (r *Repository) Record(ctx context.Context, eventID string, eventType string) (bool, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO inbox_events (event_id, event_type)
		VALUES ($1, $2)
	`, eventID, eventType)
	if err == nil {
		return true, nil
	}

	if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23505" {
		return false, nil
	}

	return false, err
}

// Prune drops dedupe records older than the retention window. Kafka does not
// redeliver that far back, so the rows only cost storage.
func (r *Repository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM inbox_events
		WHERE created_at < now() - $1::interval
	`, olderThan.String())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
