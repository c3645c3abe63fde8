package postgres

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/kira-watch/internal/model"
)

// SOSRepo implements SOSRepository using PostgreSQL.
type SOSRepo struct{ db *DB }

// NewSOSRepo constructs an SOS repository.
func NewSOSRepo(db *DB) *SOSRepo { return &SOSRepo{db: db} }

const insertSOS = `
INSERT INTO sos_events (id, user_id, lat, lng, type, status, reason)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

// CreateSOSEvent inserts an event row.
func (r *SOSRepo) CreateSOSEvent(ctx context.Context, e *model.SOSEvent) error {
	_, err := r.db.Pool.Exec(ctx, insertSOS, e.ID, e.UserID, e.Location.Lat, e.Location.Lng,
		e.Type, string(e.Status), e.Reason)
	return err
}

// GetSOSEvent selects an event by owner and ID.
func (r *SOSRepo) GetSOSEvent(ctx context.Context, userID, id uuid.UUID) (*model.SOSEvent, error) {
	const q = `
SELECT id, user_id, created_at, lat, lng, type, status, reason
FROM sos_events WHERE id=$1 AND user_id=$2`
	var (
		e      model.SOSEvent
		status string
	)
	err := r.db.Pool.QueryRow(ctx, q, id, userID).Scan(&e.ID, &e.UserID, &e.CreatedAt,
		&e.Location.Lat, &e.Location.Lng, &e.Type, &status, &e.Reason)
	if err != nil {
		return nil, notFound(err)
	}
	if e.Status, err = model.ParseSOSStatus(status); err != nil {
		return nil, err
	}
	return &e, nil
}

// SetSOSStatus updates status and reason while the event is still in from.
func (r *SOSRepo) SetSOSStatus(ctx context.Context, userID, id uuid.UUID, from, to model.SOSStatus, reason string) error {
	if err := from.CheckTransition(to); err != nil {
		return err
	}
	const q = `UPDATE sos_events SET status=$4, reason=$5 WHERE id=$1 AND user_id=$2 AND status=$3`
	return conflictIfNone(r.db.Pool.Exec(ctx, q, id, userID, string(from), string(to), reason))
}
