package postgres

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/kira-watch/internal/model"
)

// CheckInRepo implements CheckInRepository using PostgreSQL.
type CheckInRepo struct{ db *DB }

// NewCheckInRepo constructs a check-in repository.
func NewCheckInRepo(db *DB) *CheckInRepo { return &CheckInRepo{db: db} }

// CreateCheckIn appends a check-in row.
func (r *CheckInRepo) CreateCheckIn(ctx context.Context, c *model.CheckIn) error {
	const q = `
INSERT INTO check_ins (id, user_id, created_at, lat, lng, status, mood)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.Pool.Exec(ctx, q, c.ID, c.UserID, c.CreatedAt, c.Location.Lat, c.Location.Lng, c.Status, c.Mood)
	return err
}

// HasCheckedInToday reports whether a check-in exists at or after dayStart.
func (r *CheckInRepo) HasCheckedInToday(ctx context.Context, userID uuid.UUID, dayStart time.Time) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM check_ins WHERE user_id=$1 AND created_at >= $2)`
	var ok bool
	if err := r.db.Pool.QueryRow(ctx, q, userID, dayStart).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// DeleteCheckInsOlderThan deletes rows with created_at < horizon and returns the count.
func (r *CheckInRepo) DeleteCheckInsOlderThan(ctx context.Context, horizon time.Time) (int64, error) {
	const q = `DELETE FROM check_ins WHERE created_at < $1`
	tag, err := r.db.Pool.Exec(ctx, q, horizon)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
