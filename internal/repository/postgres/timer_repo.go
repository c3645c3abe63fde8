package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/kira-watch/internal/errs"
	"github.com/and161185/kira-watch/internal/model"
)

// TimerRepo implements TimerRepository using PostgreSQL.
type TimerRepo struct{ db *DB }

// NewTimerRepo constructs a timer repository.
func NewTimerRepo(db *DB) *TimerRepo { return &TimerRepo{db: db} }

const timerColumns = `id, user_id, start_time, end_time, duration_minutes, destination_lat, destination_lng, message, status, created_at`

func scanTimer(row pgx.Row) (model.SafeTimer, error) {
	var (
		t        model.SafeTimer
		lat, lng *float64
		status   string
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.StartTime, &t.EndTime, &t.DurationMinutes,
		&lat, &lng, &t.Message, &status, &t.CreatedAt); err != nil {
		return model.SafeTimer{}, err
	}
	if lat != nil && lng != nil {
		t.Destination = &model.Location{Lat: *lat, Lng: *lng}
	}
	st, err := model.ParseTimerStatus(status)
	if err != nil {
		return model.SafeTimer{}, fmt.Errorf("timer %s: %w", t.ID, err)
	}
	t.Status = st
	return t, nil
}

// CreateTimer inserts a new timer row.
func (r *TimerRepo) CreateTimer(ctx context.Context, t *model.SafeTimer) error {
	const q = `
INSERT INTO safe_timers (id, user_id, start_time, end_time, duration_minutes, destination_lat, destination_lng, message, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	lat, lng := nullableLocation(t.Destination)
	_, err := r.db.Pool.Exec(ctx, q, t.ID, t.UserID, t.StartTime, t.EndTime, t.DurationMinutes,
		lat, lng, t.Message, string(t.Status))
	return err
}

// GetTimer selects a timer by owner and ID.
func (r *TimerRepo) GetTimer(ctx context.Context, userID, id uuid.UUID) (*model.SafeTimer, error) {
	q := `SELECT ` + timerColumns + ` FROM safe_timers WHERE id=$1 AND user_id=$2`
	t, err := scanTimer(r.db.Pool.QueryRow(ctx, q, id, userID))
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// FindActiveTimer returns the newest active timer of a user.
func (r *TimerRepo) FindActiveTimer(ctx context.Context, userID uuid.UUID) (*model.SafeTimer, error) {
	q := `SELECT ` + timerColumns + ` FROM safe_timers WHERE user_id=$1 AND status='active' ORDER BY created_at DESC LIMIT 1`
	t, err := scanTimer(r.db.Pool.QueryRow(ctx, q, userID))
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// FindActiveTimersExpiredBefore lists active timers whose end_time is strictly before t.
func (r *TimerRepo) FindActiveTimersExpiredBefore(ctx context.Context, t time.Time) ([]model.SafeTimer, error) {
	q := `SELECT ` + timerColumns + ` FROM safe_timers WHERE status='active' AND end_time < $1 ORDER BY end_time ASC`
	rows, err := r.db.Pool.Query(ctx, q, t)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SafeTimer
	for rows.Next() {
		tm, err := scanTimer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tm)
	}
	return out, rows.Err()
}

// TransitionTimerStatus updates status only while the row is still in from.
func (r *TimerRepo) TransitionTimerStatus(ctx context.Context, id uuid.UUID, from, to model.TimerStatus) error {
	if err := from.CheckTransition(to); err != nil {
		return err
	}
	const q = `UPDATE safe_timers SET status=$3 WHERE id=$1 AND status=$2`
	return conflictIfNone(r.db.Pool.Exec(ctx, q, id, string(from), string(to)))
}

// ExtendTimer moves end_time of an active timer forward and returns the new row.
func (r *TimerRepo) ExtendTimer(ctx context.Context, userID, id uuid.UUID, additional time.Duration) (*model.SafeTimer, error) {
	q := `
UPDATE safe_timers
SET end_time = end_time + $3::interval, duration_minutes = duration_minutes + $4
WHERE id=$1 AND user_id=$2 AND status='active'
RETURNING ` + timerColumns
	t, err := scanTimer(r.db.Pool.QueryRow(ctx, q, id, userID, additional, int(additional/time.Minute)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrStateConflict
		}
		return nil, err
	}
	return &t, nil
}

// ExpireTimer flips an active timer to expired and inserts the SOS event atomically.
// A timer that is no longer active yields errs.ErrStateConflict and no event.
func (r *TimerRepo) ExpireTimer(ctx context.Context, id uuid.UUID, sos *model.SOSEvent) (err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	const upd = `UPDATE safe_timers SET status='expired' WHERE id=$1 AND status='active'`
	if err = conflictIfNone(tx.Exec(ctx, upd, id)); err != nil {
		return err
	}
	_, err = tx.Exec(ctx, insertSOS, sos.ID, sos.UserID, sos.Location.Lat, sos.Location.Lng,
		sos.Type, string(sos.Status), sos.Reason)
	return err
}
