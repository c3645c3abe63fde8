package repository

import (
	"context"
	"time"

	"github.com/and161185/kira-watch/internal/model"
	"github.com/gofrs/uuid/v5"
)

// TimerRepository provides access to safety timers. Status changes are conditional
// on the current status and report errs.ErrStateConflict when nothing matched.
type TimerRepository interface {
	// CreateTimer inserts a new active timer.
	CreateTimer(ctx context.Context, t *model.SafeTimer) error

	// GetTimer loads a timer owned by userID.
	GetTimer(ctx context.Context, userID, id uuid.UUID) (*model.SafeTimer, error)

	// FindActiveTimer returns the most recently created active timer of a user.
	FindActiveTimer(ctx context.Context, userID uuid.UUID) (*model.SafeTimer, error)

	// FindActiveTimersExpiredBefore returns active timers with end_time < t.
	FindActiveTimersExpiredBefore(ctx context.Context, t time.Time) ([]model.SafeTimer, error)

	// TransitionTimerStatus moves a timer from -> to only if it is still in from.
	TransitionTimerStatus(ctx context.Context, id uuid.UUID, from, to model.TimerStatus) error

	// ExtendTimer pushes end_time of an active timer forward.
	ExtendTimer(ctx context.Context, userID, id uuid.UUID, additional time.Duration) (*model.SafeTimer, error)

	// ExpireTimer transitions an active timer to expired and records the SOS event
	// in the same transaction.
	ExpireTimer(ctx context.Context, id uuid.UUID, sos *model.SOSEvent) error
}
