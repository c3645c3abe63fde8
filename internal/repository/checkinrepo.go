package repository

import (
	"context"
	"time"

	"github.com/and161185/kira-watch/internal/model"
	"github.com/gofrs/uuid/v5"
)

// CheckInRepository stores the append-only check-in log.
type CheckInRepository interface {
	// CreateCheckIn appends a check-in.
	CreateCheckIn(ctx context.Context, c *model.CheckIn) error

	// HasCheckedInToday reports whether userID has a check-in at or after dayStart.
	HasCheckedInToday(ctx context.Context, userID uuid.UUID, dayStart time.Time) (bool, error)

	// DeleteCheckInsOlderThan removes check-ins with created_at strictly before horizon.
	DeleteCheckInsOlderThan(ctx context.Context, horizon time.Time) (int64, error)
}
