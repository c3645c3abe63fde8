// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"
	"time"

	"github.com/and161185/kira-watch/internal/model"
	"github.com/gofrs/uuid/v5"
)

// SettingsRepository covers per-user settings, the escalation watermark and the
// candidate scans driven by it.
type SettingsRepository interface {
	// GetSettings loads settings for a user.
	GetSettings(ctx context.Context, userID uuid.UUID) (*model.UserSettings, error)

	// SetReminderTime stores the reminder time, creating the row from defaults if absent.
	SetReminderTime(ctx context.Context, userID uuid.UUID, reminderTime string, defaults model.UserSettings) error

	// UpdateSettings applies patch, creating the row from defaults if absent, and
	// returns the stored settings.
	UpdateSettings(ctx context.Context, userID uuid.UUID, patch model.SettingsPatch, defaults model.UserSettings) (*model.UserSettings, error)

	// FindUsersNeedingCheckinEvaluation returns users with notifications enabled.
	FindUsersNeedingCheckinEvaluation(ctx context.Context) ([]model.CheckinCandidate, error)

	// CompareAndSetLastAlert sets the watermark to next only if it still equals expected
	// (nil meaning "never alerted").
	CompareAndSetLastAlert(ctx context.Context, userID uuid.UUID, expected *time.Time, next time.Time) error

	// FindInactiveUsers returns users with notifications enabled and no check-in after
	// since, with their emergency contacts.
	FindInactiveUsers(ctx context.Context, since time.Time) ([]model.InactiveUser, error)
}
