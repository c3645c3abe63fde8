package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/kira-watch/internal/errs"
	"github.com/and161185/kira-watch/internal/escalation"
	"github.com/and161185/kira-watch/internal/model"
	"github.com/and161185/kira-watch/internal/repository"
)

// maxAlertDelayMinutes keeps the alert inside the reminder's day.
const maxAlertDelayMinutes = 24 * 60

// UserService manages the per-user inputs the escalation jobs read.
type UserService interface {
	// UpdateSettings applies a partial settings update and returns the stored settings.
	UpdateSettings(ctx context.Context, userID uuid.UUID, patch model.SettingsPatch) (*model.UserSettings, error)
	// RegisterDevice stores the push endpoint of the user.
	RegisterDevice(ctx context.Context, userID uuid.UUID, token string) error
}

type UserServiceImpl struct {
	users    repository.UserRepository
	settings repository.SettingsRepository
	defaults model.UserSettings
}

// NewUserService constructs UserService. defaults seed settings of users that have none yet.
func NewUserService(users repository.UserRepository, settings repository.SettingsRepository, defaults model.UserSettings) *UserServiceImpl {
	return &UserServiceImpl{users: users, settings: settings, defaults: defaults}
}

// UpdateSettings validates every field present in patch. The reminder time is
// stored normalised to HH:MM.
func (s *UserServiceImpl) UpdateSettings(ctx context.Context, userID uuid.UUID, patch model.SettingsPatch) (*model.UserSettings, error) {
	if userID == uuid.Nil {
		return nil, errors.New("validation: empty userID")
	}
	if patch.Empty() {
		return nil, errors.New("validation: nothing to update")
	}
	if patch.ReminderTime != nil {
		c, err := escalation.ParseClock(*patch.ReminderTime)
		if err != nil {
			return nil, err
		}
		norm := c.String()
		patch.ReminderTime = &norm
	}
	if d := patch.AlertDelayMinutes; d != nil && (*d < 0 || *d > maxAlertDelayMinutes) {
		return nil, fmt.Errorf("validation: alert delay must be within 0..%d minutes", maxAlertDelayMinutes)
	}
	if tz := patch.Timezone; tz != nil && *tz != "" {
		if _, err := time.LoadLocation(*tz); err != nil {
			return nil, fmt.Errorf("zone %q: %w", *tz, errs.ErrInvalidSettings)
		}
	}
	return s.settings.UpdateSettings(ctx, userID, patch, s.defaults)
}

// RegisterDevice replaces the device token used for push notifications.
func (s *UserServiceImpl) RegisterDevice(ctx context.Context, userID uuid.UUID, token string) error {
	if userID == uuid.Nil {
		return errors.New("validation: empty userID")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("validation: device token is required")
	}
	return s.users.SetDeviceToken(ctx, userID, token)
}

var _ UserService = (*UserServiceImpl)(nil)
