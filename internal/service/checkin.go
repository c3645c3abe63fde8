package service

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/kira-watch/internal/escalation"
	"github.com/and161185/kira-watch/internal/model"
	"github.com/and161185/kira-watch/internal/notify"
	"github.com/and161185/kira-watch/internal/repository"
)

// CheckInService records proof-of-safety and the daily schedule.
type CheckInService interface {
	// Record appends a check-in and confirms it to the user.
	Record(ctx context.Context, userID uuid.UUID, loc model.Location, status, mood string) (*model.CheckIn, error)
	// ScheduleReminder sets the daily reminder time ("HH:MM").
	ScheduleReminder(ctx context.Context, userID uuid.UUID, reminderTime string) error
}

type CheckInServiceImpl struct {
	checkins repository.CheckInRepository
	settings repository.SettingsRepository
	notifier notify.Notifier
	defaults model.UserSettings
	log      *zap.Logger
	now      func() time.Time
}

// NewCheckInService constructs CheckInService. defaults seed settings of users that
// have none yet.
func NewCheckInService(checkins repository.CheckInRepository, settings repository.SettingsRepository,
	n notify.Notifier, defaults model.UserSettings, log *zap.Logger) *CheckInServiceImpl {
	return &CheckInServiceImpl{
		checkins: checkins, settings: settings, notifier: n,
		defaults: defaults, log: log.Named("checkin"), now: time.Now,
	}
}

// Record stores the check-in and sends the safe_day push. The push is best effort.
func (s *CheckInServiceImpl) Record(ctx context.Context, userID uuid.UUID, loc model.Location, status, mood string) (*model.CheckIn, error) {
	if userID == uuid.Nil {
		return nil, errors.New("validation: empty userID")
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	c := &model.CheckIn{
		ID:        id,
		UserID:    userID,
		CreatedAt: s.now().UTC(),
		Location:  loc,
		Status:    status,
		Mood:      mood,
	}
	if err := s.checkins.CreateCheckIn(ctx, c); err != nil {
		return nil, err
	}
	if res := s.notifier.NotifyUser(ctx, userID, notify.KindSafeDay, notify.Payload{}); !res.Success {
		s.log.Debug("safe day push skipped", zap.String("user_id", userID.String()), zap.String("reason", res.Reason))
	}
	return c, nil
}

// ScheduleReminder validates and normalises the time before storing it.
func (s *CheckInServiceImpl) ScheduleReminder(ctx context.Context, userID uuid.UUID, reminderTime string) error {
	if userID == uuid.Nil {
		return errors.New("validation: empty userID")
	}
	c, err := escalation.ParseClock(reminderTime)
	if err != nil {
		return err
	}
	return s.settings.SetReminderTime(ctx, userID, c.String(), s.defaults)
}

var _ CheckInService = (*CheckInServiceImpl)(nil)
