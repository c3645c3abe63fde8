package service

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/kira-watch/internal/errs"
	"github.com/and161185/kira-watch/internal/model"
	"github.com/and161185/kira-watch/internal/notify"
	"github.com/and161185/kira-watch/internal/repository"
)

type fakeTimerRepo struct {
	created *model.SafeTimer
	get     *model.SafeTimer
	getErr  error

	transitions [][2]model.TimerStatus
	transErr    error

	extendBy  time.Duration
	extendErr error
}

var _ repository.TimerRepository = (*fakeTimerRepo)(nil)

func (f *fakeTimerRepo) CreateTimer(_ context.Context, t *model.SafeTimer) error {
	cp := *t
	f.created = &cp
	return nil
}
func (f *fakeTimerRepo) GetTimer(_ context.Context, userID, id uuid.UUID) (*model.SafeTimer, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.get == nil || f.get.UserID != userID || f.get.ID != id {
		return nil, errs.ErrNotFound
	}
	cp := *f.get
	return &cp, nil
}
func (f *fakeTimerRepo) FindActiveTimer(_ context.Context, userID uuid.UUID) (*model.SafeTimer, error) {
	if f.get != nil && f.get.UserID == userID && f.get.Status == model.TimerActive {
		return f.get, nil
	}
	return nil, errs.ErrNotFound
}
func (f *fakeTimerRepo) FindActiveTimersExpiredBefore(context.Context, time.Time) ([]model.SafeTimer, error) {
	return nil, nil
}
func (f *fakeTimerRepo) TransitionTimerStatus(_ context.Context, _ uuid.UUID, from, to model.TimerStatus) error {
	f.transitions = append(f.transitions, [2]model.TimerStatus{from, to})
	return f.transErr
}
func (f *fakeTimerRepo) ExtendTimer(_ context.Context, _, _ uuid.UUID, d time.Duration) (*model.SafeTimer, error) {
	f.extendBy = d
	if f.extendErr != nil {
		return nil, f.extendErr
	}
	return &model.SafeTimer{Status: model.TimerActive}, nil
}
func (f *fakeTimerRepo) ExpireTimer(context.Context, uuid.UUID, *model.SOSEvent) error { return nil }

type fakeSOSRepo struct {
	created   *model.SOSEvent
	createErr error
	get       *model.SOSEvent

	setFrom, setTo model.SOSStatus
	setReason      string
	setErr         error
}

var _ repository.SOSRepository = (*fakeSOSRepo)(nil)

func (f *fakeSOSRepo) CreateSOSEvent(_ context.Context, e *model.SOSEvent) error {
	if f.createErr != nil {
		return f.createErr
	}
	cp := *e
	f.created = &cp
	return nil
}
func (f *fakeSOSRepo) GetSOSEvent(_ context.Context, userID, id uuid.UUID) (*model.SOSEvent, error) {
	if f.get == nil || f.get.UserID != userID || f.get.ID != id {
		return nil, errs.ErrNotFound
	}
	cp := *f.get
	return &cp, nil
}
func (f *fakeSOSRepo) SetSOSStatus(_ context.Context, _, _ uuid.UUID, from, to model.SOSStatus, reason string) error {
	f.setFrom, f.setTo, f.setReason = from, to, reason
	return f.setErr
}

type fakeCheckInRepo struct {
	created   []model.CheckIn
	createErr error
}

var _ repository.CheckInRepository = (*fakeCheckInRepo)(nil)

func (f *fakeCheckInRepo) CreateCheckIn(_ context.Context, c *model.CheckIn) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, *c)
	return nil
}
func (f *fakeCheckInRepo) HasCheckedInToday(context.Context, uuid.UUID, time.Time) (bool, error) {
	return len(f.created) > 0, nil
}
func (f *fakeCheckInRepo) DeleteCheckInsOlderThan(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type fakeSettingsRepo struct {
	reminder string
	defaults model.UserSettings
	calls    int

	patch  model.SettingsPatch
	stored *model.UserSettings
}

var _ repository.SettingsRepository = (*fakeSettingsRepo)(nil)

func (f *fakeSettingsRepo) GetSettings(context.Context, uuid.UUID) (*model.UserSettings, error) {
	return nil, errs.ErrNotFound
}
func (f *fakeSettingsRepo) SetReminderTime(_ context.Context, _ uuid.UUID, rt string, d model.UserSettings) error {
	f.reminder, f.defaults = rt, d
	f.calls++
	return nil
}
func (f *fakeSettingsRepo) UpdateSettings(_ context.Context, userID uuid.UUID, p model.SettingsPatch, d model.UserSettings) (*model.UserSettings, error) {
	f.patch, f.defaults = p, d
	f.calls++
	if f.stored == nil {
		cp := d
		cp.UserID = userID
		f.stored = &cp
	}
	if p.ReminderTime != nil {
		f.stored.ReminderTime = *p.ReminderTime
	}
	if p.AlertDelayMinutes != nil {
		f.stored.AlertDelayMinutes = *p.AlertDelayMinutes
	}
	if p.NotificationsEnabled != nil {
		f.stored.NotificationsEnabled = *p.NotificationsEnabled
	}
	if p.Timezone != nil {
		f.stored.Timezone = *p.Timezone
	}
	cp := *f.stored
	return &cp, nil
}
func (f *fakeSettingsRepo) FindUsersNeedingCheckinEvaluation(context.Context) ([]model.CheckinCandidate, error) {
	return nil, nil
}
func (f *fakeSettingsRepo) CompareAndSetLastAlert(context.Context, uuid.UUID, *time.Time, time.Time) error {
	return nil
}
func (f *fakeSettingsRepo) FindInactiveUsers(context.Context, time.Time) ([]model.InactiveUser, error) {
	return nil, nil
}

type fakeUserRepo struct {
	tokens map[uuid.UUID]string
}

var _ repository.UserRepository = (*fakeUserRepo)(nil)

func (f *fakeUserRepo) GetUser(_ context.Context, id uuid.UUID) (*model.User, error) {
	tok, ok := f.tokens[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &model.User{ID: id, DeviceToken: tok}, nil
}
func (f *fakeUserRepo) EmergencyContacts(context.Context, uuid.UUID) ([]model.TrustedContact, error) {
	return nil, nil
}
func (f *fakeUserRepo) SetDeviceToken(_ context.Context, id uuid.UUID, token string) error {
	if _, ok := f.tokens[id]; !ok {
		return errs.ErrNotFound
	}
	f.tokens[id] = token
	return nil
}

type sent struct {
	userID   uuid.UUID
	kind     notify.Kind
	contacts bool
	payload  notify.Payload
}

type fakeNotifier struct {
	sent   []sent
	result notify.Result
}

var _ notify.Notifier = (*fakeNotifier)(nil)

func (f *fakeNotifier) NotifyUser(_ context.Context, userID uuid.UUID, kind notify.Kind, p notify.Payload) notify.Result {
	f.sent = append(f.sent, sent{userID: userID, kind: kind, payload: p})
	return f.result
}
func (f *fakeNotifier) NotifyEmergencyContacts(_ context.Context, userID uuid.UUID, kind notify.Kind, p notify.Payload) notify.Result {
	f.sent = append(f.sent, sent{userID: userID, kind: kind, contacts: true, payload: p})
	return f.result
}
