package jobs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/kira-watch/internal/errs"
	"github.com/and161185/kira-watch/internal/model"
	"github.com/and161185/kira-watch/internal/notify"
	"github.com/and161185/kira-watch/internal/repository"
)

// memStore is an in-memory repository with the same conditional-write semantics
// as the PostgreSQL implementation.
type memStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]model.User
	settings map[uuid.UUID]*model.UserSettings
	contacts map[uuid.UUID][]model.TrustedContact
	timers   map[uuid.UUID]*model.SafeTimer
	sos      []model.SOSEvent
	checkins []model.CheckIn

	scanErr      error
	beforeExpire func(id uuid.UUID) // runs without the lock, simulating a concurrent writer
	beforeCAS    func(userID uuid.UUID)
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[uuid.UUID]model.User{},
		settings: map[uuid.UUID]*model.UserSettings{},
		contacts: map[uuid.UUID][]model.TrustedContact{},
		timers:   map[uuid.UUID]*model.SafeTimer{},
	}
}

var (
	_ repository.TimerRepository    = (*memStore)(nil)
	_ repository.SettingsRepository = (*memStore)(nil)
	_ repository.CheckInRepository  = (*memStore)(nil)
	_ repository.UserRepository     = (*memStore)(nil)
)

func (s *memStore) addUser(name string, created time.Time, st model.UserSettings, contacts ...string) uuid.UUID {
	id := uuid.Must(uuid.NewV4())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = model.User{ID: id, Name: name, DeviceToken: "tok-" + name, CreatedAt: created}
	st.UserID = id
	s.settings[id] = &st
	for _, phone := range contacts {
		s.addContactLocked(id, phone)
	}
	return id
}

func (s *memStore) addContact(userID uuid.UUID, phone string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addContactLocked(userID, phone)
}

func (s *memStore) addContactLocked(userID uuid.UUID, phone string) {
	s.contacts[userID] = append(s.contacts[userID], model.TrustedContact{
		ID: uuid.Must(uuid.NewV4()), UserID: userID, Name: "c" + phone, Phone: phone, IsEmergencyContact: true,
	})
}

func (s *memStore) watermark(id uuid.UUID) *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings[id].LastMissedCheckInAlertAt
}

func (s *memStore) sosFor(userID uuid.UUID) []model.SOSEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.SOSEvent
	for _, e := range s.sos {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

// TimerRepository

func (s *memStore) CreateTimer(_ context.Context, t *model.SafeTimer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.timers[t.ID] = &cp
	return nil
}

func (s *memStore) GetTimer(_ context.Context, userID, id uuid.UUID) (*model.SafeTimer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[id]
	if !ok || t.UserID != userID {
		return nil, errs.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *memStore) FindActiveTimer(_ context.Context, userID uuid.UUID) (*model.SafeTimer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.timers {
		if t.UserID == userID && t.Status == model.TimerActive {
			cp := *t
			return &cp, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (s *memStore) FindActiveTimersExpiredBefore(_ context.Context, at time.Time) ([]model.SafeTimer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scanErr != nil {
		return nil, s.scanErr
	}
	var out []model.SafeTimer
	for _, t := range s.timers {
		if t.Status == model.TimerActive && t.EndTime.Before(at) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndTime.Before(out[j].EndTime) })
	return out, nil
}

func (s *memStore) TransitionTimerStatus(_ context.Context, id uuid.UUID, from, to model.TimerStatus) error {
	if err := from.CheckTransition(to); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[id]
	if !ok || t.Status != from {
		return errs.ErrStateConflict
	}
	t.Status = to
	return nil
}

func (s *memStore) ExtendTimer(_ context.Context, userID, id uuid.UUID, d time.Duration) (*model.SafeTimer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[id]
	if !ok || t.UserID != userID || t.Status != model.TimerActive {
		return nil, errs.ErrStateConflict
	}
	t.EndTime = t.EndTime.Add(d)
	t.DurationMinutes += int(d / time.Minute)
	cp := *t
	return &cp, nil
}

func (s *memStore) ExpireTimer(ctx context.Context, id uuid.UUID, sos *model.SOSEvent) error {
	if s.beforeExpire != nil {
		s.beforeExpire(id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[id]
	if !ok || t.Status != model.TimerActive {
		return errs.ErrStateConflict
	}
	t.Status = model.TimerExpired
	s.sos = append(s.sos, *sos)
	return nil
}

// SettingsRepository

func (s *memStore) GetSettings(_ context.Context, userID uuid.UUID) (*model.UserSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.settings[userID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := *st
	return &cp, nil
}

func (s *memStore) SetReminderTime(_ context.Context, userID uuid.UUID, rt string, d model.UserSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.settings[userID]
	if !ok {
		d.UserID = userID
		st = &d
		s.settings[userID] = st
	}
	st.ReminderTime = rt
	return nil
}

func (s *memStore) UpdateSettings(_ context.Context, userID uuid.UUID, p model.SettingsPatch, d model.UserSettings) (*model.UserSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.settings[userID]
	if !ok {
		d.UserID = userID
		st = &d
		s.settings[userID] = st
	}
	if p.ReminderTime != nil {
		st.ReminderTime = *p.ReminderTime
	}
	if p.AlertDelayMinutes != nil {
		st.AlertDelayMinutes = *p.AlertDelayMinutes
	}
	if p.NotificationsEnabled != nil {
		st.NotificationsEnabled = *p.NotificationsEnabled
	}
	if p.Timezone != nil {
		st.Timezone = *p.Timezone
	}
	cp := *st
	return &cp, nil
}

func (s *memStore) FindUsersNeedingCheckinEvaluation(_ context.Context) ([]model.CheckinCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scanErr != nil {
		return nil, s.scanErr
	}
	var out []model.CheckinCandidate
	for id, u := range s.users {
		st, ok := s.settings[id]
		if !ok {
			continue
		}
		out = append(out, model.CheckinCandidate{User: u, Settings: *st})
	}
	return out, nil
}

func (s *memStore) CompareAndSetLastAlert(_ context.Context, userID uuid.UUID, expected *time.Time, next time.Time) error {
	if s.beforeCAS != nil {
		s.beforeCAS(userID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.settings[userID]
	if !ok {
		return errs.ErrStateConflict
	}
	cur := st.LastMissedCheckInAlertAt
	same := (cur == nil && expected == nil) || (cur != nil && expected != nil && cur.Equal(*expected))
	if !same {
		return errs.ErrStateConflict
	}
	n := next
	st.LastMissedCheckInAlertAt = &n
	return nil
}

func (s *memStore) FindInactiveUsers(_ context.Context, since time.Time) ([]model.InactiveUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scanErr != nil {
		return nil, s.scanErr
	}
	var out []model.InactiveUser
	for id, u := range s.users {
		st, ok := s.settings[id]
		if !ok || !u.CreatedAt.Before(since) {
			continue
		}
		active := false
		for _, c := range s.checkins {
			if c.UserID == id && c.CreatedAt.After(since) {
				active = true
				break
			}
		}
		if active {
			continue
		}
		out = append(out, model.InactiveUser{User: u, Settings: *st, Contacts: s.contacts[id]})
	}
	return out, nil
}

// CheckInRepository

func (s *memStore) CreateCheckIn(_ context.Context, c *model.CheckIn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkins = append(s.checkins, *c)
	return nil
}

func (s *memStore) HasCheckedInToday(_ context.Context, userID uuid.UUID, dayStart time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.checkins {
		if c.UserID == userID && !c.CreatedAt.Before(dayStart) {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) DeleteCheckInsOlderThan(_ context.Context, horizon time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scanErr != nil {
		return 0, s.scanErr
	}
	kept := s.checkins[:0]
	var n int64
	for _, c := range s.checkins {
		if c.CreatedAt.Before(horizon) {
			n++
			continue
		}
		kept = append(kept, c)
	}
	s.checkins = kept
	return n, nil
}

// UserRepository

func (s *memStore) GetUser(_ context.Context, id uuid.UUID) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &u, nil
}

func (s *memStore) EmergencyContacts(_ context.Context, userID uuid.UUID) ([]model.TrustedContact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.TrustedContact(nil), s.contacts[userID]...), nil
}

func (s *memStore) SetDeviceToken(_ context.Context, id uuid.UUID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return errs.ErrNotFound
	}
	u.DeviceToken = token
	s.users[id] = u
	return nil
}

// recorder is a notify.Notifier that records calls.
type recorder struct {
	mu    sync.Mutex
	calls []call
	fail  bool
}

type call struct {
	UserID   uuid.UUID
	Kind     notify.Kind
	Contacts bool
	Location *model.Location
}

func (r *recorder) NotifyUser(_ context.Context, userID uuid.UUID, kind notify.Kind, p notify.Payload) notify.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{UserID: userID, Kind: kind, Location: p.Location})
	return notify.Result{Success: !r.fail}
}

func (r *recorder) NotifyEmergencyContacts(_ context.Context, userID uuid.UUID, kind notify.Kind, p notify.Payload) notify.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{UserID: userID, Kind: kind, Contacts: true, Location: p.Location})
	return notify.Result{Success: !r.fail}
}

func (r *recorder) count(userID uuid.UUID, kind notify.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.UserID == userID && c.Kind == kind {
			n++
		}
	}
	return n
}

func (r *recorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

var _ notify.Notifier = (*recorder)(nil)

// fixedClock returns a Clock reading *t, so tests can move time between runs.
func fixedClock(t *time.Time) Clock { return func() time.Time { return *t } }
