package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/and161185/kira-watch/internal/escalation"
	"github.com/and161185/kira-watch/internal/marker"
	"github.com/and161185/kira-watch/internal/metrics"
	"github.com/and161185/kira-watch/internal/model"
	"github.com/and161185/kira-watch/internal/notify"
)

func clock(h, m int) time.Time { return time.Date(2026, 3, 1, h, m, 0, 0, time.UTC) }

func calendarPolicy() Policy {
	return Policy{Gate: escalation.WatermarkGate{Mode: escalation.ModeCalendarDay}, Zones: escalation.NewZones(time.UTC), Workers: 4}
}

func newReminderJob(s *memStore, r *recorder, mk marker.Store, now *time.Time) *CheckinReminder {
	return NewCheckinReminder(s, s, s, r, mk, calendarPolicy(), fixedClock(now), zap.NewNop(), metrics.New(prometheus.NewRegistry()))
}

func evening(enabled bool) model.UserSettings {
	return model.UserSettings{ReminderTime: "19:00", AlertDelayMinutes: 120, NotificationsEnabled: enabled}
}

func TestCheckinReminder_EveningScenario(t *testing.T) {
	s, r := newMemStore(), &recorder{}
	user := s.addUser("ann", clock(0, 0).AddDate(0, -1, 0), evening(true), "+1", "+2")
	now := clock(20, 30)
	job := newReminderJob(s, r, marker.NewMemory(time.Minute), &now)
	ctx := context.Background()

	// 20:30: reminder push, no SMS.
	rep, err := job.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, rep.Count(ActionReminded))
	require.Equal(t, 1, r.count(user, notify.KindCheckinReminder))
	require.Zero(t, r.count(user, notify.KindMissedCheckin))
	require.Nil(t, s.watermark(user))

	// 20:45: reminder already sent today.
	now = clock(20, 45)
	rep, err = job.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, rep.Count(ActionReminderDedup))
	require.Equal(t, 1, r.count(user, notify.KindCheckinReminder))

	// 21:05: urgent push and contact SMS; watermark set to 21:05.
	now = clock(21, 5)
	rep, err = job.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, rep.Count(ActionUrgent))
	require.Equal(t, 1, rep.Count(ActionEscalated))
	require.Equal(t, 1, r.count(user, notify.KindUrgentLateCheckin))
	require.Equal(t, 1, r.count(user, notify.KindMissedCheckin))
	require.NotNil(t, s.watermark(user))
	require.True(t, s.watermark(user).Equal(clock(21, 5)))

	// 22:00: urgent push again, SMS not resent.
	now = clock(22, 0)
	rep, err = job.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, rep.Count(ActionSMSDedup))
	require.Equal(t, 2, r.count(user, notify.KindUrgentLateCheckin))
	require.Equal(t, 1, r.count(user, notify.KindMissedCheckin))
}

func TestCheckinReminder_AtMostOneSMSPerDay(t *testing.T) {
	s, r := newMemStore(), &recorder{}
	user := s.addUser("ann", clock(0, 0).AddDate(0, -1, 0),
		model.UserSettings{ReminderTime: "08:00", AlertDelayMinutes: 30, NotificationsEnabled: true}, "+1")
	now := clock(0, 0)
	job := newReminderJob(s, r, marker.NewMemory(time.Minute), &now)

	for now.Day() == 1 {
		_, err := job.Run(context.Background())
		require.NoError(t, err)
		now = now.Add(5 * time.Minute)
	}
	require.Equal(t, 1, r.count(user, notify.KindMissedCheckin))
	require.Equal(t, 1, r.count(user, notify.KindCheckinReminder))

	// The next day opens a new window.
	now = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	_, err := job.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, r.count(user, notify.KindMissedCheckin))
}

func TestCheckinReminder_ImmediateRerunSendsNoExtraSMS(t *testing.T) {
	s, r := newMemStore(), &recorder{}
	user := s.addUser("ann", clock(0, 0), evening(true), "+1")
	now := clock(21, 30)
	job := newReminderJob(s, r, marker.NewMemory(time.Minute), &now)

	_, err := job.Run(context.Background())
	require.NoError(t, err)
	_, err = job.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, r.count(user, notify.KindMissedCheckin))
}

func TestCheckinReminder_DisabledUsersGetNothing(t *testing.T) {
	s, r := newMemStore(), &recorder{}
	s.addUser("ann", clock(0, 0), evening(false), "+1")
	now := clock(0, 0)
	job := newReminderJob(s, r, marker.NewMemory(time.Minute), &now)

	for now.Day() == 1 {
		rep, err := job.Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, 1, rep.Count(ActionDisabled))
		now = now.Add(15 * time.Minute)
	}
	require.Zero(t, r.total())
}

func TestCheckinReminder_CheckedInTodayIsSafe(t *testing.T) {
	s, r := newMemStore(), &recorder{}
	user := s.addUser("ann", clock(0, 0), evening(true), "+1")
	require.NoError(t, s.CreateCheckIn(context.Background(), &model.CheckIn{
		ID: uuid.Must(uuid.NewV4()), UserID: user, CreatedAt: clock(9, 15),
	}))
	now := clock(22, 0)
	rep, err := newReminderJob(s, r, marker.NewMemory(time.Minute), &now).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, rep.Count(ActionCheckedIn))
	require.Zero(t, r.total())
}

func TestCheckinReminder_YesterdaysCheckInDoesNotCount(t *testing.T) {
	s, r := newMemStore(), &recorder{}
	user := s.addUser("ann", clock(0, 0), evening(true), "+1")
	require.NoError(t, s.CreateCheckIn(context.Background(), &model.CheckIn{
		ID: uuid.Must(uuid.NewV4()), UserID: user, CreatedAt: clock(0, 0).Add(-time.Minute),
	}))
	now := clock(21, 0)
	_, err := newReminderJob(s, r, marker.NewMemory(time.Minute), &now).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, r.count(user, notify.KindMissedCheckin))
}

func TestCheckinReminder_ZeroDelaySkipsReminderTier(t *testing.T) {
	s, r := newMemStore(), &recorder{}
	user := s.addUser("ann", clock(0, 0),
		model.UserSettings{ReminderTime: "19:00", AlertDelayMinutes: 0, NotificationsEnabled: true}, "+1")
	now := clock(19, 0)
	_, err := newReminderJob(s, r, marker.NewMemory(time.Minute), &now).Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, r.count(user, notify.KindCheckinReminder))
	require.Equal(t, 1, r.count(user, notify.KindUrgentLateCheckin))
	require.Equal(t, 1, r.count(user, notify.KindMissedCheckin))
}

func TestCheckinReminder_InvalidSettingsSkippedOthersProcessed(t *testing.T) {
	s, r := newMemStore(), &recorder{}
	s.addUser("bad", clock(0, 0), model.UserSettings{ReminderTime: "7pm", NotificationsEnabled: true}, "+1")
	s.addUser("badzone", clock(0, 0), model.UserSettings{ReminderTime: "19:00", Timezone: "Nowhere/City", NotificationsEnabled: true}, "+1")
	good := s.addUser("ann", clock(0, 0), evening(true), "+1")

	now := clock(21, 30)
	rep, err := newReminderJob(s, r, marker.NewMemory(time.Minute), &now).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, rep.Count(ActionInvalid))
	require.Equal(t, 1, r.count(good, notify.KindMissedCheckin))
}

func TestCheckinReminder_WatermarkRaceSkipsSMS(t *testing.T) {
	s, r := newMemStore(), &recorder{}
	user := s.addUser("ann", clock(0, 0), evening(true), "+1")

	// Another job advances the watermark between our read and our CAS.
	s.beforeCAS = func(id uuid.UUID) {
		s.mu.Lock()
		other := clock(21, 1)
		s.settings[id].LastMissedCheckInAlertAt = &other
		s.mu.Unlock()
	}
	now := clock(21, 5)
	rep, err := newReminderJob(s, r, marker.NewMemory(time.Minute), &now).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, rep.Count(ActionConflict))
	require.Zero(t, r.count(user, notify.KindMissedCheckin))
	require.True(t, s.watermark(user).Equal(clock(21, 1)))
}

func TestCheckinReminder_UserZoneDecidesDay(t *testing.T) {
	s, r := newMemStore(), &recorder{}
	st := evening(true)
	st.Timezone = "America/New_York"
	user := s.addUser("ann", clock(0, 0).AddDate(0, -1, 0), st, "+1")

	// 01:30 UTC on 2 March is 20:30 on 1 March in New York (EST, UTC-5).
	now := time.Date(2026, 3, 2, 1, 30, 0, 0, time.UTC)
	_, err := newReminderJob(s, r, marker.NewMemory(time.Minute), &now).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, r.count(user, notify.KindCheckinReminder))
	require.Zero(t, r.count(user, notify.KindMissedCheckin))
}

func TestCheckinReminder_NoContactsKeepsTheDaysAlert(t *testing.T) {
	s, r := newMemStore(), &recorder{}
	user := s.addUser("ann", clock(0, 0), evening(true))
	now := clock(21, 5)
	job := newReminderJob(s, r, marker.NewMemory(time.Minute), &now)

	rep, err := job.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, rep.Count(ActionNoContacts))
	require.Equal(t, 1, rep.Count(ActionUrgent))
	require.Nil(t, s.watermark(user))
	require.Zero(t, r.count(user, notify.KindMissedCheckin))

	// A contact added later the same evening is still alerted.
	s.addContact(user, "+1")
	now = clock(21, 30)
	rep, err = job.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, rep.Count(ActionEscalated))
	require.Equal(t, 1, r.count(user, notify.KindMissedCheckin))
	require.True(t, s.watermark(user).Equal(clock(21, 30)))
}

func TestCheckinReminder_RollingModeOneSMSPerDay(t *testing.T) {
	s, r := newMemStore(), &recorder{}
	user := s.addUser("ann", clock(0, 0), evening(true), "+1")
	gate, err := escalation.NewWatermarkGate(escalation.ModeRolling, escalation.MinCooldown)
	require.NoError(t, err)
	p := calendarPolicy()
	p.Gate = gate
	now := clock(21, 5)
	job := NewCheckinReminder(s, s, s, r, marker.NewMemory(time.Minute), p, fixedClock(&now), zap.NewNop(), nil)

	for _, at := range []time.Time{clock(21, 5), clock(22, 10), clock(23, 15)} {
		now = at
		_, err := job.Run(context.Background())
		require.NoError(t, err)
	}
	require.Equal(t, 1, r.count(user, notify.KindMissedCheckin))
	require.Equal(t, 3, r.count(user, notify.KindUrgentLateCheckin))
}

type brokenMarker struct{}

func (brokenMarker) MarkOnce(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("redis down")
}
func (brokenMarker) Close() error { return nil }

func TestCheckinReminder_MarkerOutageStillReminds(t *testing.T) {
	s, r := newMemStore(), &recorder{}
	user := s.addUser("ann", clock(0, 0), evening(true), "+1")
	now := clock(19, 30)
	rep, err := newReminderJob(s, r, brokenMarker{}, &now).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, rep.Count(ActionReminded))
	require.Equal(t, 1, r.count(user, notify.KindCheckinReminder))
}

func TestCheckinReminder_ConcurrentWorkersOneSMSPerUser(t *testing.T) {
	s, r := newMemStore(), &recorder{}
	var users []uuid.UUID
	for i := 0; i < 50; i++ {
		users = append(users, s.addUser("u", clock(0, 0), evening(true), "+1"))
	}
	now := clock(23, 0)
	job := newReminderJob(s, r, marker.NewMemory(time.Minute), &now)
	for i := 0; i < 3; i++ {
		_, err := job.Run(context.Background())
		require.NoError(t, err)
	}
	for _, u := range users {
		require.Equal(t, 1, r.count(u, notify.KindMissedCheckin))
		require.Equal(t, 3, r.count(u, notify.KindUrgentLateCheckin))
	}
}

func TestCheckinReminder_ScanFailureIsFatal(t *testing.T) {
	s, r := newMemStore(), &recorder{}
	s.scanErr = errors.New("connection refused")
	now := clock(20, 0)
	_, err := newReminderJob(s, r, marker.NewMemory(time.Minute), &now).Run(context.Background())
	require.Error(t, err)
}
