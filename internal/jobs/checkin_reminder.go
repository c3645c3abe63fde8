package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/kira-watch/internal/errs"
	"github.com/and161185/kira-watch/internal/escalation"
	"github.com/and161185/kira-watch/internal/marker"
	"github.com/and161185/kira-watch/internal/metrics"
	"github.com/and161185/kira-watch/internal/model"
	"github.com/and161185/kira-watch/internal/notify"
	"github.com/and161185/kira-watch/internal/repository"
)

// reminderMarkerTTL outlives any local day so the marker is still present on the
// last tick of the day it was set.
const reminderMarkerTTL = 36 * time.Hour

// Policy groups the escalation settings shared by the check-in and inactivity jobs.
type Policy struct {
	Gate    escalation.WatermarkGate
	Zones   *escalation.Zones
	Workers int
}

// CheckinReminder sends the daily reminder push, the urgent push once the
// escalation window opens and the missed check-in SMS to emergency contacts.
type CheckinReminder struct {
	settings repository.SettingsRepository
	checkins repository.CheckInRepository
	users    repository.UserRepository
	notifier notify.Notifier
	markers  marker.Store
	policy   Policy
	clock    Clock
	log      *zap.Logger
	m        *metrics.Metrics
}

// NewCheckinReminder constructs the job.
func NewCheckinReminder(settings repository.SettingsRepository, checkins repository.CheckInRepository,
	users repository.UserRepository, n notify.Notifier, markers marker.Store, p Policy, clock Clock, log *zap.Logger, m *metrics.Metrics) *CheckinReminder {
	if p.Zones == nil {
		p.Zones = escalation.NewZones(time.UTC)
	}
	return &CheckinReminder{
		settings: settings, checkins: checkins, users: users, notifier: n, markers: markers,
		policy: p, clock: clock, log: log.Named(NameCheckinReminder), m: m,
	}
}

// Name implements Job.
func (j *CheckinReminder) Name() string { return NameCheckinReminder }

// Run implements Job.
func (j *CheckinReminder) Run(ctx context.Context) (Report, error) {
	now := j.clock.now()
	cands, err := j.settings.FindUsersNeedingCheckinEvaluation(ctx)
	if err != nil {
		return Report{Job: NameCheckinReminder}, fmt.Errorf("scan checkin candidates: %w", err)
	}

	t := newTally()
	err = forEach(ctx, j.policy.Workers, cands, func(ctx context.Context, c model.CheckinCandidate) {
		j.evaluate(ctx, c, now, t)
	})
	rep := t.report(NameCheckinReminder, len(cands))
	publish(j.m, rep)
	return rep, err
}

func (j *CheckinReminder) evaluate(ctx context.Context, c model.CheckinCandidate, now time.Time, t *tally) {
	log := j.log.With(zap.String("user_id", c.User.ID.String()))
	s := c.Settings
	if !s.NotificationsEnabled {
		t.add(ActionDisabled)
		return
	}
	loc, err := j.policy.Zones.Resolve(s.Timezone)
	if err != nil {
		log.Warn("skip user", zap.Error(err))
		t.add(ActionInvalid)
		return
	}
	sched, err := escalation.ScheduleFor(s)
	if err != nil {
		log.Warn("skip user", zap.Error(err))
		t.add(ActionInvalid)
		return
	}

	local := now.In(loc)
	d := sched.Decide(local)
	if d.Tier == escalation.TierNone {
		t.add(ActionNotDue)
		return
	}

	done, err := j.checkins.HasCheckedInToday(ctx, c.User.ID, escalation.DayStart(local))
	if err != nil {
		log.Warn("check-in lookup", zap.Error(err))
		t.add(ActionFailed)
		return
	}
	if done {
		t.add(ActionCheckedIn)
		return
	}

	if d.Tier == escalation.TierReminder {
		t.add(j.remind(ctx, log, c, local))
		return
	}
	j.escalate(ctx, log, c, now, loc, t)
}

// remind pushes the reminder at most once per user per local day. A marker store
// outage falls back to sending, since the push reaches only the user.
func (j *CheckinReminder) remind(ctx context.Context, log *zap.Logger, c model.CheckinCandidate, local time.Time) string {
	key := fmt.Sprintf("%s:%s:%s", notify.KindCheckinReminder, c.User.ID, local.Format(time.DateOnly))
	first, err := j.markers.MarkOnce(ctx, key, reminderMarkerTTL)
	if err != nil {
		log.Warn("reminder marker unavailable, sending anyway", zap.Error(err))
	} else if !first {
		return ActionReminderDedup
	}
	res := j.notifier.NotifyUser(ctx, c.User.ID, notify.KindCheckinReminder, notify.Payload{User: &c.User})
	if !res.Success {
		return ActionNotifyFailed
	}
	return ActionReminded
}

// escalate sends the urgent push every tick and the contact SMS once per watermark
// window. Contacts are loaded before the watermark moves, so a user without
// emergency contacts keeps the day's alert for a contact added later.
func (j *CheckinReminder) escalate(ctx context.Context, log *zap.Logger, c model.CheckinCandidate, now time.Time, loc *time.Location, t *tally) {
	if res := j.notifier.NotifyUser(ctx, c.User.ID, notify.KindUrgentLateCheckin, notify.Payload{User: &c.User}); res.Success {
		t.add(ActionUrgent)
	} else {
		t.add(ActionNotifyFailed)
	}
	if !j.policy.Gate.Due(c.Settings.LastMissedCheckInAlertAt, now, loc) {
		t.add(ActionSMSDedup)
		return
	}
	contacts, err := j.users.EmergencyContacts(ctx, c.User.ID)
	if err != nil {
		log.Warn("emergency contacts lookup", zap.Error(err))
		t.add(ActionFailed)
		return
	}
	if len(contacts) == 0 {
		log.Warn("skip missed check-in alert", zap.Error(errs.ErrNoEmergencyContacts))
		t.add(ActionNoContacts)
		return
	}
	t.add(alertContacts(ctx, log, j.settings, j.notifier, j.policy.Gate, c.User, c.Settings, contacts, now, loc))
}

// alertContacts is the watermark-gated missed check-in SMS shared with Inactivity.
// The watermark is advanced by compare-and-set before the SMS goes out.
func alertContacts(ctx context.Context, log *zap.Logger, settings repository.SettingsRepository, n notify.Notifier,
	gate escalation.WatermarkGate, u model.User, s model.UserSettings, contacts []model.TrustedContact,
	now time.Time, loc *time.Location) string {
	last := s.LastMissedCheckInAlertAt
	if !gate.Due(last, now, loc) {
		return ActionSMSDedup
	}
	switch err := settings.CompareAndSetLastAlert(ctx, u.ID, last, now); {
	case errors.Is(err, errs.ErrStateConflict):
		log.Debug("watermark moved by another writer, skipped")
		return ActionConflict
	case err != nil:
		log.Warn("advance watermark", zap.Error(err))
		return ActionFailed
	}

	res := n.NotifyEmergencyContacts(ctx, u.ID, notify.KindMissedCheckin, notify.Payload{User: &u, Contacts: contacts})
	if !res.Success {
		log.Warn("missed check-in alert not delivered", zap.String("reason", res.Reason))
		return ActionNotifyFailed
	}
	log.Info("emergency contacts alerted", zap.Int("recipients", len(res.Recipients)))
	return ActionEscalated
}

var _ Job = (*CheckinReminder)(nil)
