package jobs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/kira-watch/internal/escalation"
	"github.com/and161185/kira-watch/internal/metrics"
	"github.com/and161185/kira-watch/internal/model"
	"github.com/and161185/kira-watch/internal/notify"
	"github.com/and161185/kira-watch/internal/repository"
)

// Inactivity alerts emergency contacts of users with no check-in inside a rolling
// window. It shares the watermark gate with CheckinReminder.
type Inactivity struct {
	settings repository.SettingsRepository
	notifier notify.Notifier
	window   time.Duration
	policy   Policy
	clock    Clock
	log      *zap.Logger
	m        *metrics.Metrics
}

// NewInactivity constructs the job. window is the silence that qualifies a user.
func NewInactivity(settings repository.SettingsRepository, n notify.Notifier, window time.Duration,
	p Policy, clock Clock, log *zap.Logger, m *metrics.Metrics) *Inactivity {
	if p.Zones == nil {
		p.Zones = escalation.NewZones(time.UTC)
	}
	return &Inactivity{settings: settings, notifier: n, window: window, policy: p, clock: clock, log: log.Named(NameInactivity), m: m}
}

// Name implements Job.
func (j *Inactivity) Name() string { return NameInactivity }

// Run implements Job.
func (j *Inactivity) Run(ctx context.Context) (Report, error) {
	now := j.clock.now()
	users, err := j.settings.FindInactiveUsers(ctx, now.Add(-j.window))
	if err != nil {
		return Report{Job: NameInactivity}, fmt.Errorf("scan inactive users: %w", err)
	}

	t := newTally()
	err = forEach(ctx, j.policy.Workers, users, func(ctx context.Context, u model.InactiveUser) {
		t.add(j.evaluate(ctx, u, now))
	})
	rep := t.report(NameInactivity, len(users))
	publish(j.m, rep)
	return rep, err
}

func (j *Inactivity) evaluate(ctx context.Context, u model.InactiveUser, now time.Time) string {
	log := j.log.With(zap.String("user_id", u.User.ID.String()))
	if !u.Settings.NotificationsEnabled {
		return ActionDisabled
	}
	if len(u.Contacts) == 0 {
		log.Debug("no emergency contacts")
		return ActionNoContacts
	}
	loc, err := j.policy.Zones.Resolve(u.Settings.Timezone)
	if err != nil {
		log.Warn("skip user", zap.Error(err))
		return ActionInvalid
	}
	return alertContacts(ctx, log, j.settings, j.notifier, j.policy.Gate, u.User, u.Settings, u.Contacts, now, loc)
}

var _ Job = (*Inactivity)(nil)
