package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/kira-watch/internal/errs"
	"github.com/and161185/kira-watch/internal/metrics"
	"github.com/and161185/kira-watch/internal/model"
	"github.com/and161185/kira-watch/internal/notify"
	"github.com/and161185/kira-watch/internal/repository"
)

// TimerExpiry flips lapsed active timers to expired, raises an SOS event for each
// and alerts the user's emergency contacts.
type TimerExpiry struct {
	timers   repository.TimerRepository
	notifier notify.Notifier
	workers  int
	clock    Clock
	log      *zap.Logger
	m        *metrics.Metrics
}

// NewTimerExpiry constructs the monitor.
func NewTimerExpiry(timers repository.TimerRepository, n notify.Notifier, workers int, clock Clock, log *zap.Logger, m *metrics.Metrics) *TimerExpiry {
	return &TimerExpiry{timers: timers, notifier: n, workers: workers, clock: clock, log: log.Named(NameTimerExpiry), m: m}
}

// Name implements Job.
func (j *TimerExpiry) Name() string { return NameTimerExpiry }

// Run implements Job.
func (j *TimerExpiry) Run(ctx context.Context) (Report, error) {
	now := j.clock.now()
	timers, err := j.timers.FindActiveTimersExpiredBefore(ctx, now)
	if err != nil {
		return Report{Job: NameTimerExpiry}, fmt.Errorf("scan expired timers: %w", err)
	}

	t := newTally()
	err = forEach(ctx, j.workers, timers, func(ctx context.Context, tm model.SafeTimer) {
		t.add(j.expire(ctx, tm))
	})
	rep := t.report(NameTimerExpiry, len(timers))
	publish(j.m, rep)
	return rep, err
}

func (j *TimerExpiry) expire(ctx context.Context, tm model.SafeTimer) string {
	log := j.log.With(zap.String("timer_id", tm.ID.String()), zap.String("user_id", tm.UserID.String()))

	var loc model.Location
	if tm.Destination != nil {
		loc = *tm.Destination
	}
	id, err := uuid.NewV4()
	if err != nil {
		log.Error("generate sos id", zap.Error(err))
		return ActionFailed
	}
	sos := &model.SOSEvent{
		ID:        id,
		UserID:    tm.UserID,
		CreatedAt: j.clock.now(),
		Location:  loc,
		Type:      model.SOSTypeTimer,
		Status:    model.SOSActive,
		Reason:    model.ReasonTimerExpired,
	}

	switch err := j.timers.ExpireTimer(ctx, tm.ID, sos); {
	case errors.Is(err, errs.ErrStateConflict):
		log.Debug("timer no longer active, skipped")
		return ActionConflict
	case err != nil:
		log.Warn("expire timer", zap.Error(err))
		return ActionFailed
	}
	log.Info("timer expired, sos raised", zap.String("sos_id", sos.ID.String()))

	res := j.notifier.NotifyEmergencyContacts(ctx, tm.UserID, notify.KindTimerExpired, notify.Payload{Location: &loc})
	if !res.Success {
		log.Warn("timer expiry alert not delivered", zap.String("reason", res.Reason))
		return ActionNotifyFailed
	}
	return ActionExpired
}

var _ Job = (*TimerExpiry)(nil)
