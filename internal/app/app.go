// Package app wires configuration, storage, transports, jobs and services into one
// object shared by the daemon and the operator CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/kira-watch/internal/config"
	"github.com/and161185/kira-watch/internal/escalation"
	"github.com/and161185/kira-watch/internal/jobs"
	"github.com/and161185/kira-watch/internal/marker"
	"github.com/and161185/kira-watch/internal/metrics"
	"github.com/and161185/kira-watch/internal/notify"
	"github.com/and161185/kira-watch/internal/repository"
	"github.com/and161185/kira-watch/internal/repository/postgres"
	"github.com/and161185/kira-watch/internal/scheduler"
	"github.com/and161185/kira-watch/internal/service"
)

// Repos is every storage interface the engine uses. *postgres.Store implements it.
type Repos interface {
	repository.TimerRepository
	repository.SOSRepository
	repository.CheckInRepository
	repository.SettingsRepository
	repository.UserRepository
}

var _ Repos = (*postgres.Store)(nil)

// Deps are the external resources App is built on.
type Deps struct {
	Repos   Repos
	Markers marker.Store
	Push    notify.Pusher
	SMS     notify.SMSSender
}

// Connect opens the database, the marker store and the notification transport
// selected by cfg. The returned func releases them.
func Connect(ctx context.Context, cfg *config.Config, log *zap.Logger) (Deps, func(), error) {
	db, err := postgres.New(ctx, cfg.DSN)
	if err != nil {
		return Deps{}, nil, fmt.Errorf("connect postgres: %w", err)
	}
	d := Deps{Repos: postgres.NewStore(db)}

	if cfg.RedisURL != "" {
		r, err := marker.DialRedis(ctx, cfg.RedisURL, cfg.MarkerPrefix)
		if err != nil {
			db.Close()
			return Deps{}, nil, fmt.Errorf("connect redis: %w", err)
		}
		d.Markers = r
	} else {
		log.Info("redis not configured, using in-process markers")
		d.Markers = marker.NewMemory(10 * time.Minute)
	}

	switch cfg.Transport {
	case config.TransportSNS:
		s, err := notify.NewSNS(ctx, cfg.SNSRegion, cfg.SNSSenderID)
		if err != nil {
			_ = d.Markers.Close()
			db.Close()
			return Deps{}, nil, fmt.Errorf("sns: %w", err)
		}
		d.Push, d.SMS = s, s
	default:
		t := notify.NewLogTransport(log)
		d.Push, d.SMS = t, t
	}

	closeAll := func() {
		if err := d.Markers.Close(); err != nil {
			log.Warn("close markers", zap.Error(err))
		}
		db.Close()
	}
	return d, closeAll, nil
}

// App is the assembled engine.
type App struct {
	Scheduler *scheduler.Scheduler
	Notifier  *notify.Dispatcher
	Timers    service.TimerService
	SOS       service.SOSService
	CheckIns  service.CheckInService
	Users     service.UserService
}

// Build assembles jobs, the scheduler and the services. m may be nil.
func Build(cfg *config.Config, d Deps, log *zap.Logger, m *metrics.Metrics) (*App, error) {
	if d.Repos == nil || d.Markers == nil || d.Push == nil || d.SMS == nil {
		return nil, errors.New("app: incomplete dependencies")
	}

	n := notify.NewDispatcher(d.Repos, d.Push, d.SMS, notify.Options{
		CallTimeout: cfg.CallTimeout,
		Fanout:      cfg.Fanout,
	}, log, m)

	policy := jobs.Policy{
		Gate:    cfg.Gate(),
		Zones:   escalation.NewZones(cfg.Location()),
		Workers: cfg.Workers,
	}

	sched := scheduler.New(cfg.Location(), log, m)
	for _, e := range []scheduler.Entry{
		{
			Job:      jobs.NewTimerExpiry(d.Repos, n, cfg.Workers, nil, log, m),
			Spec:     cfg.TimerExpiry.Spec,
			Deadline: cfg.TimerExpiry.Deadline,
		},
		{
			Job:      jobs.NewCheckinReminder(d.Repos, d.Repos, d.Repos, n, d.Markers, policy, nil, log, m),
			Spec:     cfg.CheckinReminder.Spec,
			Deadline: cfg.CheckinReminder.Deadline,
		},
		{
			Job:      jobs.NewInactivity(d.Repos, n, cfg.InactivityWindow, policy, nil, log, m),
			Spec:     cfg.Inactivity.Spec,
			Deadline: cfg.Inactivity.Deadline,
		},
		{
			Job:      jobs.NewRetention(d.Repos, cfg.RetentionMonths, nil, log, m),
			Spec:     cfg.Retention.Spec,
			Deadline: cfg.Retention.Deadline,
		},
	} {
		if err := sched.Add(e); err != nil {
			return nil, err
		}
	}

	return &App{
		Scheduler: sched,
		Notifier:  n,
		Timers:    service.NewTimerService(d.Repos, 0),
		SOS:       service.NewSOSService(d.Repos, n, log),
		CheckIns:  service.NewCheckInService(d.Repos, d.Repos, n, cfg.Defaults(), log),
		Users:     service.NewUserService(d.Repos, d.Repos, cfg.Defaults()),
	}, nil
}
