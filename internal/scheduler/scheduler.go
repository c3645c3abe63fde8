// Package scheduler runs jobs on cron cadences. A job never overlaps itself, each
// tick runs under a deadline and panics are recovered and reported as failures.
package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/and161185/kira-watch/internal/jobs"
	"github.com/and161185/kira-watch/internal/metrics"
)

const defaultDeadline = time.Minute

// Entry binds a job to its cadence.
type Entry struct {
	Job      jobs.Job
	Spec     string        // standard five-field cron expression or descriptor
	Deadline time.Duration // per tick; defaults to one minute
}

// Status is the last observed outcome of a job.
type Status struct {
	Spec        string
	LastRun     time.Time
	LastSuccess time.Time
	LastError   string
	Healthy     bool
}

// HealthFunc is notified whenever a job's health flips.
type HealthFunc func(job string, healthy bool)

// Scheduler owns a cron instance and per-job health.
type Scheduler struct {
	c    *cron.Cron
	log  *zap.Logger
	m    *metrics.Metrics
	base context.Context
	stop context.CancelFunc

	mu       sync.RWMutex
	entries  map[string]Entry
	status   map[string]*Status
	onHealth HealthFunc
}

// New builds a scheduler evaluating cron specs in loc.
func New(loc *time.Location, log *zap.Logger, m *metrics.Metrics) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	log = log.Named("scheduler")
	cl := cronLogger{l: log.Sugar()}
	base, stop := context.WithCancel(context.Background())
	return &Scheduler{
		c: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		log:     log,
		m:       m,
		base:    base,
		stop:    stop,
		entries: map[string]Entry{},
		status:  map[string]*Status{},
	}
}

// OnHealthChange registers fn. It must be set before Start.
func (s *Scheduler) OnHealthChange(fn HealthFunc) { s.onHealth = fn }

// Add validates the spec and registers the job. Job names must be unique.
func (s *Scheduler) Add(e Entry) error {
	name := e.Job.Name()
	if _, err := cron.ParseStandard(e.Spec); err != nil {
		return fmt.Errorf("job %s: cron spec %q: %w", name, e.Spec, err)
	}
	if e.Deadline <= 0 {
		e.Deadline = defaultDeadline
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.entries[name]; dup {
		return fmt.Errorf("job %s registered twice", name)
	}
	if _, err := s.c.AddFunc(e.Spec, func() { s.tick(name) }); err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}
	s.entries[name] = e
	s.status[name] = &Status{Spec: e.Spec, Healthy: true}
	return nil
}

// Start begins firing entries.
func (s *Scheduler) Start() {
	s.log.Info("scheduler started", zap.Int("jobs", len(s.entries)))
	s.c.Start()
}

// Stop cancels in-flight ticks and waits for them to return or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.stop()
	done := s.c.Stop()
	select {
	case <-done.Done():
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) tick(name string) {
	s.mu.RLock()
	e, ok := s.entries[name]
	s.mu.RUnlock()
	if !ok {
		return
	}
	_, _ = s.run(s.base, e)
}

// RunNow executes a registered job once, outside its cadence, with the same
// deadline, logging, metrics and health tracking as a scheduled tick.
func (s *Scheduler) RunNow(ctx context.Context, name string) (jobs.Report, error) {
	s.mu.RLock()
	e, ok := s.entries[name]
	s.mu.RUnlock()
	if !ok {
		return jobs.Report{}, fmt.Errorf("unknown job %q", name)
	}
	return s.run(ctx, e)
}

func (s *Scheduler) run(ctx context.Context, e Entry) (rep jobs.Report, err error) {
	name := e.Job.Name()
	log := s.log.With(zap.String("job", name))

	ctx, cancel := context.WithTimeout(ctx, e.Deadline)
	defer cancel()

	start := time.Now()
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("job panicked", zap.Any("reason", r), zap.ByteString("stack", debug.Stack()))
				err = fmt.Errorf("job %s panicked: %v", name, r)
			}
		}()
		rep, err = e.Job.Run(ctx)
	}()
	d := time.Since(start)

	s.m.RecordJobRun(name, d, err)
	if err != nil {
		log.Error("job failed", zap.Duration("dur", d), zap.Error(err))
	} else {
		log.Info("job done", zap.Duration("dur", d), zap.Int("scanned", rep.Scanned), zap.Stringer("report", rep))
	}
	s.record(name, start, err)
	return rep, err
}

func (s *Scheduler) record(name string, at time.Time, err error) {
	s.mu.Lock()
	st := s.status[name]
	was := st.Healthy
	st.LastRun = at
	if err != nil {
		st.LastError = err.Error()
		st.Healthy = false
	} else {
		st.LastSuccess = at
		st.LastError = ""
		st.Healthy = true
	}
	now := st.Healthy
	fn := s.onHealth
	s.mu.Unlock()

	if fn != nil && was != now {
		fn(name, now)
	}
}

// Status returns a snapshot of one job's status.
func (s *Scheduler) Status(name string) (Status, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.status[name]
	if !ok {
		return Status{}, false
	}
	return *st, true
}

// Jobs lists registered job names in order.
func (s *Scheduler) Jobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.entries))
	for n := range s.entries {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Healthy reports whether every job's last run succeeded.
func (s *Scheduler) Healthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.status {
		if !st.Healthy {
			return false
		}
	}
	return true
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct{ l *zap.SugaredLogger }

func (c cronLogger) Info(msg string, kv ...interface{}) { c.l.Debugw(msg, kv...) }

func (c cronLogger) Error(err error, msg string, kv ...interface{}) {
	c.l.Errorw(msg, append(kv, "error", err)...)
}

var _ cron.Logger = cronLogger{}
