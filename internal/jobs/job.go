// Package jobs implements the recurring escalation jobs. Each job scans candidates
// once per run, evaluates them with the escalation policy and performs notifications
// and conditional writes. Only a failed candidate scan is reported as an error;
// per-candidate problems are logged, counted and skipped.
package jobs

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/and161185/kira-watch/internal/metrics"
)

// Job names, also used as metric labels and CLI arguments.
const (
	NameTimerExpiry     = "timer_expiry"
	NameCheckinReminder = "checkin_reminder"
	NameInactivity      = "inactivity"
	NameRetention       = "retention"
)

// Candidate outcomes counted in Report.Actions.
const (
	ActionExpired       = "expired"
	ActionReminded      = "reminded"
	ActionReminderDedup = "reminder_deduped"
	ActionUrgent        = "urgent_push"
	ActionEscalated     = "escalated"
	ActionSMSDedup      = "sms_deduped"
	ActionCheckedIn     = "checked_in"
	ActionNotDue        = "not_due"
	ActionDisabled      = "disabled"
	ActionNoContacts    = "no_contacts"
	ActionInvalid       = "invalid_settings"
	ActionConflict      = "state_conflict"
	ActionFailed        = "failed"
	ActionNotifyFailed  = "notify_failed"
	ActionDeleted       = "deleted"
)

// Job is one schedulable unit of work.
type Job interface {
	Name() string
	Run(ctx context.Context) (Report, error)
}

// Report summarises one run.
type Report struct {
	Job     string
	Scanned int
	Actions map[string]int
}

// Count returns the number of candidates that ended with action.
func (r Report) Count(action string) int { return r.Actions[action] }

func (r Report) String() string {
	keys := make([]string, 0, len(r.Actions))
	for k := range r.Actions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(r.Job)
	for _, k := range keys {
		b.WriteString(" ")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(strconv.Itoa(r.Actions[k]))
	}
	return b.String()
}

// tally collects per-candidate outcomes from concurrent workers.
type tally struct {
	mu sync.Mutex
	m  map[string]int
}

func newTally() *tally { return &tally{m: map[string]int{}} }

func (t *tally) add(action string) {
	t.mu.Lock()
	t.m[action]++
	t.mu.Unlock()
}

func (t *tally) report(job string, scanned int) Report {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int, len(t.m))
	for k, v := range t.m {
		out[k] = v
	}
	return Report{Job: job, Scanned: scanned, Actions: out}
}

// publish exports per-action counts of a run.
func publish(m *metrics.Metrics, r Report) {
	for action, n := range r.Actions {
		if action == ActionConflict {
			m.AddStateConflicts(r.Job, n)
		}
		m.AddJobItems(r.Job, action, n)
	}
}

// forEach runs fn for every item on at most workers goroutines. It stops handing
// out items once ctx is done and returns ctx.Err() in that case.
func forEach[T any](ctx context.Context, workers int, items []T, fn func(context.Context, T)) error {
	if workers <= 0 {
		workers = 1
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for _, it := range items {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			fn(ctx, it)
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}

// Clock returns the current time. Tests inject a fixed one.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}
