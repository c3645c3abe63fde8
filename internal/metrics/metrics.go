// Package metrics exposes Prometheus collectors for jobs and notification delivery.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "kira"

// Metrics holds every collector of the daemon.
type Metrics struct {
	jobRuns        *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	jobLastSuccess *prometheus.GaugeVec
	jobItems       *prometheus.CounterVec
	stateConflicts *prometheus.CounterVec
	notifications  *prometheus.CounterVec
	notifyDuration *prometheus.HistogramVec
}

// New registers collectors on reg. Pass prometheus.DefaultRegisterer in production and
// a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		jobRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "job_runs_total",
				Help:      "Scheduled job runs by outcome.",
			},
			[]string{"job", "outcome"},
		),
		jobDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Wall time of one job run.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"job"},
		),
		jobLastSuccess: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "job_last_success_timestamp_seconds",
				Help:      "Unix time of the last successful run.",
			},
			[]string{"job"},
		),
		jobItems: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "job_items_total",
				Help:      "Candidates handled by jobs, by action taken.",
			},
			[]string{"job", "action"},
		),
		stateConflicts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "state_conflicts_total",
				Help:      "Conditional writes that lost a race and were skipped.",
			},
			[]string{"job"},
		),
		notifications: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Delivery attempts by kind, channel and outcome.",
			},
			[]string{"kind", "channel", "outcome"},
		),
		notifyDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "notification_duration_seconds",
				Help:      "Latency of a single transport call.",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"channel"},
		),
	}
}

// RecordJobRun records one run of job.
func (m *Metrics) RecordJobRun(job string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	} else {
		m.jobLastSuccess.WithLabelValues(job).SetToCurrentTime()
	}
	m.jobRuns.WithLabelValues(job, outcome).Inc()
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

// AddJobItems counts n candidates of job that ended with action.
func (m *Metrics) AddJobItems(job, action string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.jobItems.WithLabelValues(job, action).Add(float64(n))
}

// AddStateConflicts counts n lost conditional writes of job.
func (m *Metrics) AddStateConflicts(job string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.stateConflicts.WithLabelValues(job).Add(float64(n))
}

// RecordNotification records a single transport call.
func (m *Metrics) RecordNotification(kind, channel string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "sent"
	if !ok {
		outcome = "failed"
	}
	m.notifications.WithLabelValues(kind, channel, outcome).Inc()
	m.notifyDuration.WithLabelValues(channel).Observe(d.Seconds())
}
