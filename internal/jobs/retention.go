package jobs

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/and161185/kira-watch/internal/metrics"
	"github.com/and161185/kira-watch/internal/repository"
)

// Retention deletes check-ins older than a horizon expressed in months.
type Retention struct {
	checkins repository.CheckInRepository
	months   int
	clock    Clock
	log      *zap.Logger
	m        *metrics.Metrics
}

// NewRetention constructs the job. months <= 0 defaults to 12.
func NewRetention(checkins repository.CheckInRepository, months int, clock Clock, log *zap.Logger, m *metrics.Metrics) *Retention {
	if months <= 0 {
		months = 12
	}
	return &Retention{checkins: checkins, months: months, clock: clock, log: log.Named(NameRetention), m: m}
}

// Name implements Job.
func (j *Retention) Name() string { return NameRetention }

// Run implements Job.
func (j *Retention) Run(ctx context.Context) (Report, error) {
	horizon := j.clock.now().AddDate(0, -j.months, 0)
	n, err := j.checkins.DeleteCheckInsOlderThan(ctx, horizon)
	if err != nil {
		return Report{Job: NameRetention}, fmt.Errorf("delete check-ins before %s: %w", horizon.Format("2006-01-02"), err)
	}
	j.log.Info("old check-ins removed", zap.Int64("count", n), zap.Time("horizon", horizon))
	rep := Report{Job: NameRetention, Actions: map[string]int{ActionDeleted: int(n)}}
	publish(j.m, rep)
	return rep, nil
}

var _ Job = (*Retention)(nil)
