// Package scheduler runs a job on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/gorhill/cronexpr"
	"go.uber.org/zap"

	"github.com/hyperjump/noticeboard/pkg/utils"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context)

// Scheduler runs a Job whenever its cron expression fires. Runs never overlap: the
// next fire time is computed after the previous run returns.
type Scheduler struct {
	name   string
	expr   *cronexpr.Expression
	job    Job
	now    func() time.Time
	after  func(time.Duration) <-chan time.Time
	logger *zap.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) { s.logger = utils.OrNop(l) }
}

// New parses spec (standard cron fields or @hourly, @daily, @weekly, @monthly,
// @yearly) and returns a scheduler for job.
func New(name, spec string, job Job, opts ...Option) (*Scheduler, error) {
	expr, err := cronexpr.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	s := &Scheduler{
		name:   name,
		expr:   expr,
		job:    job,
		now:    time.Now,
		after:  time.After,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Next returns the first fire time strictly after t, or the zero time if there is none.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.expr.Next(t)
}

// Run blocks, running the job at every fire time until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	for ctx.Err() == nil {
		next := s.Next(s.now())
		if next.IsZero() {
			s.logger.Warn("schedule has no future runs", zap.String("job", s.name))
			return
		}
		s.logger.Debug("next scheduled run", zap.String("job", s.name), zap.Time("at", next))
		select {
		case <-ctx.Done():
			return
		case <-s.after(time.Until(next)):
		}
		start := time.Now()
		s.logger.Info("scheduled job starting", zap.String("job", s.name))
		s.job(ctx)
		s.logger.Info("scheduled job finished", zap.String("job", s.name), zap.Duration("took", time.Since(start)))
	}
}
