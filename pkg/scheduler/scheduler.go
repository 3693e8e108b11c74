// Package scheduler runs the periodic load check.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/srodi/loadreaper/pkg/collector/census"
	"github.com/srodi/loadreaper/pkg/collector/load"
	"github.com/srodi/loadreaper/pkg/metrics"
	"github.com/srodi/loadreaper/pkg/reaper"
	"github.com/srodi/loadreaper/pkg/report"
	"github.com/srodi/loadreaper/pkg/session"
	"github.com/srodi/loadreaper/pkg/types"
)

// Options controls cadence and the action threshold.
type Options struct {
	Period     time.Duration
	Threshold  float64
	LoadWindow int
	// Once stops the loop after the first cycle that ends OK.
	Once bool
	// MetricsFile, when set, receives a textfile export after every cycle.
	MetricsFile string
}

// Deps are the per-cycle steps.
type Deps struct {
	Sampler  load.Sampler
	Census   *census.Census
	Reaper   *reaper.Reaper
	Compiler *report.Compiler
	Metrics  *metrics.Recorder
}

// Result summarizes one cycle.
type Result struct {
	SessionID string
	Status    session.Status
	Err       error
	Load      types.LoadSample
	Acted     bool
	Outcomes  []types.TerminationOutcome
	Report    string
}

// Scheduler owns the loop. It is not safe for concurrent use; one cycle runs at a time.
type Scheduler struct {
	opts   Options
	deps   Deps
	pid    int
	logger *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a scheduler acting on behalf of the daemon with the given pid.
func New(opts Options, deps Deps, pid int, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		opts:   opts,
		deps:   deps,
		pid:    pid,
		logger: logger,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// Run executes a cycle immediately and then at start + k*Period until ctx
// is cancelled. Cancellation is only observed between cycles; a running
// cycle always completes.
func (s *Scheduler) Run(ctx context.Context) error {
	next := s.now()
	s.logger.Info("scheduler started",
		zap.Duration("period", s.opts.Period),
		zap.Float64("threshold", s.opts.Threshold),
		zap.Int("load_window", s.opts.LoadWindow),
		zap.Bool("once", s.opts.Once))

	for {
		if err := s.sleep(ctx, next.Sub(s.now())); err != nil {
			s.logger.Info("scheduler stopping", zap.Error(context.Cause(ctx)))
			return nil
		}

		res := s.RunCycle(context.WithoutCancel(ctx))
		if s.opts.Once && res.Status == session.OK {
			s.logger.Info("single-shot run complete, stopping")
			return nil
		}
		if ctx.Err() != nil {
			s.logger.Info("scheduler stopping", zap.Error(context.Cause(ctx)))
			return nil
		}

		var skipped int64
		next, skipped = NextWake(next, s.opts.Period, s.now())
		if skipped > 0 {
			s.logger.Warn("cycle overran its period, skipping missed wakeups", zap.Int64("skipped", skipped))
		}
	}
}

// NextWake adds period to the previously scheduled wake time. If that is
// already in the past, whole periods are added until it is not, and the
// number of skipped wakeups is returned.
func NextWake(prev time.Time, period time.Duration, now time.Time) (time.Time, int64) {
	next := prev.Add(period)
	if !next.Before(now) || period <= 0 {
		return next, 0
	}
	missed := int64(now.Sub(next)/period) + 1
	return next.Add(time.Duration(missed) * period), missed
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
