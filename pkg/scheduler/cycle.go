package scheduler

import (
	"context"

	"go.uber.org/zap"

	"github.com/srodi/loadreaper/pkg/session"
)

// RunCycle performs one sample → decide → act → report pass with a fresh
// session. Failures are recorded on the session and logged, never returned.
func (s *Scheduler) RunCycle(ctx context.Context) Result {
	sess := session.New(s.pid, s.now())
	log := s.logger.With(zap.String("cycle", sess.ID))
	log.Info("cycle opened")

	res := Result{SessionID: sess.ID}

	sample, err := s.deps.Sampler.Sample(ctx)
	if err != nil {
		log.Error("reading load average failed", zap.Error(err))
		sess.Fail(err)
	} else {
		res.Load = sample
		if s.deps.Metrics != nil {
			s.deps.Metrics.ObserveLoad(sample)
		}
		log.Info("load average",
			zap.Float64("1m", sample.One),
			zap.Float64("5m", sample.Five),
			zap.Float64("15m", sample.Fifteen))
	}

	if !sess.Failed() {
		current := sample.Window(s.opts.LoadWindow)
		if current <= s.opts.Threshold {
			log.Info("load within threshold, no further action needed",
				zap.Float64("load", current),
				zap.Float64("threshold", s.opts.Threshold))
		} else {
			res.Acted = true
			log.Warn("load above threshold, shedding processes",
				zap.Float64("load", current),
				zap.Float64("threshold", s.opts.Threshold))

			ranked := s.deps.Census.Rank(ctx, sess)
			res.Outcomes = s.deps.Reaper.Reap(sess, ranked)
			res.Report = s.deps.Compiler.Compile(ctx, sess, sample, res.Outcomes)
		}
	}

	res.Status = sess.Status()
	res.Err = sess.Err()
	s.finish(log, res)
	return res
}

func (s *Scheduler) finish(log *zap.Logger, res Result) {
	if res.Status == session.Failed {
		log.Warn("cycle closed", zap.Stringer("status", res.Status), zap.Error(res.Err))
	} else {
		log.Info("cycle closed", zap.Stringer("status", res.Status),
			zap.Int("outcomes", len(res.Outcomes)),
			zap.String("report", res.Report))
	}

	if s.deps.Metrics == nil {
		return
	}
	s.deps.Metrics.ObserveCycle(res.Status, res.Outcomes, s.now())
	if s.opts.MetricsFile == "" {
		return
	}
	if err := s.deps.Metrics.WriteTextfile(s.opts.MetricsFile); err != nil {
		log.Warn("writing metrics textfile failed", zap.String("path", s.opts.MetricsFile), zap.Error(err))
	}
}
