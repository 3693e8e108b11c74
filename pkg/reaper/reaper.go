// Package reaper terminates the highest ranked processes of a census.
package reaper

import (
	"errors"
	"syscall"

	"go.uber.org/zap"

	"github.com/srodi/loadreaper/pkg/session"
	"github.com/srodi/loadreaper/pkg/types"
)

// Signaler delivers a signal to a pid.
type Signaler interface {
	Kill(pid int, sig syscall.Signal) error
}

// Reaper walks a ranked census and signals candidates until cap of them
// have been terminated.
type Reaper struct {
	signaler Signaler
	signal   syscall.Signal
	cap      int
	logger   *zap.Logger
}

// New returns a Reaper that sends sig to at most limit processes per cycle.
func New(signaler Signaler, sig syscall.Signal, limit int, logger *zap.Logger) *Reaper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limit < 0 {
		limit = 0
	}
	return &Reaper{signaler: signaler, signal: sig, cap: limit, logger: logger}
}

// Reap signals candidates in rank order. Only Terminated outcomes count
// toward the cap; PermissionDenied and NotFound are recorded and the walk
// moves on. A failed session yields no outcomes and no signals.
func (r *Reaper) Reap(sess *session.Session, candidates []types.ProcessInfo) []types.TerminationOutcome {
	if sess.Failed() {
		return nil
	}

	outcomes := make([]types.TerminationOutcome, 0, min(r.cap, len(candidates)))
	terminated := 0
	for _, proc := range candidates {
		if terminated >= r.cap {
			break
		}
		outcome := classify(r.signaler.Kill(proc.PID, r.signal))
		outcomes = append(outcomes, types.TerminationOutcome{Process: proc, Outcome: outcome})

		fields := []zap.Field{
			zap.Int("pid", proc.PID),
			zap.String("comm", proc.Comm),
			zap.Float64("cpu_percent", proc.CPUPercent),
			zap.String("outcome", outcome.String()),
		}
		switch outcome {
		case types.Terminated:
			terminated++
			r.logger.Info("killed process", fields...)
		case types.PermissionDenied:
			r.logger.Warn("no permission to kill process", fields...)
		case types.NotFound:
			r.logger.Info("process already gone", fields...)
		}
	}
	return outcomes
}

// Counts tallies outcomes by label.
func Counts(outcomes []types.TerminationOutcome) map[types.Outcome]int {
	counts := make(map[types.Outcome]int, 3)
	for _, o := range outcomes {
		counts[o.Outcome]++
	}
	return counts
}

// TerminatedNames returns the command names of processes that were terminated, in order.
func TerminatedNames(outcomes []types.TerminationOutcome) []string {
	var names []string
	for _, o := range outcomes {
		if o.Outcome == types.Terminated {
			names = append(names, o.Process.Comm)
		}
	}
	return names
}

// classify maps a kill(2) result onto an outcome. Errors other than ESRCH
// mean the target could not be signalled and are reported as PermissionDenied.
func classify(err error) types.Outcome {
	switch {
	case err == nil:
		return types.Terminated
	case errors.Is(err, syscall.ESRCH):
		return types.NotFound
	default:
		return types.PermissionDenied
	}
}
