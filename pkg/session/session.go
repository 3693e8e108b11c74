// Package session tracks the status of a single scheduler cycle.
//
// A Session starts OK and can be tripped to FAILED by any step that hits an
// unrecoverable condition. FAILED is sticky for the rest of the cycle; the
// scheduler creates a fresh Session for every tick.
package session

import (
	"time"

	"github.com/google/uuid"
)

// Status is the per-cycle state.
type Status int

const (
	OK Status = iota
	Failed
)

func (s Status) String() string {
	if s == Failed {
		return "FAILED"
	}
	return "OK"
}

// Session is the per-cycle context passed into every step.
type Session struct {
	ID      string
	PID     int
	Started time.Time

	status Status
	cause  error
}

// New opens a session for the daemon identified by pid.
func New(pid int, now time.Time) *Session {
	return &Session{
		ID:      uuid.NewString(),
		PID:     pid,
		Started: now,
	}
}

// Fail trips the session. The first cause is kept.
func (s *Session) Fail(err error) {
	if s.status == Failed {
		return
	}
	s.status = Failed
	s.cause = err
}

// Failed reports whether downstream steps must be skipped.
func (s *Session) Failed() bool {
	return s.status == Failed
}

// Status returns the current state.
func (s *Session) Status() Status {
	return s.status
}

// Err returns the error that tripped the session, if any.
func (s *Session) Err() error {
	return s.cause
}
