//go:build unix

package reaper

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// UnixSignaler delivers signals with kill(2).
type UnixSignaler struct{}

// NewSignaler returns the kill(2) backed signaler.
func NewSignaler() Signaler {
	return UnixSignaler{}
}

// Kill sends sig to pid. Negative and zero pids address process groups and are refused.
func (UnixSignaler) Kill(pid int, sig syscall.Signal) error {
	if pid <= 0 {
		return unix.EINVAL
	}
	return unix.Kill(pid, sig)
}

// ParseSignal maps TERM, INT or KILL onto a signal number.
func ParseSignal(name string) (syscall.Signal, bool) {
	switch name {
	case "TERM", "SIGTERM":
		return unix.SIGTERM, true
	case "INT", "SIGINT":
		return unix.SIGINT, true
	case "KILL", "SIGKILL":
		return unix.SIGKILL, true
	default:
		return 0, false
	}
}
