//go:build !unix

package reaper

import (
	"errors"
	"syscall"
)

var errUnsupported = errors.New("signal delivery requires a unix system")

// UnsupportedSignaler is a placeholder on platforms without kill(2).
type UnsupportedSignaler struct{}

// NewSignaler returns a signaler that always fails.
func NewSignaler() Signaler {
	return UnsupportedSignaler{}
}

// Kill always fails on unsupported platforms.
func (UnsupportedSignaler) Kill(int, syscall.Signal) error {
	return errUnsupported
}

// ParseSignal accepts no names on unsupported platforms.
func ParseSignal(string) (syscall.Signal, bool) {
	return 0, false
}
