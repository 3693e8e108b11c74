//go:build !unix

package reaper

import (
	"errors"
	"syscall"
	"testing"
)

func TestStubSignalerBehavior(t *testing.T) {
	if err := NewSignaler().Kill(42, syscall.Signal(15)); !errors.Is(err, errUnsupported) {
		t.Fatalf("expected errUnsupported, got %v", err)
	}
	if _, ok := ParseSignal("TERM"); ok {
		t.Fatalf("stub should not parse signals")
	}
}
