package reaper

import (
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"

	"github.com/srodi/loadreaper/pkg/session"
	"github.com/srodi/loadreaper/pkg/types"
)

type fakeSignaler struct {
	results map[int]error
	calls   []int
	sigs    []syscall.Signal
}

func (f *fakeSignaler) Kill(pid int, sig syscall.Signal) error {
	f.calls = append(f.calls, pid)
	f.sigs = append(f.sigs, sig)
	return f.results[pid]
}

func candidates(n int) []types.ProcessInfo {
	procs := make([]types.ProcessInfo, n)
	for i := range procs {
		procs[i] = types.ProcessInfo{PID: 100 + i, CPUPercent: float64(100 - i), Comm: fmt.Sprintf("proc%d", i)}
	}
	return procs
}

func TestReapStopsAtCap(t *testing.T) {
	sig := &fakeSignaler{}
	sess := session.New(1, time.Now())

	outcomes := New(sig, syscall.SIGTERM, 5, nil).Reap(sess, candidates(12))
	if len(outcomes) != 5 {
		t.Fatalf("expected 5 outcomes, got %d", len(outcomes))
	}
	for i, o := range outcomes {
		if o.Outcome != types.Terminated {
			t.Fatalf("outcome %d: expected Terminated, got %s", i, o.Outcome)
		}
		if o.Process.PID != 100+i {
			t.Fatalf("expected rank order, got pid %d at %d", o.Process.PID, i)
		}
	}
	if len(sig.calls) != 5 {
		t.Fatalf("expected 5 signals, 7 unattempted; got %d signals", len(sig.calls))
	}
	for _, s := range sig.sigs {
		if s != syscall.SIGTERM {
			t.Fatalf("unexpected signal %v", s)
		}
	}
}

func TestReapAttemptsAllWhenFewerThanCap(t *testing.T) {
	sig := &fakeSignaler{}
	outcomes := New(sig, syscall.SIGTERM, 5, nil).Reap(session.New(1, time.Now()), candidates(3))
	if len(outcomes) != 3 || len(sig.calls) != 3 {
		t.Fatalf("expected all 3 attempted, got %d outcomes / %d calls", len(outcomes), len(sig.calls))
	}
}

func TestReapDeniedAndMissingDoNotCountAgainstCap(t *testing.T) {
	sig := &fakeSignaler{results: map[int]error{
		100: syscall.EPERM,
		101: syscall.ESRCH,
		103: syscall.EPERM,
	}}
	sess := session.New(1, time.Now())

	outcomes := New(sig, syscall.SIGTERM, 2, nil).Reap(sess, candidates(6))
	want := []types.Outcome{types.PermissionDenied, types.NotFound, types.Terminated, types.PermissionDenied, types.Terminated}
	if len(outcomes) != len(want) {
		t.Fatalf("expected %d outcomes, got %d: %+v", len(want), len(outcomes), outcomes)
	}
	for i, o := range outcomes {
		if o.Outcome != want[i] {
			t.Fatalf("outcome %d: expected %s, got %s", i, want[i], o.Outcome)
		}
	}
	if sess.Failed() {
		t.Fatalf("routine outcomes must not fail the session")
	}
	counts := Counts(outcomes)
	if counts[types.Terminated] != 2 || counts[types.PermissionDenied] != 2 || counts[types.NotFound] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
}

func TestReapNoopOnFailedSession(t *testing.T) {
	sig := &fakeSignaler{}
	sess := session.New(1, time.Now())
	sess.Fail(errors.New("census unavailable"))

	outcomes := New(sig, syscall.SIGTERM, 5, nil).Reap(sess, candidates(4))
	if len(outcomes) != 0 {
		t.Fatalf("expected no outcomes, got %+v", outcomes)
	}
	if len(sig.calls) != 0 {
		t.Fatalf("expected zero signals, got %d", len(sig.calls))
	}
}

func TestTerminatedNames(t *testing.T) {
	outcomes := []types.TerminationOutcome{
		{Process: types.ProcessInfo{Comm: "stress"}, Outcome: types.Terminated},
		{Process: types.ProcessInfo{Comm: "sshd"}, Outcome: types.PermissionDenied},
		{Process: types.ProcessInfo{Comm: "java"}, Outcome: types.Terminated},
	}
	names := TerminatedNames(outcomes)
	if len(names) != 2 || names[0] != "stress" || names[1] != "java" {
		t.Fatalf("unexpected names %v", names)
	}
	if TerminatedNames(nil) != nil {
		t.Fatalf("expected nil names for no outcomes")
	}
}

func TestClassify(t *testing.T) {
	if classify(nil) != types.Terminated {
		t.Fatalf("nil error should be Terminated")
	}
	if classify(fmt.Errorf("kill: %w", syscall.ESRCH)) != types.NotFound {
		t.Fatalf("wrapped ESRCH should be NotFound")
	}
	if classify(syscall.EPERM) != types.PermissionDenied {
		t.Fatalf("EPERM should be PermissionDenied")
	}
}
