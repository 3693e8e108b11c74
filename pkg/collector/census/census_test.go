package census

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/srodi/loadreaper/pkg/session"
	"github.com/srodi/loadreaper/pkg/types"
)

type fakeLister struct {
	rows  []types.ProcessInfo
	err   error
	calls int
}

func (f *fakeLister) List(context.Context) ([]types.ProcessInfo, error) {
	f.calls++
	return f.rows, f.err
}

func TestRankExcludesSelfAndSortsDescending(t *testing.T) {
	const self = 500
	lister := &fakeLister{rows: []types.ProcessInfo{
		{PID: 10, CPUPercent: 5, Comm: "a"},
		{PID: self, CPUPercent: 99, Comm: "loadreaper"},
		{PID: 11, CPUPercent: 40, Comm: "b"},
		{PID: 12, CPUPercent: 5, Comm: "c"},
		{PID: 13, CPUPercent: 70, Comm: "d"},
	}}
	sess := session.New(self, time.Now())

	ranked := New(lister, nil).Rank(context.Background(), sess)
	if len(ranked) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(ranked))
	}
	for _, row := range ranked {
		if row.PID == self {
			t.Fatalf("daemon pid leaked into census: %+v", ranked)
		}
	}
	for i := 1; i < len(ranked); i++ {
		if ranked[i-1].CPUPercent < ranked[i].CPUPercent {
			t.Fatalf("not sorted at %d: %+v", i, ranked)
		}
	}
	if ranked[2].PID != 10 || ranked[3].PID != 12 {
		t.Fatalf("ties should keep listing order, got %+v", ranked)
	}
	if sess.Failed() {
		t.Fatalf("successful census should not fail the session")
	}
}

func TestRankFailsSessionWhenListerUnavailable(t *testing.T) {
	lister := &fakeLister{err: ErrListerUnavailable}
	sess := session.New(1, time.Now())

	ranked := New(lister, nil).Rank(context.Background(), sess)
	if len(ranked) != 0 {
		t.Fatalf("expected empty census, got %+v", ranked)
	}
	if !sess.Failed() || !errors.Is(sess.Err(), ErrListerUnavailable) {
		t.Fatalf("expected session to fail with ErrListerUnavailable, got %v", sess.Err())
	}
}

func TestRankSkipsWhenSessionAlreadyFailed(t *testing.T) {
	lister := &fakeLister{rows: []types.ProcessInfo{{PID: 2, CPUPercent: 1}}}
	sess := session.New(1, time.Now())
	sess.Fail(errors.New("load unavailable"))

	if ranked := New(lister, nil).Rank(context.Background(), sess); ranked != nil {
		t.Fatalf("expected nil census, got %+v", ranked)
	}
	if lister.calls != 0 {
		t.Fatalf("lister should not be called on a failed session")
	}
}

func TestFilterDropsDuplicatePIDs(t *testing.T) {
	rows := []types.ProcessInfo{{PID: 3, Comm: "first"}, {PID: 3, Comm: "second"}, {PID: 4}}
	out := Filter(rows, 0)
	if len(out) != 2 || out[0].Comm != "first" {
		t.Fatalf("unexpected filter result %+v", out)
	}
}
