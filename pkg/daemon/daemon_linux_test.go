//go:build linux

package daemon

import (
	"errors"
	"log/syslog"
	"os"
	"testing"
)

type stageRecorder struct {
	started []string
	exits   []int
	setsids int
	dirs    []string
}

func stubStages(t *testing.T, rec *stageRecorder) {
	t.Helper()
	origExit, origSetsid, origStart, origPrepare, origDial := exit, setsid, startProcess, prepare, dialSyslog
	t.Cleanup(func() {
		exit, setsid, startProcess, prepare, dialSyslog = origExit, origSetsid, origStart, origPrepare, origDial
	})
	exit = func(code int) { rec.exits = append(rec.exits, code) }
	setsid = func() (int, error) {
		rec.setsids++
		return 99, nil
	}
	startProcess = func(stage string) (int, error) {
		rec.started = append(rec.started, stage)
		return 1000 + len(rec.started), nil
	}
	prepare = func(dir string) error {
		rec.dirs = append(rec.dirs, dir)
		return nil
	}
	dialSyslog = func(string) (*syslog.Writer, error) {
		return nil, errors.New("no syslog in tests")
	}
}

func TestDaemonizeLauncherStartsLeaderAndExits(t *testing.T) {
	rec := &stageRecorder{}
	stubStages(t, rec)
	t.Setenv(StageEnv, "")

	if _, err := New(Options{WorkDir: "/tmp/w"}).Daemonize(); err != nil {
		t.Fatalf("daemonize: %v", err)
	}
	if len(rec.started) != 1 || rec.started[0] != stageLeader {
		t.Fatalf("expected leader stage start, got %v", rec.started)
	}
	if len(rec.exits) != 1 || rec.exits[0] != 0 {
		t.Fatalf("expected exit(0), got %v", rec.exits)
	}
	if rec.setsids != 0 {
		t.Fatalf("launcher must not call setsid")
	}
}

func TestDaemonizeLeaderCallsSetsidThenForks(t *testing.T) {
	rec := &stageRecorder{}
	stubStages(t, rec)
	t.Setenv(StageEnv, stageLeader)

	if _, err := New(Options{}).Daemonize(); err != nil {
		t.Fatalf("daemonize: %v", err)
	}
	if rec.setsids != 1 {
		t.Fatalf("expected one setsid, got %d", rec.setsids)
	}
	if len(rec.started) != 1 || rec.started[0] != stageDaemon {
		t.Fatalf("expected daemon stage start, got %v", rec.started)
	}
	if len(rec.exits) != 1 || rec.exits[0] != 0 {
		t.Fatalf("expected exit(0), got %v", rec.exits)
	}
}

func TestDaemonizeLeaderSetsidFailureIsFatal(t *testing.T) {
	rec := &stageRecorder{}
	stubStages(t, rec)
	setsid = func() (int, error) { return 0, errors.New("EPERM") }
	t.Setenv(StageEnv, stageLeader)

	if _, err := New(Options{}).Daemonize(); err == nil {
		t.Fatalf("expected setsid failure to surface")
	}
	if len(rec.started) != 0 || len(rec.exits) != 0 {
		t.Fatalf("nothing should start after setsid fails: %+v", rec)
	}
}

func TestDaemonizeFinalStagePreparesAndReturns(t *testing.T) {
	rec := &stageRecorder{}
	stubStages(t, rec)
	t.Setenv(StageEnv, stageDaemon)

	id, err := New(Options{WorkDir: "/srv/loadreaper", SyslogTag: "load-reduce-daemon"}).Daemonize()
	if err != nil {
		t.Fatalf("daemonize: %v", err)
	}
	if !id.Detached || id.PID != os.Getpid() {
		t.Fatalf("unexpected identity %+v", id)
	}
	if id.Syslog != nil {
		t.Fatalf("syslog should be nil when dialing fails")
	}
	if len(rec.dirs) != 1 || rec.dirs[0] != "/srv/loadreaper" {
		t.Fatalf("prepare not called with workdir: %v", rec.dirs)
	}
	if _, ok := os.LookupEnv(StageEnv); ok {
		t.Fatalf("stage marker should be cleared in the daemon")
	}
	if len(rec.exits) != 0 || len(rec.started) != 0 {
		t.Fatalf("final stage must not fork or exit: %+v", rec)
	}
}

func TestDaemonizeFirstForkFailure(t *testing.T) {
	rec := &stageRecorder{}
	stubStages(t, rec)
	startProcess = func(string) (int, error) { return 0, errors.New("fork failed") }
	t.Setenv(StageEnv, "")

	if _, err := New(Options{}).Daemonize(); err == nil {
		t.Fatalf("expected fork failure")
	}
	if len(rec.exits) != 0 {
		t.Fatalf("parent must not exit when the fork fails")
	}
}

func TestDaemonizeRejectsUnknownStage(t *testing.T) {
	rec := &stageRecorder{}
	stubStages(t, rec)
	t.Setenv(StageEnv, "7")
	if _, err := New(Options{}).Daemonize(); err == nil {
		t.Fatalf("expected unknown stage error")
	}
}
