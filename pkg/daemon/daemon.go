// Package daemon detaches the process from its terminal.
//
// Go cannot fork a running runtime, so each fork of the classic double-fork
// is a re-exec of the current binary carrying a stage marker in the
// environment. The parent of each stage logs its child's pid and exits.
package daemon

import (
	"errors"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
)

// StageEnv carries the detach stage across re-execs. It is internal and
// removed from the environment of the final daemon.
const StageEnv = "LOADREAPER_DAEMON_STAGE"

const (
	stageLauncher = ""
	stageLeader   = "1"
	stageDaemon   = "2"
)

var (
	// ErrUnsupported is returned where detaching is not implemented.
	ErrUnsupported = errors.New("daemonizing requires linux")
	// ErrAlreadyRunning is returned when another daemon holds the lock.
	ErrAlreadyRunning = errors.New("daemon already running")
)

// Identity describes the process that carries on after Daemonize.
type Identity struct {
	PID      int
	Detached bool
	// Syslog is the system log connection opened by the detached daemon, if any.
	Syslog io.WriteCloser
}

// Daemonizer turns the caller into the long-running process.
type Daemonizer interface {
	Daemonize() (Identity, error)
}

// Options configures a Detacher.
type Options struct {
	WorkDir   string
	SyslogTag string
	Logger    *zap.Logger
}

// Foreground keeps the process attached to its terminal.
type Foreground struct{}

// Daemonize returns the current pid unchanged.
func (Foreground) Daemonize() (Identity, error) {
	return Identity{PID: os.Getpid()}, nil
}

// childEnv returns environ with the stage marker set to stage.
func childEnv(environ []string, stage string) []string {
	out := make([]string, 0, len(environ)+1)
	for _, kv := range environ {
		if strings.HasPrefix(kv, StageEnv+"=") {
			continue
		}
		out = append(out, kv)
	}
	if stage != "" {
		out = append(out, StageEnv+"="+stage)
	}
	return out
}
