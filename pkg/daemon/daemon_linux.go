//go:build linux

package daemon

import (
	"errors"
	"fmt"
	"log/syslog"
	"os"
	"os/exec"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// maxSweepFDs bounds the fallback descriptor scan when RLIMIT_NOFILE is unlimited or huge.
const maxSweepFDs = 1 << 20

// Seams for tests; the real implementations never return to the caller on exit.
var (
	exit         = os.Exit
	setsid       = unix.Setsid
	startProcess = startSelf
	prepare      = prepareDaemon
	dialSyslog   = func(tag string) (*syslog.Writer, error) {
		return syslog.New(syslog.LOG_DAEMON|syslog.LOG_NOTICE, tag)
	}
)

// Detacher runs the double-detach protocol.
type Detacher struct {
	opts Options
}

// New returns a Detacher for opts.
func New(opts Options) *Detacher {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Detacher{opts: opts}
}

// Daemonize advances the process through the current stage. Launcher and
// session-leader stages exit the process after starting the next one; the
// final stage returns the daemon's identity.
func (d *Detacher) Daemonize() (Identity, error) {
	log := d.opts.Logger
	switch stage := os.Getenv(StageEnv); stage {
	case stageLauncher:
		pid, err := startProcess(stageLeader)
		if err != nil {
			return Identity{}, fmt.Errorf("first fork: %w", err)
		}
		log.Info("Child PID", zap.Int("pid", pid))
		_ = log.Sync()
		exit(0)

	case stageLeader:
		if _, err := setsid(); err != nil {
			return Identity{}, fmt.Errorf("becoming session leader: %w", err)
		}
		pid, err := startProcess(stageDaemon)
		if err != nil {
			return Identity{}, fmt.Errorf("second fork: %w", err)
		}
		log.Info("Grandchild PID", zap.Int("pid", pid))
		_ = log.Sync()
		exit(0)

	case stageDaemon:
		if err := os.Unsetenv(StageEnv); err != nil {
			return Identity{}, fmt.Errorf("clearing stage marker: %w", err)
		}
		if err := prepare(d.opts.WorkDir); err != nil {
			return Identity{}, err
		}
		id := Identity{PID: os.Getpid(), Detached: true}
		if d.opts.SyslogTag != "" {
			w, err := dialSyslog(d.opts.SyslogTag)
			if err != nil {
				log.Warn("system log unavailable", zap.Error(err))
			} else {
				id.Syslog = w
			}
		}
		return id, nil

	default:
		return Identity{}, fmt.Errorf("unknown %s value %q", StageEnv, stage)
	}
	return Identity{}, nil
}

// startSelf re-executes the running binary with the same arguments and the
// stage marker set. Stdio goes to /dev/null. Descriptors inherited without
// close-on-exec are closed first so they cannot ride along into the child.
func startSelf(stage string) (int, error) {
	if err := closeInherited(); err != nil {
		return 0, err
	}
	self, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("locating executable: %w", err)
	}
	cmd := exec.Command(self, os.Args[1:]...)
	cmd.Env = childEnv(os.Environ(), stage)
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	_ = cmd.Process.Release()
	return pid, nil
}

// prepareDaemon clears the umask, anchors the process in workDir, rebinds
// stdio to /dev/null and closes every other inherited descriptor.
func prepareDaemon(workDir string) error {
	unix.Umask(0)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("creating working directory: %w", err)
	}
	if err := os.Chdir(workDir); err != nil {
		return fmt.Errorf("changing to working directory: %w", err)
	}
	if err := redirectStdio(); err != nil {
		return err
	}
	return closeInherited()
}

func redirectStdio() error {
	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("opening %s: %w", os.DevNull, err)
	}
	defer devNull.Close()
	for fd := 0; fd <= 2; fd++ {
		if err := unix.Dup3(int(devNull.Fd()), fd, 0); err != nil {
			return fmt.Errorf("redirecting fd %d: %w", fd, err)
		}
	}
	return nil
}

// closeInherited closes every descriptor above stderr that lacks
// FD_CLOEXEC. Everything the Go runtime opens carries the flag, so what is
// left was handed down by whoever started the process.
func closeInherited() error {
	fds, err := openDescriptors()
	if err != nil {
		return err
	}
	for _, fd := range fds {
		if fd <= 2 {
			continue
		}
		flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
		if err != nil || flags&unix.FD_CLOEXEC != 0 {
			continue
		}
		if err := unix.Close(fd); err != nil && !errors.Is(err, unix.EBADF) {
			return fmt.Errorf("closing inherited fd %d: %w", fd, err)
		}
	}
	return nil
}

// openDescriptors lists /proc/self/fd, falling back to every number below
// the open file limit when /proc is not mounted.
func openDescriptors() ([]int, error) {
	entries, err := os.ReadDir("/proc/self/fd")
	if err == nil {
		fds := make([]int, 0, len(entries))
		for _, e := range entries {
			if fd, err := strconv.Atoi(e.Name()); err == nil {
				fds = append(fds, fd)
			}
		}
		return fds, nil
	}

	var lim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &lim); err != nil {
		return nil, fmt.Errorf("reading open file limit: %w", err)
	}
	limit := lim.Cur
	if limit > maxSweepFDs {
		limit = maxSweepFDs
	}
	fds := make([]int, 0, limit)
	for fd := 0; uint64(fd) < limit; fd++ {
		fds = append(fds, fd)
	}
	return fds, nil
}
