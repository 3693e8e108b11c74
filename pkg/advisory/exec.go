package advisory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultCommand is the advisory script shipped alongside the daemon.
var DefaultCommand = []string{"python3", "chatgpt_crawler.py"}

const (
	waitDelay     = 2 * time.Second
	stderrExcerpt = 512
)

// ExecAdvisor runs a command with the process names appended as positional
// arguments and returns its standard output.
type ExecAdvisor struct {
	Command []string
}

// NewExecAdvisor returns an advisor for command, or DefaultCommand when empty.
func NewExecAdvisor(command []string) *ExecAdvisor {
	if len(command) == 0 {
		command = DefaultCommand
	}
	return &ExecAdvisor{Command: append([]string(nil), command...)}
}

// Advise runs the command. Spawn failures, non-zero exits and deadline
// expiry are all errors.
func (a *ExecAdvisor) Advise(ctx context.Context, names []string) (string, error) {
	args := append(append([]string(nil), a.Command[1:]...), names...)
	cmd := exec.CommandContext(ctx, a.Command[0], args...)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%w: %s: %w", ErrAdvisorUnavailable, a.Command[0], ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("%w: %s exited with status %d: %s",
				ErrAdvisorUnavailable, a.Command[0], exitErr.ExitCode(), excerpt(stderr.String()))
		}
		return "", fmt.Errorf("%w: starting %s: %w", ErrAdvisorUnavailable, a.Command[0], err)
	}
	return stdout.String(), nil
}

func excerpt(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > stderrExcerpt {
		return s[:stderrExcerpt] + "..."
	}
	return s
}
