package census

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/srodi/loadreaper/pkg/types"
)

const defaultPSPath = "ps"

// psColumns is the exact column order ParseListing expects.
var psColumns = []string{"-eo", "pid,pcpu,vsz,ppid,comm"}

// runCommand allows tests to stub the ps invocation.
var runCommand = func(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// PSLister shells out to ps(1).
type PSLister struct {
	Path string
}

// NewPSLister returns a lister using ps from PATH unless path is set.
func NewPSLister(path string) *PSLister {
	if path == "" {
		path = defaultPSPath
	}
	return &PSLister{Path: path}
}

// List runs ps and parses its output. Any failure to run ps is reported as
// ErrListerUnavailable, as is output that cannot be read to the end;
// individual bad lines are not errors.
func (l *PSLister) List(ctx context.Context) ([]types.ProcessInfo, error) {
	out, err := runCommand(ctx, l.Path, psColumns...)
	if err != nil {
		return nil, fmt.Errorf("%w: running %s: %w", ErrListerUnavailable, l.Path, err)
	}
	rows, err := ParseListing(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s output: %w", ErrListerUnavailable, l.Path, err)
	}
	return rows, nil
}
