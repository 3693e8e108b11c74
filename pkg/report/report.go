// Package report compiles the audit artifact for a cycle that acted on high load.
package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/srodi/loadreaper/pkg/advisory"
	"github.com/srodi/loadreaper/pkg/reaper"
	"github.com/srodi/loadreaper/pkg/session"
	"github.com/srodi/loadreaper/pkg/types"
)

// DefaultPrefix names report files as <prefix><pid>-<stamp>.html.
const DefaultPrefix = "report-"

const stampLayout = "20060102T150405Z"

// Report is everything a single artifact contains.
type Report struct {
	CycleID    string
	PID        int
	Generated  time.Time
	Threshold  float64
	LoadWindow int
	Load       types.LoadSample
	Outcomes   []types.TerminationOutcome
	Commentary string
}

// Counts tallies the outcomes in the report.
func (r Report) Counts() map[types.Outcome]int {
	return reaper.Counts(r.Outcomes)
}

// Options configures where and how artifacts are written.
type Options struct {
	Dir        string
	Prefix     string
	Threshold  float64
	LoadWindow int
	// Sidecar also writes a YAML copy of the report next to the HTML file.
	Sidecar bool
}

// Compiler gates, assembles and persists reports.
type Compiler struct {
	opts     Options
	advisory *advisory.Client
	renderer Renderer
	logger   *zap.Logger
	now      func() time.Time
}

// NewCompiler returns a Compiler writing HTML through renderer. A nil
// renderer uses the built-in HTML template.
func NewCompiler(opts Options, client *advisory.Client, renderer Renderer, logger *zap.Logger) *Compiler {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if renderer == nil {
		renderer = HTMLRenderer{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compiler{opts: opts, advisory: client, renderer: renderer, logger: logger, now: time.Now}
}

// FileName returns the artifact name for a daemon pid at t.
func FileName(prefix string, pid int, t time.Time) string {
	return fmt.Sprintf("%s%d-%s.html", prefix, pid, t.UTC().Format(stampLayout))
}

// Compile asks the advisor about the terminated processes and writes one
// artifact. Nothing is written if the session is failed on entry or the
// advisory call fails it. Returns the artifact path, or "" when skipped.
func (c *Compiler) Compile(ctx context.Context, sess *session.Session, sample types.LoadSample, outcomes []types.TerminationOutcome) string {
	if sess.Failed() {
		return ""
	}

	commentary := c.advisory.Commentary(ctx, sess, reaper.TerminatedNames(outcomes))
	if sess.Failed() {
		c.logger.Warn("report skipped after advisory failure", zap.Error(sess.Err()))
		return ""
	}

	rep := Report{
		CycleID:    sess.ID,
		PID:        sess.PID,
		Generated:  c.now(),
		Threshold:  c.opts.Threshold,
		LoadWindow: c.opts.LoadWindow,
		Load:       sample,
		Outcomes:   outcomes,
		Commentary: commentary,
	}

	path := filepath.Join(c.opts.Dir, FileName(c.opts.Prefix, rep.PID, rep.Generated))
	if err := writeAtomic(path, func(f *os.File) error { return c.renderer.Render(f, rep) }); err != nil {
		err = fmt.Errorf("writing report: %w", err)
		c.logger.Error("report write failed", zap.String("path", path), zap.Error(err))
		sess.Fail(err)
		return ""
	}

	if c.opts.Sidecar {
		sidecar := SidecarPath(path)
		if err := writeAtomic(sidecar, func(f *os.File) error { return WriteYAML(f, rep) }); err != nil {
			c.logger.Warn("report sidecar write failed", zap.String("path", sidecar), zap.Error(err))
		}
	}

	c.logger.Info("report written", zap.String("path", path), zap.Int("outcomes", len(outcomes)))
	return path
}

// writeAtomic renders into a temp file in the target directory and renames
// it into place so readers never see a partial artifact.
func writeAtomic(path string, fill func(*os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if err := fill(tmp); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}
