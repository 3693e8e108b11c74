package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/srodi/loadreaper/pkg/advisory"
	"github.com/srodi/loadreaper/pkg/collector/census"
	"github.com/srodi/loadreaper/pkg/collector/load"
	"github.com/srodi/loadreaper/pkg/config"
	"github.com/srodi/loadreaper/pkg/daemon"
	"github.com/srodi/loadreaper/pkg/logging"
	"github.com/srodi/loadreaper/pkg/metrics"
	"github.com/srodi/loadreaper/pkg/reaper"
	"github.com/srodi/loadreaper/pkg/report"
	"github.com/srodi/loadreaper/pkg/scheduler"
	"github.com/srodi/loadreaper/pkg/ui"
)

// runDaemon validates cfg, detaches unless running in the foreground and
// drives the scheduler until a shutdown signal arrives.
func runDaemon(parent context.Context, cfg config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolving current directory: %w", err)
	}
	cfg = cfg.Normalize(cwd)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	var console io.Writer
	if cfg.Foreground && term.IsTerminal(int(os.Stderr.Fd())) {
		console = os.Stderr
		fmt.Fprint(os.Stderr, ui.Banner(cfg.Threshold, cfg.LoadWindow, cfg.Cap))
	}

	logger, closeLog, err := logging.New(logging.Options{Path: cfg.LogPath(), Level: cfg.LogLevel, Console: console})
	if err != nil {
		return err
	}
	defer closeLog()
	defer logger.Sync() //nolint:errcheck

	var d daemon.Daemonizer = daemon.Foreground{}
	if !cfg.Foreground {
		d = daemon.New(daemon.Options{WorkDir: cfg.WorkDir, SyslogTag: cfg.SyslogTag, Logger: logger})
	} else if err := os.Chdir(cfg.WorkDir); err != nil {
		return fmt.Errorf("changing to working directory: %w", err)
	}
	id, err := d.Daemonize()
	if err != nil {
		logger.Error("daemonize failed", zap.Error(err))
		return err
	}
	if id.Syslog != nil {
		defer id.Syslog.Close()
		logger = logging.Tee(logger, id.Syslog, zapcore.InfoLevel)
	}

	lock, err := daemon.AcquireLock(cfg.LockPath(), id.PID)
	if err != nil {
		logger.Error("refusing to start", zap.Error(err))
		return err
	}
	defer lock.Release() //nolint:errcheck

	logger.Info("daemon started",
		zap.Int("pid", id.PID),
		zap.Bool("detached", id.Detached),
		zap.String("workdir", cfg.WorkDir))

	sched, err := build(cfg, id.PID, logger)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return sched.Run(ctx)
}

// build wires the cycle steps selected by cfg.
func build(cfg config.Config, pid int, logger *zap.Logger) (*scheduler.Scheduler, error) {
	sig, ok := reaper.ParseSignal(cfg.Signal)
	if !ok {
		return nil, fmt.Errorf("signal %q is not supported on this platform", cfg.Signal)
	}

	var lister census.ProcessLister
	switch cfg.Census {
	case config.CensusProc:
		lister = census.NewProcLister()
	default:
		lister = census.NewPSLister("")
	}

	advisor, err := buildAdvisor(cfg)
	if err != nil {
		return nil, err
	}
	client := advisory.NewClient(advisor, cfg.AdvisorTimeout, logger)

	compiler := report.NewCompiler(report.Options{
		Dir:        cfg.WorkDir,
		Prefix:     cfg.ReportPrefix,
		Threshold:  cfg.Threshold,
		LoadWindow: cfg.LoadWindow,
		Sidecar:    true,
	}, client, nil, logger)

	deps := scheduler.Deps{
		Sampler:  load.NewSampler(),
		Census:   census.New(lister, logger),
		Reaper:   reaper.New(reaper.NewSignaler(), sig, cfg.Cap, logger),
		Compiler: compiler,
		Metrics:  metrics.NewRecorder(),
	}
	opts := scheduler.Options{
		Period:      cfg.Period,
		Threshold:   cfg.Threshold,
		LoadWindow:  cfg.LoadWindow,
		Once:        cfg.Once,
		MetricsFile: cfg.MetricsFile,
	}
	return scheduler.New(opts, deps, pid, logger), nil
}

func buildAdvisor(cfg config.Config) (advisory.Advisor, error) {
	switch cfg.Advisor {
	case config.AdvisorNone:
		return advisory.None{}, nil
	case config.AdvisorHTTP:
		key := cfg.AdvisorAPIKey
		if key == "" {
			key = os.Getenv("OPENAI_API_KEY")
		}
		if key == "" {
			return nil, errors.New("http advisor needs LOADREAPER_ADVISOR_API_KEY or OPENAI_API_KEY")
		}
		return advisory.NewHTTPAdvisor(cfg.AdvisorURL, cfg.AdvisorModel, key), nil
	default:
		return advisory.NewExecAdvisor(cfg.AdvisorCommand), nil
	}
}
