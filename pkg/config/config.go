// Package config holds the daemon's runtime options.
//
// Values come from LOADREAPER_* environment variables first and command line
// flags second; there is no configuration file.
package config

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/srodi/loadreaper/pkg/advisory"
	"github.com/srodi/loadreaper/pkg/report"
	"github.com/srodi/loadreaper/pkg/types"
)

const (
	EnvPrefix = "LOADREAPER_"

	DefaultThreshold  = 10.0
	DefaultPeriod     = 30 * time.Minute
	DefaultLoadWindow = 15
	DefaultWorkDir    = "workdir"
	DefaultLogFile    = "log.txt"
	DefaultLockFile   = "loadreaper.lock"
	DefaultSyslogTag  = "load-reduce-daemon"

	CensusPS   = "ps"
	CensusProc = "proc"

	AdvisorExec = "exec"
	AdvisorHTTP = "http"
	AdvisorNone = "none"
)

// Config is the full set of options. Env tags are relative to EnvPrefix.
type Config struct {
	Threshold  float64       `env:"THRESHOLD"   yaml:"threshold"`
	Cap        int           `env:"CAP"         yaml:"cap"`
	Period     time.Duration `env:"PERIOD"      yaml:"period"`
	LoadWindow int           `env:"LOAD_WINDOW" yaml:"load_window"`

	WorkDir      string `env:"WORKDIR"       yaml:"workdir"`
	LogFile      string `env:"LOG_FILE"      yaml:"log_file"`
	LogLevel     string `env:"LOG_LEVEL"     yaml:"log_level"`
	ReportPrefix string `env:"REPORT_PREFIX" yaml:"report_prefix"`
	MetricsFile  string `env:"METRICS_FILE"  yaml:"metrics_file,omitempty"`
	SyslogTag    string `env:"SYSLOG_TAG"    yaml:"syslog_tag"`

	Census string `env:"CENSUS" yaml:"census"`
	Signal string `env:"SIGNAL" yaml:"signal"`

	Advisor        string        `env:"ADVISOR"         yaml:"advisor"`
	AdvisorCommand []string      `env:"ADVISOR_CMD"     envSeparator:" " yaml:"advisor_cmd"`
	AdvisorURL     string        `env:"ADVISOR_URL"     yaml:"advisor_url"`
	AdvisorModel   string        `env:"ADVISOR_MODEL"   yaml:"advisor_model"`
	AdvisorAPIKey  string        `env:"ADVISOR_API_KEY" yaml:"advisor_api_key,omitempty"`
	AdvisorTimeout time.Duration `env:"ADVISOR_TIMEOUT" yaml:"advisor_timeout"`

	Foreground bool `env:"FOREGROUND" yaml:"foreground"`
	Once       bool `env:"ONCE"       yaml:"once"`
}

// Default returns the built-in options.
func Default() Config {
	return Config{
		Threshold:      DefaultThreshold,
		Cap:            types.DefaultCap,
		Period:         DefaultPeriod,
		LoadWindow:     DefaultLoadWindow,
		WorkDir:        DefaultWorkDir,
		LogFile:        DefaultLogFile,
		LogLevel:       "info",
		ReportPrefix:   report.DefaultPrefix,
		SyslogTag:      DefaultSyslogTag,
		Census:         CensusPS,
		Signal:         "TERM",
		Advisor:        AdvisorExec,
		AdvisorCommand: append([]string(nil), advisory.DefaultCommand...),
		AdvisorURL:     advisory.DefaultURL,
		AdvisorModel:   advisory.DefaultModel,
		AdvisorTimeout: advisory.DefaultTimeout,
	}
}

// FromEnv overlays LOADREAPER_* variables from environ onto Default.
func FromEnv(environ map[string]string) (Config, error) {
	cfg := Default()
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}
	return cfg, nil
}

// Normalize fills empty names with defaults, canonicalizes enums and
// resolves the working directory against cwd. Numeric options are left
// as given for Validate to judge.
func (c Config) Normalize(cwd string) Config {
	def := Default()
	n := c
	if n.WorkDir == "" {
		n.WorkDir = def.WorkDir
	}
	if !filepath.IsAbs(n.WorkDir) {
		n.WorkDir = filepath.Join(cwd, n.WorkDir)
	}
	n.WorkDir = filepath.Clean(n.WorkDir)
	if n.LogFile == "" {
		n.LogFile = def.LogFile
	}
	if n.LogLevel == "" {
		n.LogLevel = def.LogLevel
	}
	if n.ReportPrefix == "" {
		n.ReportPrefix = def.ReportPrefix
	}
	if n.SyslogTag == "" {
		n.SyslogTag = def.SyslogTag
	}
	n.Census = strings.ToLower(strings.TrimSpace(n.Census))
	if n.Census == "" {
		n.Census = def.Census
	}
	n.Signal = strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(n.Signal)), "SIG")
	if n.Signal == "" {
		n.Signal = def.Signal
	}
	n.Advisor = strings.ToLower(strings.TrimSpace(n.Advisor))
	if n.Advisor == "" {
		n.Advisor = def.Advisor
	}
	if len(n.AdvisorCommand) == 0 {
		n.AdvisorCommand = def.AdvisorCommand
	}
	if n.AdvisorURL == "" {
		n.AdvisorURL = def.AdvisorURL
	}
	if n.AdvisorModel == "" {
		n.AdvisorModel = def.AdvisorModel
	}
	if n.MetricsFile != "" && !filepath.IsAbs(n.MetricsFile) {
		n.MetricsFile = filepath.Join(n.WorkDir, n.MetricsFile)
	}
	return n
}

// Validate rejects options the daemon cannot run with.
func (c Config) Validate() error {
	var errs []error
	if math.IsNaN(c.Threshold) || math.IsInf(c.Threshold, 0) || c.Threshold < 0 {
		errs = append(errs, fmt.Errorf("threshold must be a finite number >= 0, got %v", c.Threshold))
	}
	if c.Cap < 1 {
		errs = append(errs, fmt.Errorf("cap must be >= 1, got %d", c.Cap))
	}
	if c.Period < time.Second {
		errs = append(errs, fmt.Errorf("period must be at least 1s, got %v", c.Period))
	}
	if c.AdvisorTimeout <= 0 {
		errs = append(errs, fmt.Errorf("advisor timeout must be positive, got %v", c.AdvisorTimeout))
	}
	switch c.LoadWindow {
	case 1, 5, 15:
	default:
		errs = append(errs, fmt.Errorf("load window must be 1, 5 or 15, got %d", c.LoadWindow))
	}
	switch c.Census {
	case CensusPS, CensusProc:
	default:
		errs = append(errs, fmt.Errorf("unknown census source %q", c.Census))
	}
	switch c.Signal {
	case "TERM", "INT", "KILL":
	default:
		errs = append(errs, fmt.Errorf("unsupported signal %q", c.Signal))
	}
	switch c.Advisor {
	case AdvisorExec:
		if len(c.AdvisorCommand) == 0 || c.AdvisorCommand[0] == "" {
			errs = append(errs, errors.New("advisor command is empty"))
		}
	case AdvisorHTTP:
		if c.AdvisorURL == "" {
			errs = append(errs, errors.New("advisor url is empty"))
		}
	case AdvisorNone:
	default:
		errs = append(errs, fmt.Errorf("unknown advisor %q", c.Advisor))
	}
	if strings.ContainsRune(c.LogFile, filepath.Separator) || strings.ContainsRune(c.ReportPrefix, filepath.Separator) {
		errs = append(errs, errors.New("log file and report prefix must be plain names inside the working directory"))
	}
	return errors.Join(errs...)
}

// LogPath is the absolute path of the log sink.
func (c Config) LogPath() string {
	return filepath.Join(c.WorkDir, c.LogFile)
}

// LockPath is the absolute path of the single-instance lock.
func (c Config) LockPath() string {
	return filepath.Join(c.WorkDir, DefaultLockFile)
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	r := c
	if r.AdvisorAPIKey != "" {
		r.AdvisorAPIKey = "REDACTED"
	}
	return r
}
