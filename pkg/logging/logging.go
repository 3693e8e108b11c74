// Package logging builds the daemon's zap logger.
//
// Every entry goes to an append-only text file in the working directory as
// "<timestamp>\t<LEVEL>\t<message>\t<fields>". A terminal console and the
// system log can be added as extra sinks.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TimeLayout matches asctime(3) so log lines read like classic daemon logs.
const TimeLayout = "Mon Jan _2 15:04:05 2006"

// Options selects the sinks.
type Options struct {
	Path  string
	Level string
	// Console receives a colored copy of every entry when non-nil.
	Console io.Writer
}

// New opens the log file and returns a logger plus a closer for the file.
func New(opts Options) (*zap.Logger, func() error, error) {
	level, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing log level: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(opts.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(FileEncoderConfig()), zapcore.AddSync(f), level),
	}
	if opts.Console != nil {
		consoleCfg := FileEncoderConfig()
		consoleCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.AddSync(opts.Console), level))
	}

	return zap.New(zapcore.NewTee(cores...)), f.Close, nil
}

// FileEncoderConfig is the encoder used for the log file.
func FileEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		MessageKey:       "msg",
		NameKey:          "logger",
		StacktraceKey:    "stacktrace",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeTime:       zapcore.TimeEncoderOfLayout(TimeLayout),
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		EncodeName:       zapcore.FullNameEncoder,
		ConsoleSeparator: "\t",
	}
}

// Tee returns a logger that also writes to w. The system log stamps its own
// time, so entries sent there carry no timestamp.
func Tee(logger *zap.Logger, w io.Writer, level zapcore.LevelEnabler) *zap.Logger {
	cfg := FileEncoderConfig()
	cfg.TimeKey = ""
	extra := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.AddSync(w), level)
	return logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, extra)
	}))
}
