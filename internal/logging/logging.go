// Package logging builds the zap logger used by the collector, scheduler and
// servers. Logs go to day-stamped files; stderr is added on request.
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures New.
type Options struct {
	// Dir receives p3seq_YYYYMMDD.log files. Empty disables file output.
	Dir string

	// Level is one of debug, info, warn, error. Empty means info.
	Level string

	// Retention is the number of day files kept.
	Retention int

	// Stderr tees every entry to standard error.
	Stderr bool
}

// ParseLevel maps a level name to a zapcore level.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
}

// EncoderConfig is the console layout shared by file and stderr output:
// time, level, message, then fields.
func EncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "time"
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncodeCaller = zapcore.ShortCallerEncoder
	return cfg
}

// New builds a logger from opts. The returned close function flushes and
// releases the day file; it is safe to call when no file was opened.
func New(opts Options) (*zap.Logger, func() error, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}
	enc := zapcore.NewConsoleEncoder(EncoderConfig())

	var (
		cores []zapcore.Core
		file  *DayFile
	)
	if opts.Dir != "" {
		file = NewDayFile(opts.Dir, opts.Retention)
		cores = append(cores, zapcore.NewCore(enc, file, level))
	}
	if opts.Stderr {
		cores = append(cores, zapcore.NewCore(enc.Clone(), zapcore.Lock(os.Stderr), level))
	}
	if len(cores) == 0 {
		return zap.NewNop(), func() error { return nil }, nil
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	closeFn := func() error {
		_ = logger.Sync()
		if file != nil {
			return file.Close()
		}
		return nil
	}
	return logger, closeFn, nil
}
