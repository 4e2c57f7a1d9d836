package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mr1hm/go-emergency-dispatch/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup installs the default JSON logger. When cfg.File is set, output is
// also written to a rotating file; the returned closer flushes it.
func Setup(cfg config.LoggingConfig) func() {
	var logLevel slog.Level
	switch cfg.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var (
		out    io.Writer = os.Stdout
		closer           = func() {}
	)
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, rotator)
		closer = func() { _ = rotator.Close() }
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: logLevel,
	})

	slog.SetDefault(slog.New(handler))
	return closer
}

func Fatalf(format string, args ...any) {
	slog.Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}
