package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

type setupOptions struct {
	writer io.Writer
	level  slog.Leveler
}

// Option customises Setup.
type Option func(*setupOptions)

// WithWriter sends log lines to w instead of stdout.
func WithWriter(w io.Writer) Option {
	return func(o *setupOptions) {
		if w != nil {
			o.writer = w
		}
	}
}

// WithLevel sets the minimum level that is emitted.
func WithLevel(level slog.Leveler) Option {
	return func(o *setupOptions) {
		if level != nil {
			o.level = level
		}
	}
}

// Setup configures the standard library logger to emit structured JSON and returns
// the underlying slog.Logger for richer logging within the service. All log lines
// include the service name and environment when provided.
func Setup(service, env string, opts ...Option) *slog.Logger {
	options := setupOptions{writer: os.Stdout, level: slog.LevelInfo}
	for _, opt := range opts {
		opt(&options)
	}
	handler := slog.NewJSONHandler(options.writer, &slog.HandlerOptions{
		Level: options.level,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.TimeKey:
				return slog.Attr{Key: "timestamp", Value: attr.Value}
			case slog.LevelKey:
				return slog.String("severity", strings.ToUpper(attr.Value.String()))
			case slog.MessageKey:
				return slog.Attr{Key: "message", Value: attr.Value}
			}
			return attr
		},
	})

	attrs := []slog.Attr{slog.String("service", strings.TrimSpace(service))}
	if env = strings.TrimSpace(env); env != "" {
		attrs = append(attrs, slog.String("env", env))
	}
	base := slog.New(handler.WithAttrs(attrs))
	slog.SetDefault(base)

	// Packages still using the std logger end up in the same stream.
	bridge := slog.NewLogLogger(handler.WithAttrs(attrs), slog.LevelInfo)
	bridge.SetFlags(0)
	log.SetOutput(bridge.Writer())
	log.SetFlags(0)
	log.SetPrefix("")

	return base
}

// RotatingFile opens a size-rotated log file. maxSizeMB and maxBackups fall
// back to 50MB and 5 files when zero. Close the writer on shutdown.
func RotatingFile(path string, maxSizeMB, maxBackups int) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 50
	}
	if maxBackups <= 0 {
		maxBackups = 5
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     14,
		Compress:   true,
	}, nil
}

// ParseLevel maps debug/info/warn/error onto slog levels, defaulting to info.
func ParseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
