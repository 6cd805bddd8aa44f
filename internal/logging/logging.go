package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Environment variables inherited by both binaries.
const (
	EnvDebug   = "CRITIC_DEBUG"
	EnvLogFile = "CRITIC_LOG_FILE"
)

// Options configures New.
type Options struct {
	Debug bool
	// File, when set, receives a JSON copy of every record at debug level.
	File string
	// RunID is attached to every record. A fresh UUID is used when empty.
	RunID string
}

// fromEnv fills unset options from the environment.
func (o Options) fromEnv() Options {
	if os.Getenv(EnvDebug) == "1" {
		o.Debug = true
	}
	if o.File == "" {
		o.File = os.Getenv(EnvLogFile)
	}
	if o.RunID == "" {
		o.RunID = uuid.NewString()
	}
	return o
}

// New builds a logger writing text records to w, at warn level unless Debug
// is set. The returned close function releases the log file, if any, and is
// never nil.
func New(w io.Writer, opts Options) (*slog.Logger, func() error, error) {
	opts = opts.fromEnv()

	level := slog.LevelWarn
	if opts.Debug {
		level = slog.LevelDebug
	}
	var handler slog.Handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})

	closeFn := func() error { return nil }
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, closeFn, fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, closeFn, fmt.Errorf("opening log file: %w", err)
		}
		closeFn = f.Close
		handler = fanoutHandler{
			handler,
			slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}),
		}
	}

	return slog.New(handler).With("run_id", opts.RunID), closeFn, nil
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type key struct{}

// WithLogger returns a context carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, key{}, logger)
}

// FromContext returns the logger stored by WithLogger, or slog.Default.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(key{}).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// fanoutHandler sends each record to every handler that is enabled for it.
type fanoutHandler []slog.Handler

func (h fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, hh := range h {
		if hh.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var first error
	for _, hh := range h {
		if !hh.Enabled(ctx, r.Level) {
			continue
		}
		if err := hh.Handle(ctx, r.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (h fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanoutHandler, len(h))
	for i, hh := range h {
		out[i] = hh.WithAttrs(attrs)
	}
	return out
}

func (h fanoutHandler) WithGroup(name string) slog.Handler {
	out := make(fanoutHandler, len(h))
	for i, hh := range h {
		out[i] = hh.WithGroup(name)
	}
	return out
}
