package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// levelRouter sends records below ERROR to one handler and ERROR+ to another.
type levelRouter struct {
	level slog.Leveler
	out   slog.Handler
	err   slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= lr.level.Level()
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.err.Handle(ctx, r)
	}
	return lr.out.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{level: lr.level, out: lr.out.WithAttrs(attrs), err: lr.err.WithAttrs(attrs)}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{level: lr.level, out: lr.out.WithGroup(name), err: lr.err.WithGroup(name)}
}

type logOptions struct {
	path    string
	json    bool
	verbose bool
}

// setupLogger installs the default logger. Errors go to stderr, everything
// else to stdout, and all of it is also appended to opts.path when set. The
// returned func closes the log file.
func setupLogger(opts logOptions) (*slog.Logger, func(), error) {
	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}

	cleanup := func() {}
	outW := io.Writer(os.Stdout)
	errW := io.Writer(os.Stderr)

	if opts.path != "" {
		f, err := os.OpenFile(opts.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		outW = io.MultiWriter(os.Stdout, f)
		errW = io.MultiWriter(os.Stderr, f)
	}

	newHandler := func(w io.Writer) slog.Handler {
		if opts.json {
			return slog.NewJSONHandler(w, hopts)
		}
		return slog.NewTextHandler(w, hopts)
	}

	logger := slog.New(&levelRouter{level: level, out: newHandler(outW), err: newHandler(errW)})
	slog.SetDefault(logger)
	return logger, cleanup, nil
}
