// Package logging builds the gateway's slog logger: JSON to stdout, plus an
// optional size-rotated JSON file.
package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tjfontaine/edge-gateway/internal/config"
	"github.com/tjfontaine/edge-gateway/internal/pkg/timefmt"
)

// New returns a logger writing to out (os.Stdout when nil) and, if enabled,
// to a rotating log file. The returned cleanup closes the file.
func New(cfg config.LoggingConfig, out io.Writer) (*slog.Logger, func(), error) {
	if out == nil {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level:       ParseLevel(cfg.Level),
		ReplaceAttr: replaceAttr,
	}
	stdout := slog.NewJSONHandler(out, opts)

	if !cfg.File.Enabled {
		return slog.New(stdout), func() {}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File.Path), 0o755); err != nil {
		return nil, nil, err
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.File.Path,
		MaxSize:    cfg.File.MaxSizeMB,
		MaxBackups: cfg.File.MaxBackups,
		MaxAge:     cfg.File.MaxAgeDays,
		Compress:   cfg.File.Compress,
	}

	handler := &multiHandler{handlers: []slog.Handler{
		stdout,
		slog.NewJSONHandler(rotator, opts),
	}}

	cleanup := func() {
		_ = rotator.Close()
	}

	return slog.New(handler), cleanup, nil
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

func replaceAttr(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey && len(groups) == 0 {
		return slog.String(slog.TimeKey, timefmt.Format(a.Value.Time(), timefmt.DateTime))
	}
	return a
}

// multiHandler fans records out to every handler that accepts them.
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, hh := range h.handlers {
		if hh.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, hh := range h.handlers {
		if hh.Enabled(ctx, record.Level) {
			if err := hh.Handle(ctx, record.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(h.handlers))
	for i, hh := range h.handlers {
		out[i] = hh.WithAttrs(attrs)
	}
	return &multiHandler{handlers: out}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(h.handlers))
	for i, hh := range h.handlers {
		out[i] = hh.WithGroup(name)
	}
	return &multiHandler{handlers: out}
}
