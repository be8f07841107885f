// Package logging builds the slog.Logger used by the pmasim command.
//
// Without a log file, records below error go to the standard output writer
// and errors go to the standard error writer. With a log file, the console
// only receives errors and every record is appended to a size-rotated file.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ardnew/pmausb/pkg"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LevelTrace is the level of the driver's per-packet output.
const LevelTrace = pkg.LevelTrace

// Rotation limits for file output.
const (
	MaxFileSizeMB  = 20
	MaxFileBackups = 3
)

// ParseLevel maps a level name to a slog.Level. Unknown names yield Info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Options selects the logger configuration.
type Options struct {
	Level  string // trace, debug, info, warn, error
	Format string // text or json
	File   string // rotated log file; empty for console only

	Stdout io.Writer // defaults to os.Stdout
	Stderr io.Writer // defaults to os.Stderr
}

// MultiHandler fans out records to multiple handlers.
type MultiHandler struct{ hs []slog.Handler }

// NewMultiHandler returns a handler writing to each of hs.
func NewMultiHandler(hs ...slog.Handler) MultiHandler {
	return MultiHandler{hs: hs}
}

func (m MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.hs {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var first error
	for _, h := range m.hs {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(m.hs))
	for i, h := range m.hs {
		out[i] = h.WithAttrs(attrs)
	}
	return MultiHandler{hs: out}
}

func (m MultiHandler) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(m.hs))
	for i, h := range m.hs {
		out[i] = h.WithGroup(name)
	}
	return MultiHandler{hs: out}
}

// LevelFilter passes records to h only when pass accepts their level.
type LevelFilter struct {
	pass func(slog.Level) bool
	h    slog.Handler
}

func (f LevelFilter) Enabled(ctx context.Context, level slog.Level) bool {
	if !f.pass(level) {
		return false
	}
	return f.h.Enabled(ctx, level)
}

func (f LevelFilter) Handle(ctx context.Context, r slog.Record) error {
	if !f.pass(r.Level) {
		return nil
	}
	return f.h.Handle(ctx, r)
}

func (f LevelFilter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return LevelFilter{pass: f.pass, h: f.h.WithAttrs(attrs)}
}

func (f LevelFilter) WithGroup(name string) slog.Handler {
	return LevelFilter{pass: f.pass, h: f.h.WithGroup(name)}
}

func newHandler(format string, w io.Writer, level slog.Level) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: replaceLevel}
	switch strings.ToLower(format) {
	case "text", "":
		return slog.NewTextHandler(w, opts), nil
	case "json":
		return slog.NewJSONHandler(w, opts), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// replaceLevel prints LevelTrace as TRACE instead of DEBUG-4.
func replaceLevel(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	if lvl, ok := a.Value.Any().(slog.Level); ok && lvl <= LevelTrace {
		a.Value = slog.StringValue("TRACE")
	}
	return a
}

func isError(l slog.Level) bool { return l >= slog.LevelError }

// Setup builds a logger from opts. The returned closers must be closed when
// the logger is no longer used.
func Setup(opts Options) (*slog.Logger, []io.Closer, error) {
	stdout, stderr := opts.Stdout, opts.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	level := ParseLevel(opts.Level)

	var (
		handlers []slog.Handler
		closers  []io.Closer
	)
	errHandler, err := newHandler(opts.Format, stderr, slog.LevelError)
	if err != nil {
		return nil, nil, err
	}
	handlers = append(handlers, LevelFilter{pass: isError, h: errHandler})

	if opts.File == "" {
		outHandler, err := newHandler(opts.Format, stdout, level)
		if err != nil {
			return nil, nil, err
		}
		notError := func(l slog.Level) bool { return !isError(l) }
		handlers = append(handlers, LevelFilter{pass: notError, h: outHandler})
	} else {
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    MaxFileSizeMB,
			MaxBackups: MaxFileBackups,
		}
		closers = append(closers, lj)
		fileHandler, err := newHandler(opts.Format, lj, level)
		if err != nil {
			return nil, nil, err
		}
		handlers = append(handlers, fileHandler)
	}

	return slog.New(NewMultiHandler(handlers...)), closers, nil
}
