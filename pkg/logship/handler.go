package logship

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Handler is a slog.Handler that formats records as
//
//	time=<RFC3339> level=<LEVEL> path=<file> line=<n> msg=<msg> [key=value ...]
//
// and appends them to a Shipper.
type Handler struct {
	shipper *Shipper
	level   slog.Leveler
	prefix  string // pre-rendered attrs from WithAttrs
	group   string // dotted group path from WithGroup
}

// NewHandler returns a handler feeding shipper with records at or above level.
func NewHandler(shipper *Shipper, level slog.Leveler) *Handler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &Handler{shipper: shipper, level: level}
}

func (h *Handler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	t := r.Time
	if t.IsZero() {
		t = time.Now()
	}
	b.WriteString("time=")
	b.WriteString(t.Format(time.RFC3339))
	b.WriteString(" level=")
	b.WriteString(r.Level.String())

	file, line := source(r.PC)
	b.WriteString(" path=")
	b.WriteString(file)
	b.WriteString(" line=")
	b.WriteString(strconv.Itoa(line))

	b.WriteString(" msg=")
	b.WriteString(quote(r.Message))
	b.WriteString(h.prefix)

	r.Attrs(func(a slog.Attr) bool {
		h.appendAttr(&b, h.group, a)
		return true
	})

	h.shipper.Append(b.String())
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var b strings.Builder
	b.WriteString(h.prefix)
	for _, a := range attrs {
		h.appendAttr(&b, h.group, a)
	}
	clone := *h
	clone.prefix = b.String()
	return &clone
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.group = join(h.group, name)
	return &clone
}

func source(pc uintptr) (string, int) {
	if pc == 0 {
		return "unknown", 0
	}
	frames := runtime.CallersFrames([]uintptr{pc})
	f, _ := frames.Next()
	return filepath.Base(f.File), f.Line
}

// Redacted replaces the value of masked attributes.
const Redacted = "***"

func (h *Handler) redacted(key string) bool {
	key = strings.ToLower(key)
	for _, p := range h.shipper.redact {
		if ok, _ := path.Match(p, key); ok {
			return true
		}
	}
	return false
}

func (h *Handler) appendAttr(b *strings.Builder, group string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		g := group
		if a.Key != "" {
			g = join(group, a.Key)
		}
		for _, ga := range a.Value.Group() {
			h.appendAttr(b, g, ga)
		}
		return
	}

	b.WriteByte(' ')
	b.WriteString(join(group, a.Key))
	b.WriteByte('=')

	var s string
	switch {
	case h.redacted(a.Key):
		s = Redacted
	case a.Value.Kind() == slog.KindTime:
		s = a.Value.Time().Format(time.RFC3339)
	case a.Value.Kind() == slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			s = err.Error()
			break
		}
		s = a.Value.String()
	default:
		s = a.Value.String()
	}
	b.WriteString(quote(s))
}

func join(group, key string) string {
	if group == "" {
		return key
	}
	return group + "." + key
}

// quote quotes s when it would not survive a key=value split.
func quote(s string) string {
	if s == "" {
		return `""`
	}
	if strings.ContainsAny(s, " \t\n\r\"=") {
		return strconv.Quote(s)
	}
	return s
}

// Tee fans records out to several handlers.
func Tee(handlers ...slog.Handler) slog.Handler {
	return teeHandler(handlers)
}

type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}
