package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// New creates a configured process logger.
// It writes to Stderr so function output and runtime diagnostics stay apart.
// It standardizes common keys (e.g., "error" -> "err").
func New(level slog.Level) *slog.Logger {
	return NewWithFormat(os.Stderr, level, "text")
}

// NewWithFormat creates a logger writing to w in "text" or "json" format.
func NewWithFormat(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Standardize 'error' key to 'err'
			if a.Key == "error" {
				a.Key = "err"
			}
			return a
		},
	}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// NewNop returns a no-op logger.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels.
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Printf adapts a slog logger to printf-style logger interfaces
// such as the one used by HTTP clients.
type Printf struct {
	Logger *slog.Logger
}

func (p Printf) Errorf(format string, v ...any) {
	p.Logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (p Printf) Warnf(format string, v ...any) {
	p.Logger.Warn(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (p Printf) Debugf(format string, v ...any) {
	p.Logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
