// Package logger builds the slog loggers used by lookbook commands and
// services. Logs go to stderr by default so stdout stays free for results.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
	"golang.org/x/term"
)

type config struct {
	level     slog.Level
	format    Format
	writer    io.Writer
	component string
}

// New builds a *slog.Logger. With FormatAuto the charmbracelet/log handler
// is used when the writer is a terminal and slog's text handler otherwise.
func New(opts ...Option) *slog.Logger {
	c := &config{
		level:  slog.LevelInfo,
		format: FormatAuto,
		writer: os.Stderr,
	}
	for _, opt := range opts {
		opt(c)
	}

	format := c.format
	if format == FormatAuto {
		format = FormatText
		if isTerminal(c.writer) {
			format = FormatPretty
		}
	}

	var h slog.Handler
	switch format {
	case FormatJSON:
		h = slog.NewJSONHandler(c.writer, &slog.HandlerOptions{Level: c.level})
	case FormatPretty:
		h = charmlog.NewWithOptions(c.writer, charmlog.Options{
			Level:           charmlog.Level(c.level),
			ReportTimestamp: true,
			Prefix:          c.component,
		})
	default:
		h = slog.NewTextHandler(c.writer, &slog.HandlerOptions{Level: c.level})
	}

	l := slog.New(h)
	if c.component != "" && format != FormatPretty {
		l = l.With("component", c.component)
	}
	return l
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(nopHandler{})
}

type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (h nopHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h nopHandler) WithGroup(string) slog.Handler           { return h }

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
