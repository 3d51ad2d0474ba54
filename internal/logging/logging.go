// Package logging builds the structured loggers used across trackerd.
//
// Every component takes a *slog.Logger (or derives one via .With(...))
// instead of reaching for the global log package. On a terminal, output
// is a short colored line; otherwise it falls back to plain JSON so the
// nameserver/peer/cluster subprocesses remain greppable in CI and logs.
package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// New returns a logger for the named component (e.g. "peer", "election",
// "tracker-index"), writing to w (os.Stderr in normal operation).
func New(w io.Writer, component string, level slog.Level) *slog.Logger {
	var handler slog.Handler
	if f, ok := w.(*os.File); ok && isTerminal(f) {
		handler = newPrettyHandler(w, level)
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler).With("component", component)
}

// Default builds the process-wide logger at info level to stderr.
func Default(component string) *slog.Logger {
	return New(os.Stderr, component, slog.LevelInfo)
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// prettyHandler is a small color-coded single-line slog.Handler.
// Adapted from the pack's errgroup-heavy BitTorrent client, which faces
// the same "many concurrent goroutines logging at once" problem we have
// between the watchdog, election, and heartbeat loops.
type prettyHandler struct {
	mu     *sync.Mutex
	writer io.Writer
	level  slog.Level
	attrs  []slog.Attr

	colorLevel map[slog.Level]func(...interface{}) string
	colorTime  func(...interface{}) string
	colorMsg   func(...interface{}) string
	colorAttr  func(...interface{}) string
}

func newPrettyHandler(w io.Writer, level slog.Level) *prettyHandler {
	return &prettyHandler{
		mu:     &sync.Mutex{},
		writer: w,
		level:  level,
		colorTime: color.New(color.FgHiBlack).SprintFunc(),
		colorMsg:  color.New(color.FgCyan).SprintFunc(),
		colorAttr: color.New(color.FgWhite).SprintFunc(),
		colorLevel: map[slog.Level]func(...interface{}) string{
			slog.LevelDebug: color.New(color.FgMagenta).SprintFunc(),
			slog.LevelInfo:  color.New(color.FgBlue).SprintFunc(),
			slog.LevelWarn:  color.New(color.FgYellow).SprintFunc(),
			slog.LevelError: color.New(color.FgRed, color.Bold).SprintFunc(),
		},
	}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *prettyHandler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer

	buf.WriteString(h.colorTime(r.Time.Format(time.RFC3339Nano)))
	buf.WriteByte(' ')

	levelStr := strings.ToUpper(r.Level.String())
	if fn, ok := h.colorLevel[r.Level]; ok {
		buf.WriteString(fn(fmt.Sprintf("%-5s", levelStr)))
	} else {
		buf.WriteString(fmt.Sprintf("%-5s", levelStr))
	}
	buf.WriteByte(' ')
	buf.WriteString(h.colorMsg(r.Message))

	writeAttr := func(a slog.Attr) bool {
		buf.WriteByte(' ')
		buf.WriteString(h.colorAttr(a.Key + "=" + a.Value.String()))
		return true
	}
	for _, a := range h.attrs {
		writeAttr(a)
	}
	r.Attrs(writeAttr)

	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.writer.Write(buf.Bytes())
	return err
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &prettyHandler{
		mu:         h.mu,
		writer:     h.writer,
		level:      h.level,
		attrs:      append(append([]slog.Attr(nil), h.attrs...), attrs...),
		colorLevel: h.colorLevel,
		colorTime:  h.colorTime,
		colorMsg:   h.colorMsg,
		colorAttr:  h.colorAttr,
	}
	return next
}

func (h *prettyHandler) WithGroup(_ string) slog.Handler {
	// Groups aren't meaningful for our flat single-line format; attrs
	// still get attached, just ungrouped.
	return h
}
