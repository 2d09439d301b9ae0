package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// ConsoleLogger writes structured records through log/slog.
// JSON, plain text or colored text depending on configuration.
type ConsoleLogger struct {
	handler slog.Handler
}

// NewConsoleLogger creates a new console logger
func NewConsoleLogger(config *Config) (*ConsoleLogger, error) {
	out := config.Console.Output
	if out == nil {
		out = os.Stderr
	}
	w := &lockedWriter{w: out}

	opts := &slog.HandlerOptions{
		Level: slogLevel(config.Level),
	}

	var handler slog.Handler
	switch {
	case config.Format == FormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	case config.Console.Color:
		handler = newColorTextHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return &ConsoleLogger{handler: handler}, nil
}

// log writes a log entry to the console
func (cl *ConsoleLogger) log(ctx context.Context, level LogLevel, msg string, component Component, fields map[string]interface{}) {
	lvl := slogLevel(level)
	if !cl.handler.Enabled(ctx, lvl) {
		return
	}

	record := slog.NewRecord(time.Now(), lvl, msg, 0)
	if component != "" {
		record.AddAttrs(slog.String("component", string(component)))
	}

	// Sorted so output is stable
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		record.AddAttrs(slog.Any(k, fields[k]))
	}

	_ = cl.handler.Handle(ctx, record)
}

// Close is a no-op; console writes are synchronous
func (cl *ConsoleLogger) Close() error {
	return nil
}

// slogLevel converts our LogLevel to slog.Level
func slogLevel(level LogLevel) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// lockedWriter serializes writes from concurrent loggers sharing one output
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (lw *lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}

// colorTextHandler prints one human-readable line per record:
//
//	15:04:05 INFO  [service] plan generated plan_id=... blocks=6
type colorTextHandler struct {
	w     io.Writer
	opts  *slog.HandlerOptions
	attrs []slog.Attr

	levelColors map[slog.Level]*color.Color
	keyColor    *color.Color
}

func newColorTextHandler(w io.Writer, opts *slog.HandlerOptions) *colorTextHandler {
	return &colorTextHandler{
		w:    w,
		opts: opts,
		levelColors: map[slog.Level]*color.Color{
			slog.LevelDebug: color.New(color.FgCyan),
			slog.LevelInfo:  color.New(color.FgGreen),
			slog.LevelWarn:  color.New(color.FgYellow),
			slog.LevelError: color.New(color.FgRed, color.Bold),
		},
		keyColor: color.New(color.Faint),
	}
}

// Enabled implements slog.Handler
func (h *colorTextHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts != nil && h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

// Handle implements slog.Handler
func (h *colorTextHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	b.WriteString(r.Time.Format("15:04:05"))
	b.WriteByte(' ')

	levelStr := fmt.Sprintf("%-5s", r.Level.String())
	if c, ok := h.levelColors[r.Level]; ok {
		levelStr = c.Sprint(levelStr)
	}
	b.WriteString(levelStr)
	b.WriteByte(' ')

	writeAttr := func(a slog.Attr) {
		if a.Key == "component" {
			return
		}
		fmt.Fprintf(&b, " %s=%v", h.keyColor.Sprint(a.Key), a.Value.Any())
	}

	var component string
	find := func(a slog.Attr) bool {
		if a.Key == "component" {
			component = a.Value.String()
		}
		return true
	}
	for _, a := range h.attrs {
		find(a)
	}
	r.Attrs(find)
	if component != "" {
		fmt.Fprintf(&b, "[%s] ", component)
	}

	b.WriteString(r.Message)
	for _, a := range h.attrs {
		writeAttr(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(a)
		return true
	})
	b.WriteByte('\n')

	_, err := io.WriteString(h.w, b.String())
	return err
}

// WithAttrs implements slog.Handler
func (h *colorTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

// WithGroup implements slog.Handler. Groups are flattened.
func (h *colorTextHandler) WithGroup(_ string) slog.Handler {
	return h
}
