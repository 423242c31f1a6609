package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const componentKey = "component"

// LogEntry is one line of JSON-format output.
type LogEntry struct {
	Level     string         `json:"level"`
	Timestamp string         `json:"timestamp"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
	Caller    string         `json:"caller,omitempty"`
}

type syncWriter struct {
	mu  sync.Mutex
	out io.Writer
}

func (w *syncWriter) writeLine(line []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := w.out.Write(append(line, '\n'))
	return err
}

// entryHandler renders records as LogEntry lines. Attributes bound through
// WithAttrs are flattened once, when the derived handler is created.
type entryHandler struct {
	out       *syncWriter
	minLevel  slog.Level
	addSource bool

	prefix    string
	component string
	bound     map[string]any
}

func newEntryHandler(out io.Writer, minLevel slog.Level, addSource bool) *entryHandler {
	return &entryHandler{
		out:       &syncWriter{out: out},
		minLevel:  minLevel,
		addSource: addSource,
	}
}

func (h *entryHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.minLevel
}

func (h *entryHandler) Handle(_ context.Context, record slog.Record) error {
	at := record.Time
	if at.IsZero() {
		at = time.Now()
	}

	entry := LogEntry{
		Level:     strings.ToLower(record.Level.String()),
		Timestamp: at.UTC().Format(time.RFC3339Nano),
		Component: h.component,
		Message:   record.Message,
	}

	fields := maps.Clone(h.bound)
	if fields == nil {
		fields = make(map[string]any, record.NumAttrs())
	}
	record.Attrs(func(attr slog.Attr) bool {
		h.store(fields, &entry.Component, attr)
		return true
	})
	if len(fields) > 0 {
		entry.Fields = fields
	}

	if h.addSource {
		if src := record.Source(); src != nil && src.File != "" {
			entry.Caller = fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line)
		}
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode log entry: %w", err)
	}
	return h.out.writeLine(line)
}

func (h *entryHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.bound = maps.Clone(h.bound)
	if next.bound == nil {
		next.bound = make(map[string]any, len(attrs))
	}
	for _, attr := range attrs {
		next.store(next.bound, &next.component, attr)
	}
	return &next
}

func (h *entryHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

// store puts attr into fields under its group-qualified key. An ungrouped
// string "component" attribute is promoted to the entry itself.
func (h *entryHandler) store(fields map[string]any, component *string, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}

	if h.prefix == "" && attr.Key == componentKey && attr.Value.Kind() == slog.KindString {
		*component = attr.Value.String()
		return
	}

	fields[h.prefix+attr.Key] = jsonValue(attr.Value)
}

func jsonValue(value slog.Value) any {
	switch value.Kind() {
	case slog.KindDuration:
		return value.Duration().String()
	case slog.KindTime:
		return value.Time().UTC().Format(time.RFC3339Nano)
	case slog.KindGroup:
		out := make(map[string]any)
		for _, item := range value.Group() {
			out[item.Key] = jsonValue(item.Value.Resolve())
		}
		return out
	case slog.KindAny:
		if err, ok := value.Any().(error); ok {
			return err.Error()
		}
		return value.Any()
	default:
		return value.Any()
	}
}
