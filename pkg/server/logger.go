package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/mikeboe/search-agent/pkg/database"
)

// LogSink persists log records for one run.
type LogSink interface {
	AppendLog(ctx context.Context, runID uuid.UUID, e database.LogEntry) error
}

// DBLogHandler is a slog.Handler that writes records to the audit store and
// forwards them to next, usually the console handler.
type DBLogHandler struct {
	Sink  LogSink
	RunID uuid.UUID

	next   slog.Handler
	attrs  []slog.Attr
	groups []string
}

func NewDBLogHandler(sink LogSink, runID uuid.UUID, next slog.Handler) *DBLogHandler {
	return &DBLogHandler{Sink: sink, RunID: runID, next: next}
}

// Enabled follows next so the run log keeps the same records as the console.
// Without next every level is stored.
func (h *DBLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.next != nil {
		return h.next.Enabled(ctx, level)
	}
	return true
}

func (h *DBLogHandler) Handle(ctx context.Context, r slog.Record) error {
	attrs := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		attrs[a.Key] = attrValue(a.Value)
	}
	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[prefix+a.Key] = attrValue(a.Value)
		return true
	})

	metaJSON, err := json.Marshal(attrs)
	if err != nil {
		metaJSON = []byte("{}")
	}

	// Logs outlive the request that produced them.
	dbErr := h.Sink.AppendLog(context.WithoutCancel(ctx), h.RunID, database.LogEntry{
		Timestamp: r.Time,
		Level:     r.Level.String(),
		Message:   r.Message,
		Metadata:  metaJSON,
	})

	if h.next != nil {
		if err := h.next.Handle(ctx, r); err != nil {
			return err
		}
	}
	return dbErr
}

func (h *DBLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}
	cp.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		cp.attrs = append(cp.attrs, slog.Attr{Key: prefix + a.Key, Value: a.Value})
	}
	if h.next != nil {
		cp.next = h.next.WithAttrs(attrs)
	}
	return &cp
}

func (h *DBLogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	cp := *h
	cp.groups = append(append([]string(nil), h.groups...), name)
	if h.next != nil {
		cp.next = h.next.WithGroup(name)
	}
	return &cp
}

// attrValue turns errors into their message so they survive JSON encoding.
func attrValue(v slog.Value) any {
	v = v.Resolve()
	if err, ok := v.Any().(error); ok {
		return err.Error()
	}
	return v.Any()
}
