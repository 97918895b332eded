package logging

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// LogPublisher receives log records as user-facing Log events. The engine's
// event bus implements it.
type LogPublisher interface {
	PublishLog(level, message string, ts time.Time)
}

type streamHandler struct {
	next      slog.Handler
	publisher LogPublisher
	jobID     string
}

func newStreamHandler(next slog.Handler, publisher LogPublisher) slog.Handler {
	if publisher == nil || next == nil {
		return next
	}
	return &streamHandler{next: next, publisher: publisher}
}

func (h *streamHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo || h.next.Enabled(ctx, level)
}

func (h *streamHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level >= slog.LevelInfo {
		ts := record.Time
		if ts.IsZero() {
			ts = time.Now()
		}
		h.publisher.PublishLog(eventLevel(record.Level), h.message(record), ts.UTC())
	}
	if !h.next.Enabled(ctx, record.Level) {
		return nil
	}
	return h.next.Handle(ctx, record.Clone())
}

func (h *streamHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := &streamHandler{next: h.next.WithAttrs(attrs), publisher: h.publisher, jobID: h.jobID}
	for _, attr := range attrs {
		if attr.Key == FieldJobID {
			clone.jobID = attrString(attr.Value)
		}
	}
	return clone
}

func (h *streamHandler) WithGroup(name string) slog.Handler {
	return &streamHandler{next: h.next.WithGroup(name), publisher: h.publisher, jobID: h.jobID}
}

// message prefixes the job id when the record is about one job, so
// listeners without structured fields can still tell lines apart.
func (h *streamHandler) message(record slog.Record) string {
	msg := strings.TrimSpace(record.Message)
	jobID := h.jobID
	record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == FieldJobID {
			jobID = attrString(attr.Value)
			return false
		}
		return true
	})
	if jobID == "" {
		return msg
	}
	return "[" + shortID(jobID) + "] " + msg
}

func eventLevel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	default:
		return "info"
	}
}
