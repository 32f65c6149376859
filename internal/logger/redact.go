package logger

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

const redacted = "[REDACTED]"

var sensitiveKeys = map[string]struct{}{
	"password":      {},
	"oldpassword":   {},
	"newpassword":   {},
	"accesstoken":   {},
	"refreshtoken":  {},
	"authorization": {},
	"cookie":        {},
	"set-cookie":    {},
}

// RedactingHandler masks secrets in attributes before they reach the wrapped
// handler, including attributes nested in groups.
type RedactingHandler struct {
	next slog.Handler
}

func NewRedactingHandler(next slog.Handler) *RedactingHandler {
	return &RedactingHandler{next: next}
}

func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	clean := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(redactAttr(a))
		return true
	})
	return h.next.Handle(ctx, clean)
}

func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cleaned := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		cleaned[i] = redactAttr(a)
	}
	return &RedactingHandler{next: h.next.WithAttrs(cleaned)}
}

func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{next: h.next.WithGroup(name)}
}

func redactAttr(a slog.Attr) slog.Attr {
	if _, ok := sensitiveKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, redacted)
	}

	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		cleaned := make([]any, len(group))
		for i, inner := range group {
			cleaned[i] = redactAttr(inner)
		}
		return slog.Group(a.Key, cleaned...)
	}

	return a
}

// NewHandler picks a JSON handler in production and the pretty handler
// otherwise. Both redact secrets.
func NewHandler(w io.Writer, production bool, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if production {
		return NewRedactingHandler(slog.NewJSONHandler(w, opts))
	}
	return NewRedactingHandler(NewPrettyHandler(w, opts))
}

// ParseLevel maps debug, info, warn and error onto slog levels, defaulting to info.
func ParseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
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
