package logging

import (
	"context"
	"errors"
	"log/slog"
)

// MultiHandler sends each record to every handler that accepts its level.
type MultiHandler struct {
	handlers []slog.Handler
}

// NewMultiHandler drops nil entries, so optional outputs can be passed as is.
func NewMultiHandler(handlers ...slog.Handler) *MultiHandler {
	m := &MultiHandler{}
	for _, h := range handlers {
		if h != nil {
			m.handlers = append(m.handlers, h)
		}
	}
	return m
}

func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle keeps going past a failing handler and returns the joined errors.
func (m *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range m.handlers {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of outputs.
func (m *MultiHandler) Len() int { return len(m.handlers) }

func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return m.derive(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (m *MultiHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return m
	}
	return m.derive(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (m *MultiHandler) derive(fn func(slog.Handler) slog.Handler) *MultiHandler {
	out := &MultiHandler{handlers: make([]slog.Handler, len(m.handlers))}
	for i, h := range m.handlers {
		out.handlers[i] = fn(h)
	}
	return out
}
