package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// ViewGroup is the group the timeline view attributes are logged under.
const ViewGroup = "view"

// ViewFunc returns the attributes describing what the timeline shows right
// now. It is called once per record and must not take locks held by code
// that logs.
type ViewFunc func() []slog.Attr

// ViewSource holds the current ViewFunc. Handlers derived from one
// ViewHandler share it, so the function can be installed after loggers
// have been handed out.
type ViewSource struct {
	fn atomic.Pointer[ViewFunc]
}

// Set installs fn. A nil fn stops the stamping.
func (s *ViewSource) Set(fn ViewFunc) {
	if fn == nil {
		s.fn.Store(nil)
		return
	}
	s.fn.Store(&fn)
}

func (s *ViewSource) attrs() []slog.Attr {
	if s == nil {
		return nil
	}
	if fn := s.fn.Load(); fn != nil {
		return (*fn)()
	}
	return nil
}

// ViewHandler stamps every record with the current view, grouped under
// ViewGroup, before passing it on.
type ViewHandler struct {
	next   slog.Handler
	source *ViewSource
}

func NewViewHandler(next slog.Handler, source *ViewSource) *ViewHandler {
	return &ViewHandler{next: next, source: source}
}

func (h *ViewHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle works on a clone so the caller's record is left untouched.
func (h *ViewHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs := h.source.attrs(); len(attrs) > 0 {
		r = r.Clone()
		r.AddAttrs(slog.Attr{Key: ViewGroup, Value: slog.GroupValue(attrs...)})
	}
	return h.next.Handle(ctx, r)
}

func (h *ViewHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewViewHandler(h.next.WithAttrs(attrs), h.source)
}

func (h *ViewHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return NewViewHandler(h.next.WithGroup(name), h.source)
}
