// Package presenter draws timeline render calls as plain text lines.
package presenter

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/OCAP2/timeslider/internal/timescale"
	"github.com/OCAP2/timeslider/pkg/core"
)

// Text implements engine.Renderer on an io.Writer. Marker moves are only
// written in verbose mode; blocks, overlays and visibility changes always are.
type Text struct {
	mu      sync.Mutex
	w       io.Writer
	verbose bool
	shown   map[int]bool
	names   func(track int) string
}

// Option configures a Text presenter.
type Option func(*Text)

// Verbose writes every marker move.
func Verbose(on bool) Option { return func(t *Text) { t.verbose = on } }

// WithTrackNames labels tracks with fn(track) instead of their index.
func WithTrackNames(fn func(track int) string) Option { return func(t *Text) { t.names = fn } }

// NewText creates a presenter writing to w.
func NewText(w io.Writer, opts ...Option) *Text {
	t := &Text{w: w, shown: make(map[int]bool)}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Text) label(track int) string {
	if t.names != nil {
		if n := t.names(track); n != "" {
			return fmt.Sprintf("%d %s", track, n)
		}
	}
	return fmt.Sprintf("%d", track)
}

// RenderBlocks writes one line listing the track's blocks.
func (t *Text) RenderBlocks(track int, blocks []core.Block) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "track %s:", t.label(track))
	for _, blk := range blocks {
		fmt.Fprintf(&b, " [%s-%s %s]",
			timescale.FormatTimeOfDay(blk.StartSeconds),
			timescale.FormatTimeOfDay(blk.EndSeconds),
			blk.Kind)
	}
	fmt.Fprintln(t.w, b.String())
}

// RenderMarker writes the marker position when it appears or disappears, and
// on every move in verbose mode.
func (t *Text) RenderMarker(track int, px float64, visible bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	was := t.shown[track]
	t.shown[track] = visible
	switch {
	case visible && (!was || t.verbose):
		fmt.Fprintf(t.w, "marker %s at %.2fpx\n", t.label(track), px)
	case !visible && was:
		fmt.Fprintf(t.w, "marker %s hidden\n", t.label(track))
	}
}

// RenderOverlay writes the visible part of an overlay.
func (t *Text) RenderOverlay(track int, startPx, widthPx float64, style core.OverlayStyle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.w, "overlay %s on track %s: %.2fpx +%.2fpx %s opacity %.2f z %d\n",
		style.ID, t.label(track), startPx, widthPx, style.Color, style.Opacity, style.ZIndexHint)
}

// Clear forgets marker visibility; the next render starts from scratch.
func (t *Text) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.shown = make(map[int]bool)
}
