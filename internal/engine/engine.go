// Package engine synchronises the timeline components of one widget instance:
// it builds blocks from the Data Provider, drives one marker clock per track,
// and keeps marker state consistent across destructive re-renders.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OCAP2/timeslider/internal/marker"
	"github.com/OCAP2/timeslider/internal/markerstore"
	"github.com/OCAP2/timeslider/internal/overlay"
	"github.com/OCAP2/timeslider/internal/seek"
	"github.com/OCAP2/timeslider/internal/segment"
	"github.com/OCAP2/timeslider/internal/timescale"
	"github.com/OCAP2/timeslider/pkg/core"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DefaultWidth is the available timeline width when none is configured.
const DefaultWidth = 1200

// DefaultTheme is the theme name of a fresh engine.
const DefaultTheme = "light-theme"

// Option configures an Engine.
type Option func(*Engine)

func WithScheduler(s marker.Scheduler) Option { return func(e *Engine) { e.scheduler = s } }
func WithStore(s *markerstore.Store) Option   { return func(e *Engine) { e.store = s } }
func WithTimeProvider(tp marker.TimeProvider) Option {
	return func(e *Engine) { e.now = tp }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithZoom selects the initial zoom level by its number of divisions.
// Unknown values keep the coarsest level.
func WithZoom(divisions int) Option {
	return func(e *Engine) {
		if lvl, err := timescale.LevelFor(divisions); err == nil {
			e.zoom = lvl
		}
	}
}

// WithWidth sets the available width and the floor of the scale width.
func WithWidth(available, minScaleWidth float64) Option {
	return func(e *Engine) {
		if available > 0 {
			e.width = available
		}
		if minScaleWidth > 0 {
			e.minScaleWidth = minScaleWidth
		}
	}
}

func WithDate(d core.Date) Option { return func(e *Engine) { e.date = d } }

func WithTheme(name string) Option {
	return func(e *Engine) {
		if name != "" {
			e.theme = name
		}
	}
}

// WithSpeed sets the multiplier of every track's clock.
func WithSpeed(m float64) Option { return func(e *Engine) { e.speed = m } }

// WithLocation sets the zone used to turn seconds of day into timestamps.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithSweepStale removes a track's states on other dates whenever it gets a
// new placement.
func WithSweepStale(on bool) Option { return func(e *Engine) { e.sweepStale = on } }

// OnActivate registers a callback for placements made by ActivateBlock or
// ActivateAt.
func OnActivate(fn func(Activation)) Option { return func(e *Engine) { e.onActivate = fn } }

// view is the part of the engine state stamped on log records. It is
// published atomically so log handlers never take the engine lock.
type view struct {
	date  string
	zoom  int
	theme string
}

// Engine is safe for concurrent use. Every operation and every tick runs
// under one mutex, so a re-render is never observed half done.
type Engine struct {
	mu sync.Mutex

	provider  Provider
	renderer  Renderer
	scheduler marker.Scheduler
	store     *markerstore.Store
	overlays  *overlay.Registry
	handles   *marker.Handles
	now       marker.TimeProvider
	log       *slog.Logger
	metrics   *metrics

	clocks []*marker.Clock
	gens   []uint64
	blocks [][]core.Block
	spans  [][]seek.Span

	date          core.Date
	zoom          core.ZoomLevel
	scale         timescale.Scale
	width         float64
	minScaleWidth float64
	theme         string
	speed         float64
	loc           *time.Location
	sweepStale    bool
	onActivate    func(Activation)

	destroyed bool
	view      atomic.Pointer[view]
}

// New creates an engine over provider and renderer. Nothing is drawn until
// Render is called.
func New(provider Provider, renderer Renderer, opts ...Option) (*Engine, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: nil provider", core.ErrInvalidInput)
	}
	if renderer == nil {
		renderer = NopRenderer{}
	}

	e := &Engine{
		provider:      provider,
		renderer:      renderer,
		overlays:      overlay.NewRegistry(),
		handles:       marker.NewHandles(),
		now:           marker.RealTime,
		log:           slog.Default(),
		zoom:          timescale.Levels[0],
		width:         DefaultWidth,
		minScaleWidth: timescale.DefaultMinPixelsPerUnit,
		theme:         DefaultTheme,
		speed:         marker.DefaultSpeed,
		loc:           time.Local,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.scheduler == nil {
		e.scheduler = marker.NewTimerScheduler(marker.DefaultTickInterval)
	}
	if e.store == nil {
		e.store = markerstore.New(markerstore.WithLogger(e.log))
	}
	if e.date.IsZero() {
		e.date = core.DateOf(e.now.Now().In(e.loc))
	}
	if e.speed <= 0 || math.IsNaN(e.speed) || math.IsInf(e.speed, 0) {
		return nil, fmt.Errorf("%w: speed multiplier %v", core.ErrInvalidInput, e.speed)
	}

	m, err := newMetrics()
	if err != nil {
		return nil, err
	}
	e.metrics = m

	e.scale = timescale.NewScale(e.zoom, e.width, e.minScaleWidth)
	e.syncTracks()
	e.publishView()
	return e, nil
}

// Tracks returns the number of tracks.
func (e *Engine) Tracks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.clocks)
}

// Render performs a full destructive re-render of the current date.
func (e *Engine) Render() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.alive(); err != nil {
		return err
	}
	e.rerender(e.date, "render")
	return nil
}

// SetProvider swaps the Data Provider and re-renders. Tracks beyond the new
// provider's count are dropped.
func (e *Engine) SetProvider(p Provider) error {
	if p == nil {
		return fmt.Errorf("%w: nil provider", core.ErrInvalidInput)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.alive(); err != nil {
		return err
	}
	e.provider = p
	e.rerender(e.date, "data")
	return nil
}

func (e *Engine) alive() error {
	if e.destroyed {
		return core.ErrDestroyed
	}
	return nil
}

// syncTracks sizes the per-track slices to the provider's track count.
func (e *Engine) syncTracks() {
	n := e.provider.Tracks()
	if n < 0 {
		n = 0
	}
	for len(e.clocks) < n {
		e.clocks = append(e.clocks, marker.NewClock(e.speed))
		e.gens = append(e.gens, 0)
	}
	for t := n; t < len(e.clocks); t++ {
		e.handles.Cancel(t)
	}
	e.clocks, e.gens = e.clocks[:n], e.gens[:n]
	e.blocks = make([][]core.Block, n)
	e.spans = make([][]seek.Span, n)
}

// saveAll snapshots every placed marker under date.
func (e *Engine) saveAll(date core.Date) {
	for t, c := range e.clocks {
		if c.Placed() {
			e.store.Save(date, t, c.State())
		}
	}
}

// rerender is the save-rebuild-restore cycle. The caller holds e.mu. leaving
// is the date whose marker states are snapshotted; for zoom, theme and width
// changes it equals the date shown afterwards.
func (e *Engine) rerender(leaving core.Date, reason string) {
	start := time.Now()

	e.saveAll(leaving)
	e.handles.CancelAll()
	for t, c := range e.clocks {
		e.gens[t]++
		c.Reset()
	}

	e.syncTracks()
	e.renderer.Clear()
	e.scale = timescale.NewScale(e.zoom, e.width, e.minScaleWidth)

	for t := range e.clocks {
		intervals, err := e.provider.Intervals(t, e.date)
		if err != nil {
			e.log.Error("Failed to load intervals, drawing an empty day", "track", t, "date", e.date.String(), "error", err)
			intervals = nil
		}
		e.blocks[t] = segment.Build(e.date, intervals, e.scale)
		e.spans[t] = seek.Spans(e.date, intervals)
		e.renderer.RenderBlocks(t, e.blocks[t])
	}

	e.renderOverlays()

	restored := 0
	for t, c := range e.clocks {
		if st := e.store.Load(e.date, t); st != nil {
			if err := c.Restore(*st); err != nil {
				e.log.Warn("Dropping unrestorable marker state", "track", t, "error", err)
			} else {
				restored++
				e.schedule(t)
			}
		}
		e.renderMarker(t)
	}

	e.publishView()
	attrs := metric.WithAttributes(attribute.String("reason", reason))
	e.metrics.rerenders.Add(context.Background(), 1, attrs)
	e.metrics.duration.Record(context.Background(), float64(time.Since(start).Microseconds())/1000, attrs)
	e.log.Debug("Timeline rendered",
		"reason", reason,
		"date", e.date.String(),
		"zoom", e.zoom.Divisions,
		"tracks", len(e.clocks),
		"restored", restored,
		"duration", time.Since(start),
	)
}

func (e *Engine) renderOverlays() {
	for _, o := range e.overlays.All() {
		e.renderOverlay(o)
	}
}

func (e *Engine) renderOverlay(o core.Overlay) {
	if o.TrackIndex >= len(e.clocks) {
		return
	}
	r := overlay.Resolve(e.date, o)
	if r == nil {
		return
	}
	e.renderer.RenderOverlay(o.TrackIndex, e.scale.ToPixels(r.StartSeconds), e.scale.Width(r.StartSeconds, r.EndSeconds), o.Style())
}

func (e *Engine) renderMarker(t int) {
	c := e.clocks[t]
	e.renderer.RenderMarker(t, e.scale.ToPixels(c.State().PositionSeconds), c.Placed())
}

// schedule replaces the track's tick source. Only Running clocks get one.
func (e *Engine) schedule(t int) {
	e.gens[t]++
	if e.clocks[t].Phase() != marker.Running {
		e.handles.Cancel(t)
		return
	}
	gen := e.gens[t]
	e.handles.Replace(t, e.scheduler.Schedule(func(elapsed time.Duration) {
		e.tick(t, gen, elapsed)
	}))
}

// tick advances one track. Callbacks from a replaced or cancelled source
// carry an old generation and are ignored.
func (e *Engine) tick(t int, gen uint64, elapsed time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed || t >= len(e.gens) || e.gens[t] != gen {
		return
	}

	c := e.clocks[t]
	moved := c.Advance(elapsed)
	e.metrics.ticks.Add(context.Background(), 1)
	if moved {
		e.store.Save(e.date, t, c.State())
		e.renderMarker(t)
	}
	if c.Phase() == marker.Finished {
		e.gens[t]++
		e.handles.Cancel(t)
		e.log.Debug("Marker reached boundary", "track", t, "boundary", c.State().BoundarySeconds)
	}
}

// place starts a marker on the current date and makes that date the track's
// active date.
func (e *Engine) place(t int, position, boundary int) error {
	c := e.clocks[t]
	if err := c.Place(position, boundary); err != nil {
		return err
	}
	e.store.SetActive(t, e.date, e.now.Now())
	e.store.Save(e.date, t, c.State())
	if e.sweepStale {
		if n := e.store.Sweep(t, e.date); n > 0 {
			e.log.Debug("Swept superseded marker states", "track", t, "removed", n)
		}
	}
	e.schedule(t)
	e.renderMarker(t)
	e.metrics.placements.Add(context.Background(), 1)
	return nil
}

func (e *Engine) publishView() {
	e.view.Store(&view{date: e.date.String(), zoom: e.zoom.Divisions, theme: e.theme})
}

// ViewAttrs returns the current date, zoom and theme as log attributes without
// taking the engine lock.
func (e *Engine) ViewAttrs() []slog.Attr {
	v := e.view.Load()
	if v == nil {
		return nil
	}
	return []slog.Attr{
		slog.String("date", v.date),
		slog.Int("zoom", v.zoom),
		slog.String("theme", v.theme),
	}
}

// resolveTracks expands an empty list to all tracks and rejects unknown
// indexes before anything is mutated.
func (e *Engine) resolveTracks(tracks []int) ([]int, error) {
	if len(tracks) == 0 {
		all := make([]int, len(e.clocks))
		for i := range all {
			all[i] = i
		}
		return all, nil
	}
	for _, t := range tracks {
		if t < 0 || t >= len(e.clocks) {
			return nil, fmt.Errorf("%w: track %d", core.ErrNotFound, t)
		}
	}
	return tracks, nil
}
