// Package handlers maps text commands onto timeline engine operations.
package handlers

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/OCAP2/timeslider/internal/dispatcher"
	"github.com/OCAP2/timeslider/internal/engine"
	"github.com/OCAP2/timeslider/internal/marker"
	"github.com/OCAP2/timeslider/internal/timescale"
	"github.com/OCAP2/timeslider/pkg/core"
)

// Overlay defaults applied when the command omits them.
const (
	DefaultOverlayColor   = "#ff9800"
	DefaultOverlayOpacity = 0.35
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Engine *engine.Engine
	Logger *slog.Logger

	// Manual, when set, enables the tick command.
	Manual *marker.ManualScheduler

	// Location is the zone overlay timestamps are parsed in. Default time.Local.
	Location *time.Location
}

// Service provides handler methods for timeline commands
type Service struct {
	deps Dependencies
	log  *slog.Logger
}

// NewService creates a new handler service
func NewService(deps Dependencies) *Service {
	if deps.Location == nil {
		deps.Location = time.Local
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Service{deps: deps, log: log}
}

// ActivateResult reports where an activation placed the marker.
type ActivateResult struct {
	Placed   bool               `json:"placed"`
	Track    int                `json:"track"`
	Time     string             `json:"time,omitempty"`
	Boundary string             `json:"boundary,omitempty"`
	Metadata core.TrackMetadata `json:"metadata"`
}

// SeekResult is the landing time per track, or "" when a track had no
// recording at or after the requested time.
type SeekResult map[int]string

// RegisterHandlers registers all command handlers with the dispatcher.
func (s *Service) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Rendering and navigation
	d.Register("render", s.handleRender, dispatcher.Logged())
	d.Register("zoom", s.handleZoom, dispatcher.MinArgs(1), dispatcher.Usage("in|out"), dispatcher.Logged())
	d.Register("date", s.handleDate, dispatcher.MinArgs(1), dispatcher.Usage("<YYYY-MM-DD>|prev|next"), dispatcher.Logged())
	d.Register("theme", s.handleTheme, dispatcher.MinArgs(1), dispatcher.Usage("<name>"), dispatcher.Logged())
	d.Register("width", s.handleWidth, dispatcher.MinArgs(1), dispatcher.Usage("<px>"), dispatcher.Logged())

	// Marker placement and playback
	d.Register("activate", s.handleActivate, dispatcher.MinArgs(2), dispatcher.Usage("<track> <HH:MM:SS>"), dispatcher.Logged())
	d.Register("click", s.handleClick, dispatcher.MinArgs(2), dispatcher.Usage("<track> <px>"), dispatcher.Logged())
	d.Register("seek", s.handleSeek, dispatcher.MinArgs(1), dispatcher.Usage("<HH:MM:SS> [track...]"), dispatcher.Logged())
	d.Register("speed", s.handleSpeed, dispatcher.MinArgs(1), dispatcher.Usage("<multiplier> [track...]"), dispatcher.Logged())
	d.Register("pause", s.handlePause, dispatcher.Usage("[track...]"), dispatcher.Logged())
	d.Register("resume", s.handleResume, dispatcher.Usage("[track...]"), dispatcher.Logged())

	// Overlays
	d.Register("overlay", s.handleOverlay, dispatcher.MinArgs(3),
		dispatcher.Usage(`<track> "<start>" "<end>" [color] [opacity] [z]`), dispatcher.Logged())
	d.Register("unoverlay", s.handleUnoverlay, dispatcher.MinArgs(1), dispatcher.Usage("<id>"), dispatcher.Logged())
	d.Register("overlays", s.handleOverlays)

	// Queries
	d.Register("hover", s.handleHover, dispatcher.MinArgs(1), dispatcher.Usage("<px>"))
	d.Register("blocks", s.handleBlocks, dispatcher.MinArgs(1), dispatcher.Usage("<track>"))
	d.Register("snapshot", s.handleSnapshot)

	if s.deps.Manual != nil {
		d.Register("tick", s.handleTick, dispatcher.Usage("[n] [seconds]"), dispatcher.Logged())
	}
}

func (s *Service) handleRender(e dispatcher.Event) (any, error) {
	if err := s.deps.Engine.Render(); err != nil {
		return nil, err
	}
	return "rendered " + s.deps.Engine.Date().String(), nil
}

func (s *Service) handleZoom(e dispatcher.Event) (any, error) {
	dir, err := timescale.ParseDirection(e.Args[0])
	if err != nil {
		return nil, err
	}
	changed, err := s.deps.Engine.Zoom(dir)
	if err != nil {
		return nil, err
	}
	snap, err := s.deps.Engine.Snapshot()
	if err != nil {
		return nil, err
	}
	if !changed {
		return "zoom unchanged at " + snap.Zoom.String(), nil
	}
	return "zoom " + snap.Zoom.String(), nil
}

func (s *Service) handleDate(e dispatcher.Event) (any, error) {
	var err error
	switch arg := strings.ToLower(e.Args[0]); arg {
	case "prev":
		err = s.deps.Engine.PrevDay()
	case "next":
		err = s.deps.Engine.NextDay()
	default:
		d, perr := core.ParseDate(arg)
		if perr != nil {
			return nil, perr
		}
		err = s.deps.Engine.SetDate(d)
	}
	if err != nil {
		return nil, err
	}
	return s.deps.Engine.Date().String(), nil
}

func (s *Service) handleTheme(e dispatcher.Event) (any, error) {
	if err := s.deps.Engine.SetTheme(e.Args[0]); err != nil {
		return nil, err
	}
	return s.deps.Engine.Theme(), nil
}

func (s *Service) handleWidth(e dispatcher.Event) (any, error) {
	px, err := parseFloat("width", e.Args[0])
	if err != nil {
		return nil, err
	}
	if err := s.deps.Engine.SetWidth(px); err != nil {
		return nil, err
	}
	return s.deps.Engine.Scale(), nil
}

func (s *Service) handleActivate(e dispatcher.Event) (any, error) {
	track, err := parseTrack(e.Args[0])
	if err != nil {
		return nil, err
	}
	seconds, err := timescale.ParseTimeOfDay(e.Args[1])
	if err != nil {
		return nil, err
	}
	placed, err := s.deps.Engine.ActivateBlock(track, seconds)
	if err != nil {
		return nil, err
	}
	return s.activateResult(track, placed)
}

func (s *Service) handleClick(e dispatcher.Event) (any, error) {
	track, err := parseTrack(e.Args[0])
	if err != nil {
		return nil, err
	}
	px, err := parseFloat("offset", e.Args[1])
	if err != nil {
		return nil, err
	}
	placed, err := s.deps.Engine.ActivateAt(track, px)
	if err != nil {
		return nil, err
	}
	return s.activateResult(track, placed)
}

func (s *Service) activateResult(track int, placed bool) (ActivateResult, error) {
	res := ActivateResult{Placed: placed, Track: track}
	if !placed {
		return res, nil
	}
	snap, err := s.deps.Engine.Snapshot()
	if err != nil {
		return res, err
	}
	ts := snap.PerTrack[track]
	res.Time = snap.DateString + " " + timescale.FormatTimeOfDay(ts.PositionSeconds)
	res.Boundary = timescale.FormatTimeOfDay(ts.BoundarySeconds)
	return res, nil
}

func (s *Service) handleSeek(e dispatcher.Event) (any, error) {
	seconds, err := timescale.ParseTimeOfDay(e.Args[0])
	if err != nil {
		return nil, err
	}
	tracks, err := parseTracks(e.Args[1:])
	if err != nil {
		return nil, err
	}
	targets, err := s.deps.Engine.Seek(seconds, tracks...)
	if err != nil {
		return nil, err
	}

	res := make(SeekResult, len(targets))
	for t, target := range targets {
		if target == nil {
			s.log.Info("No recording at or after seek time", "track", t, "time", e.Args[0])
			res[t] = ""
			continue
		}
		res[t] = timescale.FormatTimeOfDay(target.PositionSeconds)
	}
	return res, nil
}

func (s *Service) handleSpeed(e dispatcher.Event) (any, error) {
	m, err := parseFloat("speed", e.Args[0])
	if err != nil {
		return nil, err
	}
	tracks, err := parseTracks(e.Args[1:])
	if err != nil {
		return nil, err
	}
	if err := s.deps.Engine.SetSpeed(m, tracks...); err != nil {
		return nil, err
	}
	return fmt.Sprintf("speed x%g", m), nil
}

func (s *Service) handlePause(e dispatcher.Event) (any, error) {
	return s.setPaused(true, e.Args)
}

func (s *Service) handleResume(e dispatcher.Event) (any, error) {
	return s.setPaused(false, e.Args)
}

func (s *Service) setPaused(paused bool, args []string) (any, error) {
	tracks, err := parseTracks(args)
	if err != nil {
		return nil, err
	}
	if err := s.deps.Engine.SetPaused(paused, tracks...); err != nil {
		return nil, err
	}
	if paused {
		return "paused", nil
	}
	return "resumed", nil
}

func (s *Service) handleOverlay(e dispatcher.Event) (any, error) {
	track, err := parseTrack(e.Args[0])
	if err != nil {
		return nil, err
	}
	start, err := timescale.ParseDateTime(e.Args[1], s.deps.Location)
	if err != nil {
		return nil, err
	}
	end, err := timescale.ParseDateTime(e.Args[2], s.deps.Location)
	if err != nil {
		return nil, err
	}

	o := core.Overlay{
		TrackIndex: track,
		Start:      start,
		End:        end,
		Color:      DefaultOverlayColor,
		Opacity:    DefaultOverlayOpacity,
	}
	if len(e.Args) > 3 && e.Args[3] != "" {
		o.Color = e.Args[3]
	}
	if len(e.Args) > 4 {
		if o.Opacity, err = parseFloat("opacity", e.Args[4]); err != nil {
			return nil, err
		}
	}
	if len(e.Args) > 5 {
		z, err := strconv.Atoi(e.Args[5])
		if err != nil {
			return nil, fmt.Errorf("%w: z-index %q", core.ErrInvalidInput, e.Args[5])
		}
		o.ZIndexHint = z
	}

	return s.deps.Engine.AddOverlay(o)
}

func (s *Service) handleUnoverlay(e dispatcher.Event) (any, error) {
	if err := s.deps.Engine.RemoveOverlay(e.Args[0]); err != nil {
		return nil, err
	}
	return "removed " + e.Args[0], nil
}

func (s *Service) handleOverlays(e dispatcher.Event) (any, error) {
	return s.deps.Engine.Overlays(), nil
}

func (s *Service) handleHover(e dispatcher.Event) (any, error) {
	px, err := parseFloat("offset", e.Args[0])
	if err != nil {
		return nil, err
	}
	seconds, err := s.deps.Engine.TimeAt(px)
	if err != nil {
		return nil, err
	}
	return timescale.FormatTimeOfDay(seconds), nil
}

func (s *Service) handleBlocks(e dispatcher.Event) (any, error) {
	track, err := parseTrack(e.Args[0])
	if err != nil {
		return nil, err
	}
	return s.deps.Engine.Blocks(track)
}

func (s *Service) handleSnapshot(e dispatcher.Event) (any, error) {
	return s.deps.Engine.Snapshot()
}

// handleTick drives the manual scheduler: n ticks (default 1) of the given
// seconds each (default 1).
func (s *Service) handleTick(e dispatcher.Event) (any, error) {
	n, step := 1, 1.0
	var err error
	if len(e.Args) > 0 {
		if n, err = strconv.Atoi(e.Args[0]); err != nil || n < 1 {
			return nil, fmt.Errorf("%w: tick count %q", core.ErrInvalidInput, e.Args[0])
		}
	}
	if len(e.Args) > 1 {
		if step, err = parseFloat("tick length", e.Args[1]); err != nil {
			return nil, err
		}
		if step <= 0 {
			return nil, fmt.Errorf("%w: tick length %q", core.ErrInvalidInput, e.Args[1])
		}
	}
	s.deps.Manual.Ticks(n, time.Duration(step*float64(time.Second)))
	return fmt.Sprintf("%d tick(s) delivered", n), nil
}

func parseTrack(s string) (int, error) {
	t, err := strconv.Atoi(s)
	if err != nil || t < 0 {
		return 0, fmt.Errorf("%w: track %q", core.ErrInvalidInput, s)
	}
	return t, nil
}

func parseTracks(args []string) ([]int, error) {
	if len(args) == 0 {
		return nil, nil
	}
	tracks := make([]int, 0, len(args))
	for _, a := range args {
		t, err := parseTrack(a)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}
	sort.Ints(tracks)
	return tracks, nil
}

func parseFloat(what, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", core.ErrInvalidInput, what, s)
	}
	return v, nil
}
