package engine

import (
	"fmt"
	"math"

	"github.com/OCAP2/timeslider/internal/marker"
	"github.com/OCAP2/timeslider/internal/seek"
	"github.com/OCAP2/timeslider/internal/segment"
	"github.com/OCAP2/timeslider/internal/timescale"
	"github.com/OCAP2/timeslider/pkg/core"
)

// ensureRendered draws the current date once if nothing has been drawn yet.
func (e *Engine) ensureRendered() {
	for _, b := range e.blocks {
		if b == nil {
			e.rerender(e.date, "render")
			return
		}
	}
}

func (e *Engine) checkTrack(t int) error {
	if t < 0 || t >= len(e.clocks) {
		return fmt.Errorf("%w: track %d", core.ErrNotFound, t)
	}
	return nil
}

func checkSeconds(s int) error {
	if s < 0 || s > core.SecondsPerDay {
		return fmt.Errorf("%w: %d seconds is outside the day", core.ErrInvalidInput, s)
	}
	return nil
}

// ActivateBlock handles a selection on the track's block containing seconds.
// A Filled block places the marker at seconds, running to the block end; a
// Gap block snaps forward to the next Filled block. It reports false when a
// gap has no recording after it.
func (e *Engine) ActivateBlock(track, seconds int) (bool, error) {
	e.mu.Lock()
	act, err := e.activate(track, seconds)
	e.mu.Unlock()
	if err != nil || act == nil {
		return false, err
	}
	if e.onActivate != nil {
		e.onActivate(*act)
	}
	return true, nil
}

// ActivateAt is ActivateBlock for a pixel offset on the timeline.
func (e *Engine) ActivateAt(track int, pixels float64) (bool, error) {
	e.mu.Lock()
	if err := e.alive(); err != nil {
		e.mu.Unlock()
		return false, err
	}
	seconds, clamped := e.scale.ToSeconds(pixels)
	if clamped {
		e.log.Warn("Activation offset clamped to the day", "track", track, "pixels", pixels, "seconds", seconds)
	}
	act, err := e.activate(track, seconds)
	e.mu.Unlock()
	if err != nil || act == nil {
		return false, err
	}
	if e.onActivate != nil {
		e.onActivate(*act)
	}
	return true, nil
}

func (e *Engine) activate(t, seconds int) (*Activation, error) {
	if err := e.alive(); err != nil {
		return nil, err
	}
	if err := e.checkTrack(t); err != nil {
		return nil, err
	}
	if err := checkSeconds(seconds); err != nil {
		return nil, err
	}
	e.ensureRendered()

	blocks := e.blocks[t]
	i := segment.Find(blocks, seconds)
	if i < 0 {
		e.log.Info("No block at activation point", "track", t, "seconds", seconds)
		return nil, nil
	}

	position, boundary := seconds, blocks[i].EndSeconds
	if blocks[i].Kind == core.Gap {
		next := segment.NextFilled(blocks, i)
		if next < 0 {
			e.log.Info("No recording after gap", "track", t, "seconds", seconds)
			return nil, nil
		}
		position, boundary = blocks[next].StartSeconds, blocks[next].EndSeconds
	}

	if err := e.place(t, position, boundary); err != nil {
		return nil, err
	}
	return &Activation{
		Track:    t,
		Time:     e.date.String() + " " + timescale.FormatTimeOfDay(position),
		Seconds:  position,
		Boundary: boundary,
		Metadata: e.provider.Metadata(t),
	}, nil
}

// Seek moves the markers of tracks (all tracks when none are given) to
// seconds. Tracks with no recording at or after seconds keep their marker and
// map to nil in the result.
func (e *Engine) Seek(seconds int, tracks ...int) (map[int]*seek.Target, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.alive(); err != nil {
		return nil, err
	}
	if err := checkSeconds(seconds); err != nil {
		return nil, err
	}
	ts, err := e.resolveTracks(tracks)
	if err != nil {
		return nil, err
	}
	e.ensureRendered()

	out := make(map[int]*seek.Target, len(ts))
	for _, t := range ts {
		target := seek.Seek(e.spans[t], seconds)
		out[t] = target
		if target == nil {
			e.log.Debug("Seek found no recording", "track", t, "seconds", seconds)
			continue
		}
		if err := e.place(t, target.PositionSeconds, target.BoundarySeconds); err != nil {
			return out, err
		}
	}
	return out, nil
}

// SetSpeed changes the multiplier of tracks (all tracks, and the default for
// new ones, when none are given). Running markers keep their position.
func (e *Engine) SetSpeed(m float64, tracks ...int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.alive(); err != nil {
		return err
	}
	if !(m > 0) || math.IsInf(m, 0) {
		return fmt.Errorf("%w: speed multiplier %v", core.ErrInvalidInput, m)
	}
	ts, err := e.resolveTracks(tracks)
	if err != nil {
		return err
	}
	for _, t := range ts {
		if err := e.clocks[t].SetSpeed(m); err != nil {
			return err
		}
		if e.clocks[t].Phase() == marker.Running {
			e.schedule(t)
		}
	}
	if len(tracks) == 0 {
		e.speed = m
	}
	return nil
}

// SetPaused pauses or resumes the markers of tracks (all when none are given).
// Tracks without a marker, or already in the requested phase, are left alone.
func (e *Engine) SetPaused(paused bool, tracks ...int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.alive(); err != nil {
		return err
	}
	ts, err := e.resolveTracks(tracks)
	if err != nil {
		return err
	}
	for _, t := range ts {
		c := e.clocks[t]
		var changed bool
		if paused {
			changed = c.Pause()
		} else {
			changed = c.Resume()
		}
		if !changed {
			continue
		}
		e.schedule(t)
		e.store.Save(e.date, t, c.State())
		e.renderMarker(t)
	}
	return nil
}

// AddOverlay registers o and draws it if it is visible on the current date.
func (e *Engine) AddOverlay(o core.Overlay) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.alive(); err != nil {
		return "", err
	}
	if err := e.checkTrack(o.TrackIndex); err != nil {
		return "", err
	}
	id, err := e.overlays.Add(o)
	if err != nil {
		return "", err
	}
	o.ID = id
	e.renderOverlay(o)
	return id, nil
}

// RemoveOverlay drops the overlay and re-renders so it disappears.
func (e *Engine) RemoveOverlay(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.alive(); err != nil {
		return err
	}
	if err := e.overlays.Remove(id); err != nil {
		return err
	}
	e.rerender(e.date, "overlay")
	return nil
}

// Overlays returns every registered overlay.
func (e *Engine) Overlays() []core.Overlay {
	return e.overlays.All()
}

// TimeAt converts a pixel offset to seconds of day for the hover indicator.
// Offsets outside the timeline are clamped and logged.
func (e *Engine) TimeAt(pixels float64) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.alive(); err != nil {
		return 0, err
	}
	seconds, clamped := e.scale.ToSeconds(pixels)
	if clamped {
		e.log.Warn("Hover offset clamped to the day", "pixels", pixels, "seconds", seconds)
	}
	return seconds, nil
}

// Blocks returns the blocks last built for track.
func (e *Engine) Blocks(track int) ([]core.Block, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.alive(); err != nil {
		return nil, err
	}
	if err := e.checkTrack(track); err != nil {
		return nil, err
	}
	e.ensureRendered()
	out := make([]core.Block, len(e.blocks[track]))
	copy(out, e.blocks[track])
	return out, nil
}
