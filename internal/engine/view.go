package engine

import (
	"fmt"
	"math"

	"github.com/OCAP2/timeslider/internal/timescale"
	"github.com/OCAP2/timeslider/pkg/core"
)

// Zoom steps the zoom ladder and re-renders. At either end of the ladder it
// is a no-op and reports false.
func (e *Engine) Zoom(dir timescale.Direction) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.alive(); err != nil {
		return false, err
	}
	next, changed := timescale.Step(e.zoom, dir)
	if !changed {
		return false, nil
	}
	e.zoom = next
	e.rerender(e.date, "zoom")
	return true, nil
}

// SetDate shows d. Marker states are saved under the date being left.
func (e *Engine) SetDate(d core.Date) error {
	if d.IsZero() {
		return fmt.Errorf("%w: empty date", core.ErrInvalidInput)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.alive(); err != nil {
		return err
	}
	leaving := e.date
	e.date = d
	e.rerender(leaving, "date")
	return nil
}

func (e *Engine) PrevDay() error { return e.shiftDay(-1) }
func (e *Engine) NextDay() error { return e.shiftDay(1) }

func (e *Engine) shiftDay(n int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.alive(); err != nil {
		return err
	}
	leaving := e.date
	e.date = e.date.AddDays(n)
	e.rerender(leaving, "date")
	return nil
}

// SetTheme switches the theme name passed through to the Presentation Layer
// and re-renders.
func (e *Engine) SetTheme(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty theme", core.ErrInvalidInput)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.alive(); err != nil {
		return err
	}
	e.theme = name
	e.rerender(e.date, "theme")
	return nil
}

// SetWidth changes the available width, which rescales the timeline.
func (e *Engine) SetWidth(available float64) error {
	if !(available > 0) || math.IsInf(available, 0) {
		return fmt.Errorf("%w: width %v", core.ErrInvalidInput, available)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.alive(); err != nil {
		return err
	}
	e.width = available
	e.rerender(e.date, "width")
	return nil
}

// Date returns the date being shown.
func (e *Engine) Date() core.Date {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.date
}

// Theme returns the current theme name.
func (e *Engine) Theme() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.theme
}

// Scale returns the current time scale.
func (e *Engine) Scale() timescale.Scale {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scale
}

// Snapshot returns the public state of the engine.
func (e *Engine) Snapshot() (core.Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.alive(); err != nil {
		return core.Snapshot{}, err
	}

	snap := core.Snapshot{
		Date:          e.date,
		DateString:    e.date.String(),
		Zoom:          e.zoom,
		Theme:         e.theme,
		PixelsPerUnit: e.scale.PixelsPerUnit,
		PerTrack:      make([]core.TrackSnapshot, len(e.clocks)),
	}
	for t, c := range e.clocks {
		st := c.State()
		snap.PerTrack[t] = core.TrackSnapshot{
			Placed:          c.Placed(),
			Phase:           c.Phase().String(),
			PositionSeconds: st.PositionSeconds,
			BoundarySeconds: st.BoundarySeconds,
			IsPaused:        st.IsPaused,
			Speed:           c.Speed(),
		}
	}
	return snap, nil
}

// Destroy saves every marker, cancels all tick sources and retires the
// engine. Later calls return core.ErrDestroyed; Destroy itself is idempotent.
func (e *Engine) Destroy() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return nil
	}
	e.saveAll(e.date)
	e.handles.CancelAll()
	for t := range e.gens {
		e.gens[t]++
	}
	e.destroyed = true
	e.log.Info("Timeline destroyed", "date", e.date.String(), "tracks", len(e.clocks))
	return nil
}
