// Package overlay truncates highlighted time ranges to the day being viewed and
// keeps the overlays registered on an engine.
package overlay

import (
	"fmt"
	"sort"
	"sync"

	"github.com/OCAP2/timeslider/pkg/core"
	"github.com/google/uuid"
)

// Range is the visible part of an overlay in seconds of the viewed day.
type Range struct {
	StartSeconds int
	EndSeconds   int
}

// Resolve returns the part of o visible on viewed, or nil when viewed lies
// outside the overlay's calendar days.
func Resolve(viewed core.Date, o core.Overlay) *Range {
	startDay, endDay := core.DateOf(o.Start), core.DateOf(o.End)
	if viewed.Before(startDay) || viewed.After(endDay) {
		return nil
	}

	r := Range{StartSeconds: 0, EndSeconds: core.SecondsPerDay}
	if viewed == startDay {
		r.StartSeconds = viewed.SecondsOf(o.Start)
	}
	if viewed == endDay {
		r.EndSeconds = viewed.SecondsOf(o.End)
	}
	return &r
}

// Registry holds overlays by id. Overlays are immutable once added.
type Registry struct {
	mu       sync.RWMutex
	overlays map[string]entry
	seq      int
}

type entry struct {
	overlay core.Overlay
	seq     int
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{overlays: make(map[string]entry)}
}

// Add validates and stores o, assigning an id when o.ID is empty.
func (r *Registry) Add(o core.Overlay) (string, error) {
	if o.TrackIndex < 0 {
		return "", fmt.Errorf("%w: overlay track %d", core.ErrNotFound, o.TrackIndex)
	}
	if !o.Start.Before(o.End) {
		return "", fmt.Errorf("%w: overlay start must precede end", core.ErrInvalidInput)
	}
	if o.Opacity < 0 || o.Opacity > 1 {
		return "", fmt.Errorf("%w: overlay opacity %v", core.ErrInvalidInput, o.Opacity)
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.overlays[o.ID]; exists {
		return "", fmt.Errorf("%w: overlay %s already exists", core.ErrInvalidInput, o.ID)
	}
	r.seq++
	r.overlays[o.ID] = entry{overlay: o, seq: r.seq}
	return o.ID, nil
}

// Remove deletes the overlay with id.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.overlays[id]; !ok {
		return fmt.Errorf("%w: overlay %s", core.ErrNotFound, id)
	}
	delete(r.overlays, id)
	return nil
}

// Get returns the overlay with id.
func (r *Registry) Get(id string) (core.Overlay, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.overlays[id]
	return e.overlay, ok
}

// ForTrack returns the overlays of track ordered by z-index hint, then by
// insertion order.
func (r *Registry) ForTrack(track int) []core.Overlay {
	return r.collect(func(o core.Overlay) bool { return o.TrackIndex == track })
}

// All returns every overlay in draw order.
func (r *Registry) All() []core.Overlay {
	return r.collect(func(core.Overlay) bool { return true })
}

// Len returns the number of overlays.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.overlays)
}

func (r *Registry) collect(keep func(core.Overlay) bool) []core.Overlay {
	r.mu.RLock()
	entries := make([]entry, 0, len(r.overlays))
	for _, e := range r.overlays {
		if keep(e.overlay) {
			entries = append(entries, e)
		}
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].overlay.ZIndexHint != entries[j].overlay.ZIndexHint {
			return entries[i].overlay.ZIndexHint < entries[j].overlay.ZIndexHint
		}
		return entries[i].seq < entries[j].seq
	})

	out := make([]core.Overlay, len(entries))
	for i, e := range entries {
		out[i] = e.overlay
	}
	return out
}
