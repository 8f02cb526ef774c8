// Package memory keeps marker state in process memory. Nothing survives a restart.
package memory

import (
	"sync"

	"github.com/OCAP2/timeslider/pkg/core"
)

type key struct {
	date  core.Date
	track int
}

// Backend implements storage.Backend with plain maps.
type Backend struct {
	mu      sync.RWMutex
	states  map[key]core.MarkerState
	actives map[int]core.ActiveDateRecord
}

// New creates an empty memory backend.
func New() *Backend {
	return &Backend{
		states:  make(map[key]core.MarkerState),
		actives: make(map[int]core.ActiveDateRecord),
	}
}

func (b *Backend) Init() error  { return nil }
func (b *Backend) Close() error { return nil }

// SaveMarkerState upserts the state for (date, track).
func (b *Backend) SaveMarkerState(rec core.MarkerRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.states[key{rec.Date, rec.TrackIndex}] = rec.State
	return nil
}

// DeleteMarkerStates removes every state of track except the one for except.
func (b *Backend) DeleteMarkerStates(track int, except core.Date) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k := range b.states {
		if k.track == track && k.date != except {
			delete(b.states, k)
		}
	}
	return nil
}

func (b *Backend) LoadMarkerStates() ([]core.MarkerRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]core.MarkerRecord, 0, len(b.states))
	for k, st := range b.states {
		out = append(out, core.MarkerRecord{Date: k.date, TrackIndex: k.track, State: st})
	}
	return out, nil
}

func (b *Backend) SaveActiveDate(rec core.ActiveDateRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.actives[rec.TrackIndex] = rec
	return nil
}

func (b *Backend) LoadActiveDates() ([]core.ActiveDateRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]core.ActiveDateRecord, 0, len(b.actives))
	for _, rec := range b.actives {
		out = append(out, rec)
	}
	return out, nil
}
