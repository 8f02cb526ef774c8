// Package markerstore remembers marker state per (date, track) across
// destructive re-renders, and which day each track's marker belongs to.
package markerstore

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/OCAP2/timeslider/internal/storage"
	"github.com/OCAP2/timeslider/pkg/core"
)

type key struct {
	date  core.Date
	track int
}

// Store maps (date, track) to the last known marker state. A state is only
// handed back for the track's active date; entries for other dates are
// ignored by Load and removed lazily by Sweep.
type Store struct {
	mu      sync.RWMutex
	states  map[key]core.MarkerState
	active  map[int]core.ActiveDateRecord
	backend storage.Backend
	log     *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithBackend writes every change through to b.
func WithBackend(b storage.Backend) Option {
	return func(s *Store) {
		s.backend = b
	}
}

// WithLogger sets the logger used for backend failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		states: make(map[key]core.MarkerState),
		active: make(map[int]core.ActiveDateRecord),
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save records st for (date, track).
func (s *Store) Save(date core.Date, track int, st core.MarkerState) {
	s.mu.Lock()
	s.states[key{date, track}] = st
	s.mu.Unlock()

	if s.backend != nil {
		rec := core.MarkerRecord{Date: date, TrackIndex: track, State: st}
		if err := s.backend.SaveMarkerState(rec); err != nil {
			s.log.Warn("Failed to persist marker state", "date", date.String(), "track", track, "error", err)
		}
	}
}

// Load returns the state of (date, track) if date is the track's active date.
func (s *Store) Load(date core.Date, track int) *core.MarkerState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.active[track]
	if !ok || rec.ActiveDate != date {
		return nil
	}
	st, ok := s.states[key{date, track}]
	if !ok {
		return nil
	}
	return &st
}

// Peek returns the stored state of (date, track) regardless of the active date.
func (s *Store) Peek(date core.Date, track int) (core.MarkerState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[key{date, track}]
	return st, ok
}

// Delete drops the state of (date, track).
func (s *Store) Delete(date core.Date, track int) {
	s.mu.Lock()
	delete(s.states, key{date, track})
	s.mu.Unlock()
}

// SetActive makes date the day the track's marker belongs to.
func (s *Store) SetActive(track int, date core.Date, at time.Time) {
	rec := core.ActiveDateRecord{TrackIndex: track, ActiveDate: date, LastUpdatedAt: at}
	s.mu.Lock()
	s.active[track] = rec
	s.mu.Unlock()

	if s.backend != nil {
		if err := s.backend.SaveActiveDate(rec); err != nil {
			s.log.Warn("Failed to persist active date", "date", date.String(), "track", track, "error", err)
		}
	}
}

// Active returns the active date record of track.
func (s *Store) Active(track int) (core.ActiveDateRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.active[track]
	return rec, ok
}

// Sweep removes the track's states on every date other than keep and returns
// how many were removed.
func (s *Store) Sweep(track int, keep core.Date) int {
	s.mu.Lock()
	removed := 0
	for k := range s.states {
		if k.track == track && k.date != keep {
			delete(s.states, k)
			removed++
		}
	}
	s.mu.Unlock()

	if s.backend != nil && removed > 0 {
		if err := s.backend.DeleteMarkerStates(track, keep); err != nil {
			s.log.Warn("Failed to sweep persisted marker states", "track", track, "error", err)
		}
	}
	return removed
}

// Len returns the number of stored states.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}

// Reset clears all in-memory states and active dates.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = make(map[key]core.MarkerState)
	s.active = make(map[int]core.ActiveDateRecord)
}

// Restore loads persisted states and active dates from the backend.
func (s *Store) Restore() error {
	if s.backend == nil {
		return nil
	}
	states, err := s.backend.LoadMarkerStates()
	if err != nil {
		return fmt.Errorf("loading marker states: %w", err)
	}
	actives, err := s.backend.LoadActiveDates()
	if err != nil {
		return fmt.Errorf("loading active dates: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range states {
		if err := r.State.Validate(); err != nil {
			s.log.Warn("Skipping invalid persisted marker state", "date", r.Date.String(), "track", r.TrackIndex, "error", err)
			continue
		}
		s.states[key{r.Date, r.TrackIndex}] = r.State
	}
	for _, a := range actives {
		s.active[a.TrackIndex] = a
	}
	return nil
}
