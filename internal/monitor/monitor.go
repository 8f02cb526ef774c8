package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/OCAP2/timeslider/pkg/core"
)

// Source is the part of the timeline engine the monitor reads.
type Source interface {
	Snapshot() (core.Snapshot, error)
	Overlays() []core.Overlay
}

// Counter reports a number of entries, such as stored marker states.
type Counter interface {
	Len() int
}

// Pender is implemented by storage backends that queue writes.
type Pender interface {
	Pending() int
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Source  Source
	Store   Counter
	Backend any
	Logger  *slog.Logger

	// StatusFile is rewritten on every interval. Empty disables the file.
	StatusFile string
	Interval   time.Duration
}

// Status is one sample of the session state.
type Status struct {
	Time          time.Time `json:"time"`
	Date          string    `json:"date"`
	ZoomLevel     int       `json:"zoomLevel"`
	Tracks        int       `json:"tracks"`
	Placed        int       `json:"placed"`
	Running       int       `json:"running"`
	Paused        int       `json:"paused"`
	Finished      int       `json:"finished"`
	Overlays      int       `json:"overlays"`
	StoredStates  int       `json:"storedStates"`
	PendingWrites int       `json:"pendingWrites"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	log       *slog.Logger
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      sync.WaitGroup
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	return &Service{
		deps:     deps,
		log:      log,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Status samples the engine, the marker store and the storage backend.
func (s *Service) Status() (Status, error) {
	snap, err := s.deps.Source.Snapshot()
	if err != nil {
		return Status{}, err
	}

	st := Status{
		Time:      time.Now(),
		Date:      snap.DateString,
		ZoomLevel: snap.Zoom.Divisions,
		Tracks:    len(snap.PerTrack),
		Overlays:  len(s.deps.Source.Overlays()),
	}
	for _, t := range snap.PerTrack {
		if t.Placed {
			st.Placed++
		}
		switch t.Phase {
		case "running":
			st.Running++
		case "paused":
			st.Paused++
		case "finished":
			st.Finished++
		}
	}
	if s.deps.Store != nil {
		st.StoredStates = s.deps.Store.Len()
	}
	if p, ok := s.deps.Backend.(Pender); ok {
		st.PendingWrites = p.Pending()
	}
	return st, nil
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}

	var statusFile *os.File
	if s.deps.StatusFile != "" {
		f, err := os.Create(s.deps.StatusFile)
		if err != nil {
			return fmt.Errorf("creating status file: %w", err)
		}
		statusFile = f
	}

	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done.Add(1)

	go s.loop(statusFile, s.stopChan)
	return nil
}

func (s *Service) loop(statusFile *os.File, stop <-chan struct{}) {
	defer s.done.Done()
	defer func() {
		if statusFile != nil {
			statusFile.Close()
		}
	}()

	s.log.Debug("Starting status monitor", "interval", s.deps.Interval, "file", s.deps.StatusFile)
	ticker := time.NewTicker(s.deps.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			st, err := s.Status()
			if err != nil {
				// engine destroyed; the session is shutting down
				s.log.Debug("Status monitor stopping", "error", err)
				return
			}
			s.log.Debug("Session status",
				"placed", st.Placed,
				"running", st.Running,
				"overlays", st.Overlays,
				"pending_writes", st.PendingWrites)
			if statusFile != nil {
				if err := writeStatus(statusFile, st); err != nil {
					s.log.Error("Error writing status file", "error", err)
				}
			}
		}
	}
}

func writeStatus(f *os.File, st Status) error {
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	_, err = f.Write(append(b, '\n'))
	return err
}

// Stop stops the status monitor and waits for the goroutine to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.isRunning {
		close(s.stopChan)
		s.isRunning = false
	}
	s.mu.Unlock()
	s.done.Wait()
}
