package marker

import (
	"sort"
	"sync"
	"time"
)

// TimeProvider supplies the current time to the tick sources.
type TimeProvider interface {
	Now() time.Time
}

type realTimeProvider struct{}

func (realTimeProvider) Now() time.Time { return time.Now() }

// RealTime is the wall clock.
var RealTime TimeProvider = realTimeProvider{}

// TickFunc receives the wall-clock time elapsed since the previous tick.
type TickFunc func(elapsed time.Duration)

// Handle cancels a scheduled tick source. Cancel is idempotent.
type Handle interface {
	Cancel()
}

// Scheduler starts tick sources. Each call to Schedule starts an independent
// source; callers cancel the previous one before scheduling a replacement.
type Scheduler interface {
	Schedule(fn TickFunc) Handle
}

// Default tick rates.
const (
	DefaultTickInterval  = time.Second
	DefaultFrameInterval = 16 * time.Millisecond
	DefaultFrameStep     = time.Second
)

type loopHandle struct {
	stop chan struct{}
	once sync.Once
}

func newLoopHandle() *loopHandle {
	return &loopHandle{stop: make(chan struct{})}
}

func (h *loopHandle) Cancel() {
	h.once.Do(func() { close(h.stop) })
}

func (h *loopHandle) stopped() bool {
	select {
	case <-h.stop:
		return true
	default:
		return false
	}
}

// TimerScheduler ticks at a fixed coarse rate and reports the measured elapsed
// time on every tick.
type TimerScheduler struct {
	Interval time.Duration
	Time     TimeProvider
}

// NewTimerScheduler returns a TimerScheduler; a non-positive interval means
// DefaultTickInterval.
func NewTimerScheduler(interval time.Duration) *TimerScheduler {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &TimerScheduler{Interval: interval, Time: RealTime}
}

func (s *TimerScheduler) Schedule(fn TickFunc) Handle {
	h := newLoopHandle()
	clock := s.Time
	if clock == nil {
		clock = RealTime
	}
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultTickInterval
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		last := clock.Now()
		for {
			select {
			case <-h.stop:
				return
			case <-ticker.C:
				if h.stopped() {
					return
				}
				now := clock.Now()
				fn(now.Sub(last))
				last = now
			}
		}
	}()
	return h
}

// FrameScheduler polls at frame rate and accumulates elapsed time, firing only
// once at least one whole Step has passed. Motion can be drawn smoothly by the
// host while the logical granularity stays at Step.
type FrameScheduler struct {
	Frame time.Duration
	Step  time.Duration
	Time  TimeProvider
}

// NewFrameScheduler returns a FrameScheduler with the default step.
func NewFrameScheduler(frame time.Duration) *FrameScheduler {
	if frame <= 0 {
		frame = DefaultFrameInterval
	}
	return &FrameScheduler{Frame: frame, Step: DefaultFrameStep, Time: RealTime}
}

func (s *FrameScheduler) Schedule(fn TickFunc) Handle {
	h := newLoopHandle()
	clock := s.Time
	if clock == nil {
		clock = RealTime
	}
	frame, step := s.Frame, s.Step
	if frame <= 0 {
		frame = DefaultFrameInterval
	}
	if step <= 0 {
		step = DefaultFrameStep
	}

	go func() {
		ticker := time.NewTicker(frame)
		defer ticker.Stop()
		last := clock.Now()
		var acc time.Duration
		for {
			select {
			case <-h.stop:
				return
			case <-ticker.C:
				now := clock.Now()
				acc += now.Sub(last)
				last = now
				if acc < step || h.stopped() {
					continue
				}
				n := acc / step
				acc -= n * step
				fn(n * step)
			}
		}
	}()
	return h
}

// ManualScheduler is driven by its owner through Advance. It runs callbacks
// synchronously, in scheduling order, on the caller's goroutine.
type ManualScheduler struct {
	mu     sync.Mutex
	nextID int
	active map[int]TickFunc
}

// NewManualScheduler returns an empty ManualScheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{active: make(map[int]TickFunc)}
}

type manualHandle struct {
	s  *ManualScheduler
	id int
}

func (h *manualHandle) Cancel() {
	h.s.mu.Lock()
	delete(h.s.active, h.id)
	h.s.mu.Unlock()
}

func (s *ManualScheduler) Schedule(fn TickFunc) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.active[s.nextID] = fn
	return &manualHandle{s: s, id: s.nextID}
}

// Advance delivers one tick of elapsed to every active source.
func (s *ManualScheduler) Advance(elapsed time.Duration) {
	s.mu.Lock()
	ids := make([]int, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	s.mu.Unlock()

	for _, id := range ids {
		s.mu.Lock()
		fn, ok := s.active[id]
		s.mu.Unlock()
		if ok {
			fn(elapsed)
		}
	}
}

// Ticks delivers n ticks of elapsed each.
func (s *ManualScheduler) Ticks(n int, elapsed time.Duration) {
	for i := 0; i < n; i++ {
		s.Advance(elapsed)
	}
}

// Active returns the number of live tick sources.
func (s *ManualScheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}
