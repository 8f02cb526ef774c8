// pkg/core/timeline.go
package core

import (
	"fmt"
	"time"
)

// ZoomLevel is one step of the fixed zoom ladder.
type ZoomLevel struct {
	Divisions       int
	IntervalSeconds int
}

func (z ZoomLevel) String() string {
	return fmt.Sprintf("%d", z.Divisions)
}

// RecordingInterval is one recorded span of a track within a single calendar day.
type RecordingInterval struct {
	Start time.Time
	End   time.Time
}

// BlockKind distinguishes recorded spans from the gaps between them.
type BlockKind int

const (
	Gap BlockKind = iota
	Filled
)

func (k BlockKind) String() string {
	if k == Filled {
		return "filled"
	}
	return "gap"
}

// Block is a contiguous span of the timeline. The blocks of one track/day cover
// [0, SecondsPerDay) without gaps or overlaps.
type Block struct {
	StartSeconds int
	EndSeconds   int
	WidthPixels  float64
	Kind         BlockKind
}

// Contains reports whether seconds falls in [StartSeconds, EndSeconds).
func (b Block) Contains(seconds int) bool {
	return seconds >= b.StartSeconds && seconds < b.EndSeconds
}

// MarkerState is the canonical playback cursor of one track on one day.
type MarkerState struct {
	PositionSeconds int  `json:"positionSeconds"`
	BoundarySeconds int  `json:"boundarySeconds"`
	IsPaused        bool `json:"isPaused"`
}

// Validate checks 0 <= position <= boundary <= SecondsPerDay.
func (s MarkerState) Validate() error {
	if s.PositionSeconds < 0 || s.BoundarySeconds > SecondsPerDay || s.PositionSeconds > s.BoundarySeconds {
		return fmt.Errorf("%w: marker position %d boundary %d", ErrInvalidInput, s.PositionSeconds, s.BoundarySeconds)
	}
	return nil
}

// Finished reports whether the marker has reached its boundary.
func (s MarkerState) Finished() bool {
	return s.PositionSeconds >= s.BoundarySeconds
}

// ActiveDateRecord records which day a track's marker belongs to.
type ActiveDateRecord struct {
	TrackIndex    int
	ActiveDate    Date
	LastUpdatedAt time.Time
}

// Overlay highlights an arbitrary, possibly multi-day, time range on a track.
type Overlay struct {
	ID         string
	TrackIndex int
	Start      time.Time
	End        time.Time
	Color      string
	Opacity    float64
	ZIndexHint int
}

// OverlayStyle is the part of an overlay the Presentation Layer draws with.
type OverlayStyle struct {
	ID         string
	Color      string
	Opacity    float64
	ZIndexHint int
}

// Style returns the drawing attributes of the overlay.
func (o Overlay) Style() OverlayStyle {
	return OverlayStyle{ID: o.ID, Color: o.Color, Opacity: o.Opacity, ZIndexHint: o.ZIndexHint}
}

// TrackMetadata is the static per-track information supplied by the Data Provider.
type TrackMetadata struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Extra map[string]any `json:"extra,omitempty"`
}

// TrackSnapshot is the externally visible marker state of one track.
type TrackSnapshot struct {
	Placed          bool    `json:"placed"`
	Phase           string  `json:"phase"`
	PositionSeconds int     `json:"positionSeconds"`
	BoundarySeconds int     `json:"boundarySeconds"`
	IsPaused        bool    `json:"isPaused"`
	Speed           float64 `json:"speed"`
}

// Snapshot is the public query surface of the engine.
type Snapshot struct {
	Date          Date            `json:"-"`
	DateString    string          `json:"date"`
	Zoom          ZoomLevel       `json:"zoomLevel"`
	Theme         string          `json:"theme"`
	PixelsPerUnit float64         `json:"pixelsPerUnit"`
	PerTrack      []TrackSnapshot `json:"perTrack"`
}

// MarkerRecord is a MarkerState keyed by the day and track it belongs to.
type MarkerRecord struct {
	Date       Date
	TrackIndex int
	State      MarkerState
}
