// Package timescale converts between seconds-of-day and pixel offsets for the
// fixed zoom ladder of the timeline.
package timescale

import (
	"math"

	"github.com/OCAP2/timeslider/pkg/core"
)

// DefaultMinPixelsPerUnit is the floor for the width of one zoom division.
const DefaultMinPixelsPerUnit = 50

// ToPixels converts seconds to a pixel offset.
func ToPixels(seconds, pixelsPerUnit float64, unitSeconds int) float64 {
	return seconds * pixelsPerUnit / float64(unitSeconds)
}

// ToSeconds converts a pixel offset back to whole seconds of the day.
// Results outside [0, SecondsPerDay] are clamped and clamped is reported true;
// the caller is expected to log it.
func ToSeconds(pixels, pixelsPerUnit float64, unitSeconds int) (seconds int, clamped bool) {
	if pixelsPerUnit <= 0 || unitSeconds <= 0 || math.IsNaN(pixels) {
		return 0, true
	}
	raw := math.Floor(pixels * float64(unitSeconds) / pixelsPerUnit)
	switch {
	case raw < 0:
		return 0, true
	case raw > core.SecondsPerDay:
		return core.SecondsPerDay, true
	}
	return int(raw), false
}

// ScaleWidth derives the pixels-per-unit from the available width, floored at min.
func ScaleWidth(available float64, divisions int, min float64) float64 {
	if min <= 0 {
		min = DefaultMinPixelsPerUnit
	}
	if divisions <= 0 {
		return min
	}
	if w := available / float64(divisions); w > min {
		return w
	}
	return min
}

// Scale is the transient geometry of one render: a zoom level and the width of
// one of its divisions.
type Scale struct {
	Level         core.ZoomLevel
	PixelsPerUnit float64
}

// NewScale derives the scale for level from the available timeline width.
func NewScale(level core.ZoomLevel, available, min float64) Scale {
	return Scale{Level: level, PixelsPerUnit: ScaleWidth(available, level.Divisions, min)}
}

// ToPixels converts seconds to a pixel offset.
func (s Scale) ToPixels(seconds int) float64 {
	return ToPixels(float64(seconds), s.PixelsPerUnit, s.Level.IntervalSeconds)
}

// ToSeconds converts a pixel offset to seconds, see ToSeconds.
func (s Scale) ToSeconds(pixels float64) (int, bool) {
	return ToSeconds(pixels, s.PixelsPerUnit, s.Level.IntervalSeconds)
}

// Width returns the pixel width of [start, end).
func (s Scale) Width(start, end int) float64 {
	return s.ToPixels(end) - s.ToPixels(start)
}

// TimelineWidth is the pixel width of a whole day.
func (s Scale) TimelineWidth() float64 {
	return s.ToPixels(core.SecondsPerDay)
}
