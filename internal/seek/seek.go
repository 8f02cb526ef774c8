// Package seek resolves a requested time of day against a track's recordings.
package seek

import "github.com/OCAP2/timeslider/pkg/core"

// Span is a recording interval expressed in seconds of one day.
type Span struct {
	Start int
	End   int
}

// Target is where a marker lands after a seek.
type Target struct {
	PositionSeconds int
	BoundarySeconds int
}

// State returns the running marker state for the target.
func (t Target) State() core.MarkerState {
	return core.MarkerState{PositionSeconds: t.PositionSeconds, BoundarySeconds: t.BoundarySeconds}
}

// Spans converts the intervals of one day into second spans, dropping empty ones.
func Spans(day core.Date, intervals []core.RecordingInterval) []Span {
	spans := make([]Span, 0, len(intervals))
	for _, iv := range intervals {
		s, e := day.SecondsOf(iv.Start), day.SecondsOf(iv.End)
		if e > s {
			spans = append(spans, Span{Start: s, End: e})
		}
	}
	return spans
}

// Seek finds the span containing target and returns {target, span end}. When
// target lies in a gap it snaps forward to the next span. It returns nil when no
// span starts at or after target.
func Seek(spans []Span, target int) *Target {
	var next *Span
	for i := range spans {
		sp := &spans[i]
		if target >= sp.Start && target < sp.End {
			return &Target{PositionSeconds: target, BoundarySeconds: sp.End}
		}
		if sp.Start >= target && (next == nil || sp.Start < next.Start) {
			next = sp
		}
	}
	if next == nil {
		return nil
	}
	return &Target{PositionSeconds: next.Start, BoundarySeconds: next.End}
}
