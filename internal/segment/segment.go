// Package segment turns a track's recording intervals into the gap-filled block
// sequence drawn on the timeline.
package segment

import (
	"fmt"

	"github.com/OCAP2/timeslider/internal/timescale"
	"github.com/OCAP2/timeslider/pkg/core"
)

// Build scans the intervals of one track on day and emits Filled blocks for
// recordings and Gap blocks between them. The result always covers
// [0, SecondsPerDay) exactly, provided the intervals are sorted and disjoint.
func Build(day core.Date, intervals []core.RecordingInterval, scale timescale.Scale) []core.Block {
	blocks := make([]core.Block, 0, 2*len(intervals)+1)
	lastEnd := 0

	emit := func(start, end int, kind core.BlockKind) {
		blocks = append(blocks, core.Block{
			StartSeconds: start,
			EndSeconds:   end,
			WidthPixels:  scale.Width(start, end),
			Kind:         kind,
		})
	}

	for _, iv := range intervals {
		start, end := day.SecondsOf(iv.Start), day.SecondsOf(iv.End)
		if end <= start {
			continue
		}
		if start > lastEnd {
			emit(lastEnd, start, core.Gap)
		}
		emit(start, end, core.Filled)
		lastEnd = end
	}

	if lastEnd < core.SecondsPerDay {
		emit(lastEnd, core.SecondsPerDay, core.Gap)
	}
	return blocks
}

// Validate checks the Data Provider contract for one day: every interval lies
// inside the day with start < end, and the list is sorted and non-overlapping.
func Validate(day core.Date, intervals []core.RecordingInterval) error {
	prevEnd := -1
	for i, iv := range intervals {
		if !iv.Start.Before(iv.End) {
			return fmt.Errorf("%w: interval %d starts at or after its end (%s >= %s)",
				core.ErrInvalidInput, i, iv.Start.Format(timescale.DateTimeLayout), iv.End.Format(timescale.DateTimeLayout))
		}
		if core.DateOf(iv.Start) != day {
			return fmt.Errorf("%w: interval %d starts outside %s", core.ErrInvalidInput, i, day)
		}
		if end := iv.End; core.DateOf(end) != day && !end.Equal(day.AddDays(1).Midnight(end.Location())) {
			return fmt.Errorf("%w: interval %d ends outside %s", core.ErrInvalidInput, i, day)
		}
		start := day.SecondsOf(iv.Start)
		if start < prevEnd {
			return fmt.Errorf("%w: interval %d overlaps or precedes interval %d", core.ErrInconsistentState, i, i-1)
		}
		prevEnd = day.SecondsOf(iv.End)
	}
	return nil
}

// Find returns the index of the block containing seconds, or -1.
func Find(blocks []core.Block, seconds int) int {
	for i, b := range blocks {
		if b.Contains(seconds) {
			return i
		}
	}
	return -1
}

// NextFilled returns the index of the first Filled block after index from, or -1.
func NextFilled(blocks []core.Block, from int) int {
	for i := from + 1; i < len(blocks); i++ {
		if blocks[i].Kind == core.Filled {
			return i
		}
	}
	return -1
}
