package timescale

import (
	"fmt"

	"github.com/OCAP2/timeslider/pkg/core"
)

// Levels is the zoom ladder ordered by increasing resolution.
var Levels = []core.ZoomLevel{
	{Divisions: 24, IntervalSeconds: 3600},
	{Divisions: 48, IntervalSeconds: 1800},
	{Divisions: 288, IntervalSeconds: 300},
	{Divisions: 1440, IntervalSeconds: 60},
}

// Direction of a zoom step.
type Direction int

const (
	In Direction = iota
	Out
)

// ParseDirection accepts "in" / "out" (also "+" / "-").
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "in", "+":
		return In, nil
	case "out", "-":
		return Out, nil
	}
	return In, fmt.Errorf("%w: zoom direction %q", core.ErrInvalidInput, s)
}

func (d Direction) String() string {
	if d == Out {
		return "out"
	}
	return "in"
}

// LevelFor returns the zoom level with the given number of divisions.
func LevelFor(divisions int) (core.ZoomLevel, error) {
	for _, l := range Levels {
		if l.Divisions == divisions {
			return l, nil
		}
	}
	return core.ZoomLevel{}, fmt.Errorf("%w: zoom level %d", core.ErrInvalidInput, divisions)
}

func indexOf(level core.ZoomLevel) int {
	for i, l := range Levels {
		if l == level {
			return i
		}
	}
	return -1
}

// Step moves one level in dir. It does not wrap: at either end of the ladder
// the level is returned unchanged with changed false.
func Step(level core.ZoomLevel, dir Direction) (next core.ZoomLevel, changed bool) {
	i := indexOf(level)
	if i < 0 {
		return level, false
	}
	switch dir {
	case In:
		i++
	case Out:
		i--
	}
	if i < 0 || i >= len(Levels) {
		return level, false
	}
	return Levels[i], true
}

// ZoomIn moves to the next finer level.
func ZoomIn(level core.ZoomLevel) (core.ZoomLevel, bool) { return Step(level, In) }

// ZoomOut moves to the next coarser level.
func ZoomOut(level core.ZoomLevel) (core.ZoomLevel, bool) { return Step(level, Out) }
