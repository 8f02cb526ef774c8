package engine

import "github.com/OCAP2/timeslider/pkg/core"

// Provider supplies recording availability. Intervals must be sorted and
// non-overlapping within day.
type Provider interface {
	Tracks() int
	Intervals(track int, day core.Date) ([]core.RecordingInterval, error)
	Metadata(track int) core.TrackMetadata
}

// Renderer is the Presentation Layer. The engine calls it while holding its
// lock, so implementations must not call back into the engine.
type Renderer interface {
	RenderBlocks(track int, blocks []core.Block)
	RenderMarker(track int, positionPixels float64, visible bool)
	RenderOverlay(track int, startPixels, widthPixels float64, style core.OverlayStyle)
	// Clear drops everything drawn so far; a destructive re-render follows.
	Clear()
}

// Activation describes a marker placement made from the timeline, reported
// to the host after the engine lock is released.
type Activation struct {
	Track    int
	Time     string
	Seconds  int
	Boundary int
	Metadata core.TrackMetadata
}

// NopRenderer draws nothing.
type NopRenderer struct{}

func (NopRenderer) RenderBlocks(int, []core.Block)                          {}
func (NopRenderer) RenderMarker(int, float64, bool)                         {}
func (NopRenderer) RenderOverlay(int, float64, float64, core.OverlayStyle) {}
func (NopRenderer) Clear()                                                  {}
