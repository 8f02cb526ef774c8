package presenter

import (
	"bytes"
	"testing"

	"github.com/OCAP2/timeslider/internal/engine"
	"github.com/OCAP2/timeslider/pkg/core"
	"github.com/stretchr/testify/assert"
)

var _ engine.Renderer = (*Text)(nil)

func TestRenderBlocks(t *testing.T) {
	var buf bytes.Buffer
	p := NewText(&buf, WithTrackNames(func(track int) string { return "NVR channel 01" }))

	p.RenderBlocks(0, []core.Block{
		{StartSeconds: 0, EndSeconds: 32400, Kind: core.Gap},
		{StartSeconds: 32400, EndSeconds: 33000, Kind: core.Filled},
		{StartSeconds: 33000, EndSeconds: core.SecondsPerDay, Kind: core.Gap},
	})

	assert.Equal(t,
		"track 0 NVR channel 01: [00:00:00-09:00:00 gap] [09:00:00-09:10:00 filled] [09:10:00-24:00:00 gap]\n",
		buf.String())
}

func TestRenderMarker(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		want    string
	}{
		{
			name: "quiet writes visibility changes",
			want: "marker 1 at 450.00px\nmarker 1 hidden\nmarker 1 at 10.00px\n",
		},
		{
			name:    "verbose writes every move",
			verbose: true,
			want:    "marker 1 at 450.00px\nmarker 1 at 451.00px\nmarker 1 hidden\nmarker 1 at 10.00px\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			p := NewText(&buf, Verbose(tt.verbose))

			p.RenderMarker(1, 0, false)
			p.RenderMarker(1, 450, true)
			p.RenderMarker(1, 451, true)
			p.RenderMarker(1, 0, false)
			p.Clear()
			p.RenderMarker(1, 10, true)

			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestRenderOverlay(t *testing.T) {
	var buf bytes.Buffer
	p := NewText(&buf)

	p.RenderOverlay(2, 450, 600, core.OverlayStyle{ID: "ov-1", Color: "red", Opacity: 0.5, ZIndexHint: 3})

	assert.Equal(t, "overlay ov-1 on track 2: 450.00px +600.00px red opacity 0.50 z 3\n", buf.String())
}
