package engine

import (
	"bytes"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/OCAP2/timeslider/internal/marker"
	"github.com/OCAP2/timeslider/internal/markerstore"
	"github.com/OCAP2/timeslider/internal/timescale"
	"github.com/OCAP2/timeslider/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	d1 = core.Date{Year: 2025, Month: time.January, Day: 1}
	d2 = core.Date{Year: 2025, Month: time.January, Day: 2}
)

func at(d core.Date, h, m, s int) time.Time {
	return time.Date(d.Year, d.Month, d.Day, h, m, s, 0, time.UTC)
}

type fakeProvider struct {
	tracks    int
	intervals map[int]map[core.Date][]core.RecordingInterval
	err       error
}

func (p *fakeProvider) Tracks() int { return p.tracks }

func (p *fakeProvider) Intervals(track int, day core.Date) ([]core.RecordingInterval, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.intervals[track][day], nil
}

func (p *fakeProvider) Metadata(track int) core.TrackMetadata {
	return core.TrackMetadata{ID: "cam", Name: "Camera"}
}

type markerCall struct {
	pixels  float64
	visible bool
}

type overlayCall struct {
	track        int
	start, width float64
	style        core.OverlayStyle
}

type fakeRenderer struct {
	mu       sync.Mutex
	clears   int
	blocks   map[int][]core.Block
	markers  map[int]markerCall
	overlays []overlayCall
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{blocks: map[int][]core.Block{}, markers: map[int]markerCall{}}
}

func (r *fakeRenderer) RenderBlocks(track int, blocks []core.Block) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blocks[track] = blocks
}

func (r *fakeRenderer) RenderMarker(track int, px float64, visible bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markers[track] = markerCall{px, visible}
}

func (r *fakeRenderer) RenderOverlay(track int, start, width float64, style core.OverlayStyle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overlays = append(r.overlays, overlayCall{track, start, width, style})
}

func (r *fakeRenderer) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clears++
	r.blocks = map[int][]core.Block{}
	r.markers = map[int]markerCall{}
	r.overlays = nil
}

type fixedTime struct{ t time.Time }

func (f fixedTime) Now() time.Time { return f.t }

// twoTrackProvider: track 0 records 09:00-09:10 and 10:00-11:00 on d1 and
// 00:00-01:00 on d2; track 1 records 00:00-01:00 on d1.
func twoTrackProvider() *fakeProvider {
	return &fakeProvider{
		tracks: 2,
		intervals: map[int]map[core.Date][]core.RecordingInterval{
			0: {
				d1: {
					{Start: at(d1, 9, 0, 0), End: at(d1, 9, 10, 0)},
					{Start: at(d1, 10, 0, 0), End: at(d1, 11, 0, 0)},
				},
				d2: {{Start: at(d2, 0, 0, 0), End: at(d2, 1, 0, 0)}},
			},
			1: {
				d1: {{Start: at(d1, 0, 0, 0), End: at(d1, 1, 0, 0)}},
			},
		},
	}
}

type harness struct {
	e     *Engine
	sched *marker.ManualScheduler
	r     *fakeRenderer
	store *markerstore.Store
	logs  *bytes.Buffer
}

func newHarness(t *testing.T, p Provider, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		sched: marker.NewManualScheduler(),
		r:     newFakeRenderer(),
		store: markerstore.New(),
		logs:  &bytes.Buffer{},
	}
	base := []Option{
		WithScheduler(h.sched),
		WithStore(h.store),
		WithDate(d1),
		WithLocation(time.UTC),
		WithTimeProvider(fixedTime{at(d1, 12, 0, 0)}),
		WithLogger(slog.New(slog.NewTextHandler(h.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))),
	}
	e, err := New(p, h.r, append(base, opts...)...)
	require.NoError(t, err)
	require.NoError(t, e.Render())
	t.Cleanup(func() { _ = e.Destroy() })
	h.e = e
	return h
}

func (h *harness) track(t *testing.T, i int) core.TrackSnapshot {
	t.Helper()
	snap, err := h.e.Snapshot()
	require.NoError(t, err)
	return snap.PerTrack[i]
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, nil)
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = New(twoTrackProvider(), nil, WithSpeed(-1))
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestScenario_OneHourAtNormalSpeed(t *testing.T) {
	h := newHarness(t, twoTrackProvider())

	sc := h.e.Scale()
	assert.Equal(t, 24, sc.Level.Divisions)
	assert.Equal(t, float64(50), sc.PixelsPerUnit)
	assert.Equal(t, float64(50), sc.ToPixels(3600))

	placed, err := h.e.ActivateBlock(1, 0)
	require.NoError(t, err)
	require.True(t, placed)

	h.sched.Ticks(3599, time.Second)
	assert.Equal(t, "running", h.track(t, 1).Phase)
	h.sched.Ticks(1, time.Second)

	tr := h.track(t, 1)
	assert.Equal(t, 3600, tr.PositionSeconds)
	assert.Equal(t, "finished", tr.Phase)
	assert.Equal(t, 0, h.sched.Active(), "finished marker must stop ticking")
	assert.Equal(t, markerCall{50, true}, h.r.markers[1])
}

func TestScenario_36TicksAtHundredfold(t *testing.T) {
	h := newHarness(t, twoTrackProvider())

	require.NoError(t, h.e.SetSpeed(100, 1))
	_, err := h.e.ActivateBlock(1, 0)
	require.NoError(t, err)

	h.sched.Ticks(36, time.Second)

	tr := h.track(t, 1)
	assert.Equal(t, 3600, tr.PositionSeconds)
	assert.Equal(t, "finished", tr.Phase)
}

func TestActivateBlock_FilledPlacesAtPoint(t *testing.T) {
	var got []Activation
	h := newHarness(t, twoTrackProvider(), OnActivate(func(a Activation) { got = append(got, a) }))

	placed, err := h.e.ActivateBlock(0, 10*3600+30*60)
	require.NoError(t, err)
	require.True(t, placed)

	tr := h.track(t, 0)
	assert.Equal(t, 37800, tr.PositionSeconds)
	assert.Equal(t, 39600, tr.BoundarySeconds)
	assert.Equal(t, "running", tr.Phase)

	require.Len(t, got, 1)
	assert.Equal(t, "2025-01-01 10:30:00", got[0].Time)
	assert.Equal(t, "Camera", got[0].Metadata.Name)

	rec, ok := h.store.Active(0)
	require.True(t, ok)
	assert.Equal(t, d1, rec.ActiveDate)
}

func TestActivateBlock_GapSnapsForward(t *testing.T) {
	h := newHarness(t, twoTrackProvider())

	placed, err := h.e.ActivateBlock(0, 8*3600)
	require.NoError(t, err)
	require.True(t, placed)

	tr := h.track(t, 0)
	assert.Equal(t, 32400, tr.PositionSeconds)
	assert.Equal(t, 33000, tr.BoundarySeconds)

	// the gap between the two recordings snaps to the second one
	_, err = h.e.ActivateBlock(0, 9*3600+30*60)
	require.NoError(t, err)
	assert.Equal(t, 36000, h.track(t, 0).PositionSeconds)
}

func TestActivateBlock_TrailingGapIsNoop(t *testing.T) {
	h := newHarness(t, twoTrackProvider())

	placed, err := h.e.ActivateBlock(0, 20*3600)
	require.NoError(t, err)
	assert.False(t, placed)
	assert.False(t, h.track(t, 0).Placed)
	assert.Contains(t, h.logs.String(), "No recording after gap")
}

func TestActivateBlock_Errors(t *testing.T) {
	h := newHarness(t, twoTrackProvider())

	_, err := h.e.ActivateBlock(5, 0)
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = h.e.ActivateBlock(0, -1)
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = h.e.ActivateBlock(0, core.SecondsPerDay+1)
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestActivateAt_UsesScale(t *testing.T) {
	h := newHarness(t, twoTrackProvider())

	// 500px at 50px per hour is 10:00
	placed, err := h.e.ActivateAt(0, 500)
	require.NoError(t, err)
	require.True(t, placed)
	assert.Equal(t, 36000, h.track(t, 0).PositionSeconds)
}

func TestSeek(t *testing.T) {
	h := newHarness(t, twoTrackProvider())

	res, err := h.e.Seek(8 * 3600)
	require.NoError(t, err)
	require.Len(t, res, 2)
	require.NotNil(t, res[0])
	assert.Equal(t, 32400, res[0].PositionSeconds)
	assert.Equal(t, 33000, res[0].BoundarySeconds)
	assert.Nil(t, res[1], "track 1 has nothing after 08:00")
	assert.False(t, h.track(t, 1).Placed)

	res, err = h.e.Seek(9*3600+15*60, 0)
	require.NoError(t, err)
	assert.Equal(t, 36000, res[0].PositionSeconds)
}

func TestSeek_NoTargetKeepsMarker(t *testing.T) {
	h := newHarness(t, twoTrackProvider())

	_, err := h.e.Seek(9 * 3600, 0)
	require.NoError(t, err)

	res, err := h.e.Seek(12*3600, 0)
	require.NoError(t, err)
	assert.Nil(t, res[0])
	assert.Equal(t, 32400, h.track(t, 0).PositionSeconds)
}

func TestSeek_InvalidTrackMutatesNothing(t *testing.T) {
	h := newHarness(t, twoTrackProvider())

	_, err := h.e.Seek(0, 1, 7)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.False(t, h.track(t, 1).Placed)

	_, err = h.e.Seek(-5)
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestDateIsolation_ReturnRestoresExactState(t *testing.T) {
	h := newHarness(t, twoTrackProvider())

	_, err := h.e.Seek(10*3600, 0)
	require.NoError(t, err)
	h.sched.Ticks(90, time.Second)
	require.NoError(t, h.e.SetPaused(true, 0))
	before := h.track(t, 0)

	require.NoError(t, h.e.SetDate(d2))
	assert.False(t, h.track(t, 0).Placed, "marker belongs to d1")
	assert.False(t, h.r.markers[0].visible)

	require.NoError(t, h.e.SetDate(d1))
	assert.Equal(t, before, h.track(t, 0))
	assert.Equal(t, 36090, h.track(t, 0).PositionSeconds)
}

func TestDateIsolation_RunningMarkerResumesAfterReturn(t *testing.T) {
	h := newHarness(t, twoTrackProvider())

	_, err := h.e.Seek(10*3600, 0)
	require.NoError(t, err)
	h.sched.Ticks(10, time.Second)

	require.NoError(t, h.e.NextDay())
	h.sched.Ticks(10, time.Second)
	require.NoError(t, h.e.PrevDay())

	tr := h.track(t, 0)
	assert.Equal(t, 36010, tr.PositionSeconds, "no ticks while away")
	assert.Equal(t, "running", tr.Phase)

	h.sched.Ticks(5, time.Second)
	assert.Equal(t, 36015, h.track(t, 0).PositionSeconds)
}

func TestDateIsolation_NewPlacementSupersedesOldDay(t *testing.T) {
	for _, sweep := range []bool{false, true} {
		t.Run(map[bool]string{false: "lazy", true: "sweep"}[sweep], func(t *testing.T) {
			h := newHarness(t, twoTrackProvider(), WithSweepStale(sweep))

			_, err := h.e.Seek(10*3600, 0)
			require.NoError(t, err)

			require.NoError(t, h.e.SetDate(d2))
			_, err = h.e.Seek(0, 0)
			require.NoError(t, err)
			h.sched.Ticks(3, time.Second)

			require.NoError(t, h.e.SetDate(d1))
			assert.False(t, h.track(t, 0).Placed, "d1 must not resurrect a superseded marker")
			assert.Equal(t, 0, h.sched.Active())

			_, stale := h.store.Peek(d1, 0)
			assert.Equal(t, !sweep, stale)

			require.NoError(t, h.e.SetDate(d2))
			assert.Equal(t, 3, h.track(t, 0).PositionSeconds)
		})
	}
}

func TestZoom_PreservesMarkerAndRescales(t *testing.T) {
	h := newHarness(t, twoTrackProvider())

	_, err := h.e.Seek(10*3600, 0)
	require.NoError(t, err)
	h.sched.Ticks(30, time.Second)
	before := h.track(t, 0)

	changed, err := h.e.Zoom(timescale.In)
	require.NoError(t, err)
	require.True(t, changed)

	assert.Equal(t, before, h.track(t, 0))
	sc := h.e.Scale()
	assert.Equal(t, 48, sc.Level.Divisions)
	assert.Equal(t, float64(50), sc.PixelsPerUnit, "1200/48 is floored at 50")
	assert.InDelta(t, sc.ToPixels(36030), h.r.markers[0].pixels, 1e-9)
	assert.Equal(t, 1, h.sched.Active(), "tick sources are replaced, not stacked")

	h.sched.Ticks(1, time.Second)
	assert.Equal(t, 36031, h.track(t, 0).PositionSeconds)
}

func TestZoom_NoWrap(t *testing.T) {
	h := newHarness(t, twoTrackProvider())
	clears := h.r.clears

	changed, err := h.e.Zoom(timescale.Out)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, clears, h.r.clears, "no re-render at the end of the ladder")
}

func TestRerender_ThemeAndWidth(t *testing.T) {
	h := newHarness(t, twoTrackProvider())

	_, err := h.e.Seek(0, 1)
	require.NoError(t, err)

	require.NoError(t, h.e.SetTheme("dark-theme"))
	assert.Equal(t, "dark-theme", h.e.Theme())
	assert.True(t, h.track(t, 1).Placed)

	require.NoError(t, h.e.SetWidth(2400))
	assert.Equal(t, float64(100), h.e.Scale().PixelsPerUnit)
	assert.True(t, h.track(t, 1).Placed)

	assert.ErrorIs(t, h.e.SetTheme(""), core.ErrInvalidInput)
	assert.ErrorIs(t, h.e.SetWidth(0), core.ErrInvalidInput)
}

func TestBlocks_CoverTheDay(t *testing.T) {
	h := newHarness(t, twoTrackProvider())

	blocks, err := h.e.Blocks(0)
	require.NoError(t, err)
	require.Len(t, blocks, 5)
	assert.Equal(t, 0, blocks[0].StartSeconds)
	assert.Equal(t, core.SecondsPerDay, blocks[len(blocks)-1].EndSeconds)
	for i := 1; i < len(blocks); i++ {
		assert.Equal(t, blocks[i-1].EndSeconds, blocks[i].StartSeconds)
	}
	assert.Equal(t, blocks, h.r.blocks[0])
}

func TestProviderError_DrawsEmptyDay(t *testing.T) {
	p := twoTrackProvider()
	p.err = errors.New("backend offline")
	h := newHarness(t, p)

	blocks, err := h.e.Blocks(0)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, core.Gap, blocks[0].Kind)
	assert.Contains(t, h.logs.String(), "backend offline")
}

func TestPauseResume(t *testing.T) {
	h := newHarness(t, twoTrackProvider())

	_, err := h.e.Seek(10*3600, 0)
	require.NoError(t, err)
	h.sched.Ticks(5, time.Second)

	require.NoError(t, h.e.SetPaused(true, 0))
	require.NoError(t, h.e.SetPaused(true, 0))
	paused := h.track(t, 0)
	assert.True(t, paused.IsPaused)
	assert.Equal(t, 0, h.sched.Active())

	h.sched.Ticks(100, time.Second)
	assert.Equal(t, paused, h.track(t, 0))

	st, ok := h.store.Peek(d1, 0)
	require.True(t, ok)
	assert.True(t, st.IsPaused)

	require.NoError(t, h.e.SetPaused(false))
	h.sched.Ticks(1, time.Second)
	assert.Equal(t, 36006, h.track(t, 0).PositionSeconds)
	assert.False(t, h.track(t, 1).Placed, "resume leaves unplaced tracks alone")
}

func TestSetSpeed(t *testing.T) {
	h := newHarness(t, twoTrackProvider())

	_, err := h.e.Seek(10*3600, 0)
	require.NoError(t, err)
	h.sched.Ticks(1, 500*time.Millisecond)

	require.NoError(t, h.e.SetSpeed(4, 0))
	assert.Equal(t, 36000, h.track(t, 0).PositionSeconds, "speed change must not jump")
	assert.Equal(t, 1, h.sched.Active())

	h.sched.Ticks(1, time.Second)
	assert.Equal(t, 36004, h.track(t, 0).PositionSeconds)

	assert.ErrorIs(t, h.e.SetSpeed(0), core.ErrInvalidInput)
	assert.ErrorIs(t, h.e.SetSpeed(2, 9), core.ErrNotFound)
	assert.Equal(t, float64(4), h.track(t, 0).Speed)
}

func TestOverlay_TruncatedAcrossMidnight(t *testing.T) {
	h := newHarness(t, twoTrackProvider())

	id, err := h.e.AddOverlay(core.Overlay{
		TrackIndex: 0,
		Start:      time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC),
		End:        at(d1, 1, 0, 0),
		Color:      "#ff0000",
		Opacity:    0.5,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.Len(t, h.r.overlays, 1)
	assert.Equal(t, 0.0, h.r.overlays[0].start)
	assert.Equal(t, 50.0, h.r.overlays[0].width)
	assert.Equal(t, id, h.r.overlays[0].style.ID)

	// redrawn after a re-render, hidden on a day it does not touch
	require.NoError(t, h.e.Render())
	assert.Len(t, h.r.overlays, 1)
	require.NoError(t, h.e.SetDate(d2))
	assert.Empty(t, h.r.overlays)

	require.NoError(t, h.e.SetDate(d1))
	require.NoError(t, h.e.RemoveOverlay(id))
	assert.Empty(t, h.r.overlays)
	assert.ErrorIs(t, h.e.RemoveOverlay(id), core.ErrNotFound)

	_, err = h.e.AddOverlay(core.Overlay{TrackIndex: 4, Start: at(d1, 0, 0, 0), End: at(d1, 1, 0, 0)})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestTimeAt_ClampsAndLogs(t *testing.T) {
	h := newHarness(t, twoTrackProvider())

	s, err := h.e.TimeAt(25)
	require.NoError(t, err)
	assert.Equal(t, 1800, s)

	s, err = h.e.TimeAt(-10)
	require.NoError(t, err)
	assert.Equal(t, 0, s)
	assert.Contains(t, h.logs.String(), "Hover offset clamped")

	s, err = h.e.TimeAt(5000)
	require.NoError(t, err)
	assert.Equal(t, core.SecondsPerDay, s)
}

func TestSetProvider_ResizesTracks(t *testing.T) {
	h := newHarness(t, twoTrackProvider())

	_, err := h.e.Seek(0, 1)
	require.NoError(t, err)

	require.NoError(t, h.e.SetProvider(&fakeProvider{tracks: 1}))
	assert.Equal(t, 1, h.e.Tracks())
	assert.Equal(t, 0, h.sched.Active())

	_, err = h.e.ActivateBlock(1, 0)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestStoreReceivesEveryTick(t *testing.T) {
	h := newHarness(t, twoTrackProvider())

	_, err := h.e.Seek(10*3600, 0)
	require.NoError(t, err)
	h.sched.Ticks(7, time.Second)

	st, ok := h.store.Peek(d1, 0)
	require.True(t, ok)
	assert.Equal(t, 36007, st.PositionSeconds)
}

func TestDestroy(t *testing.T) {
	h := newHarness(t, twoTrackProvider())

	_, err := h.e.Seek(0)
	require.NoError(t, err)
	require.Equal(t, 2, h.sched.Active())

	require.NoError(t, h.e.Destroy())
	require.NoError(t, h.e.Destroy())
	assert.Equal(t, 0, h.sched.Active())

	assert.ErrorIs(t, h.e.Render(), core.ErrDestroyed)
	_, err = h.e.Seek(0)
	assert.ErrorIs(t, err, core.ErrDestroyed)
	_, err = h.e.Snapshot()
	assert.ErrorIs(t, err, core.ErrDestroyed)
	_, err = h.e.Zoom(timescale.In)
	assert.ErrorIs(t, err, core.ErrDestroyed)
	assert.ErrorIs(t, h.e.SetPaused(true), core.ErrDestroyed)
}

func TestViewAttrs(t *testing.T) {
	h := newHarness(t, twoTrackProvider())

	attrs := h.e.ViewAttrs()
	require.Len(t, attrs, 3)
	assert.Equal(t, "2025-01-01", attrs[0].Value.String())
	assert.Equal(t, int64(24), attrs[1].Value.Int64())

	require.NoError(t, h.e.NextDay())
	assert.Equal(t, "2025-01-02", h.e.ViewAttrs()[0].Value.String())
}

func TestTimerScheduler_DrivesEngine(t *testing.T) {
	sched := &marker.TimerScheduler{Interval: 2 * time.Millisecond, Time: marker.RealTime}
	e, err := New(twoTrackProvider(), newFakeRenderer(),
		WithScheduler(sched), WithDate(d1), WithLocation(time.UTC), WithSpeed(100000))
	require.NoError(t, err)
	defer e.Destroy()

	_, err = e.Seek(0, 1)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		snap, err := e.Snapshot()
		return err == nil && snap.PerTrack[1].Phase == "finished"
	}, 5*time.Second, 5*time.Millisecond)
}
