package provider

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OCAP2/timeslider/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) core.Date {
	return core.Date{Year: y, Month: m, Day: d}
}

func TestNew_SplitsAcrossMidnight(t *testing.T) {
	p, err := New([]Track{{
		ID:   "1602",
		Name: "NVR channel 01",
		Records: []Record{
			{StartTime: "2025-09-08 14:58:40", EndTime: "2025-09-09 00:05:53"},
			{StartTime: "2025-09-09 00:07:04", EndTime: "2025-09-10 16:34:20"},
		},
	}}, WithLocation(time.UTC), WithValidation())
	require.NoError(t, err)

	day8, err := p.Intervals(0, date(2025, 9, 8))
	require.NoError(t, err)
	require.Len(t, day8, 1)
	assert.Equal(t, 14*3600+58*60+40, date(2025, 9, 8).SecondsOf(day8[0].Start))
	assert.Equal(t, core.SecondsPerDay, date(2025, 9, 8).SecondsOf(day8[0].End))

	day9, err := p.Intervals(0, date(2025, 9, 9))
	require.NoError(t, err)
	require.Len(t, day9, 2)
	assert.Equal(t, 0, date(2025, 9, 9).SecondsOf(day9[0].Start))
	assert.Equal(t, 5*60+53, date(2025, 9, 9).SecondsOf(day9[0].End))
	assert.Equal(t, 7*60+4, date(2025, 9, 9).SecondsOf(day9[1].Start))
	assert.Equal(t, core.SecondsPerDay, date(2025, 9, 9).SecondsOf(day9[1].End))

	day10, err := p.Intervals(0, date(2025, 9, 10))
	require.NoError(t, err)
	require.Len(t, day10, 1)
	assert.Equal(t, 16*3600+34*60+20, date(2025, 9, 10).SecondsOf(day10[0].End))

	assert.Equal(t, []core.Date{date(2025, 9, 8), date(2025, 9, 9), date(2025, 9, 10)}, p.Days())
	assert.Equal(t, "NVR channel 01", p.Metadata(0).Name)
}

func TestSplitByDay(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		want  int
	}{
		{"same day", time.Date(2025, 1, 1, 1, 0, 0, 0, time.UTC), time.Date(2025, 1, 1, 2, 0, 0, 0, time.UTC), 1},
		{"ends at midnight", time.Date(2025, 1, 1, 23, 0, 0, 0, time.UTC), time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), 1},
		{"crosses one midnight", time.Date(2025, 1, 1, 23, 0, 0, 0, time.UTC), time.Date(2025, 1, 2, 1, 0, 0, 0, time.UTC), 2},
		{"three days", time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC), time.Date(2025, 1, 3, 12, 0, 0, 0, time.UTC), 3},
		{"empty", time.Date(2025, 1, 1, 1, 0, 0, 0, time.UTC), time.Date(2025, 1, 1, 1, 0, 0, 0, time.UTC), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitByDay(tt.start, tt.end)
			require.Len(t, got, tt.want)
			if tt.want > 0 {
				assert.Equal(t, tt.start, got[0].Start)
				assert.Equal(t, tt.end, got[len(got)-1].End)
			}
			for i := 1; i < len(got); i++ {
				assert.Equal(t, got[i-1].End, got[i].Start)
			}
		})
	}
}

func TestNew_SortsWithinDay(t *testing.T) {
	p, err := New([]Track{{Records: []Record{
		{StartTime: "2025-01-01 10:00:00", EndTime: "2025-01-01 11:00:00"},
		{StartTime: "2025-01-01 08:00:00", EndTime: "2025-01-01 09:00:00"},
	}}}, WithLocation(time.UTC))
	require.NoError(t, err)

	ivs, err := p.Intervals(0, date(2025, 1, 1))
	require.NoError(t, err)
	require.Len(t, ivs, 2)
	assert.Equal(t, 8, ivs[0].Start.Hour())
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name    string
		records []Record
		opts    []Option
		target  error
	}{
		{"bad timestamp", []Record{{StartTime: "yesterday", EndTime: "2025-01-01 11:00:00"}}, nil, core.ErrInvalidInput},
		{"reversed", []Record{{StartTime: "2025-01-01 11:00:00", EndTime: "2025-01-01 10:00:00"}}, nil, core.ErrInvalidInput},
		{"overlap with validation", []Record{
			{StartTime: "2025-01-01 10:00:00", EndTime: "2025-01-01 11:00:00"},
			{StartTime: "2025-01-01 10:30:00", EndTime: "2025-01-01 12:00:00"},
		}, []Option{WithValidation()}, core.ErrInconsistentState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New([]Track{{Records: tt.records}}, append(tt.opts, WithLocation(time.UTC))...)
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

func TestNew_OverlapWithoutValidationIsAccepted(t *testing.T) {
	_, err := New([]Track{{Records: []Record{
		{StartTime: "2025-01-01 10:00:00", EndTime: "2025-01-01 11:00:00"},
		{StartTime: "2025-01-01 10:30:00", EndTime: "2025-01-01 12:00:00"},
	}}}, WithLocation(time.UTC))
	assert.NoError(t, err)
}

func TestIntervals_UnknownTrack(t *testing.T) {
	p, err := New(nil)
	require.NoError(t, err)

	_, err = p.Intervals(0, date(2025, 1, 1))
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, core.TrackMetadata{}, p.Metadata(3))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recordings.json")
	body := `{
		"tracks": [
			{
				"id": "1602",
				"name": "Gate",
				"extInfo": { "channelCode": "00000000001181000144" },
				"vRecordTime": [
					{ "fileName": "E1753978072", "startTime": "2025-07-31 10:36:44", "endTime": "2025-08-01 00:07:52" }
				]
			}
		]
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	p, err := LoadFile(path, WithLocation(time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, p.Tracks())
	assert.Equal(t, "00000000001181000144", p.Metadata(0).Extra["channelCode"])

	ivs, err := p.Intervals(0, date(2025, 8, 1))
	require.NoError(t, err)
	require.Len(t, ivs, 1)
	assert.Equal(t, 7*60+52, date(2025, 8, 1).SecondsOf(ivs[0].End))
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading recordings")

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
	_, err = LoadFile(path)
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}
