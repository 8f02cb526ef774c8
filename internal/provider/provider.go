// Package provider adapts the recorder's raw export to the engine's Data
// Provider interface. Records may run across midnight; they are split into
// one interval per calendar day.
package provider

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/OCAP2/timeslider/internal/segment"
	"github.com/OCAP2/timeslider/internal/timescale"
	"github.com/OCAP2/timeslider/pkg/core"
)

// Record is one recording file as exported by the recorder.
type Record struct {
	FileName  string `json:"fileName,omitempty"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// Track is one device channel and its recordings.
type Track struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Extra   map[string]any `json:"extInfo,omitempty"`
	Records []Record       `json:"vRecordTime"`
}

// File is the layout of an export file.
type File struct {
	Tracks []Track `json:"tracks"`
}

// Option configures a Provider.
type Option func(*options)

type options struct {
	loc      *time.Location
	validate bool
}

// WithLocation sets the zone the export timestamps are in. Default time.Local.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.loc = loc
		}
	}
}

// WithValidation checks every day's intervals at construction; overlapping
// records are reported as core.ErrInconsistentState.
func WithValidation() Option {
	return func(o *options) { o.validate = true }
}

type trackData struct {
	meta core.TrackMetadata
	days map[core.Date][]core.RecordingInterval
}

// Provider serves recording intervals grouped by calendar day.
// It is immutable after New and safe for concurrent use.
type Provider struct {
	tracks []trackData
	loc    *time.Location
}

// New parses and groups tracks.
func New(tracks []Track, opts ...Option) (*Provider, error) {
	o := options{loc: time.Local}
	for _, opt := range opts {
		opt(&o)
	}

	p := &Provider{tracks: make([]trackData, len(tracks)), loc: o.loc}
	for ti, tr := range tracks {
		td := trackData{
			meta: core.TrackMetadata{ID: tr.ID, Name: tr.Name, Extra: tr.Extra},
			days: make(map[core.Date][]core.RecordingInterval),
		}
		for ri, rec := range tr.Records {
			start, err := timescale.ParseDateTime(rec.StartTime, o.loc)
			if err != nil {
				return nil, fmt.Errorf("track %d record %d: %w", ti, ri, err)
			}
			end, err := timescale.ParseDateTime(rec.EndTime, o.loc)
			if err != nil {
				return nil, fmt.Errorf("track %d record %d: %w", ti, ri, err)
			}
			if !start.Before(end) {
				return nil, fmt.Errorf("%w: track %d record %d ends before it starts", core.ErrInvalidInput, ti, ri)
			}
			for _, iv := range SplitByDay(start, end) {
				d := core.DateOf(iv.Start)
				td.days[d] = append(td.days[d], iv)
			}
		}
		for d, ivs := range td.days {
			sort.SliceStable(ivs, func(i, j int) bool { return ivs[i].Start.Before(ivs[j].Start) })
			if o.validate {
				if err := segment.Validate(d, ivs); err != nil {
					return nil, fmt.Errorf("track %d on %s: %w", ti, d, err)
				}
			}
		}
		p.tracks[ti] = td
	}
	return p, nil
}

// SplitByDay cuts [start, end) at every midnight it crosses.
func SplitByDay(start, end time.Time) []core.RecordingInterval {
	var out []core.RecordingInterval
	for cur := start; cur.Before(end); {
		next := core.DateOf(cur).AddDays(1).Midnight(cur.Location())
		if end.Before(next) {
			next = end
		}
		out = append(out, core.RecordingInterval{Start: cur, End: next})
		cur = next
	}
	return out
}

// LoadFile reads an export file.
func LoadFile(path string, opts ...Option) (*Provider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading recordings: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", core.ErrInvalidInput, path, err)
	}
	return New(f.Tracks, opts...)
}

func (p *Provider) Tracks() int { return len(p.tracks) }

// Intervals returns the track's intervals on day, sorted by start.
func (p *Provider) Intervals(track int, day core.Date) ([]core.RecordingInterval, error) {
	if track < 0 || track >= len(p.tracks) {
		return nil, fmt.Errorf("%w: track %d", core.ErrNotFound, track)
	}
	ivs := p.tracks[track].days[day]
	out := make([]core.RecordingInterval, len(ivs))
	copy(out, ivs)
	return out, nil
}

// Metadata returns the track's static information; unknown tracks get the zero value.
func (p *Provider) Metadata(track int) core.TrackMetadata {
	if track < 0 || track >= len(p.tracks) {
		return core.TrackMetadata{}
	}
	return p.tracks[track].meta
}

// Days returns the dates on which any track has recordings, in order.
func (p *Provider) Days() []core.Date {
	seen := make(map[core.Date]bool)
	var out []core.Date
	for _, td := range p.tracks {
		for d := range td.days {
			if !seen[d] {
				seen[d] = true
				out = append(out, d)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Location returns the zone timestamps were parsed in.
func (p *Provider) Location() *time.Location { return p.loc }
