// internal/storage/memory/memory_test.go
package memory

import (
	"sync"
	"testing"
	"time"

	"github.com/OCAP2/timeslider/pkg/core"
)

var (
	day1 = core.Date{Year: 2024, Month: time.March, Day: 1}
	day2 = core.Date{Year: 2024, Month: time.March, Day: 2}
)

func TestInitAndClose(t *testing.T) {
	b := New()

	if err := b.Init(); err != nil {
		t.Errorf("Init failed: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestSaveMarkerState_Upserts(t *testing.T) {
	b := New()

	_ = b.SaveMarkerState(core.MarkerRecord{Date: day1, TrackIndex: 0, State: core.MarkerState{PositionSeconds: 10, BoundarySeconds: 100}})
	_ = b.SaveMarkerState(core.MarkerRecord{Date: day1, TrackIndex: 0, State: core.MarkerState{PositionSeconds: 20, BoundarySeconds: 100}})

	recs, err := b.LoadMarkerStates()
	if err != nil {
		t.Fatalf("LoadMarkerStates failed: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0].State.PositionSeconds != 20 {
		t.Errorf("expected position 20, got %d", recs[0].State.PositionSeconds)
	}
}

func TestDeleteMarkerStates_KeepsExceptDate(t *testing.T) {
	b := New()

	_ = b.SaveMarkerState(core.MarkerRecord{Date: day1, TrackIndex: 0})
	_ = b.SaveMarkerState(core.MarkerRecord{Date: day2, TrackIndex: 0})
	_ = b.SaveMarkerState(core.MarkerRecord{Date: day1, TrackIndex: 1})

	if err := b.DeleteMarkerStates(0, day2); err != nil {
		t.Fatalf("DeleteMarkerStates failed: %v", err)
	}

	recs, _ := b.LoadMarkerStates()
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	for _, r := range recs {
		if r.TrackIndex == 0 && r.Date != day2 {
			t.Errorf("track 0 kept state for %s", r.Date)
		}
	}
}

func TestActiveDates(t *testing.T) {
	b := New()
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	_ = b.SaveActiveDate(core.ActiveDateRecord{TrackIndex: 3, ActiveDate: day1, LastUpdatedAt: at})
	_ = b.SaveActiveDate(core.ActiveDateRecord{TrackIndex: 3, ActiveDate: day2, LastUpdatedAt: at.Add(time.Minute)})

	recs, err := b.LoadActiveDates()
	if err != nil {
		t.Fatalf("LoadActiveDates failed: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0].ActiveDate != day2 {
		t.Errorf("expected active date %s, got %s", day2, recs[0].ActiveDate)
	}
}

func TestConcurrentWrites(t *testing.T) {
	b := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(track int) {
			defer wg.Done()
			_ = b.SaveMarkerState(core.MarkerRecord{Date: day1, TrackIndex: track})
			_ = b.SaveActiveDate(core.ActiveDateRecord{TrackIndex: track, ActiveDate: day1})
		}(i)
	}
	wg.Wait()

	recs, _ := b.LoadMarkerStates()
	if len(recs) != 50 {
		t.Errorf("expected 50 records, got %d", len(recs))
	}
	actives, _ := b.LoadActiveDates()
	if len(actives) != 50 {
		t.Errorf("expected 50 active dates, got %d", len(actives))
	}
}
