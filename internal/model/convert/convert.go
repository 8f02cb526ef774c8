// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"fmt"

	"github.com/OCAP2/timeslider/internal/model"
	"github.com/OCAP2/timeslider/pkg/core"
)

// MarkerRecordToMarkerState converts a core.MarkerRecord to a GORM model.MarkerState
func MarkerRecordToMarkerState(rec core.MarkerRecord) model.MarkerState {
	return model.MarkerState{
		Date:            rec.Date.String(),
		TrackIndex:      rec.TrackIndex,
		PositionSeconds: rec.State.PositionSeconds,
		BoundarySeconds: rec.State.BoundarySeconds,
		IsPaused:        rec.State.IsPaused,
	}
}

// MarkerStateToMarkerRecord converts a GORM model.MarkerState back to a core.MarkerRecord
func MarkerStateToMarkerRecord(row model.MarkerState) (core.MarkerRecord, error) {
	d, err := core.ParseDate(row.Date)
	if err != nil {
		return core.MarkerRecord{}, fmt.Errorf("marker state %d: %w", row.ID, err)
	}
	return core.MarkerRecord{
		Date:       d,
		TrackIndex: row.TrackIndex,
		State: core.MarkerState{
			PositionSeconds: row.PositionSeconds,
			BoundarySeconds: row.BoundarySeconds,
			IsPaused:        row.IsPaused,
		},
	}, nil
}

// ActiveDateRecordToActiveDate converts a core.ActiveDateRecord to a GORM model.ActiveDate
func ActiveDateRecordToActiveDate(rec core.ActiveDateRecord) model.ActiveDate {
	return model.ActiveDate{
		TrackIndex:    rec.TrackIndex,
		ActiveDate:    rec.ActiveDate.String(),
		LastUpdatedAt: rec.LastUpdatedAt,
	}
}

// ActiveDateToActiveDateRecord converts a GORM model.ActiveDate back to a core.ActiveDateRecord
func ActiveDateToActiveDateRecord(row model.ActiveDate) (core.ActiveDateRecord, error) {
	d, err := core.ParseDate(row.ActiveDate)
	if err != nil {
		return core.ActiveDateRecord{}, fmt.Errorf("active date for track %d: %w", row.TrackIndex, err)
	}
	return core.ActiveDateRecord{
		TrackIndex:    row.TrackIndex,
		ActiveDate:    d,
		LastUpdatedAt: row.LastUpdatedAt,
	}, nil
}
