package model

import (
	"time"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&MarkerState{},
	&ActiveDate{},
}

// MarkerState is the persisted position of a track's marker on one date.
// (Date, TrackIndex) is unique.
type MarkerState struct {
	ID              uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Date            string    `json:"date" gorm:"size:10;not null;uniqueIndex:idx_markerstate_date_track,priority:1"`
	TrackIndex      int       `json:"trackIndex" gorm:"not null;uniqueIndex:idx_markerstate_date_track,priority:2;index:idx_markerstate_track"`
	PositionSeconds int       `json:"positionSeconds"`
	BoundarySeconds int       `json:"boundarySeconds"`
	IsPaused        bool      `json:"isPaused"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (*MarkerState) TableName() string {
	return "marker_states"
}

// ActiveDate records the single date whose marker state is valid for a track.
type ActiveDate struct {
	TrackIndex    int       `json:"trackIndex" gorm:"primarykey;autoIncrement:false"`
	ActiveDate    string    `json:"activeDate" gorm:"size:10;not null"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
}

func (*ActiveDate) TableName() string {
	return "active_dates"
}
