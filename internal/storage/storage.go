// internal/storage/storage.go
package storage

import "github.com/OCAP2/timeslider/pkg/core"

// Backend is the interface all marker state storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Marker states, keyed by (date, track)
	SaveMarkerState(rec core.MarkerRecord) error
	DeleteMarkerStates(track int, except core.Date) error
	LoadMarkerStates() ([]core.MarkerRecord, error)

	// Active date per track
	SaveActiveDate(rec core.ActiveDateRecord) error
	LoadActiveDates() ([]core.ActiveDateRecord, error)
}

// Flusher is an optional interface for backends that buffer writes.
type Flusher interface {
	Flush() error
}
