// pkg/core/errors.go
package core

import "errors"

var (
	// ErrInvalidInput marks malformed time strings, non-monotonic intervals and
	// out-of-range seconds. The rejected operation leaves no partial state.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInconsistentState marks input that violates the Data Provider contract,
	// such as overlapping or unsorted recording intervals.
	ErrInconsistentState = errors.New("inconsistent state")

	// ErrNotFound marks an unknown track index or overlay id.
	ErrNotFound = errors.New("not found")

	// ErrDestroyed is returned by every engine call after Destroy.
	ErrDestroyed = errors.New("engine destroyed")
)
