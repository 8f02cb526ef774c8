package marker

import "sync"

// Handles maps track indexes to their live tick source, so that each track has
// at most one source and teardown has a single cancellation path.
type Handles struct {
	mu sync.Mutex
	m  map[int]Handle
}

// NewHandles creates an empty registry.
func NewHandles() *Handles {
	return &Handles{m: make(map[int]Handle)}
}

// Replace cancels the track's current source, if any, and records h.
func (h *Handles) Replace(track int, next Handle) {
	h.mu.Lock()
	prev := h.m[track]
	h.m[track] = next
	h.mu.Unlock()
	if prev != nil {
		prev.Cancel()
	}
}

// Cancel stops the track's source. Unknown tracks are ignored.
func (h *Handles) Cancel(track int) {
	h.mu.Lock()
	prev := h.m[track]
	delete(h.m, track)
	h.mu.Unlock()
	if prev != nil {
		prev.Cancel()
	}
}

// CancelAll stops every source.
func (h *Handles) CancelAll() {
	h.mu.Lock()
	all := h.m
	h.m = make(map[int]Handle)
	h.mu.Unlock()
	for _, handle := range all {
		handle.Cancel()
	}
}

// Has reports whether track has a live source.
func (h *Handles) Has(track int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.m[track]
	return ok
}

// Len returns the number of live sources.
func (h *Handles) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.m)
}
