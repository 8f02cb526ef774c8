// Package queue holds pending writes that coalesce by key: pushing an item
// whose key is already queued replaces the queued item in place.
package queue

import (
	"sync"
)

// Queue is a thread-safe, insertion-ordered queue with at most one item per key.
type Queue[K comparable, T any] struct {
	mu    sync.Mutex
	keyOf func(T) K
	index map[K]int
	items []T
}

// New creates an empty queue. keyOf extracts the coalescing key of an item.
func New[K comparable, T any](keyOf func(T) K) *Queue[K, T] {
	return &Queue[K, T]{
		keyOf: keyOf,
		index: make(map[K]int),
	}
}

// Push queues items. An item with an already queued key overwrites it and
// keeps its place in the queue.
func (q *Queue[K, T]) Push(items ...T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, it := range items {
		k := q.keyOf(it)
		if i, ok := q.index[k]; ok {
			q.items[i] = it
			continue
		}
		q.index[k] = len(q.items)
		q.items = append(q.items, it)
	}
}

// Requeue puts back items taken by Drain, ahead of anything queued since.
// Keys pushed again in the meantime keep their newer item.
func (q *Queue[K, T]) Requeue(items ...T) {
	q.mu.Lock()
	defer q.mu.Unlock()

	merged := make([]T, 0, len(items)+len(q.items))
	for _, it := range items {
		if _, newer := q.index[q.keyOf(it)]; !newer {
			merged = append(merged, it)
		}
	}
	merged = append(merged, q.items...)
	q.reset(merged)
}

// Empty returns true if the queue has no items.
func (q *Queue[K, T]) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0
}

// Len returns the number of distinct keys queued.
func (q *Queue[K, T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear removes all items from the queue.
func (q *Queue[K, T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.reset(nil)
}

// Drain returns all items in queue order and empties the queue.
func (q *Queue[K, T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	result := q.items
	q.reset(nil)
	return result
}

func (q *Queue[K, T]) reset(items []T) {
	q.items = items
	q.index = make(map[K]int, len(items))
	for i, it := range items {
		q.index[q.keyOf(it)] = i
	}
}
