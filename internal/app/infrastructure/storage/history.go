package storage

// Ring keeps the last capacity items in insertion order. It is not safe for
// concurrent use; the owner serializes access.
type Ring[T any] struct {
	items    []T
	capacity int
}

func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{
		items:    make([]T, 0, capacity),
		capacity: capacity,
	}
}

// Push appends val and reports whether the oldest item was evicted.
func (r *Ring[T]) Push(val T) bool {
	if len(r.items) >= r.capacity {
		over := len(r.items) - r.capacity + 1
		clear(r.items[:over])
		r.items = append(r.items[over:], val)
		return true
	}

	r.items = append(r.items, val)
	return false
}

// Snapshot returns a copy of the items, oldest first.
func (r *Ring[T]) Snapshot() []T {
	out := make([]T, len(r.items))
	copy(out, r.items)
	return out
}

// Reset drops every item and stores vals instead.
func (r *Ring[T]) Reset(vals ...T) {
	r.items = r.items[:0]
	for _, v := range vals {
		r.Push(v)
	}
}

// Each calls fn with a pointer to every item so it can be edited in place.
func (r *Ring[T]) Each(fn func(*T)) {
	for i := range r.items {
		fn(&r.items[i])
	}
}

func (r *Ring[T]) Len() int {
	return len(r.items)
}

func (r *Ring[T]) Cap() int {
	return r.capacity
}
