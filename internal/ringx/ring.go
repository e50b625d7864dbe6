// Package ringx provides a fixed-capacity FIFO buffer that evicts the oldest
// element when full. Push and eviction are O(1).
package ringx

// Ring is not safe for concurrent use; callers guard it with their own lock.
type Ring[T any] struct {
	buf   []T
	start int
	size  int
}

// New returns an empty ring holding at most capacity elements.
// It panics if capacity is not positive.
func New[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		panic("ringx: capacity must be positive")
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

func (r *Ring[T]) Len() int { return r.size }

func (r *Ring[T]) Cap() int { return len(r.buf) }

// Push appends v as the newest element. When the ring is full the oldest
// element is overwritten and returned with evicted set to true.
func (r *Ring[T]) Push(v T) (old T, evicted bool) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = v
		r.size++
		return old, false
	}
	old = r.buf[r.start]
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
	return old, true
}

// PopNewest removes and returns the most recently pushed element.
func (r *Ring[T]) PopNewest() (v T, ok bool) {
	if r.size == 0 {
		return v, false
	}
	i := (r.start + r.size - 1) % len(r.buf)
	v = r.buf[i]
	var zero T
	r.buf[i] = zero
	r.size--
	return v, true
}

// PushOldest puts v back in front of the oldest element. It reports false
// and does nothing when the ring is full.
//
// Together with PopNewest it undoes a Push that evicted an element.
func (r *Ring[T]) PushOldest(v T) bool {
	if r.size == len(r.buf) {
		return false
	}
	r.start = (r.start - 1 + len(r.buf)) % len(r.buf)
	r.buf[r.start] = v
	r.size++
	return true
}

// Newest returns up to n elements, newest first. n <= 0 means all.
func (r *Ring[T]) Newest(n int) []T {
	if n <= 0 || n > r.size {
		n = r.size
	}
	out := make([]T, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, r.buf[(r.start+r.size-1-i)%len(r.buf)])
	}
	return out
}

// All returns the elements oldest first.
func (r *Ring[T]) All() []T {
	out := make([]T, 0, r.size)
	for i := 0; i < r.size; i++ {
		out = append(out, r.buf[(r.start+i)%len(r.buf)])
	}
	return out
}
