package metrics

// ring is a fixed-capacity circular buffer. Once full, writes overwrite
// the oldest entry; producers never block and the buffer never grows.
// Not safe for concurrent use; the collector serializes access under its
// own mutex.
type ring[T any] struct {
	items []T
	head  int
	count int
}

func newRing[T any](capacity int) *ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &ring[T]{items: make([]T, capacity)}
}

func (r *ring[T]) add(v T) {
	r.items[r.head] = v
	r.head = (r.head + 1) % len(r.items)
	if r.count < len(r.items) {
		r.count++
	}
}

func (r *ring[T]) len() int {
	return r.count
}

// newestFirst returns up to limit entries, most recent first. limit <= 0
// means all buffered.
func (r *ring[T]) newestFirst(limit int) []T {
	if r.count == 0 {
		return nil
	}

	if limit <= 0 || limit > r.count {
		limit = r.count
	}

	out := make([]T, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (r.head - 1 - i + len(r.items)) % len(r.items)
		out = append(out, r.items[idx])
	}
	return out
}

// oldestFirst returns all buffered entries in arrival order.
func (r *ring[T]) oldestFirst() []T {
	if r.count == 0 {
		return nil
	}

	out := make([]T, 0, r.count)
	start := (r.head - r.count + len(r.items)) % len(r.items)
	for i := 0; i < r.count; i++ {
		out = append(out, r.items[(start+i)%len(r.items)])
	}
	return out
}
