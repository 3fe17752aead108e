package core

const defaultRecentHistoryCapacity = 50

// recentHistory is a fixed-capacity ring of finished tasks, kept for
// operator visibility. Oldest entries are overwritten once full. Not
// safe for concurrent use; the admission queue serializes access under
// its own mutex.
type recentHistory struct {
	items []Task
	head  int
	count int
}

func newRecentHistory(capacity int) recentHistory {
	if capacity < 1 {
		capacity = defaultRecentHistoryCapacity
	}
	return recentHistory{items: make([]Task, capacity)}
}

func (h *recentHistory) add(t Task) {
	if len(h.items) == 0 {
		return
	}

	h.items[h.head] = t
	h.head = (h.head + 1) % len(h.items)
	if h.count < len(h.items) {
		h.count++
	}
}

// recent returns up to limit finished tasks, newest first. limit <= 0
// means all buffered.
func (h *recentHistory) recent(limit int) []Task {
	if h.count == 0 {
		return nil
	}

	if limit <= 0 || limit > h.count {
		limit = h.count
	}

	out := make([]Task, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (h.head - 1 - i + len(h.items)) % len(h.items)
		out = append(out, h.items[idx])
	}
	return out
}

func (h *recentHistory) last() (Task, bool) {
	if h.count == 0 {
		return Task{}, false
	}

	idx := (h.head - 1 + len(h.items)) % len(h.items)
	return h.items[idx], true
}
