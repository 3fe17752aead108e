package core

import "container/heap"

const defaultPendingCap = 16

// =============================================================================
// pendingQueue: Min-Heap based queue with Stability (FIFO for same priority)
// =============================================================================

type pendingItem struct {
	task     *Task
	sequence uint64 // For stability
	index    int    // For heap, kept current so items can be removed by ID
}

// pendingHeap implements heap.Interface
type pendingHeap []*pendingItem

func (h pendingHeap) Len() int { return len(h) }

// Less implements priority logic: High priority first, then Small sequence first (FIFO)
func (h pendingHeap) Less(i, j int) bool {
	if h[i].task.Priority > h[j].task.Priority {
		return true
	}
	if h[i].task.Priority < h[j].task.Priority {
		return false
	}
	// Same priority: earlier sequence first (FIFO)
	return h[i].sequence < h[j].sequence
}

func (h pendingHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *pendingHeap) Push(x interface{}) {
	n := len(*h)
	item := x.(*pendingItem)
	item.index = n
	*h = append(*h, item)
}

func (h *pendingHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // Avoid memory leak
	item.index = -1
	*h = old[0 : n-1]
	return item
}

// pendingQueue orders tasks into tiers (high > normal > low) and keeps
// FIFO order inside a tier. Not safe for concurrent use; the admission
// queue serializes all access under its own mutex.
type pendingQueue struct {
	pq           pendingHeap
	byID         map[string]*pendingItem
	nextSequence uint64
}

func newPendingQueue() *pendingQueue {
	return &pendingQueue{
		pq:   make(pendingHeap, 0, defaultPendingCap),
		byID: make(map[string]*pendingItem),
	}
}

func (q *pendingQueue) push(t *Task) {
	item := &pendingItem{
		task:     t,
		sequence: q.nextSequence,
	}
	q.nextSequence++

	q.byID[t.ID] = item
	heap.Push(&q.pq, item)
}

// peek returns the head task without removing it.
func (q *pendingQueue) peek() *Task {
	if len(q.pq) == 0 {
		return nil
	}
	// 0 is the highest priority item because Less puts it at the top
	return q.pq[0].task
}

func (q *pendingQueue) pop() *Task {
	if len(q.pq) == 0 {
		return nil
	}

	item := heap.Pop(&q.pq).(*pendingItem)
	delete(q.byID, item.task.ID)
	return item.task
}

// remove takes an arbitrary task out of the pending set by ID. Returns
// nil when the ID is not pending.
func (q *pendingQueue) remove(id string) *Task {
	item, ok := q.byID[id]
	if !ok {
		return nil
	}

	heap.Remove(&q.pq, item.index)
	delete(q.byID, id)
	return item.task
}

func (q *pendingQueue) contains(id string) bool {
	_, ok := q.byID[id]
	return ok
}

func (q *pendingQueue) len() int {
	return len(q.pq)
}

// depthByPriority counts pending tasks per tier.
func (q *pendingQueue) depthByPriority() map[TaskPriority]int {
	depths := map[TaskPriority]int{
		PriorityLow:    0,
		PriorityNormal: 0,
		PriorityHigh:   0,
	}
	for _, item := range q.pq {
		depths[item.task.Priority]++
	}
	return depths
}
