package queue

import (
	"container/heap"
	"strings"
	"sync"
	"time"

	"outreach-engine/internal/domain"
	"outreach-engine/internal/domain/opportunity"
)

type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityMedium
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	default:
		return "unknown"
	}
}

func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return PriorityLow, nil
	case "medium", "":
		return PriorityMedium, nil
	case "high":
		return PriorityHigh, nil
	}
	return 0, domain.NewValidationError("priority", "unknown priority "+s)
}

type Item struct {
	Opportunity opportunity.Opportunity
	Profile     opportunity.Profile
	Priority    Priority
	MatchScore  int
	EnqueuedAt  time.Time

	// PipelineID is set when an existing pipeline is being retried.
	PipelineID string

	seq uint64
}

// Queue orders items by priority, then by arrival. An opportunity can be
// either queued or in flight, never both and never twice.
type Queue struct {
	mu       sync.Mutex
	items    itemHeap
	queued   map[string]struct{}
	inFlight map[string]struct{}
	seq      uint64
	counter  *DailyCounter
}

func New(counter *DailyCounter) *Queue {
	return &Queue{
		items:    make(itemHeap, 0),
		queued:   map[string]struct{}{},
		inFlight: map[string]struct{}{},
		counter:  counter,
	}
}

// Enqueue returns false when the daily limit is reached or the opportunity is
// already queued or in flight.
func (q *Queue) Enqueue(it Item, now time.Time) bool {
	if q.counter != nil && q.counter.Reached(now) {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	id := it.Opportunity.ID
	if _, ok := q.queued[id]; ok {
		return false
	}
	if _, ok := q.inFlight[id]; ok {
		return false
	}
	if it.Priority == 0 {
		it.Priority = PriorityMedium
	}
	if it.EnqueuedAt.IsZero() {
		it.EnqueuedAt = now
	}
	q.seq++
	it.seq = q.seq
	heap.Push(&q.items, it)
	q.queued[id] = struct{}{}
	return true
}

// Pop hands out the next item and marks it in flight. It refuses while the
// daily limit is reached.
func (q *Queue) Pop(now time.Time) (Item, bool) {
	if q.counter != nil && q.counter.Reached(now) {
		return Item{}, false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.items.Len() == 0 {
		return Item{}, false
	}
	it := heap.Pop(&q.items).(Item)
	id := it.Opportunity.ID
	delete(q.queued, id)
	q.inFlight[id] = struct{}{}
	return it, true
}

// Release ends the in-flight period of an opportunity.
func (q *Queue) Release(opportunityID string) {
	q.mu.Lock()
	delete(q.inFlight, opportunityID)
	q.mu.Unlock()
}

func (q *Queue) Contains(opportunityID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.queued[opportunityID]; ok {
		return true
	}
	_, ok := q.inFlight[opportunityID]
	return ok
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

func (q *Queue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inFlight)
}

type itemHeap []Item

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x any) { *h = append(*h, x.(Item)) }

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}
