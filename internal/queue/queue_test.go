package queue

import (
	"testing"
	"time"

	"outreach-engine/internal/domain/opportunity"
)

var day1 = time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)

func item(id string, p Priority) Item {
	return Item{Opportunity: opportunity.Opportunity{ID: id}, Priority: p}
}

func TestQueue_PriorityThenFIFO(t *testing.T) {
	q := New(NewDailyCounter(0, day1))
	q.Enqueue(item("low-1", PriorityLow), day1)
	q.Enqueue(item("med-1", PriorityMedium), day1)
	q.Enqueue(item("high-1", PriorityHigh), day1)
	q.Enqueue(item("med-2", PriorityMedium), day1)
	q.Enqueue(item("high-2", PriorityHigh), day1)

	want := []string{"high-1", "high-2", "med-1", "med-2", "low-1"}
	for _, id := range want {
		it, ok := q.Pop(day1)
		if !ok {
			t.Fatalf("expected item %s", id)
		}
		if it.Opportunity.ID != id {
			t.Fatalf("expected %s, got %s", id, it.Opportunity.ID)
		}
	}
	if _, ok := q.Pop(day1); ok {
		t.Fatalf("queue should be empty")
	}
}

func TestQueue_RejectsDuplicateWhileQueuedOrInFlight(t *testing.T) {
	q := New(nil)
	if !q.Enqueue(item("a", PriorityLow), day1) {
		t.Fatalf("first enqueue should succeed")
	}
	if q.Enqueue(item("a", PriorityHigh), day1) {
		t.Fatalf("duplicate while queued must be rejected")
	}
	if _, ok := q.Pop(day1); !ok {
		t.Fatalf("expected pop")
	}
	if !q.Contains("a") || q.InFlight() != 1 {
		t.Fatalf("popped item should be in flight")
	}
	if q.Enqueue(item("a", PriorityHigh), day1) {
		t.Fatalf("duplicate while in flight must be rejected")
	}
	q.Release("a")
	if q.Contains("a") {
		t.Fatalf("released item should be gone")
	}
	if !q.Enqueue(item("a", PriorityHigh), day1) {
		t.Fatalf("re-enqueue after release should succeed")
	}
}

func TestQueue_DailyCapRefusesEnqueueAndPop(t *testing.T) {
	c := NewDailyCounter(2, day1)
	q := New(c)
	for _, id := range []string{"a", "b", "c"} {
		if !q.Enqueue(item(id, PriorityMedium), day1) {
			t.Fatalf("enqueue %s should succeed", id)
		}
	}
	for i := 0; i < 2; i++ {
		it, ok := q.Pop(day1)
		if !ok {
			t.Fatalf("pop %d should succeed", i)
		}
		if !c.Increment(day1) {
			t.Fatalf("increment %d should succeed", i)
		}
		q.Release(it.Opportunity.ID)
	}

	if _, ok := q.Pop(day1.Add(time.Hour)); ok {
		t.Fatalf("pop must be refused once the cap is reached")
	}
	if q.Enqueue(item("d", PriorityHigh), day1) {
		t.Fatalf("enqueue must be refused once the cap is reached")
	}
	if c.Increment(day1) {
		t.Fatalf("counter must never exceed the cap")
	}

	nextDay := day1.Add(24 * time.Hour)
	it, ok := q.Pop(nextDay)
	if !ok || it.Opportunity.ID != "c" {
		t.Fatalf("pop should resume on the next calendar day, got %v %v", it.Opportunity.ID, ok)
	}
}

func TestParsePriority(t *testing.T) {
	if p, err := ParsePriority("HIGH"); err != nil || p != PriorityHigh {
		t.Fatalf("got %v err=%v", p, err)
	}
	if p, _ := ParsePriority(""); p != PriorityMedium {
		t.Fatalf("empty priority should default to medium")
	}
	if _, err := ParsePriority("asap"); err == nil {
		t.Fatalf("expected error")
	}
}
