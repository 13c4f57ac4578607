package queue

import (
	"sync"
	"time"
)

const dateLayout = "2006-01-02"

// DailyCounter tracks successful dispatches for the current UTC calendar day.
type DailyCounter struct {
	mu        sync.Mutex
	limit     int
	count     int
	lastReset string
}

func NewDailyCounter(limit int, now time.Time) *DailyCounter {
	return &DailyCounter{limit: limit, lastReset: dayKey(now)}
}

// ResetIfNewDay zeroes the counter when the UTC date differs from the last
// reset. It returns true when a reset happened.
func (c *DailyCounter) ResetIfNewDay(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resetLocked(now)
}

func (c *DailyCounter) resetLocked(now time.Time) bool {
	day := dayKey(now)
	if day == c.lastReset {
		return false
	}
	c.lastReset = day
	c.count = 0
	return true
}

func (c *DailyCounter) Reached(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked(now)
	return c.limit > 0 && c.count >= c.limit
}

// Increment records one dispatch. It refuses once the limit is hit so the
// counter can never exceed it.
func (c *DailyCounter) Increment(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked(now)
	if c.limit > 0 && c.count >= c.limit {
		return false
	}
	c.count++
	return true
}

func (c *DailyCounter) SetLimit(limit int) {
	c.mu.Lock()
	c.limit = limit
	c.mu.Unlock()
}

// Restore seeds the counter for day, typically from a shared store after a
// restart. Values for other days are ignored.
func (c *DailyCounter) Restore(day string, count int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if day != c.lastReset || count < c.count {
		return
	}
	c.count = count
}

func (c *DailyCounter) Snapshot() (day string, count int, limit int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastReset, c.count, c.limit
}

func DayKey(now time.Time) string {
	return dayKey(now)
}

func dayKey(now time.Time) string {
	return now.UTC().Format(dateLayout)
}
