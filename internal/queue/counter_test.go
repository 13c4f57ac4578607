package queue

import (
	"testing"
	"time"
)

func TestDailyCounter_ResetsOnUTCDateChange(t *testing.T) {
	start := time.Date(2024, 6, 3, 23, 30, 0, 0, time.UTC)
	c := NewDailyCounter(1, start)
	if !c.Increment(start) {
		t.Fatalf("first increment should succeed")
	}
	if !c.Reached(start) {
		t.Fatalf("limit should be reached")
	}

	// 01:00 in UTC+2 is still 23:00 UTC on the same day
	plus2 := time.FixedZone("UTC+2", 2*3600)
	if c.ResetIfNewDay(time.Date(2024, 6, 4, 1, 29, 0, 0, plus2)) {
		t.Fatalf("reset must follow the UTC date, not the local one")
	}

	if !c.ResetIfNewDay(start.Add(time.Hour)) {
		t.Fatalf("expected reset after midnight UTC")
	}
	day, count, limit := c.Snapshot()
	if day != "2024-06-04" || count != 0 || limit != 1 {
		t.Fatalf("unexpected snapshot %s %d %d", day, count, limit)
	}
}

func TestDailyCounter_ZeroLimitIsUnlimited(t *testing.T) {
	c := NewDailyCounter(0, day1)
	for i := 0; i < 100; i++ {
		if !c.Increment(day1) {
			t.Fatalf("increment %d refused", i)
		}
	}
	if c.Reached(day1) {
		t.Fatalf("zero limit must never be reached")
	}
}

func TestDailyCounter_Restore(t *testing.T) {
	c := NewDailyCounter(5, day1)
	c.Restore("2024-06-02", 4)
	if _, n, _ := c.Snapshot(); n != 0 {
		t.Fatalf("restore for another day must be ignored")
	}
	c.Restore(DayKey(day1), 3)
	if _, n, _ := c.Snapshot(); n != 3 {
		t.Fatalf("expected restored count 3, got %d", n)
	}
}

func TestDailyCounter_SetLimit(t *testing.T) {
	c := NewDailyCounter(1, day1)
	c.Increment(day1)
	c.SetLimit(2)
	if c.Reached(day1) {
		t.Fatalf("raising the limit should reopen dispatch")
	}
}
