package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRun_ResultsInInputOrder(t *testing.T) {
	boom := errors.New("boom")
	jobs := []Job{
		{Name: "a", Fn: func(ctx context.Context) error { time.Sleep(10 * time.Millisecond); return nil }},
		{Name: "b", Fn: func(ctx context.Context) error { return boom }},
		{Name: "c", Fn: func(ctx context.Context) error { return nil }},
	}
	results := Run(context.Background(), Options{Workers: 3}, jobs)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, want := range []string{"a", "b", "c"} {
		if results[i].Name != want {
			t.Fatalf("result %d is %q, want %q", i, results[i].Name, want)
		}
	}
	if results[0].Err != nil || !errors.Is(results[1].Err, boom) || results[2].Err != nil {
		t.Fatalf("unexpected errors %+v", results)
	}
}

func TestRun_BoundsConcurrency(t *testing.T) {
	var running, peak atomic.Int32
	fn := func(ctx context.Context) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return nil
	}
	var jobs []Job
	for _, k := range []string{"1", "2", "3", "4", "5", "6"} {
		jobs = append(jobs, Job{Name: k, Fn: fn})
	}
	Run(context.Background(), Options{Workers: 2}, jobs)
	if peak.Load() > 2 {
		t.Fatalf("expected at most 2 concurrent jobs, saw %d", peak.Load())
	}
}

func TestRun_IntervalSpacesStarts(t *testing.T) {
	var jobs []Job
	for _, k := range []string{"1", "2", "3"} {
		jobs = append(jobs, Job{Name: k, Fn: func(ctx context.Context) error { return nil }})
	}
	start := time.Now()
	Run(context.Background(), Options{Workers: 3, Interval: 20 * time.Millisecond}, jobs)
	if took := time.Since(start); took < 40*time.Millisecond {
		t.Fatalf("three paced starts finished in %s", took)
	}
}

func TestRun_CancelledContextSkipsJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls atomic.Int32
	jobs := []Job{{Name: "x", Fn: func(ctx context.Context) error { calls.Add(1); return nil }}}
	results := Run(ctx, Options{Workers: 1}, jobs)
	if calls.Load() != 0 || !errors.Is(results[0].Err, context.Canceled) {
		t.Fatalf("expected skipped job with context error, got calls=%d %+v", calls.Load(), results)
	}
}

func TestRun_PanicBecomesError(t *testing.T) {
	jobs := []Job{
		{Name: "bad", Fn: func(ctx context.Context) error { panic("nil map") }},
		{Name: "good", Fn: func(ctx context.Context) error { return nil }},
	}
	results := Run(context.Background(), Options{}, jobs)
	if results[0].Err == nil || results[1].Err != nil {
		t.Fatalf("unexpected results %+v", results)
	}
}
