// Package worker runs a batch of blocking calls off the tick goroutine with
// bounded concurrency and an optional spacing between starts.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type Job struct {
	Name string
	Fn   func(ctx context.Context) error
}

type Result struct {
	Name string
	Err  error
}

type Options struct {
	// Workers caps concurrent jobs. Values below 1 mean 1.
	Workers int
	// Interval is the minimum gap between two job starts. Zero disables pacing.
	Interval time.Duration
}

// Run executes every job and returns one Result per job, in input order.
// Jobs not started before ctx is done report ctx.Err(). A panicking job is
// reported as an error and does not stop the batch.
func Run(ctx context.Context, opts Options, jobs []Job) []Result {
	results := make([]Result, len(jobs))
	if len(jobs) == 0 {
		return results
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	sem := make(chan struct{}, workers)
	gate := newPacer(opts.Interval)
	defer gate.stop()

	var wg sync.WaitGroup
	for i, job := range jobs {
		results[i].Name = job.Name

		select {
		case <-ctx.Done():
			results[i].Err = ctx.Err()
			continue
		case sem <- struct{}{}:
		}
		if err := gate.wait(ctx); err != nil {
			<-sem
			results[i].Err = err
			continue
		}

		wg.Add(1)
		go func(i int, job Job) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i].Err = call(ctx, job)
		}(i, job)
	}
	wg.Wait()
	return results
}

func call(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name, r)
		}
	}()
	return job.Fn(ctx)
}

// pacer lets the first start through immediately and spaces the rest.
type pacer struct {
	ticker *time.Ticker
	first  bool
}

func newPacer(d time.Duration) *pacer {
	if d <= 0 {
		return &pacer{}
	}
	return &pacer{ticker: time.NewTicker(d), first: true}
}

func (p *pacer) wait(ctx context.Context) error {
	if p.ticker == nil {
		return ctx.Err()
	}
	if p.first {
		p.first = false
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ticker.C:
		return nil
	}
}

func (p *pacer) stop() {
	if p.ticker != nil {
		p.ticker.Stop()
	}
}
