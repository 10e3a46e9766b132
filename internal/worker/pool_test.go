package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingJob struct {
	counter *atomic.Int64
	err     error
}

type countingResult struct {
	err error
}

func (r *countingResult) GetError() error { return r.err }

func (j *countingJob) Execute(ctx context.Context) Result {
	j.counter.Add(1)
	return &countingResult{err: j.err}
}

type blockingJob struct {
	started chan struct{}
}

func (j *blockingJob) Execute(ctx context.Context) Result {
	select {
	case j.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return &countingResult{err: ctx.Err()}
}

func TestPool_ExecutesAllJobs(t *testing.T) {
	pool := NewPool(context.Background(), 4)
	pool.Start()

	var counter atomic.Int64
	for i := 0; i < 20; i++ {
		pool.Submit(&countingJob{counter: &counter})
	}

	results := pool.Wait()

	if counter.Load() != 20 {
		t.Errorf("expected 20 executions, got %d", counter.Load())
	}
	if len(results) != 20 {
		t.Errorf("expected 20 results, got %d", len(results))
	}
}

func TestPool_CollectsErrors(t *testing.T) {
	pool := NewPool(context.Background(), 2)
	pool.Start()

	var counter atomic.Int64
	wantErr := errors.New("analysis failed")
	pool.Submit(&countingJob{counter: &counter, err: wantErr})
	pool.Submit(&countingJob{counter: &counter})

	results := pool.Wait()

	failed := 0
	for _, r := range results {
		if r.GetError() != nil {
			failed++
		}
	}
	if failed != 1 {
		t.Errorf("expected 1 failed result, got %d", failed)
	}
}

func TestPool_ContextCancellationStopsWorkers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(ctx, 1)
	pool.Start()

	started := make(chan struct{}, 1)
	pool.Submit(&blockingJob{started: started})

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("job never started")
	}

	cancel()

	done := make(chan struct{})
	go func() {
		pool.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not shut down after cancellation")
	}
}

func TestPool_ZeroWorkersDefaultsToOne(t *testing.T) {
	pool := NewPool(context.Background(), 0)
	pool.Start()

	var counter atomic.Int64
	pool.Submit(&countingJob{counter: &counter})
	pool.Wait()

	if counter.Load() != 1 {
		t.Errorf("expected 1 execution, got %d", counter.Load())
	}
}
