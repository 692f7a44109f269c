package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/semaphore"
)

// Add Prometheus metrics
var (
	tasksInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "decfeeds_queue_tasks_in_flight",
		Help: "The number of resolution tasks currently executing",
	})

	batchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "decfeeds_queue_batches_total",
		Help: "The total number of batches submitted to the work queue",
	})

	batchTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "decfeeds_queue_batch_timeouts_total",
		Help: "The total number of batches abandoned on deadline",
	})

	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "decfeeds_queue_batch_duration_seconds",
		Help:    "Wall-clock duration of work queue batches",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // Start at 10ms, double each bucket, 12 buckets
	})
)

// ErrBatchTimeout is returned by RunAll when a batch exceeds the queue's
// time budget. No partial results are returned in that case: a truncated
// feed would be indistinguishable from a complete one to consumers.
var ErrBatchTimeout = errors.New("batch timed out")

// Task produces one result. Tasks must not fail; a task that cannot
// produce a real value reports that through its result type instead.
type Task[T any] func(ctx context.Context) T

// Queue runs batches of independent tasks with a shared cap on how many
// execute at once and a per-batch deadline. One instance is shared by all
// requests so the cap bounds total load on the upstream API, not load per
// request.
type Queue struct {
	sem     *semaphore.Weighted
	timeout time.Duration
}

// New creates a queue. maxConcurrency must be positive.
func New(maxConcurrency int, batchTimeout time.Duration) *Queue {
	if maxConcurrency < 1 {
		panic("queue: maxConcurrency must be positive")
	}
	return &Queue{
		sem:     semaphore.NewWeighted(int64(maxConcurrency)),
		timeout: batchTimeout,
	}
}

// RunAll executes tasks with at most the configured number in flight and
// returns their results in submission order: results[i] came from
// tasks[i] no matter the completion order. If the whole batch does not
// finish within the queue's budget the batch context is cancelled,
// results are discarded and ErrBatchTimeout is returned.
//
// RunAll is a free function because Go methods cannot carry their own
// type parameters.
func RunAll[T any](ctx context.Context, q *Queue, tasks []Task[T]) ([]T, error) {
	batchesTotal.Inc()
	start := time.Now()
	defer func() {
		batchDuration.Observe(time.Since(start).Seconds())
	}()

	bctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	results := make([]T, len(tasks))
	var wg sync.WaitGroup
	deadlineHit := false

	for i, task := range tasks {
		// The semaphore only sequences starts; completions land in
		// whatever order they finish.
		if err := q.sem.Acquire(bctx, 1); err != nil {
			deadlineHit = true
			break
		}
		wg.Add(1)
		go func(i int, task Task[T]) {
			defer wg.Done()
			defer q.sem.Release(1)
			tasksInFlight.Inc()
			defer tasksInFlight.Dec()
			results[i] = task(bctx)
		}(i, task)
	}

	// Started tasks observe the cancelled batch context and return
	// promptly once the deadline fires, so this does not block past it
	// for a well-behaved task.
	wg.Wait()

	if deadlineHit || bctx.Err() != nil {
		batchTimeouts.Inc()
		if err := ctx.Err(); err != nil {
			// The caller went away before the batch budget ran out.
			return nil, err
		}
		return nil, ErrBatchTimeout
	}
	return results, nil
}
