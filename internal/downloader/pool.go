package downloader

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"imgscraper/pkg/catalog"
	"imgscraper/pkg/logger"
	"imgscraper/pkg/ratelimit"
	"imgscraper/pkg/report"
)

// Job is a single entity handed to a worker
type Job struct {
	Index  int
	Entity catalog.Entity
}

// Result is what a worker produced for a job
type Result struct {
	Job      Job
	Entry    report.Entry
	Duration time.Duration
}

// Processor acquires the image for one entity. It must not return until the
// entity reached a terminal state.
type Processor func(ctx context.Context, e catalog.Entity) report.Entry

// WorkerPool fans entities out to a bounded number of workers and funnels
// their results back to a single consumer
type WorkerPool struct {
	numWorkers  int
	rateLimiter ratelimit.Limiter
	logger      logger.Logger
}

// NewWorkerPool creates a pool. rateLimiter gates job starts and may be nil.
func NewWorkerPool(numWorkers int, rateLimiter ratelimit.Limiter, log logger.Logger) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if rateLimiter == nil {
		rateLimiter = ratelimit.Unlimited{}
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &WorkerPool{
		numWorkers:  numWorkers,
		rateLimiter: rateLimiter,
		logger:      log.WithField("component", "pool"),
	}
}

// Run processes every entity and calls consume once per finished job, always
// from the calling goroutine. Jobs not yet started when ctx is cancelled are
// dropped; Run then returns the context error.
func (wp *WorkerPool) Run(ctx context.Context, entities []catalog.Entity, process Processor, consume func(Result)) error {
	wp.logger.InfoWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
		"jobs":        len(entities),
	})

	jobs := make(chan Job, wp.numWorkers*2)
	results := make(chan Result, wp.numWorkers)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		for i, e := range entities {
			select {
			case jobs <- Job{Index: i, Entity: e}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for i := 0; i < wp.numWorkers; i++ {
		id := i
		g.Go(func() error {
			return wp.worker(gctx, id, jobs, results, process)
		})
	}

	go func() {
		g.Wait()
		close(results)
	}()

	for r := range results {
		consume(r)
	}

	err := g.Wait()
	wp.logger.Info("Worker pool stopped")
	if err != nil {
		return err
	}
	return ctx.Err()
}

func (wp *WorkerPool) worker(ctx context.Context, id int, jobs <-chan Job, results chan<- Result, process Processor) error {
	wp.logger.DebugWithFields("Worker started", map[string]interface{}{"worker_id": id})

	for job := range jobs {
		if err := ctx.Err(); err != nil {
			wp.logger.DebugWithFields("Worker stopping - context cancelled", map[string]interface{}{
				"worker_id": id,
			})
			return err
		}
		if err := wp.rateLimiter.Wait(ctx); err != nil {
			return err
		}

		start := time.Now()
		entry := process(ctx, job.Entity)
		result := Result{Job: job, Entry: entry, Duration: time.Since(start)}

		wp.logger.DebugWithFields("Worker completed job", map[string]interface{}{
			"worker_id": id,
			"entity":    job.Entity.ID,
			"status":    string(entry.Status),
			"duration":  result.Duration,
		})

		// an in-flight result is always delivered so no finished entity goes unreported
		results <- result
	}
	return nil
}

// NumWorkers returns the pool size
func (wp *WorkerPool) NumWorkers() int {
	return wp.numWorkers
}
