// Package dispatcher fans crawl admissions out to a fixed worker pool.
package dispatcher

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/homescan/listing-crawler/internal/listing"
)

// Runner executes one crawl to completion. Satisfied by crawl.Runner.
type Runner interface {
	Run(ctx context.Context, jobID string, params listing.CrawlParams)
}

// Dispatcher consumes the run queue with a fixed number of workers, bounding
// how many crawls execute concurrently.
type Dispatcher struct {
	queue   listing.RunQueue
	runner  Runner
	workers int
	logger  *zap.Logger
}

// New creates a Dispatcher.
func New(queue listing.RunQueue, runner Runner, workers int, logger *zap.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		queue:   queue,
		runner:  runner,
		workers: workers,
		logger:  logger,
	}
}

// Run starts all workers and blocks until the context finishes.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			d.work(ctx, id)
		}(i)
	}
	<-ctx.Done()
	wg.Wait()
}

func (d *Dispatcher) work(ctx context.Context, id int) {
	for {
		req, err := d.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.logger.Error("queue dequeue failed", zap.Int("worker", id), zap.Error(err))
			continue
		}
		d.logger.Debug("dequeued crawl", zap.Int("worker", id), zap.String("job_id", req.JobID))
		d.runner.Run(ctx, req.JobID, req.Params)
	}
}
