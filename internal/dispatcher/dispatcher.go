// Package dispatcher manages worker fan-out over the crawl queue.
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/news-crawler/internal/crawler"
	"github.com/JakeFAU/news-crawler/internal/worker"
)

// Dispatcher fans out queue work to a pool of workers.
type Dispatcher struct {
	queue   crawler.Queue
	workers []*worker.Worker
	clock   crawler.Clock
}

// New creates a Dispatcher. A nil clock stamps submissions with time.Now.
func New(queue crawler.Queue, workers []*worker.Worker, clock crawler.Clock) *Dispatcher {
	return &Dispatcher{
		queue:   queue,
		workers: workers,
		clock:   clock,
	}
}

// Run starts all workers and blocks until the context finishes.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	<-ctx.Done()
	wg.Wait()
}

// Submit queues a first-attempt crawl of sourceID under campaignID.
func (d *Dispatcher) Submit(ctx context.Context, campaignID, sourceID string) error {
	now := time.Now()
	if d.clock != nil {
		now = d.clock.Now()
	}
	return d.Enqueue(ctx, crawler.QueueItem{
		CampaignID: campaignID,
		SourceID:   sourceID,
		Attempt:    1,
		Submitted:  now.Unix(),
	})
}

// Enqueue proxies to the underlying queue.
func (d *Dispatcher) Enqueue(ctx context.Context, item crawler.QueueItem) error {
	if err := d.queue.Enqueue(ctx, item); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}
