package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"

	"github.com/facegate/facegate/pkg/logger"
	"github.com/facegate/facegate/pkg/metrics"
)

// Processor handles one flushed batch end to end.
type Processor interface {
	ProcessBatch(ctx context.Context, b Batch)
}

// WorkQueue is the bounded queue shared by every camera's batcher and the
// worker pool. Submit blocks when the queue is full: backpressure reaches
// the batchers instead of growing memory without bound.
type WorkQueue struct {
	batches chan Batch

	mu     sync.RWMutex
	closed bool
}

// NewWorkQueue creates a bounded work queue.
func NewWorkQueue(capacity int) *WorkQueue {
	if capacity < 1 {
		capacity = defaultWorkQueueCap
	}
	return &WorkQueue{
		batches: make(chan Batch, capacity),
	}
}

// Submit enqueues a batch, blocking while the queue is full.
func (q *WorkQueue) Submit(ctx context.Context, b Batch) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return ErrQueueClosed
	}
	q.mu.RUnlock()

	select {
	case q.batches <- b:
		metrics.UpdateWorkQueueSize(len(q.batches))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("work queue submit: %w", ctx.Err())
	}
}

// Len returns the current queue depth.
func (q *WorkQueue) Len() int {
	return len(q.batches)
}

// Close stops the queue. Idempotent.
func (q *WorkQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.batches)
	return nil
}

// Worker drains batches off the shared queue and runs them through the
// processor.
type Worker struct {
	queue     *WorkQueue
	processor Processor
	name      string

	shutdown chan struct{}
	done     chan struct{}

	log logger.Logger
}

// NewWorker creates a worker bound to the shared queue.
func NewWorker(queue *WorkQueue, processor Processor, name string) *Worker {
	return &Worker{
		queue:     queue,
		processor: processor,
		name:      name,
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		log:       logger.Get().Named(name),
	}
}

// Run starts the worker loop until ctx is cancelled, the queue closes, or
// Shutdown is called. A batch is always finished, even when the worker is
// stopping, so no batcher waits forever.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case batch, ok := <-w.queue.batches:
			if !ok {
				return
			}
			metrics.UpdateWorkQueueSize(w.queue.Len())
			w.processor.ProcessBatch(ctx, batch)
			batch.Finish()
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *Worker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.log.Warn(ctx, "worker shutdown timed out")
		return fmt.Errorf("worker shutdown timed out: %w", ctx.Err())
	}
}

// Pool manages the shared workers. Detection and encoding are CPU-bound,
// so parallelism is capped by the pool size, not by the camera count.
type Pool struct {
	workers []*Worker
	queue   *WorkQueue

	log logger.Logger
}

// NewPool creates a worker pool over the shared queue.
func NewPool(workerCount int, queue *WorkQueue, processor Processor) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	p := &Pool{
		workers: make([]*Worker, workerCount),
		queue:   queue,
		log:     logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		p.workers[i] = NewWorker(queue, processor, "worker-"+strconv.Itoa(i))
	}

	metrics.UpdateWorkerCount(workerCount)

	return p
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue and waits for workers within the grace period.
func (p *Pool) Shutdown(ctx context.Context) error {
	if err := p.queue.Close(); err != nil {
		p.log.Error(ctx, "error closing work queue", logger.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, workerShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.log.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}

	return nil
}
