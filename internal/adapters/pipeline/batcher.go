// Package pipeline moves camera frames through detection, encoding,
// matching, and access evaluation.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/facegate/facegate/internal/domain/model"
	"github.com/facegate/facegate/pkg/logger"
	"github.com/facegate/facegate/pkg/metrics"
)

// Batch is a group of frames from one camera flushed together. done is
// closed by the worker that finishes the batch, which is how the batcher
// keeps per-camera processing in arrival order.
type Batch struct {
	CameraID string
	Frames   []model.Frame
	done     chan struct{}
}

// Finish marks the batch processed. Workers must call it exactly once.
func (b Batch) Finish() {
	if b.done != nil {
		close(b.done)
	}
}

// Sink receives flushed batches. Submit blocks when the sink is full,
// which is the backpressure path from the shared worker queue back into
// each camera's batcher.
type Sink interface {
	Submit(ctx context.Context, b Batch) error
}

// DropFunc observes a frame shed by the drop-oldest policy.
type DropFunc func(frame model.Frame)

// BatchParams are the flush knobs the batcher reads each cycle.
type BatchParams struct {
	Size    int
	Timeout time.Duration
}

// Batcher accumulates frames for a single camera and flushes them to the
// sink at the flush size or flush timeout, whichever comes first. Both
// knobs live in an atomic snapshot so they can be retuned while running.
//
// The frame queue is bounded; when full, the oldest unprocessed frame is
// dropped in favor of the newest. A stale frame's decision would itself be
// stale, so freshness wins over completeness. Drops are counted and
// observable, never errors.
type Batcher struct {
	cameraID string
	sink     Sink
	params   atomic.Pointer[BatchParams]
	queueCap int
	onDrop   DropFunc
	log      logger.Logger

	mu      sync.Mutex
	queue   []model.Frame
	dropped uint64

	wake   chan struct{}
	cancel context.CancelFunc
	doneCh chan struct{}
}

// NewBatcher creates a batcher for one camera with configuration options.
func NewBatcher(cameraID string, sink Sink, opts ...BatcherOption) *Batcher {
	b := &Batcher{
		cameraID: cameraID,
		sink:     sink,
		queueCap: defaultFrameQueueCap,
		wake:     make(chan struct{}, 1),
		doneCh:   make(chan struct{}),
	}
	b.params.Store(&BatchParams{Size: defaultBatchSize, Timeout: defaultBatchTimeout})

	for _, opt := range opts {
		opt(b)
	}

	if b.log == nil {
		b.log = logger.Get().Named("batcher")
	}

	return b
}

// Start launches the flush loop. The loop stops when ctx is cancelled or
// Stop is called.
func (b *Batcher) Start(ctx context.Context) {
	ctx, b.cancel = context.WithCancel(ctx)
	go b.run(ctx)
}

// Stop cancels the flush loop and waits for it to exit. Frames still
// queued are abandoned; the shared index and cache are untouched by
// construction.
func (b *Batcher) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	<-b.doneCh
}

// Submit enqueues one frame. If the queue is at capacity the oldest frame
// is dropped first. Never blocks.
func (b *Batcher) Submit(frame model.Frame) {
	metrics.RecordFrameReceived(b.cameraID)

	b.mu.Lock()
	var victim *model.Frame
	if len(b.queue) >= b.queueCap {
		v := b.queue[0]
		victim = &v
		copy(b.queue, b.queue[1:])
		b.queue = b.queue[:len(b.queue)-1]
		b.dropped++
	}
	b.queue = append(b.queue, frame)
	full := len(b.queue) >= b.params.Load().Size
	b.mu.Unlock()

	if victim != nil {
		metrics.RecordFrameDropped(b.cameraID)
		if b.onDrop != nil {
			b.onDrop(*victim)
		}
	}

	if full {
		select {
		case b.wake <- struct{}{}:
		default:
		}
	}
}

// Len returns the number of frames currently queued.
func (b *Batcher) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Dropped returns the number of frames shed so far.
func (b *Batcher) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// SetParams retunes the flush size and timeout. Non-positive values keep
// the current setting. The flush loop is woken so a queue that already
// satisfies the new size flushes without waiting for another frame.
func (b *Batcher) SetParams(size int, timeout time.Duration) {
	b.mu.Lock()
	p := *b.params.Load()
	if size > 0 {
		p.Size = size
	}
	if timeout > 0 {
		p.Timeout = timeout
	}
	b.params.Store(&p)
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// run is the single flush goroutine for this camera. Flushing one batch at
// a time and waiting for it to finish keeps frames from one camera in
// arrival order regardless of how many workers share the pool.
func (b *Batcher) run(ctx context.Context) {
	defer close(b.doneCh)

	timer := time.NewTimer(b.params.Load().Timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.wake:
			b.flushReady(ctx, false)
		case <-timer.C:
			b.flushReady(ctx, true)
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(b.params.Load().Timeout)
	}
}

// flushReady flushes full batches, plus any remainder when the timeout
// fired.
func (b *Batcher) flushReady(ctx context.Context, timedOut bool) {
	for {
		frames := b.take(timedOut)
		if len(frames) == 0 {
			return
		}
		if !b.dispatch(ctx, frames) {
			return
		}
		timedOut = false // only the first drain of a timeout takes a partial batch
	}
}

// take pops up to one flush size worth of frames. Partial batches are only
// taken when the flush timeout elapsed.
func (b *Batcher) take(partial bool) []model.Frame {
	b.mu.Lock()
	defer b.mu.Unlock()

	size := b.params.Load().Size
	n := len(b.queue)
	if n == 0 || (n < size && !partial) {
		return nil
	}
	if n > size {
		n = size
	}
	frames := make([]model.Frame, n)
	copy(frames, b.queue[:n])
	copy(b.queue, b.queue[n:])
	b.queue = b.queue[:len(b.queue)-n]
	return frames
}

// dispatch submits one batch and waits for a worker to finish it. Submit
// blocks when the pool queue is full; frames arriving meanwhile still go
// through Submit's drop-oldest path since the queue lock is not held here.
func (b *Batcher) dispatch(ctx context.Context, frames []model.Frame) bool {
	batch := Batch{
		CameraID: b.cameraID,
		Frames:   frames,
		done:     make(chan struct{}),
	}
	if err := b.sink.Submit(ctx, batch); err != nil {
		b.log.Warn(ctx, "batch submit failed",
			logger.String("camera", b.cameraID),
			logger.Int("frames", len(frames)),
			logger.Error(err),
		)
		return false
	}
	select {
	case <-batch.done:
		return true
	case <-ctx.Done():
		return false
	}
}
