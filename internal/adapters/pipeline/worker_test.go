package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	pipeline "github.com/facegate/facegate/internal/adapters/pipeline"
	"github.com/facegate/facegate/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// countingProcessor records processed batches.
type countingProcessor struct {
	mu        sync.Mutex
	processed []string // camera IDs in processing order
	seen      chan struct{}
}

func newCountingProcessor() *countingProcessor {
	return &countingProcessor{seen: make(chan struct{}, 256)}
}

func (p *countingProcessor) ProcessBatch(_ context.Context, b pipeline.Batch) {
	p.mu.Lock()
	p.processed = append(p.processed, b.CameraID)
	p.mu.Unlock()
	p.seen <- struct{}{}
}

func (p *countingProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.processed)
}

func (p *countingProcessor) wait(n int, deadline time.Duration) bool {
	timer := time.NewTimer(deadline)
	defer timer.Stop()
	for i := 0; i < n; i++ {
		select {
		case <-p.seen:
		case <-timer.C:
			return false
		}
	}
	return true
}

func TestWorkQueue(t *testing.T) {
	ctx := context.Background()

	Convey("Given a bounded work queue", t, func() {
		q := pipeline.NewWorkQueue(2)

		Convey("When submitting within capacity", func() {
			So(q.Submit(ctx, pipeline.Batch{CameraID: "cam-1"}), ShouldBeNil)
			So(q.Submit(ctx, pipeline.Batch{CameraID: "cam-2"}), ShouldBeNil)

			Convey("Then the queue depth should track submissions", func() {
				So(q.Len(), ShouldEqual, 2)
			})
		})

		Convey("When the queue is full", func() {
			So(q.Submit(ctx, pipeline.Batch{CameraID: "cam-1"}), ShouldBeNil)
			So(q.Submit(ctx, pipeline.Batch{CameraID: "cam-2"}), ShouldBeNil)

			Convey("And the submit context is cancelled", func() {
				cancelled, cancel := context.WithCancel(ctx)
				cancel()
				err := q.Submit(cancelled, pipeline.Batch{CameraID: "cam-3"})

				Convey("Then Submit should give up instead of blocking forever", func() {
					So(err, ShouldNotBeNil)
					So(errors.Is(err, context.Canceled), ShouldBeTrue)
				})
			})
		})

		Convey("When the queue is closed", func() {
			So(q.Close(), ShouldBeNil)

			Convey("Then further submissions should be rejected", func() {
				err := q.Submit(ctx, pipeline.Batch{CameraID: "cam-1"})
				So(err, ShouldEqual, pipeline.ErrQueueClosed)
			})

			Convey("And closing again should be a no-op", func() {
				So(q.Close(), ShouldBeNil)
			})
		})
	})
}

func TestPool(t *testing.T) {
	ctx := context.Background()

	Convey("Given a running worker pool", t, func() {
		q := pipeline.NewWorkQueue(16)
		proc := newCountingProcessor()
		pool := pipeline.NewPool(4, q, proc)
		pool.Start(ctx)

		Convey("When batches are submitted", func() {
			for i := 0; i < 8; i++ {
				So(q.Submit(ctx, pipeline.Batch{CameraID: fmt.Sprintf("cam-%d", i)}), ShouldBeNil)
			}

			Convey("Then every batch should be processed", func() {
				So(proc.wait(8, 2*time.Second), ShouldBeTrue)
				So(proc.count(), ShouldEqual, 8)
			})
		})

		Convey("When the pool shuts down", func() {
			So(q.Submit(ctx, pipeline.Batch{CameraID: "cam-last"}), ShouldBeNil)
			So(pool.Shutdown(ctx), ShouldBeNil)

			Convey("Then queued batches should drain before exit", func() {
				So(proc.count(), ShouldEqual, 1)
			})

			Convey("And the closed queue should reject new work", func() {
				err := q.Submit(ctx, pipeline.Batch{CameraID: "cam-late"})
				So(err, ShouldEqual, pipeline.ErrQueueClosed)
			})
		})
	})
}

func TestWorkerFinishesBatch(t *testing.T) {
	// A batcher submitting through the queue must be released by the worker
	// finishing the batch; otherwise per-camera flushing would deadlock.
	ctx := context.Background()

	q := pipeline.NewWorkQueue(4)
	proc := newCountingProcessor()
	pool := pipeline.NewPool(1, q, proc)
	pool.Start(ctx)
	defer func() { _ = pool.Shutdown(ctx) }()

	b := pipeline.NewBatcher("cam-1", q,
		pipeline.WithBatchSize(1),
		pipeline.WithBatchTimeout(10*time.Millisecond),
	)
	b.Start(ctx)
	defer b.Stop()

	for i := 0; i < 5; i++ {
		b.Submit(model.Frame{ID: fmt.Sprintf("f-%d", i), CameraID: "cam-1", TS: time.Now()})
	}

	if !proc.wait(5, 2*time.Second) {
		t.Fatalf("pipeline stalled: %d of 5 batches processed", proc.count())
	}
}
