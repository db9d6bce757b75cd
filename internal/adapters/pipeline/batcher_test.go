package pipeline_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	pipeline "github.com/facegate/facegate/internal/adapters/pipeline"
	"github.com/facegate/facegate/internal/domain/model"
	"github.com/facegate/facegate/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// captureSink records submitted batches and finishes them immediately.
type captureSink struct {
	mu      sync.Mutex
	batches [][]string // frame IDs per batch
	flushed chan struct{}
}

func newCaptureSink() *captureSink {
	return &captureSink{flushed: make(chan struct{}, 64)}
}

func (s *captureSink) Submit(_ context.Context, b pipeline.Batch) error {
	ids := make([]string, len(b.Frames))
	for i, f := range b.Frames {
		ids[i] = f.ID
	}
	s.mu.Lock()
	s.batches = append(s.batches, ids)
	s.mu.Unlock()

	b.Finish()
	s.flushed <- struct{}{}
	return nil
}

func (s *captureSink) snapshot() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.batches))
	copy(out, s.batches)
	return out
}

// waitFlushes blocks until n batches were flushed or the deadline passes.
func (s *captureSink) waitFlushes(n int, deadline time.Duration) bool {
	timer := time.NewTimer(deadline)
	defer timer.Stop()
	for i := 0; i < n; i++ {
		select {
		case <-s.flushed:
		case <-timer.C:
			return false
		}
	}
	return true
}

func frame(id string) model.Frame {
	return model.Frame{ID: id, CameraID: "cam-1", Image: []byte(id), TS: time.Now()}
}

func TestBatcher(t *testing.T) {
	ctx := context.Background()

	Convey("Given a batcher flushing on batch size", t, func() {
		sink := newCaptureSink()
		b := pipeline.NewBatcher("cam-1", sink,
			pipeline.WithBatchSize(3),
			pipeline.WithBatchTimeout(time.Hour),
		)
		b.Start(ctx)

		Convey("When enough frames arrive", func() {
			b.Submit(frame("f-1"))
			b.Submit(frame("f-2"))
			b.Submit(frame("f-3"))

			Convey("Then one full batch should flush in arrival order", func() {
				So(sink.waitFlushes(1, time.Second), ShouldBeTrue)
				batches := sink.snapshot()
				So(batches, ShouldHaveLength, 1)
				So(batches[0], ShouldResemble, []string{"f-1", "f-2", "f-3"})
			})
		})

		Convey("When fewer frames than the batch size arrive", func() {
			b.Submit(frame("f-1"))

			Convey("Then nothing should flush before the timeout", func() {
				So(sink.waitFlushes(1, 100*time.Millisecond), ShouldBeFalse)
				So(b.Len(), ShouldEqual, 1)
			})
		})

		Reset(func() {
			b.Stop()
		})
	})

	Convey("Given a batcher with a short flush timeout", t, func() {
		sink := newCaptureSink()
		b := pipeline.NewBatcher("cam-1", sink,
			pipeline.WithBatchSize(100),
			pipeline.WithBatchTimeout(30*time.Millisecond),
		)
		b.Start(ctx)

		Convey("When a partial batch sits past the timeout", func() {
			b.Submit(frame("f-1"))
			b.Submit(frame("f-2"))

			Convey("Then the partial batch should flush anyway", func() {
				So(sink.waitFlushes(1, time.Second), ShouldBeTrue)
				batches := sink.snapshot()
				So(batches, ShouldHaveLength, 1)
				So(batches[0], ShouldResemble, []string{"f-1", "f-2"})
				So(b.Len(), ShouldEqual, 0)
			})
		})

		Reset(func() {
			b.Stop()
		})
	})

	Convey("Given a batcher with a bounded frame queue", t, func() {
		var droppedMu sync.Mutex
		var droppedIDs []string

		sink := newCaptureSink()
		b := pipeline.NewBatcher("cam-1", sink,
			pipeline.WithBatchSize(100),
			pipeline.WithBatchTimeout(time.Hour),
			pipeline.WithFrameQueueCapacity(3),
			pipeline.WithDropFunc(func(f model.Frame) {
				droppedMu.Lock()
				droppedIDs = append(droppedIDs, f.ID)
				droppedMu.Unlock()
			}),
		)
		// Not started: frames accumulate so the overflow path is observable.

		Convey("When more frames arrive than the queue holds", func() {
			for i := 1; i <= 5; i++ {
				b.Submit(frame(fmt.Sprintf("f-%d", i)))
			}

			Convey("Then the oldest frames should be shed for the newest", func() {
				So(b.Len(), ShouldEqual, 3)
				So(b.Dropped(), ShouldEqual, 2)

				droppedMu.Lock()
				defer droppedMu.Unlock()
				So(droppedIDs, ShouldResemble, []string{"f-1", "f-2"})
			})

			Convey("And the survivors should stay queued below the batch size", func() {
				b.Start(ctx)
				defer b.Stop()

				b.Submit(frame("f-6"))

				So(sink.waitFlushes(1, 100*time.Millisecond), ShouldBeFalse)
				So(b.Len(), ShouldEqual, 4)
			})
		})
	})

	Convey("Given a batcher retuned at runtime", t, func() {
		sink := newCaptureSink()
		b := pipeline.NewBatcher("cam-1", sink,
			pipeline.WithBatchSize(100),
			pipeline.WithBatchTimeout(time.Hour),
		)
		b.Start(ctx)

		Convey("When queued frames already satisfy a lowered flush size", func() {
			b.Submit(frame("f-1"))
			b.Submit(frame("f-2"))
			So(sink.waitFlushes(1, 100*time.Millisecond), ShouldBeFalse)

			b.SetParams(2, time.Hour)

			Convey("Then they should flush without another submit", func() {
				So(sink.waitFlushes(1, time.Second), ShouldBeTrue)
				batches := sink.snapshot()
				So(batches, ShouldHaveLength, 1)
				So(batches[0], ShouldResemble, []string{"f-1", "f-2"})
			})
		})

		Convey("When the flush timeout is shortened", func() {
			b.Submit(frame("f-1"))
			b.SetParams(0, 20*time.Millisecond)

			Convey("Then the partial batch should flush on the new timeout", func() {
				So(sink.waitFlushes(1, time.Second), ShouldBeTrue)
				So(sink.snapshot()[0], ShouldResemble, []string{"f-1"})
			})
		})

		Reset(func() {
			b.Stop()
		})
	})

	Convey("Given a stopped batcher", t, func() {
		sink := newCaptureSink()
		b := pipeline.NewBatcher("cam-1", sink,
			pipeline.WithBatchSize(1),
			pipeline.WithBatchTimeout(10*time.Millisecond),
		)
		b.Start(ctx)
		b.Submit(frame("f-1"))
		So(sink.waitFlushes(1, time.Second), ShouldBeTrue)
		b.Stop()

		Convey("When frames arrive after Stop", func() {
			b.Submit(frame("f-late"))

			Convey("Then they should queue but never flush", func() {
				So(sink.waitFlushes(1, 100*time.Millisecond), ShouldBeFalse)
			})
		})
	})
}

func TestBatcherOrdering(t *testing.T) {
	// A slow sink that holds each batch open for a moment proves that the
	// batcher never lets two of its batches overlap.
	type span struct {
		ids        []string
		start, end time.Time
	}

	var mu sync.Mutex
	var spans []span

	slow := sinkFunc(func(_ context.Context, b pipeline.Batch) error {
		start := time.Now()
		time.Sleep(10 * time.Millisecond)
		ids := make([]string, len(b.Frames))
		for i, f := range b.Frames {
			ids[i] = f.ID
		}
		mu.Lock()
		spans = append(spans, span{ids: ids, start: start, end: time.Now()})
		mu.Unlock()
		b.Finish()
		return nil
	})

	b := pipeline.NewBatcher("cam-1", slow,
		pipeline.WithBatchSize(2),
		pipeline.WithBatchTimeout(20*time.Millisecond),
	)
	b.Start(context.Background())
	defer b.Stop()

	for i := 0; i < 10; i++ {
		b.Submit(frame(fmt.Sprintf("f-%02d", i)))
		time.Sleep(2 * time.Millisecond)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		total := 0
		for _, sp := range spans {
			total += len(sp.ids)
		}
		mu.Unlock()
		if total == 10 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()

	var all []string
	for i, sp := range spans {
		all = append(all, sp.ids...)
		if i > 0 && spans[i-1].end.After(sp.start) {
			t.Errorf("batches %d and %d overlapped", i-1, i)
		}
	}
	if len(all) != 10 {
		t.Fatalf("expected 10 frames processed, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1] >= all[i] {
			t.Errorf("frames out of order: %s before %s", all[i-1], all[i])
		}
	}
}

// sinkFunc adapts a function to the Sink interface.
type sinkFunc func(ctx context.Context, b pipeline.Batch) error

func (f sinkFunc) Submit(ctx context.Context, b pipeline.Batch) error { return f(ctx, b) }
