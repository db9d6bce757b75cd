package pipeline

import (
	"time"

	"github.com/facegate/facegate/pkg/logger"
)

// Default pipeline configuration constants.
const (
	defaultBatchSize      = 4
	defaultBatchTimeout   = 100 * time.Millisecond
	defaultFrameQueueCap  = 32
	defaultWorkQueueCap   = 64
	workerShutdownTimeout = 5 * time.Second
)

// BatcherOption applies a configuration option to a Batcher.
type BatcherOption func(*Batcher)

// WithBatchSize sets the number of frames that triggers a flush.
func WithBatchSize(n int) BatcherOption {
	return func(b *Batcher) {
		if n > 0 {
			p := *b.params.Load()
			p.Size = n
			b.params.Store(&p)
		}
	}
}

// WithBatchTimeout bounds how long a frame can wait before a partial
// batch is flushed.
func WithBatchTimeout(d time.Duration) BatcherOption {
	return func(b *Batcher) {
		if d > 0 {
			p := *b.params.Load()
			p.Timeout = d
			b.params.Store(&p)
		}
	}
}

// WithFrameQueueCapacity bounds the per-camera frame queue.
func WithFrameQueueCapacity(n int) BatcherOption {
	return func(b *Batcher) {
		if n > 0 {
			b.queueCap = n
		}
	}
}

// WithDropFunc observes frames shed by the drop-oldest policy.
func WithDropFunc(fn DropFunc) BatcherOption {
	return func(b *Batcher) {
		b.onDrop = fn
	}
}

// WithBatcherLogger sets a custom logger for the batcher.
func WithBatcherLogger(log logger.Logger) BatcherOption {
	return func(b *Batcher) {
		if log != nil {
			b.log = log
		}
	}
}
