package service

import (
	"time"

	"github.com/facegate/facegate/internal/adapters/index"
	"github.com/facegate/facegate/internal/adapters/pipeline"
	"github.com/facegate/facegate/internal/domain/access"
	"github.com/facegate/facegate/internal/perception"
	"github.com/facegate/facegate/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithDetector sets the external detection capability.
func WithDetector(d perception.Detector) Option {
	return func(s *Service) {
		if d != nil {
			s.detector = d
		}
	}
}

// WithEncoder sets the external encoding capability.
func WithEncoder(e perception.Encoder) Option {
	return func(s *Service) {
		if e != nil {
			s.encoder = e
		}
	}
}

// WithIdentityRepository sets the repository used to rebuild the gallery.
func WithIdentityRepository(r perception.IdentityRepository) Option {
	return func(s *Service) {
		s.repo = r
	}
}

// WithAuditSink sets the external audit log collaborator.
func WithAuditSink(a perception.AuditSink) Option {
	return func(s *Service) {
		s.audit = a
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithWorkerCount sets the number of pipeline workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithWorkQueueSize bounds the shared batch queue.
func WithWorkQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.workQueueSize = size
		}
	}
}

// WithBatchSize sets the flush size for camera frame batches.
func WithBatchSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// WithBatchTimeout bounds worst-case per-frame batching latency.
func WithBatchTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.batchTimeout = d
		}
	}
}

// WithFrameQueueCapacity bounds each camera's frame queue.
func WithFrameQueueCapacity(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.frameQueueCap = n
		}
	}
}

// WithDispatchBuffer sets the per-subscriber event channel buffer.
func WithDispatchBuffer(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.dispatchBuffer = n
		}
	}
}

// WithCacheCapacity bounds the encoding cache.
func WithCacheCapacity(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.cacheCapacity = n
		}
	}
}

// WithCacheTTL sets the encoding cache entry lifetime.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithMetric fixes the index distance metric.
func WithMetric(m index.Metric) Option {
	return func(s *Service) {
		s.metric = m
	}
}

// WithMaxDistance sets the distance normalization bound for confidence.
func WithMaxDistance(d float64) Option {
	return func(s *Service) {
		if d > 0 {
			s.maxDistance = d
		}
	}
}

// WithTieEpsilon sets the matcher's tie band.
func WithTieEpsilon(eps float64) Option {
	return func(s *Service) {
		if eps > 0 {
			s.tieEpsilon = eps
		}
	}
}

// WithTuning sets the initial hot-reloadable thresholds.
func WithTuning(t pipeline.Tuning) Option {
	return func(s *Service) {
		snapshot := t
		s.tuning.Store(&snapshot)
	}
}

// WithRules sets the initial zones and static grants.
func WithRules(zones []access.Zone, grants []access.Grant) Option {
	return func(s *Service) {
		s.initialZones = zones
		s.initialGrants = grants
	}
}

// WithCameraZones binds cameras to the zones they guard.
func WithCameraZones(bindings map[string]string) Option {
	return func(s *Service) {
		if bindings == nil {
			return
		}
		next := make(map[string]string, len(bindings))
		for k, v := range bindings {
			next[k] = v
		}
		s.cameraZones.Store(&next)
	}
}

// tuningUpdate gathers the optional knobs carried by UpdateTuning.
type tuningUpdate struct {
	cacheTTL      time.Duration
	cacheCapacity int
	batchSize     int
	batchTimeout  time.Duration
}

// TuningOption selects an additional knob for Service.UpdateTuning.
type TuningOption func(*tuningUpdate)

// WithUpdatedCacheTTL applies a new encoding cache TTL to subsequent
// insertions. Existing entries keep their original expiry.
func WithUpdatedCacheTTL(ttl time.Duration) TuningOption {
	return func(u *tuningUpdate) {
		if ttl > 0 {
			u.cacheTTL = ttl
		}
	}
}

// WithUpdatedCacheCapacity rebounds the encoding cache, evicting the
// oldest insertions if it currently holds more.
func WithUpdatedCacheCapacity(n int) TuningOption {
	return func(u *tuningUpdate) {
		if n > 0 {
			u.cacheCapacity = n
		}
	}
}

// WithUpdatedBatching retunes the flush size and timeout of every live
// camera batcher and of batchers created afterwards. A zero keeps the
// current value for that knob.
func WithUpdatedBatching(size int, timeout time.Duration) TuningOption {
	return func(u *tuningUpdate) {
		if size > 0 {
			u.batchSize = size
		}
		if timeout > 0 {
			u.batchTimeout = timeout
		}
	}
}
