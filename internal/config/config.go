// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keep fields unexported where possible and use functional options.
// - Provide New() initializer to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

import "runtime"

// ZoneConfig describes one protected zone. RequiredLevel "none" marks the
// zone unrestricted. Schedule maps lowercase weekday names to "HH:MM-HH:MM"
// windows; a weekday missing from a non-empty schedule is closed all day.
type ZoneConfig struct {
	ID              string              `koanf:"id"`
	Name            string              `koanf:"name"`
	RequiredLevel   string              `koanf:"required_level"`
	DoorControllers []string            `koanf:"door_controllers"`
	Timezone        string              `koanf:"timezone"`
	Schedule        map[string][]string `koanf:"schedule"`
}

// GrantConfig assigns a permission level to an identity in a zone.
type GrantConfig struct {
	IdentityID string `koanf:"identity_id"`
	ZoneID     string `koanf:"zone_id"`
	Level      string `koanf:"level"`
}

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address for /metrics, e.g. ":9090".
	Addr string `koanf:"addr"`

	// MatchThreshold is the distance-space acceptance bound: a candidate
	// matches only when its distance is strictly below this value.
	MatchThreshold float64 `koanf:"match_threshold"`

	// MaxDistance bounds the distance-to-confidence normalization.
	MaxDistance float64 `koanf:"max_distance"`

	// TieEpsilon is the distance band within which candidates tie.
	TieEpsilon float64 `koanf:"tie_epsilon"`

	// QualityFloor is the minimum encoder quality to attempt a match.
	QualityFloor float64 `koanf:"quality_floor"`

	// DetectorConfidenceFloor drops weak detections before encoding.
	DetectorConfidenceFloor float64 `koanf:"detector_confidence_floor"`

	// DistanceMetric selects "euclidean" or "cosine".
	DistanceMetric string `koanf:"distance_metric"`

	// CacheCapacity bounds the encoding cache.
	CacheCapacity int `koanf:"cache_capacity"`

	// CacheTTLMS is the encoding cache entry lifetime in milliseconds.
	CacheTTLMS int `koanf:"cache_ttl_ms"`

	// BatchSize is the flush size for camera frame batches.
	BatchSize int `koanf:"batch_size"`

	// BatchTimeoutMS bounds worst-case per-frame batching latency.
	BatchTimeoutMS int `koanf:"batch_timeout_ms"`

	// FrameQueueSize bounds each camera's frame queue (drop-oldest).
	FrameQueueSize int `koanf:"frame_queue_size"`

	// WorkQueueSize bounds the shared batch queue (blocking backpressure).
	WorkQueueSize int `koanf:"work_queue_size"`

	// WorkerCount sets the number of pipeline workers.
	WorkerCount int `koanf:"worker_count"`

	// DispatchBuffer is the per-subscriber event channel buffer.
	DispatchBuffer int `koanf:"dispatch_buffer"`

	// Cameras binds camera IDs to the zone each one guards. Cameras
	// without a binding produce match events but no access decisions.
	Cameras map[string]string `koanf:"cameras"`

	// Zones lists the protected zones.
	Zones []ZoneConfig `koanf:"zones"`

	// Grants lists static permission grants layered on top of the
	// identity repository's grants.
	Grants []GrantConfig `koanf:"grants"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:                "info",
		Addr:                    ":9090",
		MatchThreshold:          0.6,
		MaxDistance:             2.0,
		TieEpsilon:              1e-6,
		QualityFloor:            0.3,
		DetectorConfidenceFloor: 0.5,
		DistanceMetric:          "euclidean",
		CacheCapacity:           10_000,
		CacheTTLMS:              30_000,
		BatchSize:               4,
		BatchTimeoutMS:          100,
		FrameQueueSize:          32,
		WorkQueueSize:           64,
		WorkerCount:             runtime.NumCPU(),
		DispatchBuffer:          256,
	}
}
