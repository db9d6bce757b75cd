package perception

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/facegate/facegate/internal/domain/model"
)

// Default simulation constants.
const (
	defaultSimDim        = 128
	defaultSimMinLatency = 5 * time.Millisecond
	defaultSimMaxLatency = 20 * time.Millisecond
	defaultSimSeed       = 42
)

// SimOption applies a configuration option to the SimEngine.
type SimOption func(*SimEngine)

// WithSimLatencyRange sets the simulated model latency range.
func WithSimLatencyRange(minLatency, maxLatency time.Duration) SimOption {
	return func(s *SimEngine) {
		if minLatency > 0 && maxLatency > minLatency {
			s.minLatency = minLatency
			s.maxLatency = maxLatency
		}
	}
}

// WithSimDimension sets the feature vector dimensionality.
func WithSimDimension(dim int) SimOption {
	return func(s *SimEngine) {
		if dim > 0 {
			s.dim = dim
		}
	}
}

// SimEngine implements Detector and Encoder with simulated models.
//
// Output is a deterministic function of the input bytes: the same frame
// always yields the same detections, and the same crop always yields the
// same unit-length vector. That makes the full pipeline reproducible in
// development and tests without real models.
type SimEngine struct {
	dim        int
	minLatency time.Duration
	maxLatency time.Duration

	mu  sync.Mutex
	rng *rand.Rand // latency jitter only, never output
}

// NewSimEngine creates a simulated perception engine with options.
func NewSimEngine(opts ...SimOption) *SimEngine {
	s := &SimEngine{
		dim:        defaultSimDim,
		minLatency: defaultSimMinLatency,
		maxLatency: defaultSimMaxLatency,
		rng:        rand.New(rand.NewSource(defaultSimSeed)), //nolint:gosec // deterministic seed for reproducible simulation
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Detect reports one synthetic face per frame, positioned from the content
// hash. An empty image simulates a detector failure.
func (s *SimEngine) Detect(ctx context.Context, image []byte) ([]model.Detection, error) {
	if err := s.sleep(ctx); err != nil {
		return nil, err
	}
	if len(image) == 0 {
		return nil, fmt.Errorf("simulated detector: empty frame")
	}

	seed := contentSeed(image)
	r := rand.New(rand.NewSource(int64(seed))) //nolint:gosec // content-derived seed, reproducible by design
	return []model.Detection{
		{
			BBox: model.BBox{
				X: r.Intn(512),
				Y: r.Intn(512),
				W: 64 + r.Intn(64),
				H: 64 + r.Intn(64),
			},
			Confidence: 0.5 + r.Float64()*0.5,
		},
	}, nil
}

// Encode derives a unit-length vector and a quality score from the crop
// content.
func (s *SimEngine) Encode(ctx context.Context, image []byte, bbox model.BBox) ([]float64, float64, error) {
	if err := s.sleep(ctx); err != nil {
		return nil, 0, err
	}
	if len(image) == 0 {
		return nil, 0, fmt.Errorf("simulated encoder: empty crop")
	}

	seed := contentSeed(image) ^ uint64(bbox.X)<<32 ^ uint64(bbox.Y)
	r := rand.New(rand.NewSource(int64(seed))) //nolint:gosec // content-derived seed, reproducible by design
	v := make([]float64, s.dim)
	var norm float64
	for i := range v {
		v[i] = r.NormFloat64()
		norm += v[i] * v[i]
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		norm = 1
	}
	for i := range v {
		v[i] /= norm
	}

	quality := 0.6 + r.Float64()*0.4
	return v, quality, nil
}

// sleep simulates model latency, honoring cancellation.
func (s *SimEngine) sleep(ctx context.Context) error {
	s.mu.Lock()
	latency := s.minLatency + time.Duration(s.rng.Int63n(int64(s.maxLatency-s.minLatency)))
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return fmt.Errorf("context cancelled: %w", ctx.Err())
	case <-time.After(latency):
		return nil
	}
}

func contentSeed(b []byte) uint64 {
	h := fnv.New64a()
	h.Write(b)
	return h.Sum64()
}
