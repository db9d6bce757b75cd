// Package match implements the identity matching decision over the index.
package match

import (
	"context"
	"fmt"
	"time"

	"github.com/facegate/facegate/internal/adapters/index"
	"github.com/facegate/facegate/internal/domain/model"
	"github.com/facegate/facegate/pkg/metrics"
)

// Input carries one encoded face into the matcher, together with the
// tuning values in force when the face was encoded. Threshold is in
// distance space: a candidate matches iff its distance is strictly below.
type Input struct {
	Vector       []float64
	Quality      float64 // encoder quality score, [0,1]
	BBox         model.BBox
	CameraID     string
	Timestamp    time.Time
	Threshold    float64
	QualityFloor float64
}

// Engine resolves feature vectors to enrolled identities.
//
// Confidence is derived from distance as max(0, 1 - distance/maxDistance).
// maxDistance bounds the normalization: raw Euclidean distance is unbounded
// above, so the divisor is fixed at construction (2.0 suits unit-normalized
// embeddings, where observed distances stay under 2 for both metrics).
type Engine struct {
	idx         index.Index
	maxDistance float64
	tieEpsilon  float64
	candidateK  int
}

// New constructs a matching engine with configuration options.
func New(idx index.Index, opts ...Option) *Engine {
	e := &Engine{
		idx:         idx,
		maxDistance: defaultMaxDistance,
		tieEpsilon:  defaultTieEpsilon,
		candidateK:  defaultCandidateK,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Match resolves one encoded face to an identity or to unidentified.
// It is a pure function of the index state and the input: no side effects
// beyond metrics.
func (e *Engine) Match(ctx context.Context, in Input) (model.MatchResult, error) {
	start := time.Now()
	defer func() {
		metrics.RecordMatchLatency(float64(time.Since(start).Milliseconds()))
	}()

	unidentified := model.MatchResult{
		Confidence: 0,
		BBox:       in.BBox,
		Timestamp:  in.Timestamp,
		CameraID:   in.CameraID,
	}

	// Quality gate: a low-quality crop makes any match statistically
	// unreliable, so the index result is never consulted.
	if in.Quality < in.QualityFloor {
		metrics.RecordLowQualityFace()
		metrics.RecordMatchUnidentified()
		return unidentified, nil
	}

	candidates, err := e.idx.Query(ctx, in.Vector, e.candidateK)
	if err != nil {
		metrics.RecordErrorByComponent("match", "index_query")
		return unidentified, fmt.Errorf("index query: %w", err)
	}
	if len(candidates) == 0 {
		metrics.RecordMatchUnidentified()
		return unidentified, nil
	}

	best := e.breakTies(candidates)
	if !(best.Distance < in.Threshold) {
		metrics.RecordMatchUnidentified()
		return unidentified, nil
	}

	metrics.RecordMatchIdentified()
	return model.MatchResult{
		IdentityID: best.IdentityID,
		Confidence: e.confidence(best.Distance),
		BBox:       in.BBox,
		Timestamp:  in.Timestamp,
		CameraID:   in.CameraID,
	}, nil
}

// breakTies picks the winner among candidates within tieEpsilon of the best
// distance: the lowest identity ID wins, deterministically. Candidates
// arrive ordered ascending by (distance, identity ID), so the scan stops at
// the first candidate outside the epsilon band.
func (e *Engine) breakTies(candidates []index.Candidate) index.Candidate {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Distance-best.Distance > e.tieEpsilon {
			break
		}
		if c.IdentityID < best.IdentityID {
			best = c
		}
	}
	return best
}

// confidence maps a distance to [0,1], higher is better.
func (e *Engine) confidence(dist float64) float64 {
	c := 1 - dist/e.maxDistance
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
