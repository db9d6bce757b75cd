package index

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/facegate/facegate/pkg/metrics"
)

// Flat, exhaustive-scan Index implementation.
//
// Gallery sizes for a single site are small enough (thousands of encodings)
// that a linear scan with a tight distance kernel beats tree structures and
// keeps mutation trivially consistent: one RWMutex, short exclusive sections
// for writes, shared sections for queries. Rebuild assembles the replacement
// state off-lock and swaps it in one assignment.
//
// Ordering is deterministic: distance ASC, then identity ID ASC.

// Metric selects the distance function, fixed at construction time.
type Metric int

// Supported distance metrics.
const (
	Euclidean Metric = iota
	Cosine
)

// record is one stored encoding.
type record struct {
	identityID string
	vector     []float64
}

// FlatIndex implements Index with a brute-force scan.
type FlatIndex struct {
	mu      sync.RWMutex
	records []record
	perID   map[string]int // encodings per identity
	metric  Metric
	dim     int // fixed by the first insert or rebuild; 0 = unset
}

// NewFlatIndex constructs a flat index with configuration options.
func NewFlatIndex(opts ...Option) *FlatIndex {
	x := &FlatIndex{
		perID:  make(map[string]int),
		metric: Euclidean,
	}

	for _, opt := range opts {
		opt(x)
	}

	return x
}

// Insert adds one encoding for an identity in O(1) under the write lock.
func (x *FlatIndex) Insert(ctx context.Context, identityID string, vector []float64) error {
	if len(vector) == 0 {
		return ErrEmptyVector
	}

	v := make([]float64, len(vector))
	copy(v, vector)

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.dim == 0 {
		x.dim = len(v)
	} else if len(v) != x.dim {
		metrics.RecordErrorByComponent("index", "dimension_mismatch")
		return ErrDimensionMismatch
	}

	x.records = append(x.records, record{identityID: identityID, vector: v})
	x.perID[identityID]++
	x.updateGauges()
	return nil
}

// Remove drops every encoding for an identity.
func (x *FlatIndex) Remove(ctx context.Context, identityID string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if _, ok := x.perID[identityID]; !ok {
		return
	}

	kept := x.records[:0]
	for _, r := range x.records {
		if r.identityID != identityID {
			kept = append(kept, r)
		}
	}
	x.records = kept
	delete(x.perID, identityID)
	x.updateGauges()
}

// Query scans all encodings, keeps the best distance per identity, and
// returns up to k candidates ordered ascending by distance with identity ID
// as the deterministic tie-breaker.
func (x *FlatIndex) Query(ctx context.Context, vector []float64, k int) ([]Candidate, error) {
	start := time.Now()
	defer func() {
		metrics.RecordIndexQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if k < 1 {
		metrics.RecordErrorByComponent("index", "invalid_limit")
		return nil, ErrInvalidLimit
	}
	if len(vector) == 0 {
		return nil, ErrEmptyVector
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.records) == 0 {
		return []Candidate{}, nil
	}
	if len(vector) != x.dim {
		return nil, ErrDimensionMismatch
	}

	best := make(map[string]float64, len(x.perID))
	for _, r := range x.records {
		d := distance(x.metric, vector, r.vector)
		if prev, ok := best[r.identityID]; !ok || d < prev {
			best[r.identityID] = d
		}
	}

	out := make([]Candidate, 0, len(best))
	for id, d := range best {
		out = append(out, Candidate{IdentityID: id, Distance: d})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].IdentityID < out[j].IdentityID
	})

	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// Rebuild replaces the index contents wholesale. The replacement records are
// assembled before taking the lock so the exclusive section is a few
// assignments.
func (x *FlatIndex) Rebuild(ctx context.Context, entries []Entry) error {
	dim := 0
	records := make([]record, 0, len(entries))
	perID := make(map[string]int, len(entries))
	for _, e := range entries {
		if len(e.Vector) == 0 {
			return ErrEmptyVector
		}
		if dim == 0 {
			dim = len(e.Vector)
		} else if len(e.Vector) != dim {
			return ErrDimensionMismatch
		}
		v := make([]float64, len(e.Vector))
		copy(v, e.Vector)
		records = append(records, record{identityID: e.IdentityID, vector: v})
		perID[e.IdentityID]++
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	x.records = records
	x.perID = perID
	x.dim = dim
	x.updateGauges()
	return nil
}

// Count returns the number of distinct identities indexed.
func (x *FlatIndex) Count(ctx context.Context) int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.perID)
}

// updateGauges refreshes the index gauges. Must be called with x.mu held.
func (x *FlatIndex) updateGauges() {
	metrics.UpdateIndexEntries(len(x.records))
	metrics.UpdateIndexIdentities(len(x.perID))
}

// distance computes the configured metric between two equal-length vectors.
func distance(m Metric, a, b []float64) float64 {
	switch m {
	case Cosine:
		return cosineDistance(a, b)
	default:
		return euclideanDistance(a, b)
	}
}

func euclideanDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// cosineDistance is 1 - cosine similarity, in [0,2]. A zero-norm vector has
// no direction; it is treated as maximally distant.
func cosineDistance(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 2
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
