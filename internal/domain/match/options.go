package match

// Default matching configuration constants.
const (
	defaultMaxDistance = 2.0
	defaultTieEpsilon  = 1e-6
	defaultCandidateK  = 5 // enough neighbors to inspect ties
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithMaxDistance sets the distance normalization bound for confidence.
func WithMaxDistance(d float64) Option {
	return func(e *Engine) {
		if d > 0 {
			e.maxDistance = d
		}
	}
}

// WithTieEpsilon sets the distance band within which candidates are
// considered tied.
func WithTieEpsilon(eps float64) Option {
	return func(e *Engine) {
		if eps > 0 {
			e.tieEpsilon = eps
		}
	}
}

// WithCandidateK sets how many neighbors are fetched for tie inspection.
func WithCandidateK(k int) Option {
	return func(e *Engine) {
		if k > 0 {
			e.candidateK = k
		}
	}
}
