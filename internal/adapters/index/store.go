// Package index defines the in-memory identity index and its errors.
package index

import "context"

// Candidate is one nearest-neighbor result.
type Candidate struct {
	IdentityID string
	Distance   float64
}

// Entry pairs an identity with one of its enrolled vectors, used for bulk
// rebuilds from the identity repository.
type Entry struct {
	IdentityID string
	Vector     []float64
}

// Index provides similarity search over enrolled identity encodings.
//
// An identity with multiple encodings appears as multiple internal entries
// that all resolve to the same identity; Query deduplicates by identity,
// keeping each identity's smallest distance.
type Index interface {
	// Insert adds one encoding for an identity.
	Insert(ctx context.Context, identityID string, vector []float64) error

	// Remove drops every encoding for an identity.
	Remove(ctx context.Context, identityID string)

	// Query returns up to k candidates ordered ascending by distance,
	// deduplicated by identity. Querying an empty index returns an empty
	// slice, not an error.
	Query(ctx context.Context, vector []float64, k int) ([]Candidate, error)

	// Rebuild atomically replaces the whole index contents. The new state
	// is built off-lock; ongoing queries see either the old or the new
	// contents, never a mix.
	Rebuild(ctx context.Context, entries []Entry) error

	// Count returns the number of distinct identities indexed.
	Count(ctx context.Context) int
}
