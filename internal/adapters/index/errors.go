package index

import "errors"

// Sentinel kinds for index errors.
var (
	ErrEmptyVector       = errors.New("empty feature vector")
	ErrDimensionMismatch = errors.New("feature vector dimension mismatch")
	ErrInvalidLimit      = errors.New("invalid query limit")
)
