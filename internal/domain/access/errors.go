package access

import "errors"

// Sentinel kinds for access configuration errors.
var (
	ErrMalformedWindow = errors.New("malformed schedule window")
)
