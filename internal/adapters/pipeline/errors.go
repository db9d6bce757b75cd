package pipeline

import "errors"

// Sentinel kinds for pipeline errors.
var (
	ErrQueueClosed = errors.New("work queue is closed")
)
