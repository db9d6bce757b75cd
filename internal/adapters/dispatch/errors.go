package dispatch

import "errors"

// Sentinel kinds for dispatcher errors.
var (
	ErrSubscriberExists   = errors.New("subscriber name already exists")
	ErrSubscriberNotFound = errors.New("subscriber name not found")
	ErrDispatcherClosed   = errors.New("dispatcher is closed")
	ErrNilHandler         = errors.New("subscriber handler is nil")
)
