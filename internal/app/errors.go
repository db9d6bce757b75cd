package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted        = errors.New("service not started")
	ErrMissingPerception = errors.New("detector and encoder are required")
	ErrUnknownCamera     = errors.New("unknown camera")
	ErrEmptyIdentity     = errors.New("identity id must not be empty")
)
