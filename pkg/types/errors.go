package types

import "errors"

// Event-related errors
var (
	// ErrInvalidEvent is returned when an event lacks its kind
	ErrInvalidEvent = errors.New("invalid event")

	// ErrMissingTimestamp is returned when an event has no usable created_at
	ErrMissingTimestamp = errors.New("event timestamp missing")
)
