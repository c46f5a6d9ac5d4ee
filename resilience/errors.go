package resilience

import "errors"

var (
	// ErrCircuitOpen is returned without calling the backend while the
	// breaker is open or its half-open probe quota is used up.
	ErrCircuitOpen = errors.New("resilience: circuit open, backend not called")

	// ErrMaxRetriesExceeded is wrapped together with the final error once
	// every attempt has failed.
	ErrMaxRetriesExceeded = errors.New("resilience: retry attempts exhausted")
)
