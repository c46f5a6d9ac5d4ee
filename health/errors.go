package health

import "errors"

var (
	// ErrCheckTimeout is the Error of a check that did not answer before
	// the aggregator's deadline.
	ErrCheckTimeout = errors.New("health: check did not finish in time")

	// ErrCheckerNotFound is returned for a name nothing was registered under.
	ErrCheckerNotFound = errors.New("health: no check registered under that name")
)
