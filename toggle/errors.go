package toggle

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("toggle: coordinator is closed")

	// ErrUnknownEntity is wrapped by ValidationError when the id is not in
	// the collection.
	ErrUnknownEntity = errors.New("toggle: entity not in collection")

	// ErrStaleOperation marks an operation that lost ownership of its id.
	// It never leaves the package.
	ErrStaleOperation = errors.New("toggle: operation is stale")
)

// ValidationError rejects a toggle before any state changes: the id is not
// in the collection or the field is not a flag of the entity.
type ValidationError struct {
	EntityID string
	Field    string
	Err      error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("toggle: invalid toggle of %q on %q: %v", e.Field, e.EntityID, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
