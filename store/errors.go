package store

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when an id is not in the collection.
var ErrNotFound = errors.New("store: item not found")

// Error is the structured form of the last fetch failure.
type Error struct {
	Message    string    `json:"message"`
	StatusCode int       `json:"statusCode,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}
