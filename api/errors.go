package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNetwork wraps transport failures: the request never produced a response.
var ErrNetwork = errors.New("api: network error")

// ServerError is a response the backend rejected, either with a non-2xx
// status or with success=false.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: server returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("api: %s (status %d)", e.Message, e.StatusCode)
}

// StatusCode extracts the HTTP status from err, or 0 when err carries none.
func StatusCode(err error) int {
	var se *ServerError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// Message returns the user-facing text for err: the server's own message
// when it sent one.
func Message(err error) string {
	var se *ServerError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	if errors.Is(err, ErrNetwork) {
		return "Network error. Please check your connection."
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// Transient reports whether err is worth retrying: network failures and 5xx.
func Transient(err error) bool {
	if errors.Is(err, ErrNetwork) {
		return true
	}
	return StatusCode(err) >= http.StatusInternalServerError
}
