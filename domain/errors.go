package domain

import "errors"

// ErrUnknownField is returned when a flag name does not exist on an entity.
var ErrUnknownField = errors.New("domain: unknown field")
