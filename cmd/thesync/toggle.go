package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/5-logic/the-sync-frontend-sub001/domain"
)

// toggleRequest is a parsed -toggle flag: entity/id:field=value.
type toggleRequest struct {
	entity string
	id     string
	field  string
	value  bool
}

var errToggleSyntax = errors.New("toggle must look like entity/id:field=true|false")

func parseToggle(s string) (toggleRequest, error) {
	target, assignment, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return toggleRequest{}, errToggleSyntax
	}
	entity, id, ok := strings.Cut(target, "/")
	if !ok || entity == "" || id == "" {
		return toggleRequest{}, errToggleSyntax
	}
	field, raw, ok := strings.Cut(assignment, "=")
	if !ok || field == "" {
		return toggleRequest{}, errToggleSyntax
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return toggleRequest{}, fmt.Errorf("%w: %v", errToggleSyntax, err)
	}

	switch entity {
	case domain.Lecturers, domain.Theses:
	default:
		return toggleRequest{}, fmt.Errorf("%s has no toggleable fields", entity)
	}
	return toggleRequest{entity: entity, id: id, field: field, value: value}, nil
}
