package domain

import (
	"fmt"
	"time"
)

// Flag field names, as they appear on the wire.
const (
	FieldIsActive    = "isActive"
	FieldIsModerator = "isModerator"
	FieldIsPublished = "isPublished"
)

// Entity is a server-owned record with a stable id.
type Entity interface {
	EntityID() string
	Created() time.Time
}

// Flaggable is an Entity with boolean fields that can be toggled.
// WithFlag returns a modified copy and must not change the receiver.
type Flaggable[T any] interface {
	Entity
	Flag(field string) (bool, error)
	WithFlag(field string, value bool) (T, error)
	DisplayName() string
}

// Lecturer is a supervisor account.
type Lecturer struct {
	ID          string    `json:"id"`
	FullName    string    `json:"fullName"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phoneNumber,omitempty"`
	Gender      string    `json:"gender,omitempty"`
	IsActive    bool      `json:"isActive"`
	IsModerator bool      `json:"isModerator"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (l Lecturer) EntityID() string    { return l.ID }
func (l Lecturer) Created() time.Time  { return l.CreatedAt }
func (l Lecturer) DisplayName() string { return l.FullName }

func (l Lecturer) Flag(field string) (bool, error) {
	switch field {
	case FieldIsActive:
		return l.IsActive, nil
	case FieldIsModerator:
		return l.IsModerator, nil
	}
	return false, fmt.Errorf("%w: lecturer has no %q", ErrUnknownField, field)
}

func (l Lecturer) WithFlag(field string, value bool) (Lecturer, error) {
	switch field {
	case FieldIsActive:
		l.IsActive = value
	case FieldIsModerator:
		l.IsModerator = value
	default:
		return l, fmt.Errorf("%w: lecturer has no %q", ErrUnknownField, field)
	}
	return l, nil
}

// Thesis is a thesis proposal.
type Thesis struct {
	ID             string    `json:"id"`
	EnglishName    string    `json:"englishName"`
	VietnameseName string    `json:"vietnameseName,omitempty"`
	Abbreviation   string    `json:"abbreviation,omitempty"`
	Description    string    `json:"description,omitempty"`
	Domain         string    `json:"domain,omitempty"`
	Status         string    `json:"status"`
	IsPublished    bool      `json:"isPublished"`
	LecturerID     string    `json:"lecturerId"`
	SemesterID     string    `json:"semesterId"`
	GroupID        *string   `json:"groupId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func (t Thesis) EntityID() string    { return t.ID }
func (t Thesis) Created() time.Time  { return t.CreatedAt }
func (t Thesis) DisplayName() string { return t.EnglishName }

func (t Thesis) Flag(field string) (bool, error) {
	if field == FieldIsPublished {
		return t.IsPublished, nil
	}
	return false, fmt.Errorf("%w: thesis has no %q", ErrUnknownField, field)
}

func (t Thesis) WithFlag(field string, value bool) (Thesis, error) {
	if field != FieldIsPublished {
		return t, fmt.Errorf("%w: thesis has no %q", ErrUnknownField, field)
	}
	t.IsPublished = value
	return t, nil
}

// Milestone is a dated checkpoint within a semester.
type Milestone struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	SemesterID string    `json:"semesterId"`
	StartDate  time.Time `json:"startDate"`
	EndDate    time.Time `json:"endDate"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (m Milestone) EntityID() string   { return m.ID }
func (m Milestone) Created() time.Time { return m.CreatedAt }

// Group is a student project group.
type Group struct {
	ID               string    `json:"id"`
	Code             string    `json:"code"`
	Name             string    `json:"name"`
	ProjectDirection string    `json:"projectDirection,omitempty"`
	SemesterID       string    `json:"semesterId"`
	ThesisID         *string   `json:"thesisId,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func (g Group) EntityID() string   { return g.ID }
func (g Group) Created() time.Time { return g.CreatedAt }

var (
	_ Flaggable[Lecturer] = Lecturer{}
	_ Flaggable[Thesis]   = Thesis{}
	_ Entity              = Milestone{}
	_ Entity              = Group{}
)
