package domain

import (
	"fmt"
	"strings"
)

// Entity-type names, used as API paths, cache names and metric labels.
const (
	Lecturers  = "lecturers"
	Theses     = "theses"
	Milestones = "milestones"
	Groups     = "groups"
)

// Wording phrases toggle notifications for one entity type.
type Wording struct {
	// Noun is the singular, capitalised entity name, e.g. "Lecturer".
	Noun string
}

// WordingFor returns the wording for an entity-type name.
func WordingFor(entityType string) Wording {
	switch entityType {
	case Lecturers:
		return Wording{Noun: "Lecturer"}
	case Theses:
		return Wording{Noun: "Thesis"}
	case Milestones:
		return Wording{Noun: "Milestone"}
	case Groups:
		return Wording{Noun: "Group"}
	}
	return Wording{Noun: "Item"}
}

// Success returns the notification for a committed toggle,
// e.g. "Lecturer deactivated" / "Jane Doe has been deactivated.".
func (w Wording) Success(name, field string, value bool) (title, body string) {
	past := verb(field, value).past
	title = fmt.Sprintf("%s %s", w.Noun, past)
	if name == "" {
		name = "The " + strings.ToLower(w.Noun)
	}
	body = fmt.Sprintf("%s has been %s.", name, past)
	return title, body
}

// Failure returns the notification for a rolled-back toggle.
func (w Wording) Failure(field string, value bool, err error) (title, body string) {
	title = fmt.Sprintf("Failed to %s %s", verb(field, value).base, strings.ToLower(w.Noun))
	body = "The change has been reverted."
	if err != nil {
		body = fmt.Sprintf("%s The change has been reverted.", strings.TrimSuffix(err.Error(), ".")+".")
	}
	return title, body
}

type verbForms struct {
	base string
	past string
}

func verb(field string, value bool) verbForms {
	switch field {
	case FieldIsActive:
		if value {
			return verbForms{"activate", "activated"}
		}
		return verbForms{"deactivate", "deactivated"}
	case FieldIsModerator:
		if value {
			return verbForms{"promote", "promoted to moderator"}
		}
		return verbForms{"demote", "removed as moderator"}
	case FieldIsPublished:
		if value {
			return verbForms{"publish", "published"}
		}
		return verbForms{"unpublish", "unpublished"}
	}
	return verbForms{"update", "updated"}
}
