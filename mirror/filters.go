package mirror

import (
	"strings"

	"github.com/5-logic/the-sync-frontend-sub001/domain"
	"github.com/5-logic/the-sync-frontend-sub001/store"
)

// Filter keys understood by the entity stores, besides store.SearchKey.
const (
	// FilterStatus is "active" or "inactive" for lecturers and the thesis
	// status (case-insensitive) for theses.
	FilterStatus     = "status"
	FilterModerator  = domain.FieldIsModerator
	FilterPublished  = domain.FieldIsPublished
	FilterSemesterID = "semesterId"
	FilterLecturerID = "lecturerId"
)

func lecturerFilter(l domain.Lecturer, f store.Filters) bool {
	if status, ok := f.String(FilterStatus); ok {
		switch strings.ToLower(status) {
		case "active":
			if !l.IsActive {
				return false
			}
		case "inactive":
			if l.IsActive {
				return false
			}
		}
	}
	if moderator, ok := f.Bool(FilterModerator); ok && l.IsModerator != moderator {
		return false
	}
	return true
}

func lecturerSearch(l domain.Lecturer) []string {
	return []string{l.FullName, l.Email, l.PhoneNumber}
}

func thesisFilter(t domain.Thesis, f store.Filters) bool {
	if status, ok := f.String(FilterStatus); ok && !strings.EqualFold(t.Status, status) {
		return false
	}
	if published, ok := f.Bool(FilterPublished); ok && t.IsPublished != published {
		return false
	}
	if semester, ok := f.String(FilterSemesterID); ok && t.SemesterID != semester {
		return false
	}
	if lecturer, ok := f.String(FilterLecturerID); ok && t.LecturerID != lecturer {
		return false
	}
	return true
}

func thesisSearch(t domain.Thesis) []string {
	return []string{t.EnglishName, t.VietnameseName, t.Abbreviation, t.Domain}
}

func milestoneFilter(m domain.Milestone, f store.Filters) bool {
	semester, ok := f.String(FilterSemesterID)
	return !ok || m.SemesterID == semester
}

func milestoneSearch(m domain.Milestone) []string {
	return []string{m.Name}
}

func groupFilter(g domain.Group, f store.Filters) bool {
	semester, ok := f.String(FilterSemesterID)
	return !ok || g.SemesterID == semester
}

func groupSearch(g domain.Group) []string {
	return []string{g.Code, g.Name, g.ProjectDirection}
}
