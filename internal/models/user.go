package models

import "strings"

// Applicant is the platform identity filling in the questionnaire.
type Applicant struct {
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName,omitempty"`
}

// Mention returns the display name when present, else the handle.
func (a Applicant) Mention() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Handle
}

type Reviewer struct {
	Handle string   `json:"handle"`
	Roles  []string `json:"roles"`
}

// HasAnyRole reports whether the reviewer holds at least one of roles.
func (r Reviewer) HasAnyRole(roles []string) bool {
	for _, have := range r.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// CleanNickname strips surrounding whitespace and the backticks applicants
// are asked to wrap their nickname in.
func CleanNickname(raw string) string {
	return strings.TrimSpace(strings.ReplaceAll(strings.TrimSpace(raw), "`", ""))
}
