package domain

import "time"

// Assignment links an incident to an authority unit. Assignments are never
// deleted; reassignment and escalation supersede them instead.
type Assignment struct {
	ID              string
	IncidentID      string
	AuthorityUnitID string
	AssignedBy      *string
	AssignedAt      time.Time
	Deadline        *time.Time
	Accepted        bool
	AcceptedAt      *time.Time
	SupersededAt    *time.Time
	Notes           string
}

// Active reports whether the assignment has not been superseded.
func (a *Assignment) Active() bool {
	return a.SupersededAt == nil
}

// Acted reports whether the unit already accepted or rejected the assignment.
func (a *Assignment) Acted() bool {
	return a.AcceptedAt != nil
}
