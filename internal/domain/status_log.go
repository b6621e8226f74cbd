package domain

import "time"

// StatusLogEntry is an immutable audit record of one status change.
// ChangedBy is nil for system-generated transitions (SLA sweep) and
// OldStatus is nil for the creation entry.
type StatusLogEntry struct {
	ID         string
	IncidentID string
	OldStatus  *IncidentStatus
	NewStatus  IncidentStatus
	ChangedBy  *string
	Note       string
	ChangedAt  time.Time
}
