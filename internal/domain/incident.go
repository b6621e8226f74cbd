package domain

import "time"

// IncidentStatus enumerates lifecycle states for incidents.
type IncidentStatus string

const (
	IncidentStatusSubmitted  IncidentStatus = "submitted"
	IncidentStatusTriaged    IncidentStatus = "triaged"
	IncidentStatusAssigned   IncidentStatus = "assigned"
	IncidentStatusInProgress IncidentStatus = "in_progress"
	IncidentStatusResolved   IncidentStatus = "resolved"
	IncidentStatusClosed     IncidentStatus = "closed"
	IncidentStatusRejected   IncidentStatus = "rejected"
	IncidentStatusEscalated  IncidentStatus = "escalated"
)

// IsTerminal reports whether no outgoing transitions exist for the status.
func (s IncidentStatus) IsTerminal() bool {
	return s == IncidentStatusClosed || s == IncidentStatusRejected
}

// IncidentPriority enumerates SLA urgency.
type IncidentPriority string

const (
	IncidentPriorityLow      IncidentPriority = "low"
	IncidentPriorityMedium   IncidentPriority = "medium"
	IncidentPriorityHigh     IncidentPriority = "high"
	IncidentPriorityCritical IncidentPriority = "critical"
)

// Valid reports whether the priority is a known value.
func (p IncidentPriority) Valid() bool {
	switch p {
	case IncidentPriorityLow, IncidentPriorityMedium, IncidentPriorityHigh, IncidentPriorityCritical:
		return true
	default:
		return false
	}
}

// Incident is the aggregate for citizen-reported issues.
type Incident struct {
	ID           string
	ReporterID   *string
	CategoryID   *string
	ZoneID       *string
	Title        string
	Description  string
	Status       IncidentStatus
	Priority     IncidentPriority
	LocationLat  *float64
	LocationLon  *float64
	LocationText *string
	IsPublic     bool
	Archived     bool
	Upvotes      int
	DuplicateOf  *string
	SlaDue       *time.Time
	ResolvedAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
