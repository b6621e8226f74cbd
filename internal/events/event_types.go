package events

import (
	"time"

	"github.com/spec-kit/incident-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventIncidentSubmitted     EventType = "incident_submitted"
	EventIncidentStatusChanged EventType = "incident_status_changed"
	EventIncidentAssigned      EventType = "incident_assigned"
	EventIncidentEscalated     EventType = "incident_escalated"
	EventAssignmentAccepted    EventType = "assignment_accepted"
	EventAssignmentRejected    EventType = "assignment_rejected"
	EventCommentAdded          EventType = "comment_added"
	EventResponseAdded         EventType = "response_added"
)

// Actor encapsulates actor metadata for an event. A nil ProfileID means the
// system (SLA sweep) produced the event.
type Actor struct {
	ProfileID *string     `json:"profile_id,omitempty"`
	Role      domain.Role `json:"role,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID         string      `json:"id"`
	Type       EventType   `json:"type"`
	IncidentID string      `json:"incident_id"`
	Actor      Actor       `json:"actor"`
	Timestamp  time.Time   `json:"timestamp"`
	Payload    interface{} `json:"payload"`
}

// IncidentSubmittedPayload payload.
type IncidentSubmittedPayload struct {
	Title    string                  `json:"title"`
	Priority domain.IncidentPriority `json:"priority"`
	ZoneID   *string                 `json:"zone_id,omitempty"`
	SlaDue   *time.Time              `json:"sla_due,omitempty"`
}

// StatusChangedPayload payload.
type StatusChangedPayload struct {
	OldStatus domain.IncidentStatus `json:"old_status"`
	NewStatus domain.IncidentStatus `json:"new_status"`
	Note      string                `json:"note,omitempty"`
}

// IncidentAssignedPayload payload.
type IncidentAssignedPayload struct {
	AssignmentID    string     `json:"assignment_id"`
	AuthorityUnitID string     `json:"authority_unit_id"`
	Deadline        *time.Time `json:"deadline,omitempty"`
}

// AssignmentActedPayload payload for accept/reject events.
type AssignmentActedPayload struct {
	AssignmentID    string `json:"assignment_id"`
	AuthorityUnitID string `json:"authority_unit_id"`
	Accepted        bool   `json:"accepted"`
}

// CommentAddedPayload payload.
type CommentAddedPayload struct {
	CommentID   string `json:"comment_id"`
	IsAnonymous bool   `json:"is_anonymous"`
}

// ResponseAddedPayload payload.
type ResponseAddedPayload struct {
	ResponseID      string  `json:"response_id"`
	AuthorityUnitID *string `json:"authority_unit_id,omitempty"`
}
