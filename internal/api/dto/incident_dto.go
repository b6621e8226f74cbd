package dto

import (
	"time"

	"github.com/spec-kit/incident-service/internal/domain"
)

// CreateIncidentRequest payload.
type CreateIncidentRequest struct {
	Title        string                  `json:"title"`
	Description  string                  `json:"description"`
	CategoryID   *string                 `json:"category_id"`
	ZoneID       *string                 `json:"zone_id"`
	Priority     domain.IncidentPriority `json:"priority"`
	LocationLat  *float64                `json:"location_lat"`
	LocationLon  *float64                `json:"location_lon"`
	LocationText *string                 `json:"location_text"`
	IsPublic     *bool                   `json:"is_public"`
}

// TransitionRequest payload for status changes.
type TransitionRequest struct {
	Status domain.IncidentStatus `json:"status"`
	Note   string                `json:"note"`
}

// RetriageRequest payload.
type RetriageRequest struct {
	Priority   domain.IncidentPriority `json:"priority"`
	CategoryID *string                 `json:"category_id"`
	ZoneID     *string                 `json:"zone_id"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Message     string `json:"message"`
	IsAnonymous bool   `json:"is_anonymous"`
}

// CreateResponseRequest payload.
type CreateResponseRequest struct {
	Message    string   `json:"message"`
	MediaPaths []string `json:"media_paths"`
}

// RejectAssignmentRequest payload.
type RejectAssignmentRequest struct {
	Note string `json:"note"`
}

// MarkDuplicateRequest payload.
type MarkDuplicateRequest struct {
	DuplicateOf string `json:"duplicate_of"`
}

// IncidentSummary response.
type IncidentSummary struct {
	ID         string                  `json:"id"`
	Title      string                  `json:"title"`
	Status     domain.IncidentStatus   `json:"status"`
	Priority   domain.IncidentPriority `json:"priority"`
	CategoryID *string                 `json:"category_id"`
	ZoneID     *string                 `json:"zone_id"`
	IsPublic   bool                    `json:"is_public"`
	Upvotes    int                     `json:"upvotes"`
	SlaDue     *time.Time              `json:"sla_due"`
	CreatedAt  time.Time               `json:"created_at"`
	UpdatedAt  time.Time               `json:"updated_at"`
}

// IncidentDetailResponse provides full incident info.
type IncidentDetailResponse struct {
	IncidentSummary
	Description  string              `json:"description"`
	ReporterID   *string             `json:"reporter_id"`
	LocationLat  *float64            `json:"location_lat"`
	LocationLon  *float64            `json:"location_lon"`
	LocationText *string             `json:"location_text"`
	DuplicateOf  *string             `json:"duplicate_of"`
	ResolvedAt   *time.Time          `json:"resolved_at"`
	StatusLog    []StatusLogResponse `json:"status_log"`
	Comments     []CommentResponse   `json:"comments"`
	Responses    []ResponseResponse  `json:"responses"`
	Photos       []PhotoResponse     `json:"photos"`
}

// StatusLogResponse is one audit trail entry.
type StatusLogResponse struct {
	ID        string                 `json:"id"`
	OldStatus *domain.IncidentStatus `json:"old_status"`
	NewStatus domain.IncidentStatus  `json:"new_status"`
	ChangedBy *string                `json:"changed_by"`
	Note      string                 `json:"note,omitempty"`
	ChangedAt time.Time              `json:"changed_at"`
}

// CommentResponse is a citizen comment.
type CommentResponse struct {
	ID          string    `json:"id"`
	CommenterID *string   `json:"commenter_id"`
	Message     string    `json:"message"`
	IsAnonymous bool      `json:"is_anonymous"`
	CreatedAt   time.Time `json:"created_at"`
}

// ResponseResponse is an authority update.
type ResponseResponse struct {
	ID              string    `json:"id"`
	AuthorityUnitID *string   `json:"authority_unit_id"`
	ResponderID     *string   `json:"responder_id"`
	Message         string    `json:"message"`
	MediaPaths      []string  `json:"media_paths"`
	CreatedAt       time.Time `json:"created_at"`
}

// PhotoResponse photo metadata with a signed download URL.
type PhotoResponse struct {
	ID       string `json:"id"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
	URL      string `json:"url,omitempty"`
}

// AssignmentResponse is an assignment record.
type AssignmentResponse struct {
	ID              string     `json:"id"`
	IncidentID      string     `json:"incident_id"`
	AuthorityUnitID string     `json:"authority_unit_id"`
	AssignedAt      time.Time  `json:"assigned_at"`
	Deadline        *time.Time `json:"deadline"`
	Accepted        bool       `json:"accepted"`
	AcceptedAt      *time.Time `json:"accepted_at"`
	SupersededAt    *time.Time `json:"superseded_at"`
	Notes           string     `json:"notes,omitempty"`
}

// SweepResultResponse summarizes a manual sweep run.
type SweepResultResponse struct {
	Escalated  int `json:"escalated"`
	Reassigned int `json:"reassigned"`
	Skipped    int `json:"skipped"`
}
