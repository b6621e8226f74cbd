package domain

import "time"

// Comment is a citizen-visible message on an incident.
type Comment struct {
	ID          string
	IncidentID  string
	CommenterID *string
	Message     string
	IsAnonymous bool
	CreatedAt   time.Time
}

// Response is an authority-side update posted against an incident.
type Response struct {
	ID              string
	IncidentID      string
	AuthorityUnitID *string
	ResponderID     *string
	Message         string
	MediaPaths      []string
	CreatedAt       time.Time
}

// IncidentPhoto stores metadata for an uploaded photo. The bytes live in the
// blob store under BucketPath and are never inspected by the engine.
type IncidentPhoto struct {
	ID         string
	IncidentID string
	BucketPath string
	FileName   string
	FileSize   int64
	UploadedBy *string
	UploadedAt time.Time
}
