package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/events"
	"github.com/spec-kit/incident-service/internal/repository"
	"github.com/spec-kit/incident-service/internal/storage"
	apperrors "github.com/spec-kit/incident-service/pkg/util"
)

// IncidentService serves the read side and the thin collaboration features
// around incidents: listings, detail views, comments, authority responses,
// photos and upvotes. Status never changes here; that is the lifecycle
// service's job.
type IncidentService struct {
	incidents   repository.IncidentRepository
	statusLog   repository.StatusLogRepository
	assignments repository.AssignmentRepository
	units       repository.AuthorityUnitRepository
	comments    repository.CommentRepository
	responses   repository.ResponseRepository
	photos      repository.PhotoRepository
	blobs       storage.BlobStore
	dispatcher  events.Dispatcher
}

// IncidentDependencies bundles repositories for the query service.
type IncidentDependencies struct {
	IncidentRepo   repository.IncidentRepository
	StatusLogRepo  repository.StatusLogRepository
	AssignmentRepo repository.AssignmentRepository
	UnitRepo       repository.AuthorityUnitRepository
	CommentRepo    repository.CommentRepository
	ResponseRepo   repository.ResponseRepository
	PhotoRepo      repository.PhotoRepository
	BlobStore      storage.BlobStore
	Dispatcher     events.Dispatcher
}

// NewIncidentService constructs the service.
func NewIncidentService(deps IncidentDependencies) *IncidentService {
	return &IncidentService{
		incidents:   deps.IncidentRepo,
		statusLog:   deps.StatusLogRepo,
		assignments: deps.AssignmentRepo,
		units:       deps.UnitRepo,
		comments:    deps.CommentRepo,
		responses:   deps.ResponseRepo,
		photos:      deps.PhotoRepo,
		blobs:       deps.BlobStore,
		dispatcher:  deps.Dispatcher,
	}
}

// IncidentDetail aggregates everything a detail view needs.
type IncidentDetail struct {
	Incident  *domain.Incident
	StatusLog []domain.StatusLogEntry
	Comments  []domain.Comment
	Responses []domain.Response
	Photos    []domain.IncidentPhoto
	PhotoURLs map[string]string
}

// ListPublic returns public incidents matching the filter.
func (s *IncidentService) ListPublic(ctx context.Context, filter repository.IncidentFilter) ([]domain.Incident, error) {
	filter.PublicOnly = true
	list, err := s.incidents.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return list, nil
}

// ListForStaff returns incidents regardless of visibility. Authority and
// admin only.
func (s *IncidentService) ListForStaff(ctx context.Context, actor domain.Actor, filter repository.IncidentFilter) ([]domain.Incident, error) {
	if actor.Role != domain.RoleAuthority && actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewNotAuthorized("authority role required")
	}
	list, err := s.incidents.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return list, nil
}

// ListMine returns the caller's own reports.
func (s *IncidentService) ListMine(ctx context.Context, actor domain.Actor, filter repository.IncidentFilter) ([]domain.Incident, error) {
	reporterID := actor.ProfileID
	filter.ReporterID = &reporterID
	list, err := s.incidents.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return list, nil
}

// ListUnitQueue returns active assignments for the actor's unit.
func (s *IncidentService) ListUnitQueue(ctx context.Context, actor domain.Actor) ([]domain.Assignment, error) {
	unit, err := s.unitForActor(ctx, actor)
	if err != nil {
		return nil, err
	}
	list, err := s.assignments.ListActiveByUnit(ctx, unit.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return list, nil
}

// GetDetail returns the incident with its audit trail, comments, responses
// and signed photo URLs. Private incidents are visible to the reporter,
// authorities and admins only.
func (s *IncidentService) GetDetail(ctx context.Context, actor domain.Actor, incidentID string) (*IncidentDetail, error) {
	incident, err := s.getVisible(ctx, actor, incidentID)
	if err != nil {
		return nil, err
	}

	log, err := s.statusLog.ListByIncident(ctx, incident.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	comments, err := s.comments.ListByIncident(ctx, incident.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	responses, err := s.responses.ListByIncident(ctx, incident.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	photos, err := s.photos.ListByIncident(ctx, incident.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	urls := make(map[string]string, len(photos))
	for i := range photos {
		url, err := s.blobs.SignedURL(photos[i].BucketPath, 0)
		if err != nil {
			continue
		}
		urls[photos[i].ID] = url
	}

	return &IncidentDetail{
		Incident:  incident,
		StatusLog: log,
		Comments:  comments,
		Responses: responses,
		Photos:    photos,
		PhotoURLs: urls,
	}, nil
}

// AddComment appends a citizen-visible comment.
func (s *IncidentService) AddComment(ctx context.Context, actor domain.Actor, incidentID, message string, anonymous bool) (*domain.Comment, error) {
	if strings.TrimSpace(message) == "" {
		return nil, apperrors.NewValidationError("message required", nil)
	}
	incident, err := s.getVisible(ctx, actor, incidentID)
	if err != nil {
		return nil, err
	}

	comment := &domain.Comment{
		IncidentID:  incident.ID,
		Message:     strings.TrimSpace(message),
		IsAnonymous: anonymous,
	}
	if !anonymous {
		commenterID := actor.ProfileID
		comment.CommenterID = &commenterID
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, actor, events.Event{
		Type:       events.EventCommentAdded,
		IncidentID: incident.ID,
		Payload:    events.CommentAddedPayload{CommentID: comment.ID, IsAnonymous: anonymous},
	})
	return comment, nil
}

// AddResponse posts an authority update, optionally referencing media paths
// already placed in the blob store.
func (s *IncidentService) AddResponse(ctx context.Context, actor domain.Actor, incidentID, message string, mediaPaths []string) (*domain.Response, error) {
	if actor.Role != domain.RoleAuthority && actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewNotAuthorized("authority role required")
	}
	if strings.TrimSpace(message) == "" {
		return nil, apperrors.NewValidationError("message required", nil)
	}
	incident, err := s.getVisible(ctx, actor, incidentID)
	if err != nil {
		return nil, err
	}

	responderID := actor.ProfileID
	response := &domain.Response{
		IncidentID:  incident.ID,
		ResponderID: &responderID,
		Message:     strings.TrimSpace(message),
		MediaPaths:  mediaPaths,
	}
	if unit, err := s.units.GetByProfile(ctx, actor.ProfileID); err == nil {
		response.AuthorityUnitID = &unit.ID
	}
	if err := s.responses.Create(ctx, response); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, actor, events.Event{
		Type:       events.EventResponseAdded,
		IncidentID: incident.ID,
		Payload:    events.ResponseAddedPayload{ResponseID: response.ID, AuthorityUnitID: response.AuthorityUnitID},
	})
	return response, nil
}

// AttachPhoto stores photo bytes in the blob store and records the metadata.
func (s *IncidentService) AttachPhoto(ctx context.Context, actor domain.Actor, incidentID, fileName string, data []byte) (*domain.IncidentPhoto, error) {
	incident, err := s.getVisible(ctx, actor, incidentID)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, apperrors.NewValidationError("empty photo payload", nil)
	}

	path := incident.ID + "/" + uuid.NewString()
	storedPath, err := s.blobs.Put(path, data)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	uploaderID := actor.ProfileID
	photo := &domain.IncidentPhoto{
		IncidentID: incident.ID,
		BucketPath: storedPath,
		FileName:   fileName,
		FileSize:   int64(len(data)),
		UploadedBy: &uploaderID,
	}
	if err := s.photos.Create(ctx, photo); err != nil {
		return nil, apperrors.MapError(err)
	}
	return photo, nil
}

// Upvote bumps visibility of a public incident.
func (s *IncidentService) Upvote(ctx context.Context, actor domain.Actor, incidentID string) error {
	incident, err := s.getVisible(ctx, actor, incidentID)
	if err != nil {
		return err
	}
	if err := s.incidents.IncrementUpvotes(ctx, incident.ID); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// Archive flags an incident as archived. Records are never physically
// deleted.
func (s *IncidentService) Archive(ctx context.Context, actor domain.Actor, incidentID string) error {
	if actor.Role != domain.RoleAdmin {
		return apperrors.NewNotAuthorized("admin role required")
	}
	if err := s.incidents.SetArchived(ctx, incidentID, true); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("incident", map[string]any{"incident_id": incidentID})
		}
		return apperrors.MapError(err)
	}
	return nil
}

// MarkDuplicate links an incident to the one it duplicates. The target must
// exist, differ from the incident and not itself point back (no cycles).
func (s *IncidentService) MarkDuplicate(ctx context.Context, actor domain.Actor, incidentID, duplicateOf string) error {
	if actor.Role != domain.RoleAdmin {
		return apperrors.NewNotAuthorized("admin role required")
	}
	if incidentID == duplicateOf {
		return apperrors.NewValidationError("incident cannot duplicate itself", nil)
	}
	target, err := s.incidents.GetByID(ctx, duplicateOf)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("incident", map[string]any{"incident_id": duplicateOf})
		}
		return apperrors.MapError(err)
	}
	// Walk the duplicate chain from the target; hitting the incident again
	// would close a cycle.
	for target.DuplicateOf != nil {
		if *target.DuplicateOf == incidentID {
			return apperrors.NewConflict("duplicate link would form a cycle", map[string]any{"incident_id": incidentID})
		}
		target, err = s.incidents.GetByID(ctx, *target.DuplicateOf)
		if err != nil {
			break
		}
	}
	if err := s.incidents.SetDuplicateOf(ctx, incidentID, &duplicateOf); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("incident", map[string]any{"incident_id": incidentID})
		}
		return apperrors.MapError(err)
	}
	return nil
}

func (s *IncidentService) getVisible(ctx context.Context, actor domain.Actor, incidentID string) (*domain.Incident, error) {
	incident, err := s.incidents.GetByID(ctx, incidentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("incident", map[string]any{"incident_id": incidentID})
		}
		return nil, apperrors.MapError(err)
	}
	if incident.IsPublic {
		return incident, nil
	}
	switch {
	case actor.Role == domain.RoleAdmin, actor.Role == domain.RoleAuthority:
		return incident, nil
	case incident.ReporterID != nil && *incident.ReporterID == actor.ProfileID:
		return incident, nil
	default:
		return nil, apperrors.NewForbidden("incident is private")
	}
}

func (s *IncidentService) unitForActor(ctx context.Context, actor domain.Actor) (*domain.AuthorityUnit, error) {
	if actor.Role != domain.RoleAuthority {
		return nil, apperrors.NewNotAuthorized("authority role required")
	}
	unit, err := s.units.GetByProfile(ctx, actor.ProfileID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("authority unit", map[string]any{"profile_id": actor.ProfileID})
		}
		return nil, apperrors.MapError(err)
	}
	return unit, nil
}

func (s *IncidentService) publishEvent(ctx context.Context, actor domain.Actor, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = timeNow()
	}
	event.Actor = eventActor(actor)
	_ = s.dispatcher.Publish(ctx, event)
}
