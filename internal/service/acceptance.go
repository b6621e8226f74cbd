package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/events"
	"github.com/spec-kit/incident-service/internal/repository"
	apperrors "github.com/spec-kit/incident-service/pkg/util"
)

// AcceptanceService records authority unit acceptance or rejection of an
// assignment. Acceptance alone never changes incident status; starting work
// is a separate explicit transition so "accepted but not started" stays
// observable.
type AcceptanceService struct {
	assignments repository.AssignmentRepository
	units       repository.AuthorityUnitRepository
	lifecycle   *LifecycleService
	dispatcher  events.Dispatcher
	logger      *zap.Logger
}

// NewAcceptanceService creates the service.
func NewAcceptanceService(assignments repository.AssignmentRepository, units repository.AuthorityUnitRepository, lifecycle *LifecycleService, dispatcher events.Dispatcher, logger *zap.Logger) *AcceptanceService {
	return &AcceptanceService{
		assignments: assignments,
		units:       units,
		lifecycle:   lifecycle,
		dispatcher:  dispatcher,
		logger:      logger,
	}
}

// Accept marks the assignment accepted. Repeats surface ALREADY_ACTED as a
// conflict, never a silent success.
func (s *AcceptanceService) Accept(ctx context.Context, actor domain.Actor, assignmentID string) (*domain.Assignment, error) {
	assignment, unit, err := s.authorize(ctx, actor, assignmentID)
	if err != nil {
		return nil, err
	}

	now := timeNow()
	if err := s.assignments.RecordAcceptance(ctx, assignment.ID, true, now); err != nil {
		return nil, mapAcceptanceErr(err, assignment.ID)
	}
	assignment.Accepted = true
	assignment.AcceptedAt = &now

	s.publishActed(ctx, actor, events.EventAssignmentAccepted, assignment, unit)
	s.logger.Info("assignment accepted",
		zap.String("assignment_id", assignment.ID),
		zap.String("unit_id", unit.ID),
	)
	return assignment, nil
}

// Reject records the refusal and escalates the incident back into the
// assignment pool through the validated transition path.
func (s *AcceptanceService) Reject(ctx context.Context, actor domain.Actor, assignmentID, note string) (*domain.Assignment, error) {
	assignment, unit, err := s.authorize(ctx, actor, assignmentID)
	if err != nil {
		return nil, err
	}

	now := timeNow()
	if err := s.assignments.RecordAcceptance(ctx, assignment.ID, false, now); err != nil {
		return nil, mapAcceptanceErr(err, assignment.ID)
	}
	assignment.Accepted = false
	assignment.AcceptedAt = &now

	if note == "" {
		note = "assignment rejected by " + unit.Name
	}
	if _, err := s.lifecycle.ManualTransition(ctx, actor, assignment.IncidentID, domain.IncidentStatusEscalated, note); err != nil {
		// The refusal is already durable; an escalation defeated by the
		// incident moving on concurrently is skipped, not rolled back, so a
		// retry never trips ALREADY_ACTED on a recorded refusal.
		if !apperrors.IsCode(err, "INVALID_TRANSITION") && !apperrors.IsCode(err, "CONCURRENT_MODIFICATION") {
			return nil, err
		}
		s.logger.Warn("rejection recorded but escalation skipped",
			zap.String("assignment_id", assignment.ID),
			zap.Error(err),
		)
	}

	s.publishActed(ctx, actor, events.EventAssignmentRejected, assignment, unit)
	return assignment, nil
}

// authorize loads the assignment and verifies the actor is the authority
// owning the referenced unit.
func (s *AcceptanceService) authorize(ctx context.Context, actor domain.Actor, assignmentID string) (*domain.Assignment, *domain.AuthorityUnit, error) {
	if actor.System() || actor.Role != domain.RoleAuthority {
		return nil, nil, apperrors.NewNotAuthorized("authority role required")
	}

	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewNotFound("assignment", map[string]any{"assignment_id": assignmentID})
		}
		return nil, nil, apperrors.MapError(err)
	}
	if !assignment.Active() {
		return nil, nil, apperrors.NewConflict("assignment superseded", map[string]any{"assignment_id": assignmentID})
	}
	if assignment.Acted() {
		return nil, nil, apperrors.NewAlreadyActed(assignmentID)
	}

	unit, err := s.units.GetByID(ctx, assignment.AuthorityUnitID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewNotFound("authority unit", map[string]any{"unit_id": assignment.AuthorityUnitID})
		}
		return nil, nil, apperrors.MapError(err)
	}
	if unit.ProfileID == nil || *unit.ProfileID != actor.ProfileID {
		return nil, nil, apperrors.NewNotAuthorized("assignment belongs to another unit")
	}
	return assignment, unit, nil
}

func (s *AcceptanceService) publishActed(ctx context.Context, actor domain.Actor, eventType events.EventType, assignment *domain.Assignment, unit *domain.AuthorityUnit) {
	if s.dispatcher == nil {
		return
	}
	actorID := actor.ProfileID
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		IncidentID: assignment.IncidentID,
		Actor:      events.Actor{ProfileID: &actorID, Role: actor.Role},
		Timestamp:  timeNow(),
		Payload: events.AssignmentActedPayload{
			AssignmentID:    assignment.ID,
			AuthorityUnitID: unit.ID,
			Accepted:        assignment.Accepted,
		},
	})
}

func mapAcceptanceErr(err error, assignmentID string) error {
	switch {
	case errors.Is(err, repository.ErrAlreadyActed):
		return apperrors.NewAlreadyActed(assignmentID)
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.NewNotFound("assignment", map[string]any{"assignment_id": assignmentID})
	default:
		return apperrors.MapError(err)
	}
}
