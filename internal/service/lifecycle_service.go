package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/events"
	"github.com/spec-kit/incident-service/internal/observability"
	"github.com/spec-kit/incident-service/internal/repository"
	apperrors "github.com/spec-kit/incident-service/pkg/util"
)

// timeNow is swapped in tests.
var timeNow = time.Now

// LifecycleService coordinates incident creation, status transitions and the
// periodic SLA sweep. Every status mutation commits atomically with its
// status log entry.
type LifecycleService struct {
	tx         repository.TxManager
	incidents  repository.IncidentRepository
	statusLog  repository.StatusLogRepository
	matcher    *AssignmentMatcher
	calendar   Calendar
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// LifecycleDependencies bundles collaborators.
type LifecycleDependencies struct {
	TxManager     repository.TxManager
	IncidentRepo  repository.IncidentRepository
	StatusLogRepo repository.StatusLogRepository
	Matcher       *AssignmentMatcher
	Calendar      Calendar
	Dispatcher    events.Dispatcher
	Logger        *zap.Logger
	Metrics       *observability.Metrics
}

// NewLifecycleService constructs the orchestrator.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	return &LifecycleService{
		tx:         deps.TxManager,
		incidents:  deps.IncidentRepo,
		statusLog:  deps.StatusLogRepo,
		matcher:    deps.Matcher,
		calendar:   deps.Calendar,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
	}
}

// IncidentCreateInput describes submission payload.
type IncidentCreateInput struct {
	Title        string
	Description  string
	CategoryID   *string
	ZoneID       *string
	Priority     domain.IncidentPriority
	LocationLat  *float64
	LocationLon  *float64
	LocationText *string
	IsPublic     bool
}

// RetriageInput describes a triage revision.
type RetriageInput struct {
	Priority   domain.IncidentPriority
	CategoryID *string
	ZoneID     *string
}

// SweepResult summarizes one sweep run.
type SweepResult struct {
	Escalated  int
	Reassigned int
	Skipped    int
}

// Submit creates an incident in submitted state with its SLA deadline and the
// creation log entry. Triage stays a manual authority action.
func (s *LifecycleService) Submit(ctx context.Context, reporter domain.Actor, input IncidentCreateInput) (*domain.Incident, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" || strings.TrimSpace(input.Description) == "" {
		return nil, apperrors.NewValidationError("title and description required", nil)
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.IncidentPriorityMedium
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": priority})
	}

	now := timeNow()
	slaDue := ComputeDeadline(now, priority, s.calendar)
	incident := &domain.Incident{
		Title:        title,
		Description:  strings.TrimSpace(input.Description),
		CategoryID:   input.CategoryID,
		ZoneID:       input.ZoneID,
		Priority:     priority,
		Status:       domain.IncidentStatusSubmitted,
		LocationLat:  input.LocationLat,
		LocationLon:  input.LocationLon,
		LocationText: input.LocationText,
		IsPublic:     input.IsPublic,
		SlaDue:       &slaDue,
	}
	if !reporter.System() {
		reporterID := reporter.ProfileID
		incident.ReporterID = &reporterID
	}

	err := s.tx.InTx(ctx, func(stores repository.Stores) error {
		if err := stores.Incidents.Create(ctx, incident); err != nil {
			return apperrors.MapError(err)
		}
		return appendStatusLog(ctx, stores.StatusLog, incident.ID, nil, domain.IncidentStatusSubmitted, reporter, "submitted")
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{
		Type:       events.EventIncidentSubmitted,
		IncidentID: incident.ID,
		Actor:      eventActor(reporter),
		Payload: events.IncidentSubmittedPayload{
			Title:    incident.Title,
			Priority: incident.Priority,
			ZoneID:   incident.ZoneID,
			SlaDue:   incident.SlaDue,
		},
	})
	return incident, nil
}

// ManualTransition applies one validated status change. A transition into
// escalated supersedes active assignments and re-invokes the matcher inside
// the same transaction; a failed match leaves the incident escalated.
func (s *LifecycleService) ManualTransition(ctx context.Context, actor domain.Actor, incidentID string, requested domain.IncidentStatus, note string) (*domain.Incident, error) {
	var incident *domain.Incident
	var assignment *domain.Assignment
	var fromStatus domain.IncidentStatus

	err := s.tx.InTx(ctx, func(stores repository.Stores) error {
		var err error
		incident, err = stores.Incidents.GetByID(ctx, incidentID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFound("incident", map[string]any{"incident_id": incidentID})
			}
			return apperrors.MapError(err)
		}
		if err := s.authorizeTransition(actor, incident, requested); err != nil {
			return err
		}
		if err := ValidateTransition(incident.Status, requested); err != nil {
			return err
		}

		oldStatus := incident.Status
		fromStatus = oldStatus
		resolvedAt := incident.ResolvedAt
		switch {
		case requested == domain.IncidentStatusResolved:
			now := timeNow()
			resolvedAt = &now
		case oldStatus == domain.IncidentStatusResolved && requested == domain.IncidentStatusInProgress:
			// Only a reopen clears the resolution stamp; closing keeps it.
			resolvedAt = nil
		}

		if err := stores.Incidents.UpdateStatus(ctx, incident.ID, oldStatus, requested, resolvedAt); err != nil {
			return mapStatusUpdateErr(err, incident.ID)
		}
		if err := appendStatusLog(ctx, stores.StatusLog, incident.ID, &oldStatus, requested, actor, note); err != nil {
			return err
		}
		incident.Status = requested
		incident.ResolvedAt = resolvedAt
		s.metrics.RecordTransition(string(oldStatus), string(requested))

		if requested == domain.IncidentStatusEscalated {
			s.metrics.RecordEscalation()
			if err := stores.Assignments.SupersedeActive(ctx, incident.ID, timeNow()); err != nil {
				return apperrors.MapError(err)
			}
			assignment, err = s.matcher.Match(ctx, stores, incident, actor)
			if err != nil {
				if apperrors.IsCode(err, "NO_ELIGIBLE_UNIT") {
					// Recoverable; the sweep retries later.
					s.logger.Warn("no eligible unit after escalation", zap.String("incident_id", incident.ID))
					return nil
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{
		Type:       events.EventIncidentStatusChanged,
		IncidentID: incident.ID,
		Actor:      eventActor(actor),
		Payload: events.StatusChangedPayload{
			OldStatus: fromStatus,
			NewStatus: incident.Status,
			Note:      note,
		},
	})
	if requested == domain.IncidentStatusEscalated {
		s.publish(ctx, events.Event{
			Type:       events.EventIncidentEscalated,
			IncidentID: incident.ID,
			Actor:      eventActor(actor),
			Payload: events.StatusChangedPayload{
				OldStatus: fromStatus,
				NewStatus: domain.IncidentStatusEscalated,
				Note:      note,
			},
		})
	}
	if assignment != nil {
		s.publish(ctx, events.Event{
			Type:       events.EventIncidentAssigned,
			IncidentID: incident.ID,
			Actor:      eventActor(actor),
			Payload: events.IncidentAssignedPayload{
				AssignmentID:    assignment.ID,
				AuthorityUnitID: assignment.AuthorityUnitID,
				Deadline:        assignment.Deadline,
			},
		})
	}
	return incident, nil
}

// AssignFromTriage runs the matcher for a triaged incident.
func (s *LifecycleService) AssignFromTriage(ctx context.Context, actor domain.Actor, incidentID string) (*domain.Assignment, error) {
	if err := requireAuthorityOrAdmin(actor); err != nil {
		return nil, err
	}
	var assignment *domain.Assignment
	err := s.tx.InTx(ctx, func(stores repository.Stores) error {
		incident, err := stores.Incidents.GetByID(ctx, incidentID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFound("incident", map[string]any{"incident_id": incidentID})
			}
			return apperrors.MapError(err)
		}
		assignment, err = s.matcher.Match(ctx, stores, incident, actor)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{
		Type:       events.EventIncidentAssigned,
		IncidentID: assignment.IncidentID,
		Actor:      eventActor(actor),
		Payload: events.IncidentAssignedPayload{
			AssignmentID:    assignment.ID,
			AuthorityUnitID: assignment.AuthorityUnitID,
			Deadline:        assignment.Deadline,
		},
	})
	return assignment, nil
}

// Retriage revises priority, category or zone. The deadline is recomputed
// from the original created_at; this is the one permitted sla_due mutation.
func (s *LifecycleService) Retriage(ctx context.Context, actor domain.Actor, incidentID string, input RetriageInput) (*domain.Incident, error) {
	if err := requireAuthorityOrAdmin(actor); err != nil {
		return nil, err
	}
	if !input.Priority.Valid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": input.Priority})
	}

	var incident *domain.Incident
	err := s.tx.InTx(ctx, func(stores repository.Stores) error {
		var err error
		incident, err = stores.Incidents.GetByID(ctx, incidentID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFound("incident", map[string]any{"incident_id": incidentID})
			}
			return apperrors.MapError(err)
		}
		if incident.Status.IsTerminal() {
			return apperrors.NewConflict("incident is terminal", map[string]any{"status": incident.Status})
		}

		slaDue := ComputeDeadline(incident.CreatedAt, input.Priority, s.calendar)
		if err := stores.Incidents.UpdateTriage(ctx, incident.ID, input.Priority, input.CategoryID, input.ZoneID, &slaDue); err != nil {
			return mapStatusUpdateErr(err, incident.ID)
		}
		incident.Priority = input.Priority
		incident.SlaDue = &slaDue
		if input.CategoryID != nil {
			incident.CategoryID = input.CategoryID
		}
		if input.ZoneID != nil {
			incident.ZoneID = input.ZoneID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("incident retriaged",
		zap.String("incident_id", incident.ID),
		zap.String("priority", string(input.Priority)),
	)
	return incident, nil
}

// SlaSweep escalates incidents past their deadline through the validated
// path and then retries assignment for escalated incidents left without an
// active assignment. Each incident is independently atomic; cancellation
// between incidents is safe.
func (s *LifecycleService) SlaSweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	now := timeNow()

	overdue, err := s.incidents.ListOverdue(ctx, now)
	if err != nil {
		return result, apperrors.MapError(err)
	}
	for i := range overdue {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		_, err := s.ManualTransition(ctx, domain.SystemActor(), overdue[i].ID, domain.IncidentStatusEscalated, "sla deadline exceeded")
		switch {
		case err == nil:
			result.Escalated++
		case apperrors.IsCode(err, "INVALID_TRANSITION"), apperrors.IsCode(err, "CONCURRENT_MODIFICATION"):
			// Another writer moved the incident; nothing to do this round.
			result.Skipped++
		default:
			s.logger.Error("sweep escalation failed", zap.String("incident_id", overdue[i].ID), zap.Error(err))
			result.Skipped++
		}
	}

	unassigned, err := s.incidents.ListByStatusWithoutActiveAssignment(ctx, domain.IncidentStatusEscalated)
	if err != nil {
		return result, apperrors.MapError(err)
	}
	for i := range unassigned {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		_, err := s.AssignFromTriage(ctx, domain.SystemActor(), unassigned[i].ID)
		switch {
		case err == nil:
			result.Reassigned++
		case apperrors.IsCode(err, "NO_ELIGIBLE_UNIT"):
			result.Skipped++
		default:
			s.logger.Error("sweep reassignment failed", zap.String("incident_id", unassigned[i].ID), zap.Error(err))
			result.Skipped++
		}
	}

	s.logger.Info("sla sweep finished",
		zap.Int("escalated", result.Escalated),
		zap.Int("reassigned", result.Reassigned),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

// authorizeTransition scopes manual transitions by role. Citizens may only
// close their own resolved incidents; the system actor and staff roles use
// the full table.
func (s *LifecycleService) authorizeTransition(actor domain.Actor, incident *domain.Incident, requested domain.IncidentStatus) error {
	if actor.System() || actor.Role == domain.RoleAdmin || actor.Role == domain.RoleAuthority {
		return nil
	}
	if actor.Role == domain.RoleCitizen {
		if requested != domain.IncidentStatusClosed {
			return apperrors.NewNotAuthorized("citizens may only close resolved incidents")
		}
		if incident.ReporterID == nil || *incident.ReporterID != actor.ProfileID {
			return apperrors.NewNotAuthorized("not the reporter")
		}
		return nil
	}
	return apperrors.NewNotAuthorized("unknown role")
}

func requireAuthorityOrAdmin(actor domain.Actor) error {
	if actor.System() || actor.Role == domain.RoleAuthority || actor.Role == domain.RoleAdmin {
		return nil
	}
	return apperrors.NewNotAuthorized("authority role required")
}

func (s *LifecycleService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = timeNow()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func appendStatusLog(ctx context.Context, repo repository.StatusLogRepository, incidentID string, oldStatus *domain.IncidentStatus, newStatus domain.IncidentStatus, actor domain.Actor, note string) error {
	entry := &domain.StatusLogEntry{
		IncidentID: incidentID,
		OldStatus:  oldStatus,
		NewStatus:  newStatus,
		Note:       note,
	}
	if !actor.System() {
		actorID := actor.ProfileID
		entry.ChangedBy = &actorID
	}
	if err := repo.Append(ctx, entry); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

func mapStatusUpdateErr(err error, incidentID string) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.NewNotFound("incident", map[string]any{"incident_id": incidentID})
	case errors.Is(err, repository.ErrStaleStatus):
		return apperrors.NewConcurrentModification("incident", incidentID)
	default:
		return apperrors.MapError(err)
	}
}

func eventActor(actor domain.Actor) events.Actor {
	if actor.System() {
		return events.Actor{}
	}
	actorID := actor.ProfileID
	return events.Actor{ProfileID: &actorID, Role: actor.Role}
}
