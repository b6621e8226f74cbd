package service

import (
	"context"
	"errors"
	"sort"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/observability"
	"github.com/spec-kit/incident-service/internal/repository"
	apperrors "github.com/spec-kit/incident-service/pkg/util"
)

// AssignmentMatcher selects an authority unit for an incident and records the
// match. It always runs against the caller's Stores so the assignment, the
// status transition and the log entry share one transaction.
type AssignmentMatcher struct {
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewAssignmentMatcher creates the matcher.
func NewAssignmentMatcher(logger *zap.Logger, metrics *observability.Metrics) *AssignmentMatcher {
	return &AssignmentMatcher{logger: logger, metrics: metrics}
}

// Match picks the least-loaded eligible unit, creates an unaccepted
// assignment carrying the incident's SLA deadline, transitions the incident
// to assigned and appends the log entry. Re-invoking on an incident with an
// active accepted assignment returns that assignment unchanged. The incident
// struct is updated in place on success.
func (m *AssignmentMatcher) Match(ctx context.Context, stores repository.Stores, incident *domain.Incident, actor domain.Actor) (*domain.Assignment, error) {
	existing, err := stores.Assignments.GetActive(ctx, incident.ID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}
	if existing != nil && existing.Accepted {
		return existing, nil
	}

	unit, err := m.selectUnit(ctx, stores, incident)
	if err != nil {
		return nil, err
	}

	if err := ValidateTransition(incident.Status, domain.IncidentStatusAssigned); err != nil {
		return nil, err
	}

	now := timeNow()
	// A rematch replaces any lingering unaccepted assignment.
	if existing != nil {
		if err := stores.Assignments.SupersedeActive(ctx, incident.ID, now); err != nil {
			return nil, apperrors.MapError(err)
		}
	}

	assignment := &domain.Assignment{
		IncidentID:      incident.ID,
		AuthorityUnitID: unit.ID,
		Deadline:        incident.SlaDue,
	}
	if !actor.System() {
		actorID := actor.ProfileID
		assignment.AssignedBy = &actorID
	}
	if err := stores.Assignments.Create(ctx, assignment); err != nil {
		return nil, apperrors.MapError(err)
	}

	oldStatus := incident.Status
	if err := stores.Incidents.UpdateStatus(ctx, incident.ID, oldStatus, domain.IncidentStatusAssigned, incident.ResolvedAt); err != nil {
		return nil, mapStatusUpdateErr(err, incident.ID)
	}
	if err := appendStatusLog(ctx, stores.StatusLog, incident.ID, &oldStatus, domain.IncidentStatusAssigned, actor, "auto-assigned to "+unit.Name); err != nil {
		return nil, err
	}
	incident.Status = domain.IncidentStatusAssigned

	m.metrics.RecordAssignment(unit.ID)
	m.metrics.RecordTransition(string(oldStatus), string(domain.IncidentStatusAssigned))
	m.logger.Info("incident assigned",
		zap.String("incident_id", incident.ID),
		zap.String("unit_id", unit.ID),
	)
	return assignment, nil
}

// selectUnit ranks active units in the incident's zone, falling back to the
// zone-agnostic pool, by ascending open-assignment load with ties broken by
// unit id ascending.
func (m *AssignmentMatcher) selectUnit(ctx context.Context, stores repository.Stores, incident *domain.Incident) (*domain.AuthorityUnit, error) {
	candidates, err := stores.Units.ListActive(ctx, incident.ZoneID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if len(candidates) == 0 && incident.ZoneID != nil {
		candidates, err = stores.Units.ListActive(ctx, nil)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
	}
	if len(candidates) == 0 {
		return nil, apperrors.NewNoEligibleUnit(incident.ID)
	}

	ids := make([]string, len(candidates))
	for i := range candidates {
		ids[i] = candidates[i].ID
	}
	counts, err := stores.Assignments.OpenCountsByUnit(ctx, ids)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	sort.Slice(candidates, func(i, j int) bool {
		loadI, loadJ := counts[candidates[i].ID], counts[candidates[j].ID]
		if loadI != loadJ {
			return loadI < loadJ
		}
		return candidates[i].ID < candidates[j].ID
	})
	return &candidates[0], nil
}
