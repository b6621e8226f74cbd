package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/events"
	"github.com/spec-kit/incident-service/internal/repository"
	apperrors "github.com/spec-kit/incident-service/pkg/util"
)

func TestSubmitCreatesIncidentWithDeadlineAndLogEntry(t *testing.T) {
	env := newTestEnv()
	reporter := domain.Actor{ProfileID: "citizen-1", Role: domain.RoleCitizen}

	incident, err := env.lifecycle.Submit(context.Background(), reporter, IncidentCreateInput{
		Title:       "flooded underpass",
		Description: "water level rising",
		Priority:    domain.IncidentPriorityCritical,
		IsPublic:    true,
	})

	require.NoError(t, err)
	assert.Equal(t, domain.IncidentStatusSubmitted, incident.Status)
	require.NotNil(t, incident.SlaDue)
	assert.True(t, incident.SlaDue.After(timeNow().Add(-time.Minute)))
	require.NotNil(t, incident.ReporterID)
	assert.Equal(t, "citizen-1", *incident.ReporterID)

	log, err := env.statusLog.ListByIncident(context.Background(), incident.ID)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Nil(t, log[0].OldStatus)
	assert.Equal(t, domain.IncidentStatusSubmitted, log[0].NewStatus)

	assert.Len(t, env.dispatcher.byType(events.EventIncidentSubmitted), 1)
}

func TestSubmitValidation(t *testing.T) {
	env := newTestEnv()
	reporter := domain.Actor{ProfileID: "citizen-1", Role: domain.RoleCitizen}

	_, err := env.lifecycle.Submit(context.Background(), reporter, IncidentCreateInput{Title: "  ", Description: "x"})
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))

	_, err = env.lifecycle.Submit(context.Background(), reporter, IncidentCreateInput{
		Title: "t", Description: "d", Priority: domain.IncidentPriority("urgent"),
	})
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}

func TestSubmitDefaultsPriorityToMedium(t *testing.T) {
	env := newTestEnv()

	incident, err := env.lifecycle.Submit(context.Background(), domain.Actor{ProfileID: "c", Role: domain.RoleCitizen}, IncidentCreateInput{
		Title:       "graffiti",
		Description: "north wall",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.IncidentPriorityMedium, incident.Priority)
}

func TestAuditTrailRecordsEveryTransitionInOrder(t *testing.T) {
	env := newTestEnv(domain.AuthorityUnit{ID: "unit-1", Name: "Roads", Active: true})
	staff := staffActor()

	incident, err := env.lifecycle.Submit(context.Background(), domain.Actor{ProfileID: "c", Role: domain.RoleCitizen}, IncidentCreateInput{
		Title: "pothole", Description: "junction 4",
	})
	require.NoError(t, err)

	steps := []domain.IncidentStatus{
		domain.IncidentStatusTriaged,
		domain.IncidentStatusAssigned,
		domain.IncidentStatusInProgress,
		domain.IncidentStatusResolved,
		domain.IncidentStatusClosed,
	}
	for _, status := range steps {
		_, err := env.lifecycle.ManualTransition(context.Background(), staff, incident.ID, status, "")
		require.NoError(t, err)
	}

	log, err := env.statusLog.ListByIncident(context.Background(), incident.ID)
	require.NoError(t, err)
	require.Len(t, log, len(steps)+1, "creation entry plus one entry per transition")

	assert.Equal(t, domain.IncidentStatusSubmitted, log[0].NewStatus)
	previous := domain.IncidentStatusSubmitted
	for i, status := range steps {
		entry := log[i+1]
		assert.Equal(t, status, entry.NewStatus)
		require.NotNil(t, entry.OldStatus)
		assert.Equal(t, previous, *entry.OldStatus)
		previous = status
	}
}

func TestResolvedTimestampSetAndClearedOnReopen(t *testing.T) {
	env := newTestEnv()
	staff := staffActor()

	incident, err := env.lifecycle.Submit(context.Background(), domain.Actor{ProfileID: "c", Role: domain.RoleCitizen}, IncidentCreateInput{
		Title: "noise", Description: "constant drilling",
	})
	require.NoError(t, err)

	for _, status := range []domain.IncidentStatus{
		domain.IncidentStatusTriaged,
		domain.IncidentStatusAssigned,
		domain.IncidentStatusInProgress,
		domain.IncidentStatusResolved,
	} {
		_, err := env.lifecycle.ManualTransition(context.Background(), staff, incident.ID, status, "")
		require.NoError(t, err)
	}

	resolved, err := env.incidents.GetByID(context.Background(), incident.ID)
	require.NoError(t, err)
	require.NotNil(t, resolved.ResolvedAt)

	_, err = env.lifecycle.ManualTransition(context.Background(), staff, incident.ID, domain.IncidentStatusInProgress, "reopened")
	require.NoError(t, err)

	reopened, err := env.incidents.GetByID(context.Background(), incident.ID)
	require.NoError(t, err)
	assert.Nil(t, reopened.ResolvedAt, "reopen clears the resolution stamp")
}

func TestResolvedTimestampSurvivesClosing(t *testing.T) {
	env := newTestEnv()
	staff := staffActor()

	incident, err := env.lifecycle.Submit(context.Background(), domain.Actor{ProfileID: "c", Role: domain.RoleCitizen}, IncidentCreateInput{
		Title: "overflowing bin", Description: "market square",
	})
	require.NoError(t, err)

	for _, status := range []domain.IncidentStatus{
		domain.IncidentStatusTriaged,
		domain.IncidentStatusAssigned,
		domain.IncidentStatusInProgress,
		domain.IncidentStatusResolved,
		domain.IncidentStatusClosed,
	} {
		_, err := env.lifecycle.ManualTransition(context.Background(), staff, incident.ID, status, "")
		require.NoError(t, err)
	}

	closed, err := env.incidents.GetByID(context.Background(), incident.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IncidentStatusClosed, closed.Status)
	assert.NotNil(t, closed.ResolvedAt, "closing keeps the resolution stamp")
}

func TestCitizenMayOnlyCloseOwnResolvedIncident(t *testing.T) {
	env := newTestEnv()
	staff := staffActor()
	reporter := domain.Actor{ProfileID: "citizen-1", Role: domain.RoleCitizen}
	stranger := domain.Actor{ProfileID: "citizen-2", Role: domain.RoleCitizen}

	incident, err := env.lifecycle.Submit(context.Background(), reporter, IncidentCreateInput{
		Title: "fallen tree", Description: "blocking the cycle lane",
	})
	require.NoError(t, err)

	// Citizens cannot drive triage.
	_, err = env.lifecycle.ManualTransition(context.Background(), reporter, incident.ID, domain.IncidentStatusTriaged, "")
	assert.True(t, apperrors.IsCode(err, "NOT_AUTHORIZED"))

	for _, status := range []domain.IncidentStatus{
		domain.IncidentStatusTriaged,
		domain.IncidentStatusAssigned,
		domain.IncidentStatusInProgress,
		domain.IncidentStatusResolved,
	} {
		_, err := env.lifecycle.ManualTransition(context.Background(), staff, incident.ID, status, "")
		require.NoError(t, err)
	}

	_, err = env.lifecycle.ManualTransition(context.Background(), stranger, incident.ID, domain.IncidentStatusClosed, "")
	assert.True(t, apperrors.IsCode(err, "NOT_AUTHORIZED"))

	_, err = env.lifecycle.ManualTransition(context.Background(), reporter, incident.ID, domain.IncidentStatusClosed, "thanks")
	require.NoError(t, err)

	closed, err := env.incidents.GetByID(context.Background(), incident.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IncidentStatusClosed, closed.Status)
}

func TestManualTransitionConcurrentModification(t *testing.T) {
	env := newTestEnv()
	staff := staffActor()

	incident, err := env.lifecycle.Submit(context.Background(), domain.Actor{ProfileID: "c", Role: domain.RoleCitizen}, IncidentCreateInput{
		Title: "leak", Description: "hydrant on 5th",
	})
	require.NoError(t, err)

	// Another writer moves the row between our read and our write.
	env.incidents.onceBeforeUpdate = func() {
		_ = env.incidents.UpdateStatus(context.Background(), incident.ID, domain.IncidentStatusSubmitted, domain.IncidentStatusRejected, nil)
	}

	_, err = env.lifecycle.ManualTransition(context.Background(), staff, incident.ID, domain.IncidentStatusTriaged, "")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "CONCURRENT_MODIFICATION"))
}

func TestManualTransitionNotFound(t *testing.T) {
	env := newTestEnv()

	_, err := env.lifecycle.ManualTransition(context.Background(), staffActor(), "missing", domain.IncidentStatusTriaged, "")
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
}

func TestEscalationReassignsThroughMatcher(t *testing.T) {
	env := newTestEnv(
		domain.AuthorityUnit{ID: "unit-1", Name: "Roads", Active: true},
		domain.AuthorityUnit{ID: "unit-2", Name: "Lighting", Active: true},
	)
	staff := staffActor()

	incident := submitTriaged(t, env, nil)
	_, err := env.lifecycle.AssignFromTriage(context.Background(), staff, incident.ID)
	require.NoError(t, err)

	_, err = env.lifecycle.ManualTransition(context.Background(), staff, incident.ID, domain.IncidentStatusEscalated, "no progress")
	require.NoError(t, err)

	current, err := env.incidents.GetByID(context.Background(), incident.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IncidentStatusAssigned, current.Status, "matcher re-assigns inside the escalation")

	assert.Len(t, env.dispatcher.byType(events.EventIncidentEscalated), 1)
	assert.NotEmpty(t, env.dispatcher.byType(events.EventIncidentAssigned))
}

func TestRetriageRecomputesFromOriginalCreation(t *testing.T) {
	env := newTestEnv()
	staff := staffActor()

	incident, err := env.lifecycle.Submit(context.Background(), domain.Actor{ProfileID: "c", Role: domain.RoleCitizen}, IncidentCreateInput{
		Title: "smell", Description: "sulfur near plant", Priority: domain.IncidentPriorityLow,
	})
	require.NoError(t, err)
	originalDue := *incident.SlaDue

	retriaged, err := env.lifecycle.Retriage(context.Background(), staff, incident.ID, RetriageInput{
		Priority: domain.IncidentPriorityCritical,
	})
	require.NoError(t, err)
	require.NotNil(t, retriaged.SlaDue)
	assert.True(t, retriaged.SlaDue.Before(originalDue), "critical window is shorter than low")
}

func TestRetriageRejectedForCitizenAndTerminalIncident(t *testing.T) {
	env := newTestEnv()
	staff := staffActor()
	reporter := domain.Actor{ProfileID: "citizen-1", Role: domain.RoleCitizen}

	incident, err := env.lifecycle.Submit(context.Background(), reporter, IncidentCreateInput{
		Title: "debris", Description: "after the storm",
	})
	require.NoError(t, err)

	_, err = env.lifecycle.Retriage(context.Background(), reporter, incident.ID, RetriageInput{Priority: domain.IncidentPriorityHigh})
	assert.True(t, apperrors.IsCode(err, "NOT_AUTHORIZED"))

	_, err = env.lifecycle.ManualTransition(context.Background(), staff, incident.ID, domain.IncidentStatusRejected, "duplicate")
	require.NoError(t, err)

	_, err = env.lifecycle.Retriage(context.Background(), staff, incident.ID, RetriageInput{Priority: domain.IncidentPriorityHigh})
	assert.True(t, apperrors.IsCode(err, "CONFLICT"))
}

func TestRetriageConcurrentModification(t *testing.T) {
	env := newTestEnv()
	staff := staffActor()

	incident, err := env.lifecycle.Submit(context.Background(), domain.Actor{ProfileID: "c", Role: domain.RoleCitizen}, IncidentCreateInput{
		Title: "smoke", Description: "faint smell in stairwell", Priority: domain.IncidentPriorityLow,
	})
	require.NoError(t, err)
	originalDue := *incident.SlaDue

	// A competing writer rejects the incident between the retriage read and
	// its conditional write.
	env.incidents.onceBeforeUpdate = func() {
		_ = env.incidents.UpdateStatus(context.Background(), incident.ID, domain.IncidentStatusSubmitted, domain.IncidentStatusRejected, nil)
	}

	_, err = env.lifecycle.Retriage(context.Background(), staff, incident.ID, RetriageInput{
		Priority: domain.IncidentPriorityCritical,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "CONCURRENT_MODIFICATION"))

	current, err := env.incidents.GetByID(context.Background(), incident.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IncidentPriorityLow, current.Priority)
	require.NotNil(t, current.SlaDue)
	assert.True(t, current.SlaDue.Equal(originalDue), "the terminal incident keeps its deadline")
}

func TestSlaSweepEscalatesOverdueAndAssigns(t *testing.T) {
	env := newTestEnv(domain.AuthorityUnit{ID: "unit-1", Name: "Roads", Active: true})

	incident := submitTriaged(t, env, nil)

	// Push the deadline into the past.
	past := timeNow().Add(-2 * time.Hour)
	require.NoError(t, env.incidents.UpdateTriage(context.Background(), incident.ID, domain.IncidentPriorityHigh, nil, nil, &past))

	result, err := env.lifecycle.SlaSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Escalated)

	current, err := env.incidents.GetByID(context.Background(), incident.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IncidentStatusAssigned, current.Status, "sweep escalation feeds the matcher")
}

func TestSlaSweepDoesNotDoubleEscalate(t *testing.T) {
	env := newTestEnv()

	incident := submitTriaged(t, env, nil)
	past := timeNow().Add(-2 * time.Hour)
	require.NoError(t, env.incidents.UpdateTriage(context.Background(), incident.ID, domain.IncidentPriorityHigh, nil, nil, &past))

	first, err := env.lifecycle.SlaSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Escalated)

	logBefore, err := env.statusLog.ListByIncident(context.Background(), incident.ID)
	require.NoError(t, err)

	second, err := env.lifecycle.SlaSweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.Escalated, "an already-escalated incident is not double-escalated")

	logAfter, err := env.statusLog.ListByIncident(context.Background(), incident.ID)
	require.NoError(t, err)
	assert.Equal(t, len(logBefore), len(logAfter), "re-running the sweep appends nothing")
}

func TestSlaSweepUsesSystemActor(t *testing.T) {
	env := newTestEnv()

	incident := submitTriaged(t, env, nil)
	past := timeNow().Add(-time.Hour)
	require.NoError(t, env.incidents.UpdateTriage(context.Background(), incident.ID, domain.IncidentPriorityHigh, nil, nil, &past))

	result, err := env.lifecycle.SlaSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Escalated)

	log, err := env.statusLog.ListByIncident(context.Background(), incident.ID)
	require.NoError(t, err)
	last := log[len(log)-1]
	assert.Equal(t, domain.IncidentStatusEscalated, last.NewStatus)
	assert.Nil(t, last.ChangedBy, "system transitions carry no actor reference")
	assert.Equal(t, "sla deadline exceeded", last.Note)
}

func TestSlaSweepRetriesAssignmentForEscalatedWithoutUnit(t *testing.T) {
	env := newTestEnv()

	incident := submitTriaged(t, env, nil)
	past := timeNow().Add(-time.Hour)
	require.NoError(t, env.incidents.UpdateTriage(context.Background(), incident.ID, domain.IncidentPriorityHigh, nil, nil, &past))

	// No units yet: the sweep escalates but cannot assign.
	first, err := env.lifecycle.SlaSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Escalated)
	assert.Equal(t, 1, first.Skipped, "no eligible unit is recoverable, not fatal")

	current, err := env.incidents.GetByID(context.Background(), incident.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IncidentStatusEscalated, current.Status)

	// A unit comes online; the next sweep picks the incident back up.
	require.NoError(t, env.units.Create(context.Background(), &domain.AuthorityUnit{ID: "unit-1", Name: "Roads", Active: true}))

	second, err := env.lifecycle.SlaSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, second.Reassigned)

	current, err = env.incidents.GetByID(context.Background(), incident.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IncidentStatusAssigned, current.Status)
}

func TestSlaSweepHonorsContextCancellation(t *testing.T) {
	env := newTestEnv()

	for i := 0; i < 3; i++ {
		incident := submitTriaged(t, env, nil)
		past := timeNow().Add(-time.Hour)
		require.NoError(t, env.incidents.UpdateTriage(context.Background(), incident.ID, domain.IncidentPriorityHigh, nil, nil, &past))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.lifecycle.SlaSweep(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

var _ repository.IncidentRepository = (*fakeIncidentRepo)(nil)
var _ repository.AssignmentRepository = (*fakeAssignmentRepo)(nil)
var _ repository.StatusLogRepository = (*fakeStatusLogRepo)(nil)
var _ repository.AuthorityUnitRepository = (*fakeUnitRepo)(nil)
