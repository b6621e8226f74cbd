package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/incident-service/internal/domain"
	apperrors "github.com/spec-kit/incident-service/pkg/util"
)

func ptr[T any](v T) *T { return &v }

func staffActor() domain.Actor {
	return domain.Actor{ProfileID: "staff-1", Role: domain.RoleAuthority}
}

func submitTriaged(t *testing.T, env *testEnv, zoneID *string) *domain.Incident {
	t.Helper()
	incident, err := env.lifecycle.Submit(context.Background(), domain.Actor{ProfileID: "citizen-1", Role: domain.RoleCitizen}, IncidentCreateInput{
		Title:       "broken streetlight",
		Description: "pole 42 is dark",
		ZoneID:      zoneID,
		Priority:    domain.IncidentPriorityHigh,
		IsPublic:    true,
	})
	require.NoError(t, err)
	_, err = env.lifecycle.ManualTransition(context.Background(), staffActor(), incident.ID, domain.IncidentStatusTriaged, "")
	require.NoError(t, err)
	incident, err = env.incidents.GetByID(context.Background(), incident.ID)
	require.NoError(t, err)
	return incident
}

func TestMatchPrefersLeastLoadedUnit(t *testing.T) {
	zone := "zone-a"
	env := newTestEnv(
		domain.AuthorityUnit{ID: "unit-1", Name: "Roads", ZoneID: &zone, Active: true},
		domain.AuthorityUnit{ID: "unit-2", Name: "Lighting", ZoneID: &zone, Active: true},
	)

	// Give unit-1 an open assignment on another incident.
	busy := submitTriaged(t, env, &zone)
	require.NoError(t, env.assignments.Create(context.Background(), &domain.Assignment{
		IncidentID:      busy.ID,
		AuthorityUnitID: "unit-1",
	}))

	incident := submitTriaged(t, env, &zone)
	assignment, err := env.lifecycle.AssignFromTriage(context.Background(), staffActor(), incident.ID)

	require.NoError(t, err)
	assert.Equal(t, "unit-2", assignment.AuthorityUnitID)
}

func TestMatchBreaksTiesByUnitID(t *testing.T) {
	zone := "zone-a"
	env := newTestEnv(
		domain.AuthorityUnit{ID: "unit-b", Name: "Bravo", ZoneID: &zone, Active: true},
		domain.AuthorityUnit{ID: "unit-a", Name: "Alpha", ZoneID: &zone, Active: true},
	)

	incident := submitTriaged(t, env, &zone)
	assignment, err := env.lifecycle.AssignFromTriage(context.Background(), staffActor(), incident.ID)

	require.NoError(t, err)
	assert.Equal(t, "unit-a", assignment.AuthorityUnitID, "ties must break by ascending unit id")
}

func TestMatchFallsBackToZoneAgnosticPool(t *testing.T) {
	otherZone := "zone-b"
	env := newTestEnv(
		domain.AuthorityUnit{ID: "unit-1", Name: "Citywide", ZoneID: &otherZone, Active: true},
	)

	zone := "zone-a"
	incident := submitTriaged(t, env, &zone)
	assignment, err := env.lifecycle.AssignFromTriage(context.Background(), staffActor(), incident.ID)

	require.NoError(t, err)
	assert.Equal(t, "unit-1", assignment.AuthorityUnitID)
}

func TestMatchNoEligibleUnit(t *testing.T) {
	env := newTestEnv(
		domain.AuthorityUnit{ID: "unit-1", Name: "Inactive", Active: false},
	)

	incident := submitTriaged(t, env, nil)
	_, err := env.lifecycle.AssignFromTriage(context.Background(), staffActor(), incident.ID)

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "NO_ELIGIBLE_UNIT"))

	// The incident stays triaged; nothing was assigned or logged for it.
	current, getErr := env.incidents.GetByID(context.Background(), incident.ID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.IncidentStatusTriaged, current.Status)
}

func TestMatchCopiesSlaDeadlineOntoAssignment(t *testing.T) {
	env := newTestEnv(
		domain.AuthorityUnit{ID: "unit-1", Name: "Roads", Active: true},
	)

	incident := submitTriaged(t, env, nil)
	require.NotNil(t, incident.SlaDue)

	assignment, err := env.lifecycle.AssignFromTriage(context.Background(), staffActor(), incident.ID)

	require.NoError(t, err)
	require.NotNil(t, assignment.Deadline)
	assert.True(t, assignment.Deadline.Equal(*incident.SlaDue))
	assert.False(t, assignment.Accepted, "new assignments start unaccepted")
}

func TestMatchIdempotentWithAcceptedAssignment(t *testing.T) {
	env := newTestEnv(
		domain.AuthorityUnit{ID: "unit-1", Name: "Roads", Active: true, ProfileID: ptr("staff-1")},
	)

	incident := submitTriaged(t, env, nil)
	first, err := env.lifecycle.AssignFromTriage(context.Background(), staffActor(), incident.ID)
	require.NoError(t, err)

	_, err = env.acceptance.Accept(context.Background(), staffActor(), first.ID)
	require.NoError(t, err)

	second, err := env.lifecycle.AssignFromTriage(context.Background(), staffActor(), incident.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "an active accepted assignment is returned unchanged")
}

func TestMatchSupersedesLingeringUnacceptedAssignment(t *testing.T) {
	env := newTestEnv(
		domain.AuthorityUnit{ID: "unit-1", Name: "Roads", Active: true},
		domain.AuthorityUnit{ID: "unit-2", Name: "Lighting", Active: true},
	)

	incident := submitTriaged(t, env, nil)
	first, err := env.lifecycle.AssignFromTriage(context.Background(), staffActor(), incident.ID)
	require.NoError(t, err)

	// Escalate and let the matcher replace the unaccepted assignment.
	_, err = env.lifecycle.ManualTransition(context.Background(), staffActor(), incident.ID, domain.IncidentStatusEscalated, "stuck")
	require.NoError(t, err)

	stale, err := env.assignments.GetByID(context.Background(), first.ID)
	require.NoError(t, err)
	assert.NotNil(t, stale.SupersededAt, "replaced assignment is superseded, never deleted")

	active, err := env.assignments.GetActive(context.Background(), incident.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, active.ID)

	all, err := env.assignments.ListByIncident(context.Background(), incident.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2, "assignment history is append-only")
}

func TestMatchTransitionGuard(t *testing.T) {
	env := newTestEnv(
		domain.AuthorityUnit{ID: "unit-1", Name: "Roads", Active: true},
	)

	incident, err := env.lifecycle.Submit(context.Background(), domain.Actor{ProfileID: "citizen-1", Role: domain.RoleCitizen}, IncidentCreateInput{
		Title:       "pothole",
		Description: "deep one",
	})
	require.NoError(t, err)

	// submitted -> assigned is not a legal move; the matcher must refuse.
	_, err = env.lifecycle.AssignFromTriage(context.Background(), staffActor(), incident.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "INVALID_TRANSITION"))
}

func TestMatchDeadlinePropagationAfterRetriage(t *testing.T) {
	env := newTestEnv(
		domain.AuthorityUnit{ID: "unit-1", Name: "Roads", Active: true},
	)

	incident := submitTriaged(t, env, nil)
	retriaged, err := env.lifecycle.Retriage(context.Background(), staffActor(), incident.ID, RetriageInput{
		Priority: domain.IncidentPriorityCritical,
	})
	require.NoError(t, err)
	require.NotNil(t, retriaged.SlaDue)

	assignment, err := env.lifecycle.AssignFromTriage(context.Background(), staffActor(), incident.ID)
	require.NoError(t, err)
	require.NotNil(t, assignment.Deadline)
	assert.True(t, assignment.Deadline.Equal(*retriaged.SlaDue))

	// Retriage recomputes from the original submission time, so a stricter
	// priority can only pull the deadline earlier.
	assert.False(t, retriaged.SlaDue.After(*incident.SlaDue))
}
