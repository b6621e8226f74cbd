package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/incident-service/internal/domain"
	apperrors "github.com/spec-kit/incident-service/pkg/util"
)

var allStatuses = []domain.IncidentStatus{
	domain.IncidentStatusSubmitted,
	domain.IncidentStatusTriaged,
	domain.IncidentStatusAssigned,
	domain.IncidentStatusInProgress,
	domain.IncidentStatusResolved,
	domain.IncidentStatusClosed,
	domain.IncidentStatusRejected,
	domain.IncidentStatusEscalated,
}

func TestValidateTransitionMatrix(t *testing.T) {
	legal := map[domain.IncidentStatus]map[domain.IncidentStatus]bool{
		domain.IncidentStatusSubmitted: {
			domain.IncidentStatusTriaged:   true,
			domain.IncidentStatusRejected:  true,
			domain.IncidentStatusEscalated: true,
		},
		domain.IncidentStatusTriaged: {
			domain.IncidentStatusAssigned:  true,
			domain.IncidentStatusRejected:  true,
			domain.IncidentStatusEscalated: true,
		},
		domain.IncidentStatusAssigned: {
			domain.IncidentStatusInProgress: true,
			domain.IncidentStatusEscalated:  true,
			domain.IncidentStatusRejected:   true,
		},
		domain.IncidentStatusInProgress: {
			domain.IncidentStatusResolved:  true,
			domain.IncidentStatusEscalated: true,
		},
		domain.IncidentStatusResolved: {
			domain.IncidentStatusClosed:     true,
			domain.IncidentStatusInProgress: true,
		},
		domain.IncidentStatusEscalated: {
			domain.IncidentStatusTriaged:  true,
			domain.IncidentStatusAssigned: true,
			domain.IncidentStatusRejected: true,
		},
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			err := ValidateTransition(from, to)
			if legal[from][to] {
				assert.NoError(t, err, "%s -> %s should be legal", from, to)
			} else {
				require.Error(t, err, "%s -> %s should be illegal", from, to)
				assert.True(t, apperrors.IsCode(err, "INVALID_TRANSITION"))
			}
		}
	}
}

func TestValidateTransitionTerminalStates(t *testing.T) {
	for _, terminal := range []domain.IncidentStatus{domain.IncidentStatusClosed, domain.IncidentStatusRejected} {
		for _, to := range allStatuses {
			assert.Error(t, ValidateTransition(terminal, to), "%s must have no outgoing transitions", terminal)
		}
	}
}

func TestValidateTransitionErrorDetails(t *testing.T) {
	err := ValidateTransition(domain.IncidentStatusClosed, domain.IncidentStatusInProgress)
	require.Error(t, err)

	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "INVALID_TRANSITION", domainErr.Code)
	assert.Equal(t, "closed", domainErr.Details["from"])
	assert.Equal(t, "in_progress", domainErr.Details["to"])
}

func TestValidateTransitionSelfLoopRejected(t *testing.T) {
	for _, status := range allStatuses {
		assert.Error(t, ValidateTransition(status, status), "self transition %s must be rejected", status)
	}
}
