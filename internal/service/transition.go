package service

import (
	"github.com/spec-kit/incident-service/internal/domain"
	apperrors "github.com/spec-kit/incident-service/pkg/util"
)

// allowedTransitions is the whole state machine. closed and rejected are
// terminal; resolved may reopen to in_progress.
var allowedTransitions = map[domain.IncidentStatus][]domain.IncidentStatus{
	domain.IncidentStatusSubmitted:  {domain.IncidentStatusTriaged, domain.IncidentStatusRejected, domain.IncidentStatusEscalated},
	domain.IncidentStatusTriaged:    {domain.IncidentStatusAssigned, domain.IncidentStatusRejected, domain.IncidentStatusEscalated},
	domain.IncidentStatusAssigned:   {domain.IncidentStatusInProgress, domain.IncidentStatusEscalated, domain.IncidentStatusRejected},
	domain.IncidentStatusInProgress: {domain.IncidentStatusResolved, domain.IncidentStatusEscalated},
	domain.IncidentStatusResolved:   {domain.IncidentStatusClosed, domain.IncidentStatusInProgress},
	domain.IncidentStatusEscalated:  {domain.IncidentStatusTriaged, domain.IncidentStatusAssigned, domain.IncidentStatusRejected},
	domain.IncidentStatusClosed:     {},
	domain.IncidentStatusRejected:   {},
}

// ValidateTransition is the only gate permitted to approve a status mutation.
// Any pair not in the table fails with an INVALID_TRANSITION error.
func ValidateTransition(current, requested domain.IncidentStatus) error {
	for _, candidate := range allowedTransitions[current] {
		if candidate == requested {
			return nil
		}
	}
	return apperrors.NewInvalidTransition(string(current), string(requested))
}
