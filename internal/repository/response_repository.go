package repository

import (
	"context"

	"github.com/spec-kit/incident-service/internal/domain"
)

// ResponseRepository stores authority responses.
type ResponseRepository interface {
	Create(ctx context.Context, response *domain.Response) error
	ListByIncident(ctx context.Context, incidentID string) ([]domain.Response, error)
}

type responseRepository struct {
	db DB
}

// NewResponseRepository builds repository.
func NewResponseRepository(db DB) ResponseRepository {
	return &responseRepository{db: db}
}

func (r *responseRepository) Create(ctx context.Context, response *domain.Response) error {
	const query = `
        INSERT INTO responses (incident_id, authority_unit_id, responder_id, message, media_paths)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		response.IncidentID,
		response.AuthorityUnitID,
		response.ResponderID,
		response.Message,
		response.MediaPaths,
	).Scan(&response.ID, &response.CreatedAt)
}

func (r *responseRepository) ListByIncident(ctx context.Context, incidentID string) ([]domain.Response, error) {
	const query = `
        SELECT id, incident_id, authority_unit_id, responder_id, message, media_paths, created_at
        FROM responses WHERE incident_id=$1 ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Response
	for rows.Next() {
		var response domain.Response
		if err := rows.Scan(
			&response.ID,
			&response.IncidentID,
			&response.AuthorityUnitID,
			&response.ResponderID,
			&response.Message,
			&response.MediaPaths,
			&response.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, response)
	}
	return result, rows.Err()
}
