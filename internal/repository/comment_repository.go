package repository

import (
	"context"

	"github.com/spec-kit/incident-service/internal/domain"
)

// CommentRepository stores citizen comments.
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) error
	ListByIncident(ctx context.Context, incidentID string) ([]domain.Comment, error)
}

type commentRepository struct {
	db DB
}

// NewCommentRepository builds repository.
func NewCommentRepository(db DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	const query = `
        INSERT INTO comments (incident_id, commenter_id, message, is_anonymous)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		comment.IncidentID,
		comment.CommenterID,
		comment.Message,
		comment.IsAnonymous,
	).Scan(&comment.ID, &comment.CreatedAt)
}

func (r *commentRepository) ListByIncident(ctx context.Context, incidentID string) ([]domain.Comment, error) {
	const query = `
        SELECT id, incident_id, commenter_id, message, is_anonymous, created_at
        FROM comments WHERE incident_id=$1 ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Comment
	for rows.Next() {
		var comment domain.Comment
		if err := rows.Scan(
			&comment.ID,
			&comment.IncidentID,
			&comment.CommenterID,
			&comment.Message,
			&comment.IsAnonymous,
			&comment.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, comment)
	}
	return result, rows.Err()
}
