package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/incident-service/internal/domain"
)

// StatusLogRepository stores the append-only audit trail. Entries are never
// updated or deleted.
type StatusLogRepository interface {
	Append(ctx context.Context, entry *domain.StatusLogEntry) error
	ListByIncident(ctx context.Context, incidentID string) ([]domain.StatusLogEntry, error)
}

type statusLogRepository struct {
	db DB
}

// NewStatusLogRepository builds repository.
func NewStatusLogRepository(db DB) StatusLogRepository {
	return &statusLogRepository{db: db}
}

func (r *statusLogRepository) Append(ctx context.Context, entry *domain.StatusLogEntry) error {
	const query = `
        INSERT INTO incident_status_log (incident_id, old_status, new_status, changed_by, note)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, changed_at`
	return r.db.QueryRow(ctx, query,
		entry.IncidentID,
		entry.OldStatus,
		entry.NewStatus,
		entry.ChangedBy,
		entry.Note,
	).Scan(&entry.ID, &entry.ChangedAt)
}

func (r *statusLogRepository) ListByIncident(ctx context.Context, incidentID string) ([]domain.StatusLogEntry, error) {
	const query = `
        SELECT id, incident_id, old_status, new_status, changed_by, note, changed_at
        FROM incident_status_log WHERE incident_id=$1 ORDER BY changed_at ASC, id ASC`
	rows, err := r.db.Query(ctx, query, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStatusLog(rows)
}

func scanStatusLog(rows pgx.Rows) ([]domain.StatusLogEntry, error) {
	var result []domain.StatusLogEntry
	for rows.Next() {
		var entry domain.StatusLogEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.IncidentID,
			&entry.OldStatus,
			&entry.NewStatus,
			&entry.ChangedBy,
			&entry.Note,
			&entry.ChangedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
