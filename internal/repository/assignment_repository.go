package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/incident-service/internal/domain"
)

// ErrAlreadyActed is returned when acceptance was already recorded for an
// assignment.
var ErrAlreadyActed = fmt.Errorf("assignment acceptance already recorded")

// AssignmentRepository encapsulates assignment persistence.
type AssignmentRepository interface {
	Create(ctx context.Context, assignment *domain.Assignment) error
	GetByID(ctx context.Context, id string) (*domain.Assignment, error)
	// GetActive returns the non-superseded assignment for the incident, or
	// pgx.ErrNoRows.
	GetActive(ctx context.Context, incidentID string) (*domain.Assignment, error)
	// RecordAcceptance sets the acceptance flag and timestamp once. Returns
	// ErrAlreadyActed when accepted_at was already set.
	RecordAcceptance(ctx context.Context, id string, accepted bool, at time.Time) error
	// SupersedeActive closes out any active assignments for the incident.
	SupersedeActive(ctx context.Context, incidentID string, at time.Time) error
	ListByIncident(ctx context.Context, incidentID string) ([]domain.Assignment, error)
	ListActiveByUnit(ctx context.Context, unitID string) ([]domain.Assignment, error)
	// OpenCountsByUnit returns, per unit id, the number of active assignments
	// whose incident is not yet resolved, closed or rejected.
	OpenCountsByUnit(ctx context.Context, unitIDs []string) (map[string]int, error)
}

type assignmentRepository struct {
	db DB
}

// NewAssignmentRepository instantiates repository.
func NewAssignmentRepository(db DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

const assignmentColumns = `id, incident_id, authority_unit_id, assigned_by, assigned_at,
               deadline, accepted, accepted_at, superseded_at, notes`

func (r *assignmentRepository) Create(ctx context.Context, assignment *domain.Assignment) error {
	const query = `
        INSERT INTO assignments (incident_id, authority_unit_id, assigned_by, deadline, accepted, notes)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, assigned_at`
	return r.db.QueryRow(ctx, query,
		assignment.IncidentID,
		assignment.AuthorityUnitID,
		assignment.AssignedBy,
		assignment.Deadline,
		assignment.Accepted,
		assignment.Notes,
	).Scan(&assignment.ID, &assignment.AssignedAt)
}

func (r *assignmentRepository) GetByID(ctx context.Context, id string) (*domain.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE id=$1`
	var assignment domain.Assignment
	if err := scanAssignment(r.db.QueryRow(ctx, query, id), &assignment); err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *assignmentRepository) GetActive(ctx context.Context, incidentID string) (*domain.Assignment, error) {
	query := `SELECT ` + assignmentColumns + `
        FROM assignments WHERE incident_id=$1 AND superseded_at IS NULL
        ORDER BY assigned_at DESC LIMIT 1`
	var assignment domain.Assignment
	if err := scanAssignment(r.db.QueryRow(ctx, query, incidentID), &assignment); err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *assignmentRepository) RecordAcceptance(ctx context.Context, id string, accepted bool, at time.Time) error {
	const query = `
        UPDATE assignments SET accepted=$1, accepted_at=$2
        WHERE id=$3 AND accepted_at IS NULL`
	cmd, err := r.db.Exec(ctx, query, accepted, at, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM assignments WHERE id=$1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return pgx.ErrNoRows
		}
		return ErrAlreadyActed
	}
	return nil
}

func (r *assignmentRepository) SupersedeActive(ctx context.Context, incidentID string, at time.Time) error {
	const query = `
        UPDATE assignments SET superseded_at=$1
        WHERE incident_id=$2 AND superseded_at IS NULL`
	_, err := r.db.Exec(ctx, query, at, incidentID)
	return err
}

func (r *assignmentRepository) ListByIncident(ctx context.Context, incidentID string) ([]domain.Assignment, error) {
	query := `SELECT ` + assignmentColumns + `
        FROM assignments WHERE incident_id=$1 ORDER BY assigned_at ASC`
	rows, err := r.db.Query(ctx, query, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAssignments(rows)
}

func (r *assignmentRepository) ListActiveByUnit(ctx context.Context, unitID string) ([]domain.Assignment, error) {
	query := `SELECT ` + assignmentColumns + `
        FROM assignments WHERE authority_unit_id=$1 AND superseded_at IS NULL
        ORDER BY assigned_at DESC`
	rows, err := r.db.Query(ctx, query, unitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAssignments(rows)
}

func (r *assignmentRepository) OpenCountsByUnit(ctx context.Context, unitIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(unitIDs))
	if len(unitIDs) == 0 {
		return counts, nil
	}
	const query = `
        SELECT a.authority_unit_id, COUNT(*)
        FROM assignments a
        JOIN incidents i ON i.id = a.incident_id
        WHERE a.authority_unit_id = ANY($1)
          AND a.superseded_at IS NULL
          AND i.status NOT IN ('resolved','closed','rejected')
        GROUP BY a.authority_unit_id`
	rows, err := r.db.Query(ctx, query, unitIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var unitID string
		var count int
		if err := rows.Scan(&unitID, &count); err != nil {
			return nil, err
		}
		counts[unitID] = count
	}
	return counts, rows.Err()
}

func scanAssignment(row pgx.Row, assignment *domain.Assignment) error {
	return row.Scan(
		&assignment.ID,
		&assignment.IncidentID,
		&assignment.AuthorityUnitID,
		&assignment.AssignedBy,
		&assignment.AssignedAt,
		&assignment.Deadline,
		&assignment.Accepted,
		&assignment.AcceptedAt,
		&assignment.SupersededAt,
		&assignment.Notes,
	)
}

func scanAssignments(rows pgx.Rows) ([]domain.Assignment, error) {
	var result []domain.Assignment
	for rows.Next() {
		var assignment domain.Assignment
		if err := scanAssignment(rows, &assignment); err != nil {
			return nil, err
		}
		result = append(result, assignment)
	}
	return result, rows.Err()
}
