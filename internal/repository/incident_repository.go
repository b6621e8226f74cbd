package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/incident-service/internal/domain"
)

// ErrStaleStatus is returned by UpdateStatus when the row exists but its
// status no longer matches the expected value (lost-update race).
var ErrStaleStatus = fmt.Errorf("incident status changed concurrently")

// IncidentFilter captures listing parameters.
type IncidentFilter struct {
	ReporterID  *string
	ZoneID      *string
	CategoryID  *string
	Statuses    []domain.IncidentStatus
	Priorities  []domain.IncidentPriority
	PublicOnly  bool
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// IncidentRepository encapsulates incident persistence.
type IncidentRepository interface {
	Create(ctx context.Context, incident *domain.Incident) error
	GetByID(ctx context.Context, id string) (*domain.Incident, error)
	// UpdateStatus conditionally moves the incident from expectedCurrent to
	// newStatus and applies the resolved timestamp. Returns ErrStaleStatus
	// when another writer got there first, pgx.ErrNoRows when the incident
	// does not exist.
	UpdateStatus(ctx context.Context, id string, expectedCurrent, newStatus domain.IncidentStatus, resolvedAt *time.Time) error
	// UpdateTriage revises priority, category, zone and the deadline. The
	// write is conditional on the incident not being terminal; a concurrent
	// move to closed or rejected surfaces as ErrStaleStatus.
	UpdateTriage(ctx context.Context, id string, priority domain.IncidentPriority, categoryID, zoneID *string, slaDue *time.Time) error
	SetArchived(ctx context.Context, id string, archived bool) error
	SetDuplicateOf(ctx context.Context, id string, duplicateOf *string) error
	IncrementUpvotes(ctx context.Context, id string) error
	ListOverdue(ctx context.Context, now time.Time) ([]domain.Incident, error)
	ListByStatusWithoutActiveAssignment(ctx context.Context, status domain.IncidentStatus) ([]domain.Incident, error)
	ListWithFilter(ctx context.Context, filter IncidentFilter) ([]domain.Incident, error)
}

type incidentRepository struct {
	db DB
}

// NewIncidentRepository instantiates repository.
func NewIncidentRepository(db DB) IncidentRepository {
	return &incidentRepository{db: db}
}

const incidentColumns = `id, reporter_id, category_id, zone_id, title, description, status, priority,
               location_lat, location_lon, location_text, is_public, archived, upvotes,
               duplicate_of, sla_due, resolved_at, created_at, updated_at`

func (r *incidentRepository) Create(ctx context.Context, incident *domain.Incident) error {
	const query = `
        INSERT INTO incidents (reporter_id, category_id, zone_id, title, description, status, priority,
                               location_lat, location_lon, location_text, is_public, sla_due)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		incident.ReporterID,
		incident.CategoryID,
		incident.ZoneID,
		incident.Title,
		incident.Description,
		incident.Status,
		incident.Priority,
		incident.LocationLat,
		incident.LocationLon,
		incident.LocationText,
		incident.IsPublic,
		incident.SlaDue,
	).Scan(&incident.ID, &incident.CreatedAt, &incident.UpdatedAt)
}

func (r *incidentRepository) GetByID(ctx context.Context, id string) (*domain.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id=$1`
	var incident domain.Incident
	if err := scanIncident(r.db.QueryRow(ctx, query, id), &incident); err != nil {
		return nil, err
	}
	return &incident, nil
}

func (r *incidentRepository) UpdateStatus(ctx context.Context, id string, expectedCurrent, newStatus domain.IncidentStatus, resolvedAt *time.Time) error {
	const query = `
        UPDATE incidents SET status=$1, resolved_at=$2, updated_at=NOW()
        WHERE id=$3 AND status=$4`
	cmd, err := r.db.Exec(ctx, query, newStatus, resolvedAt, id, expectedCurrent)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		// Distinguish a missing row from a stale expected status.
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM incidents WHERE id=$1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return pgx.ErrNoRows
		}
		return ErrStaleStatus
	}
	return nil
}

func (r *incidentRepository) UpdateTriage(ctx context.Context, id string, priority domain.IncidentPriority, categoryID, zoneID *string, slaDue *time.Time) error {
	const query = `
        UPDATE incidents SET priority=$1,
            category_id=COALESCE($2, category_id),
            zone_id=COALESCE($3, zone_id),
            sla_due=$4, updated_at=NOW()
        WHERE id=$5 AND status NOT IN ('closed','rejected')`
	cmd, err := r.db.Exec(ctx, query, priority, categoryID, zoneID, slaDue, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM incidents WHERE id=$1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return pgx.ErrNoRows
		}
		return ErrStaleStatus
	}
	return nil
}

func (r *incidentRepository) SetArchived(ctx context.Context, id string, archived bool) error {
	cmd, err := r.db.Exec(ctx, `UPDATE incidents SET archived=$1, updated_at=NOW() WHERE id=$2`, archived, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *incidentRepository) SetDuplicateOf(ctx context.Context, id string, duplicateOf *string) error {
	cmd, err := r.db.Exec(ctx, `UPDATE incidents SET duplicate_of=$1, updated_at=NOW() WHERE id=$2`, duplicateOf, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *incidentRepository) IncrementUpvotes(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `UPDATE incidents SET upvotes=upvotes+1, updated_at=NOW() WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *incidentRepository) ListOverdue(ctx context.Context, now time.Time) ([]domain.Incident, error) {
	query := `SELECT ` + incidentColumns + `
        FROM incidents
        WHERE sla_due IS NOT NULL AND sla_due < $1
          AND status NOT IN ('resolved','closed','rejected','escalated')
        ORDER BY sla_due ASC`
	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIncidents(rows)
}

func (r *incidentRepository) ListByStatusWithoutActiveAssignment(ctx context.Context, status domain.IncidentStatus) ([]domain.Incident, error) {
	query := `SELECT ` + incidentColumns + `
        FROM incidents i
        WHERE i.status=$1
          AND NOT EXISTS (
              SELECT 1 FROM assignments a
              WHERE a.incident_id = i.id AND a.superseded_at IS NULL
          )
        ORDER BY i.created_at ASC`
	rows, err := r.db.Query(ctx, query, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIncidents(rows)
}

func (r *incidentRepository) ListWithFilter(ctx context.Context, filter IncidentFilter) ([]domain.Incident, error) {
	base := `SELECT ` + incidentColumns + ` FROM incidents`
	clauses := []string{"archived=FALSE"}
	args := []any{}

	if filter.ReporterID != nil {
		args = append(args, *filter.ReporterID)
		clauses = append(clauses, fmt.Sprintf("reporter_id=$%d", len(args)))
	}
	if filter.ZoneID != nil {
		args = append(args, *filter.ZoneID)
		clauses = append(clauses, fmt.Sprintf("zone_id=$%d", len(args)))
	}
	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		clauses = append(clauses, fmt.Sprintf("category_id=$%d", len(args)))
	}
	if filter.PublicOnly {
		clauses = append(clauses, "is_public=TRUE")
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIncidents(rows)
}

func scanIncident(row pgx.Row, incident *domain.Incident) error {
	return row.Scan(
		&incident.ID,
		&incident.ReporterID,
		&incident.CategoryID,
		&incident.ZoneID,
		&incident.Title,
		&incident.Description,
		&incident.Status,
		&incident.Priority,
		&incident.LocationLat,
		&incident.LocationLon,
		&incident.LocationText,
		&incident.IsPublic,
		&incident.Archived,
		&incident.Upvotes,
		&incident.DuplicateOf,
		&incident.SlaDue,
		&incident.ResolvedAt,
		&incident.CreatedAt,
		&incident.UpdatedAt,
	)
}

func scanIncidents(rows pgx.Rows) ([]domain.Incident, error) {
	var result []domain.Incident
	for rows.Next() {
		var incident domain.Incident
		if err := scanIncident(rows, &incident); err != nil {
			return nil, err
		}
		result = append(result, incident)
	}
	return result, rows.Err()
}
