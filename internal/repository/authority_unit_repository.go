package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/incident-service/internal/domain"
)

// AuthorityUnitRepository manages the unit directory.
type AuthorityUnitRepository interface {
	Create(ctx context.Context, unit *domain.AuthorityUnit) error
	Update(ctx context.Context, unit *domain.AuthorityUnit) error
	GetByID(ctx context.Context, id string) (*domain.AuthorityUnit, error)
	GetByProfile(ctx context.Context, profileID string) (*domain.AuthorityUnit, error)
	// ListActive returns active units, restricted to a home zone when zoneID
	// is non-nil. Inactive units are never returned.
	ListActive(ctx context.Context, zoneID *string) ([]domain.AuthorityUnit, error)
}

type authorityUnitRepository struct {
	db DB
}

// NewAuthorityUnitRepository constructs repository.
func NewAuthorityUnitRepository(db DB) AuthorityUnitRepository {
	return &authorityUnitRepository{db: db}
}

const unitColumns = `id, profile_id, name, zone_id, active, meta, created_at, updated_at`

func (r *authorityUnitRepository) Create(ctx context.Context, unit *domain.AuthorityUnit) error {
	const query = `
        INSERT INTO authority_units (profile_id, name, zone_id, active, meta)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		unit.ProfileID,
		unit.Name,
		unit.ZoneID,
		unit.Active,
		unit.Meta,
	).Scan(&unit.ID, &unit.CreatedAt, &unit.UpdatedAt)
}

func (r *authorityUnitRepository) Update(ctx context.Context, unit *domain.AuthorityUnit) error {
	const query = `
        UPDATE authority_units SET profile_id=$1, name=$2, zone_id=$3, active=$4, meta=$5, updated_at=NOW()
        WHERE id=$6`
	cmd, err := r.db.Exec(ctx, query,
		unit.ProfileID,
		unit.Name,
		unit.ZoneID,
		unit.Active,
		unit.Meta,
		unit.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *authorityUnitRepository) GetByID(ctx context.Context, id string) (*domain.AuthorityUnit, error) {
	query := `SELECT ` + unitColumns + ` FROM authority_units WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *authorityUnitRepository) GetByProfile(ctx context.Context, profileID string) (*domain.AuthorityUnit, error) {
	query := `SELECT ` + unitColumns + ` FROM authority_units WHERE profile_id=$1`
	return r.fetchSingle(ctx, query, profileID)
}

func (r *authorityUnitRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.AuthorityUnit, error) {
	var unit domain.AuthorityUnit
	if err := r.db.QueryRow(ctx, query, arg).Scan(
		&unit.ID,
		&unit.ProfileID,
		&unit.Name,
		&unit.ZoneID,
		&unit.Active,
		&unit.Meta,
		&unit.CreatedAt,
		&unit.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &unit, nil
}

func (r *authorityUnitRepository) ListActive(ctx context.Context, zoneID *string) ([]domain.AuthorityUnit, error) {
	query := `SELECT ` + unitColumns + ` FROM authority_units WHERE active=TRUE`
	args := []any{}
	if zoneID != nil {
		query += ` AND zone_id=$1`
		args = append(args, *zoneID)
	}
	query += ` ORDER BY id ASC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AuthorityUnit
	for rows.Next() {
		var unit domain.AuthorityUnit
		if err := rows.Scan(&unit.ID, &unit.ProfileID, &unit.Name, &unit.ZoneID, &unit.Active, &unit.Meta, &unit.CreatedAt, &unit.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, unit)
	}
	return result, rows.Err()
}
