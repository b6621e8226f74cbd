package repository

import (
	"context"

	"github.com/spec-kit/incident-service/internal/domain"
)

// ZoneRepository manages the zone directory.
type ZoneRepository interface {
	Create(ctx context.Context, zone *domain.Zone) error
	GetByID(ctx context.Context, id string) (*domain.Zone, error)
	List(ctx context.Context) ([]domain.Zone, error)
}

// CategoryRepository manages the category directory.
type CategoryRepository interface {
	Create(ctx context.Context, category *domain.Category) error
	GetByID(ctx context.Context, id string) (*domain.Category, error)
	List(ctx context.Context) ([]domain.Category, error)
}

type zoneRepository struct {
	db DB
}

// NewZoneRepository constructs repository.
func NewZoneRepository(db DB) ZoneRepository {
	return &zoneRepository{db: db}
}

func (r *zoneRepository) Create(ctx context.Context, zone *domain.Zone) error {
	const query = `
        INSERT INTO zones (name, center_lat, center_lon, meta)
        VALUES ($1,$2,$3,$4)
        RETURNING id`
	return r.db.QueryRow(ctx, query, zone.Name, zone.CenterLat, zone.CenterLon, zone.Meta).Scan(&zone.ID)
}

func (r *zoneRepository) GetByID(ctx context.Context, id string) (*domain.Zone, error) {
	const query = `SELECT id, name, center_lat, center_lon, meta FROM zones WHERE id=$1`
	var zone domain.Zone
	if err := r.db.QueryRow(ctx, query, id).Scan(&zone.ID, &zone.Name, &zone.CenterLat, &zone.CenterLon, &zone.Meta); err != nil {
		return nil, err
	}
	return &zone, nil
}

func (r *zoneRepository) List(ctx context.Context) ([]domain.Zone, error) {
	const query = `SELECT id, name, center_lat, center_lon, meta FROM zones ORDER BY name ASC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Zone
	for rows.Next() {
		var zone domain.Zone
		if err := rows.Scan(&zone.ID, &zone.Name, &zone.CenterLat, &zone.CenterLon, &zone.Meta); err != nil {
			return nil, err
		}
		result = append(result, zone)
	}
	return result, rows.Err()
}

type categoryRepository struct {
	db DB
}

// NewCategoryRepository constructs repository.
func NewCategoryRepository(db DB) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) Create(ctx context.Context, category *domain.Category) error {
	const query = `
        INSERT INTO categories (name, description)
        VALUES ($1,$2)
        RETURNING id`
	return r.db.QueryRow(ctx, query, category.Name, category.Description).Scan(&category.ID)
}

func (r *categoryRepository) GetByID(ctx context.Context, id string) (*domain.Category, error) {
	const query = `SELECT id, name, description FROM categories WHERE id=$1`
	var category domain.Category
	if err := r.db.QueryRow(ctx, query, id).Scan(&category.ID, &category.Name, &category.Description); err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *categoryRepository) List(ctx context.Context) ([]domain.Category, error) {
	const query = `SELECT id, name, description FROM categories ORDER BY name ASC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Category
	for rows.Next() {
		var category domain.Category
		if err := rows.Scan(&category.ID, &category.Name, &category.Description); err != nil {
			return nil, err
		}
		result = append(result, category)
	}
	return result, rows.Err()
}
