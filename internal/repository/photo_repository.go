package repository

import (
	"context"

	"github.com/spec-kit/incident-service/internal/domain"
)

// PhotoRepository stores photo metadata. Bytes live in the blob store.
type PhotoRepository interface {
	Create(ctx context.Context, photo *domain.IncidentPhoto) error
	ListByIncident(ctx context.Context, incidentID string) ([]domain.IncidentPhoto, error)
}

type photoRepository struct {
	db DB
}

// NewPhotoRepository builds repository.
func NewPhotoRepository(db DB) PhotoRepository {
	return &photoRepository{db: db}
}

func (r *photoRepository) Create(ctx context.Context, photo *domain.IncidentPhoto) error {
	const query = `
        INSERT INTO incident_photos (incident_id, bucket_path, file_name, file_size, uploaded_by)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, uploaded_at`
	return r.db.QueryRow(ctx, query,
		photo.IncidentID,
		photo.BucketPath,
		photo.FileName,
		photo.FileSize,
		photo.UploadedBy,
	).Scan(&photo.ID, &photo.UploadedAt)
}

func (r *photoRepository) ListByIncident(ctx context.Context, incidentID string) ([]domain.IncidentPhoto, error) {
	const query = `
        SELECT id, incident_id, bucket_path, file_name, file_size, uploaded_by, uploaded_at
        FROM incident_photos WHERE incident_id=$1 ORDER BY uploaded_at ASC`
	rows, err := r.db.Query(ctx, query, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.IncidentPhoto
	for rows.Next() {
		var photo domain.IncidentPhoto
		if err := rows.Scan(
			&photo.ID,
			&photo.IncidentID,
			&photo.BucketPath,
			&photo.FileName,
			&photo.FileSize,
			&photo.UploadedBy,
			&photo.UploadedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, photo)
	}
	return result, rows.Err()
}
