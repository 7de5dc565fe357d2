package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"farmlens/api/internal/models"
)

var ErrScanNotFound = errors.New("scan not found")

type ScanRepository struct {
	pool *pgxpool.Pool
}

func NewScanRepository(pool *pgxpool.Pool) *ScanRepository {
	return &ScanRepository{pool: pool}
}

func (r *ScanRepository) Create(ctx context.Context, scan models.ScanRecord) error {
	const query = `
		INSERT INTO scans (
			id, owner_id, image_key, predicted_breed, confidence_score, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
	`

	_, err := r.pool.Exec(ctx, query,
		scan.ID,
		scan.OwnerID,
		scan.ImageKey,
		scan.PredictedBreed,
		scan.ConfidenceScore,
		scan.CreatedAt,
	)
	return err
}

func (r *ScanRepository) GetByID(ctx context.Context, id string) (models.ScanRecord, error) {
	const query = `
		SELECT id, owner_id, image_key, predicted_breed, confidence_score, created_at
		FROM scans WHERE id = $1
	`

	row := r.pool.QueryRow(ctx, query, id)
	var scan models.ScanRecord
	if err := row.Scan(
		&scan.ID,
		&scan.OwnerID,
		&scan.ImageKey,
		&scan.PredictedBreed,
		&scan.ConfidenceScore,
		&scan.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ScanRecord{}, ErrScanNotFound
		}
		return models.ScanRecord{}, err
	}
	return scan, nil
}

func (r *ScanRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.ScanRecord, error) {
	const query = `
		SELECT id, owner_id, image_key, predicted_breed, confidence_score, created_at
		FROM scans
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scans []models.ScanRecord
	for rows.Next() {
		var scan models.ScanRecord
		if err := rows.Scan(
			&scan.ID,
			&scan.OwnerID,
			&scan.ImageKey,
			&scan.PredictedBreed,
			&scan.ConfidenceScore,
			&scan.CreatedAt,
		); err != nil {
			return nil, err
		}
		scans = append(scans, scan)
	}
	return scans, rows.Err()
}

func (r *ScanRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM scans WHERE id = $1`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrScanNotFound
	}
	return nil
}

// ExistsByImageKey reports whether any record still references the stored
// object. The orphan sweeper uses it to decide what may be reclaimed.
func (r *ScanRepository) ExistsByImageKey(ctx context.Context, imageKey string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM scans WHERE image_key = $1)`
	row := r.pool.QueryRow(ctx, query, imageKey)
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
