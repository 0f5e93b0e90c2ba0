// Package files stores the files announced by upload target requests.
package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophsubmit/internal/dbx"
	"github.com/dmitrijs2005/gophsubmit/internal/server/models"
)

// PostgresRepository implements file storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a pending file and fills its CreatedAt.
func (r *PostgresRepository) Create(ctx context.Context, file *models.File) error {
	query := `
		INSERT INTO files (id, course_id, assignment_id, name, declared_size, upload_status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	if file.UploadStatus == "" {
		file.UploadStatus = models.UploadPending
	}
	err := r.db.QueryRowContext(ctx, query,
		file.ID, file.CourseID, file.AssignmentID, file.Name, file.DeclaredSize, file.UploadStatus).
		Scan(&file.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert file: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.File, error) {
	query := `
		SELECT id, course_id, assignment_id, name, declared_size, size, storage_key, checksum,
			upload_status, created_at, uploaded_at
		FROM files WHERE id=$1`

	var (
		f          models.File
		uploadedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&f.ID, &f.CourseID, &f.AssignmentID, &f.Name, &f.DeclaredSize, &f.Size, &f.StorageKey, &f.Checksum,
		&f.UploadStatus, &f.CreatedAt, &uploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select file: %w", err)
	}
	if uploadedAt.Valid {
		f.UploadedAt = &uploadedAt.Time
	}
	return &f, nil
}

// MarkUploaded records the stored content of a pending file. A file that is
// not pending any more is left untouched and ErrConflict is returned.
func (r *PostgresRepository) MarkUploaded(ctx context.Context, id string, size int64, storageKey, checksum string) error {
	query := `
		UPDATE files
		SET upload_status=$2, size=$3, storage_key=$4, checksum=$5, uploaded_at=now()
		WHERE id=$1 AND upload_status=$6`

	res, err := r.db.ExecContext(ctx, query, id, models.UploadCompleted, size, storageKey, checksum, models.UploadPending)
	if err != nil {
		return fmt.Errorf("failed to mark uploaded: %w", err)
	}
	if err := dbx.ExpectOneRow(res); err != nil {
		if errors.Is(err, dbx.ErrNoRowsAffected) {
			return models.ErrConflict
		}
		return err
	}
	return nil
}
