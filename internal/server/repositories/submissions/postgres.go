// Package submissions stores created submissions and their ordered files.
package submissions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophsubmit/internal/dbx"
	"github.com/dmitrijs2005/gophsubmit/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the submission and its file list and fills ID and
// SubmittedAt. Run it inside a transaction.
func (r *PostgresRepository) Create(ctx context.Context, s *models.Submission) error {
	query := `
		INSERT INTO submissions (course_id, assignment_id, comment)
		VALUES ($1, $2, $3)
		RETURNING id, submitted_at`

	if err := r.db.QueryRowContext(ctx, query, s.CourseID, s.AssignmentID, s.Comment).Scan(&s.ID, &s.SubmittedAt); err != nil {
		return fmt.Errorf("failed to insert submission: %w", err)
	}

	for i, fileID := range s.FileIDs {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO submission_files (submission_id, position, file_id) VALUES ($1, $2, $3)`,
			s.ID, i, fileID)
		if err != nil {
			return fmt.Errorf("failed to insert submission file: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Submission, error) {
	query := `SELECT id, course_id, assignment_id, comment, submitted_at FROM submissions WHERE id=$1`

	var s models.Submission
	err := r.db.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.CourseID, &s.AssignmentID, &s.Comment, &s.SubmittedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select submission: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT file_id FROM submission_files WHERE submission_id=$1 ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to select submission files: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var fileID string
		if err := rows.Scan(&fileID); err != nil {
			return nil, err
		}
		s.FileIDs = append(s.FileIDs, fileID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &s, nil
}
