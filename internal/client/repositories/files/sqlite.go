package files

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophsubmit/internal/client/models"
	"github.com/dmitrijs2005/gophsubmit/internal/dbx"
)

const itemColumns = `id, submission_id, position, local_path, file_name, size, upload_url, upload_params,
	bytes_uploaded, bytes_to_upload, api_id, upload_error, task_id`

// noResult restricts an update to items that have neither an api id nor an error.
const noResult = `api_id IS NULL AND upload_error IS NULL`

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Add(ctx context.Context, item *models.FileItem) error {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM submissions WHERE id = ?`, item.SubmissionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check submission: %w", err)
	}

	var next int
	err = r.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), -1) + 1 FROM file_items WHERE submission_id = ?`, item.SubmissionID).Scan(&next)
	if err != nil {
		return fmt.Errorf("failed to compute position: %w", err)
	}
	item.Position = next

	url, params, err := encodeTarget(item.Target)
	if err != nil {
		return err
	}

	query := `INSERT INTO file_items (` + itemColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		item.ID, item.SubmissionID, item.Position, item.LocalPath, item.FileName, item.Size, url, params,
		item.BytesUploaded, item.BytesToUpload, item.APIID, item.UploadError, nullString(item.TaskID))
	if err != nil {
		return fmt.Errorf("failed to insert file item: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.FileItem, error) {
	item, err := scanItem(r.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM file_items WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file item: %w", err)
	}
	return item, nil
}

func (r *SQLiteRepository) ListBySubmission(ctx context.Context, submissionID string) ([]*models.FileItem, error) {
	return r.query(ctx, `SELECT `+itemColumns+` FROM file_items WHERE submission_id = ? ORDER BY position`, submissionID)
}

func (r *SQLiteRepository) ListInterrupted(ctx context.Context) ([]*models.FileItem, error) {
	return r.query(ctx, `SELECT `+itemColumns+` FROM file_items WHERE task_id IS NOT NULL AND `+noResult+
		` ORDER BY submission_id, position`)
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM file_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete file item: %w", err)
	}
	if err := dbx.ExpectOneRow(res); err != nil {
		if errors.Is(err, dbx.ErrNoRowsAffected) {
			return models.ErrNotFound
		}
		return err
	}
	return nil
}

func (r *SQLiteRepository) DeleteBySubmission(ctx context.Context, submissionID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM file_items WHERE submission_id = ?`, submissionID); err != nil {
		return fmt.Errorf("failed to delete file items: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) SetTarget(ctx context.Context, id string, target models.UploadTarget) error {
	url, params, err := encodeTarget(&target)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE file_items SET upload_url = ?, upload_params = ? WHERE id = ?`, url, params, id)
	if err != nil {
		return fmt.Errorf("failed to set upload target: %w", err)
	}
	if err := dbx.ExpectOneRow(res); err != nil {
		if errors.Is(err, dbx.ErrNoRowsAffected) {
			return models.ErrNotFound
		}
		return err
	}
	return nil
}

func (r *SQLiteRepository) MarkStarted(ctx context.Context, id string, taskID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE file_items SET task_id = ? WHERE id = ? AND task_id IS NULL AND upload_url IS NOT NULL AND `+noResult,
		taskID, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark upload started: %w", err)
	}
	return r.changedOrMissing(ctx, res, id)
}

func (r *SQLiteRepository) UpdateProgress(ctx context.Context, id string, uploaded, toUpload int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE file_items
		SET bytes_uploaded = MAX(bytes_uploaded, ?), bytes_to_upload = MAX(bytes_to_upload, ?)
		WHERE id = ? AND `+noResult, uploaded, toUpload, id)
	if err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}
	_, err = r.changedOrMissing(ctx, res, id)
	return err
}

func (r *SQLiteRepository) SetSucceeded(ctx context.Context, id string, apiID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE file_items SET api_id = ?, bytes_uploaded = MAX(bytes_uploaded, bytes_to_upload)
		WHERE id = ? AND `+noResult, apiID, id)
	if err != nil {
		return false, fmt.Errorf("failed to set upload result: %w", err)
	}
	return r.changedOrMissing(ctx, res, id)
}

func (r *SQLiteRepository) SetFailed(ctx context.Context, id string, reason string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE file_items SET upload_error = ? WHERE id = ? AND `+noResult, reason, id)
	if err != nil {
		return false, fmt.Errorf("failed to set upload error: %w", err)
	}
	return r.changedOrMissing(ctx, res, id)
}

func (r *SQLiteRepository) changedOrMissing(ctx context.Context, res sql.Result, id string) (bool, error) {
	err := dbx.ExpectOneRow(res)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, dbx.ErrNoRowsAffected) {
		return false, err
	}

	var one int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM file_items WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, models.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to check file item: %w", err)
	}
	return false, nil
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]*models.FileItem, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error selecting file items: %w", err)
	}
	defer rows.Close()

	var result []*models.FileItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (*models.FileItem, error) {
	var (
		item                     models.FileItem
		url, params, apiID, uErr sql.NullString
		taskID                   sql.NullString
	)
	err := row.Scan(&item.ID, &item.SubmissionID, &item.Position, &item.LocalPath, &item.FileName, &item.Size,
		&url, &params, &item.BytesUploaded, &item.BytesToUpload, &apiID, &uErr, &taskID)
	if err != nil {
		return nil, err
	}

	if url.Valid {
		item.Target = &models.UploadTarget{URL: url.String}
		if params.Valid && params.String != "" {
			if err := json.Unmarshal([]byte(params.String), &item.Target.Params); err != nil {
				return nil, fmt.Errorf("decode upload params: %w", err)
			}
		}
	}
	if apiID.Valid {
		item.APIID = &apiID.String
	}
	if uErr.Valid {
		item.UploadError = &uErr.String
	}
	item.TaskID = taskID.String

	return &item, nil
}

func encodeTarget(t *models.UploadTarget) (url, params sql.NullString, err error) {
	if t == nil {
		return url, params, nil
	}
	url = sql.NullString{String: t.URL, Valid: true}
	if t.Params != nil {
		b, err := json.Marshal(t.Params)
		if err != nil {
			return url, params, fmt.Errorf("encode upload params: %w", err)
		}
		params = sql.NullString{String: string(b), Valid: true}
	}
	return url, params, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
