package submissions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophsubmit/internal/client/models"
	"github.com/dmitrijs2005/gophsubmit/internal/client/repositories/files"
	"github.com/dmitrijs2005/gophsubmit/internal/dbx"
)

const submissionColumns = `id, course_id, assignment_id, comment, state, error, submit_triggered, remote_id, created_at, updated_at`

type SQLiteRepository struct {
	db    dbx.DBTX
	items *files.SQLiteRepository
	now   func() time.Time
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db, items: files.NewSQLiteRepository(db), now: time.Now}
}

func (r *SQLiteRepository) Create(ctx context.Context, s *models.Submission) error {
	now := r.now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	if s.State == "" {
		s.State = models.StatePendingTargets
	}

	query := `INSERT INTO submissions (` + submissionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.CourseID, s.AssignmentID, s.Comment, string(s.State), s.Error,
		s.SubmitTriggered, s.RemoteID, s.CreatedAt.UnixMilli(), s.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert submission: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = ?`
	s, err := scanSubmission(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}

	items, err := r.items.ListBySubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Items = items

	return s, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*models.Submission, error) {
	return r.query(ctx, `SELECT `+submissionColumns+` FROM submissions ORDER BY created_at DESC, id`)
}

func (r *SQLiteRepository) ListByState(ctx context.Context, states ...models.SubmissionState) ([]*models.Submission, error) {
	if len(states) == 0 {
		return nil, nil
	}
	in, args := stateList(states)
	return r.query(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE state IN (`+in+`) ORDER BY created_at, id`, args...)
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	if err := r.items.DeleteBySubmission(ctx, id); err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM submissions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete submission: %w", err)
	}
	if err := dbx.ExpectOneRow(res); err != nil {
		if errors.Is(err, dbx.ErrNoRowsAffected) {
			return models.ErrNotFound
		}
		return err
	}
	return nil
}

func (r *SQLiteRepository) Transition(ctx context.Context, id string, to models.SubmissionState, errMsg string, from ...models.SubmissionState) (bool, error) {
	if len(from) == 0 {
		return false, fmt.Errorf("transition to %s: no source states", to)
	}
	in, stateArgs := stateList(from)

	args := []any{string(to), errMsg, r.now().UTC().UnixMilli(), id}
	args = append(args, stateArgs...)

	res, err := r.db.ExecContext(ctx,
		`UPDATE submissions SET state = ?, error = ?, updated_at = ? WHERE id = ? AND state IN (`+in+`)`, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update submission state: %w", err)
	}
	return r.changedOrMissing(ctx, res, id)
}

func (r *SQLiteRepository) TriggerSubmit(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE submissions SET submit_triggered = 1, state = ?, updated_at = ?
		WHERE id = ? AND submit_triggered = 0 AND state IN (?, ?)`,
		string(models.StateSubmitting), r.now().UTC().UnixMilli(), id,
		string(models.StatePendingTargets), string(models.StateUploading))
	if err != nil {
		return false, fmt.Errorf("failed to trigger submit: %w", err)
	}
	return r.changedOrMissing(ctx, res, id)
}

func (r *SQLiteRepository) Complete(ctx context.Context, id string, remoteID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE submissions SET state = ?, remote_id = ?, error = '', updated_at = ?
		WHERE id = ? AND state = ?`,
		string(models.StateCompleted), remoteID, r.now().UTC().UnixMilli(), id, string(models.StateSubmitting))
	if err != nil {
		return fmt.Errorf("failed to complete submission: %w", err)
	}
	changed, err := r.changedOrMissing(ctx, res, id)
	if err != nil {
		return err
	}
	if !changed {
		return fmt.Errorf("submission %s is not submitting", id)
	}
	return nil
}

// changedOrMissing turns a zero-row update into either (false, nil) when the
// row exists or models.ErrNotFound when it does not.
func (r *SQLiteRepository) changedOrMissing(ctx context.Context, res sql.Result, id string) (bool, error) {
	err := dbx.ExpectOneRow(res)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, dbx.ErrNoRowsAffected) {
		return false, err
	}

	var one int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM submissions WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, models.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to check submission: %w", err)
	}
	return false, nil
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]*models.Submission, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error selecting submissions: %w", err)
	}
	defer rows.Close()

	var result []*models.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row scanner) (*models.Submission, error) {
	var (
		s                models.Submission
		state            string
		created, updated int64
	)
	err := row.Scan(&s.ID, &s.CourseID, &s.AssignmentID, &s.Comment, &state, &s.Error,
		&s.SubmitTriggered, &s.RemoteID, &created, &updated)
	if err != nil {
		return nil, err
	}
	s.State = models.SubmissionState(state)
	s.CreatedAt = time.UnixMilli(created).UTC()
	s.UpdatedAt = time.UnixMilli(updated).UTC()
	return &s, nil
}

func stateList(states []models.SubmissionState) (string, []any) {
	marks := make([]string, len(states))
	args := make([]any, len(states))
	for i, s := range states {
		marks[i] = "?"
		args[i] = string(s)
	}
	return strings.Join(marks, ", "), args
}
