package filesubmission

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/gophsubmit/internal/client/models"
	"github.com/dmitrijs2005/gophsubmit/internal/client/repositories/files"
	"github.com/dmitrijs2005/gophsubmit/internal/client/repositories/submissions"
	"github.com/dmitrijs2005/gophsubmit/internal/dbx"
	"github.com/google/uuid"
)

// Composer creates and edits submissions before they are started.
type Composer struct {
	db *sql.DB
}

func NewComposer(db *sql.DB) *Composer {
	return &Composer{db: db}
}

// MakeNewSubmission stores a pending submission with one item per path, in
// the given order.
func (c *Composer) MakeNewSubmission(ctx context.Context, courseID, assignmentID, comment string, paths []string) (*models.Submission, error) {
	if courseID == "" || assignmentID == "" {
		return nil, errors.New("course and assignment are required")
	}

	items := make([]*models.FileItem, 0, len(paths))
	for _, p := range paths {
		item, err := newFileItem(p)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	s := &models.Submission{
		ID:           uuid.NewString(),
		CourseID:     courseID,
		AssignmentID: assignmentID,
		Comment:      comment,
		State:        models.StatePendingTargets,
	}

	err := dbx.WithTx(ctx, c.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := submissions.NewSQLiteRepository(tx).Create(ctx, s); err != nil {
			return err
		}
		repo := files.NewSQLiteRepository(tx)
		for _, item := range items {
			item.SubmissionID = s.ID
			if err := repo.Add(ctx, item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Items = items
	return s, nil
}

// AddItem appends a file to a submission that was not started yet.
func (c *Composer) AddItem(ctx context.Context, submissionID, path string) (*models.FileItem, error) {
	item, err := newFileItem(path)
	if err != nil {
		return nil, err
	}
	item.SubmissionID = submissionID

	err = dbx.WithTx(ctx, c.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		s, err := submissions.NewSQLiteRepository(tx).GetByID(ctx, submissionID)
		if err != nil {
			return err
		}
		if s.State != models.StatePendingTargets {
			return fmt.Errorf("%w: cannot add files to a %s submission", ErrInvalidState, s.State)
		}
		return files.NewSQLiteRepository(tx).Add(ctx, item)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// DeleteItem removes a file item at any time. An upload still running for it
// ends with ErrItemNotFound.
func (c *Composer) DeleteItem(ctx context.Context, itemID string) error {
	return files.NewSQLiteRepository(c.db).Delete(ctx, itemID)
}

// DeleteSubmission removes a submission and its items and returns the upload
// task ids that were bound to them.
func (c *Composer) DeleteSubmission(ctx context.Context, submissionID string) ([]string, error) {
	var taskIDs []string
	err := dbx.WithTx(ctx, c.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := submissions.NewSQLiteRepository(tx)
		s, err := repo.GetByID(ctx, submissionID)
		if err != nil {
			return err
		}
		for _, item := range s.Items {
			if item.IsUploading() {
				taskIDs = append(taskIDs, item.TaskID)
			}
		}
		return repo.Delete(ctx, submissionID)
	})
	if err != nil {
		return nil, err
	}
	return taskIDs, nil
}

// CloneForRetry copies a failed submission into a new pending one. The failed
// submission is left as it is.
func (c *Composer) CloneForRetry(ctx context.Context, submissionID string) (*models.Submission, error) {
	s, err := submissions.NewSQLiteRepository(c.db).GetByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if s.State != models.StateFailed {
		return nil, fmt.Errorf("%w: only failed submissions can be retried, got %s", ErrInvalidState, s.State)
	}

	paths := make([]string, 0, len(s.Items))
	for _, item := range s.Items {
		paths = append(paths, item.LocalPath)
	}
	return c.MakeNewSubmission(ctx, s.CourseID, s.AssignmentID, s.Comment, paths)
}

func (c *Composer) Get(ctx context.Context, submissionID string) (*models.Submission, error) {
	return submissions.NewSQLiteRepository(c.db).GetByID(ctx, submissionID)
}

func (c *Composer) List(ctx context.Context) ([]*models.Submission, error) {
	return submissions.NewSQLiteRepository(c.db).List(ctx)
}

func newFileItem(path string) (*models.FileItem, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !st.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", path)
	}

	return &models.FileItem{
		ID:        uuid.NewString(),
		LocalPath: abs,
		FileName:  filepath.Base(abs),
		Size:      st.Size(),
	}, nil
}
