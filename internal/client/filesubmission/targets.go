package filesubmission

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophsubmit/internal/client/client"
	"github.com/dmitrijs2005/gophsubmit/internal/client/models"
	"github.com/dmitrijs2005/gophsubmit/internal/client/repositories/files"
	"github.com/dmitrijs2005/gophsubmit/internal/client/repositories/submissions"
	"github.com/dmitrijs2005/gophsubmit/internal/dbx"
	"github.com/dmitrijs2005/gophsubmit/internal/logging"
)

// TargetsRequester fetches upload targets for the files of a submission.
type TargetsRequester struct {
	db     *sql.DB
	api    client.Client
	logger logging.Logger
}

func NewTargetsRequester(db *sql.DB, api client.Client, logger logging.Logger) *TargetsRequester {
	return &TargetsRequester{db: db, api: api, logger: logger.With("module", "targets")}
}

// Request asks for targets of every item that has neither a target nor a
// result, in a single batch call, and stores them. On failure nothing is
// written and the error wraps ErrTargetsUnavailable.
func (r *TargetsRequester) Request(ctx context.Context, submissionID string) error {
	s, err := submissions.NewSQLiteRepository(r.db).GetByID(ctx, submissionID)
	if err != nil {
		return err
	}

	req := client.TargetsRequest{CourseID: s.CourseID, AssignmentID: s.AssignmentID}
	for _, item := range s.Items {
		if item.Target != nil || item.IsFinished() {
			continue
		}
		req.Files = append(req.Files, client.FileDescriptor{ID: item.ID, Name: item.FileName, Size: item.Size})
	}
	if len(req.Files) == 0 {
		return nil
	}

	targets, err := r.api.RequestUploadTargets(ctx, req)
	if err != nil {
		r.logger.Warn(ctx, "failed to request upload targets", "submission_id", submissionID, "error", err)
		return fmt.Errorf("%w: %v", ErrTargetsUnavailable, err)
	}

	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		items := files.NewSQLiteRepository(tx)
		for _, f := range req.Files {
			err := items.SetTarget(ctx, f.ID, targets[f.ID])
			if errors.Is(err, models.ErrNotFound) {
				// removed while the request was in flight
				continue
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}
