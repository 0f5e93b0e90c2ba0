package filesubmission

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophsubmit/internal/client/client"
	"github.com/dmitrijs2005/gophsubmit/internal/client/models"
	"github.com/dmitrijs2005/gophsubmit/internal/client/repositories/submissions"
	"github.com/dmitrijs2005/gophsubmit/internal/logging"
)

// Submitter performs the final create-submission call. Callers must have won
// the submit trigger; Submitter does not check that uploads are finished.
type Submitter struct {
	db      *sql.DB
	api     client.Client
	logger  logging.Logger
	metrics *Metrics
	events  *broadcaster
}

func NewSubmitter(db *sql.DB, api client.Client, logger logging.Logger, m *Metrics, events *broadcaster) *Submitter {
	return &Submitter{db: db, api: api, logger: logger.With("module", "submitter"), metrics: m, events: events}
}

// Submit creates the remote submission from the items' file ids in position
// order. Any item without a file id fails the submission with
// ErrIncompleteUpload and nothing is sent. A failed call fails the
// submission with ErrSubmitFailed. There is no retry.
func (s *Submitter) Submit(ctx context.Context, submissionID string) error {
	repo := submissions.NewSQLiteRepository(s.db)

	sub, err := repo.GetByID(ctx, submissionID)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(sub.Items))
	failed := 0
	for _, item := range sub.Items {
		if !item.IsSucceeded() {
			failed++
			continue
		}
		ids = append(ids, *item.APIID)
	}

	if failed > 0 {
		err := fmt.Errorf("%w: %d of %d files were not uploaded", ErrIncompleteUpload, failed, len(sub.Items))
		return s.fail(ctx, repo, sub, err)
	}

	started := time.Now()
	res, err := s.api.CreateSubmission(ctx, client.CreateSubmissionRequest{
		CourseID:     sub.CourseID,
		AssignmentID: sub.AssignmentID,
		FileIDs:      ids,
		Comment:      sub.Comment,
	})
	if s.metrics != nil {
		s.metrics.SubmitDuration.Observe(time.Since(started).Seconds())
	}
	if err != nil {
		return s.fail(ctx, repo, sub, fmt.Errorf("%w: %v", ErrSubmitFailed, err))
	}

	if err := repo.Complete(ctx, sub.ID, string(res.ID)); err != nil {
		return err
	}

	s.logger.Info(ctx, "submission completed", "submission_id", sub.ID, "remote_id", res.ID, "files", len(ids))
	s.finished(sub.ID, models.StateCompleted, nil)
	return nil
}

func (s *Submitter) fail(ctx context.Context, repo *submissions.SQLiteRepository, sub *models.Submission, cause error) error {
	ok, err := repo.Transition(ctx, sub.ID, models.StateFailed, cause.Error(), models.StateSubmitting, models.StateUploading)
	if err != nil {
		return err
	}
	s.logger.Warn(ctx, "submission failed", "submission_id", sub.ID, "error", cause)
	if ok {
		s.finished(sub.ID, models.StateFailed, cause)
	}
	return cause
}

func (s *Submitter) finished(id string, state models.SubmissionState, err error) {
	if s.metrics != nil {
		s.metrics.SubmissionsFinished.WithLabelValues(string(state)).Inc()
	}
	s.events.emit(Event{Kind: EventSubmissionFinished, SubmissionID: id, State: state, Err: err})
}
