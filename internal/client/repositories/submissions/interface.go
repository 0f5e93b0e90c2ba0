package submissions

import (
	"context"

	"github.com/dmitrijs2005/gophsubmit/internal/client/models"
)

// Repository describes persistence operations for Submission records.
type Repository interface {
	// Create inserts a new submission. Items are stored separately.
	Create(ctx context.Context, s *models.Submission) error

	// GetByID returns the submission together with its items ordered by position.
	GetByID(ctx context.Context, id string) (*models.Submission, error)

	// List returns all submissions, newest first, without items.
	List(ctx context.Context) ([]*models.Submission, error)

	// ListByState returns submissions in any of the given states, without items.
	ListByState(ctx context.Context, states ...models.SubmissionState) ([]*models.Submission, error)

	// Delete removes the submission and all of its items.
	Delete(ctx context.Context, id string) error

	// Transition sets state (and error) if the current state is one of from.
	// It reports whether the row was changed.
	Transition(ctx context.Context, id string, to models.SubmissionState, errMsg string, from ...models.SubmissionState) (bool, error)

	// TriggerSubmit flips submit_triggered and moves the submission to
	// submitting. Only the first caller gets true.
	TriggerSubmit(ctx context.Context, id string) (bool, error)

	// Complete moves a submitting submission to completed and stores remoteID.
	Complete(ctx context.Context, id string, remoteID string) error
}
