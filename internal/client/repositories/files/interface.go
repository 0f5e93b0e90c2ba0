package files

import (
	"context"

	"github.com/dmitrijs2005/gophsubmit/internal/client/models"
)

// Repository describes persistence operations for FileItem records.
type Repository interface {
	// Add appends the item to its submission; Position is assigned here.
	Add(ctx context.Context, item *models.FileItem) error

	GetByID(ctx context.Context, id string) (*models.FileItem, error)

	// ListBySubmission returns the items of a submission in position order.
	ListBySubmission(ctx context.Context, submissionID string) ([]*models.FileItem, error)

	Delete(ctx context.Context, id string) error
	DeleteBySubmission(ctx context.Context, submissionID string) error

	// SetTarget stores where the item has to be uploaded.
	SetTarget(ctx context.Context, id string, target models.UploadTarget) error

	// MarkStarted binds an upload task to the item. It reports false when a
	// task was already bound or the item already has a result.
	MarkStarted(ctx context.Context, id string, taskID string) (bool, error)

	// UpdateProgress records transferred bytes. Values lower than the stored
	// ones and updates after a result are ignored.
	UpdateProgress(ctx context.Context, id string, uploaded, toUpload int64) error

	// SetSucceeded and SetFailed write the item's result once; they report
	// false when a result was already present.
	SetSucceeded(ctx context.Context, id string, apiID string) (bool, error)
	SetFailed(ctx context.Context, id string, reason string) (bool, error)

	// ListInterrupted returns items with a bound task but no result.
	ListInterrupted(ctx context.Context) ([]*models.FileItem, error)
}
