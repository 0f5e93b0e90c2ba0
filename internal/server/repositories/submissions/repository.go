package submissions

import (
	"context"

	"github.com/dmitrijs2005/gophsubmit/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, s *models.Submission) error
	GetByID(ctx context.Context, id int64) (*models.Submission, error)
}
