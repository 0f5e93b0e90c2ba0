package files

import (
	"context"

	"github.com/dmitrijs2005/gophsubmit/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, file *models.File) error
	GetByID(ctx context.Context, id string) (*models.File, error)
	MarkUploaded(ctx context.Context, id string, size int64, storageKey, checksum string) error
}
