package files

import (
	"context"
	"time"

	"github.com/dmitrijs2005/guardshare/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, file *models.File) (*models.File, error)
	GetByID(ctx context.Context, id string) (*models.File, error)
	// List returns active files matching params. An empty ownerID lists every owner.
	List(ctx context.Context, ownerID string, params models.ListParams) ([]*models.File, int, error)
	SoftDelete(ctx context.Context, id string, now time.Time) error
	DeactivateByOwner(ctx context.Context, ownerID string, now time.Time) (int64, error)
	IncrementDownloadCount(ctx context.Context, id string, now time.Time) error
}
