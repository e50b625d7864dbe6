package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/guardshare/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByUserName(ctx context.Context, userName string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	SetActive(ctx context.Context, id string, active bool, now time.Time) error
	// Search returns up to limit active users whose name contains query,
	// case-insensitively, ordered by name. excludeID is left out of the result.
	Search(ctx context.Context, query, excludeID string, limit int) ([]*models.User, error)
}
