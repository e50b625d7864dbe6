package links

import (
	"context"
	"time"

	"github.com/dmitrijs2005/guardshare/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, link *models.Link) error
	// GetByID returns the link regardless of its active flag.
	GetByID(ctx context.Context, id string) (*models.Link, error)
	// List returns links matching params. An empty ownerID lists every owner.
	List(ctx context.Context, ownerID string, params models.ListParams) ([]*models.Link, int, error)
	SetActive(ctx context.Context, id string, active bool, now time.Time) error
	Delete(ctx context.Context, id string) error

	// IncrementAccessCount bumps the counter only while the link is still
	// usable at now: active, under its limit, not past its expiry and backed
	// by an active file. It returns the new count, or
	// common.ErrConditionFailed when the predicate no longer holds.
	IncrementAccessCount(ctx context.Context, id string, now time.Time) (int64, error)
	// AppendAccessLog stores entry and evicts the oldest entries beyond
	// models.MaxAccessLogEntries.
	AppendAccessLog(ctx context.Context, entry *models.AccessLogEntry) error
	// AccessLog returns up to limit entries, newest first.
	AccessLog(ctx context.Context, linkID string, limit int) ([]*models.AccessLogEntry, error)

	DeactivateByFile(ctx context.Context, fileID string, now time.Time) (int64, error)
	DeactivateByOwner(ctx context.Context, ownerID string, now time.Time) (int64, error)
	// DeactivateExpired clears is_active on every active link whose expiry is before now.
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
	// DeleteInactiveBefore permanently removes inactive links last updated before cutoff.
	DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
