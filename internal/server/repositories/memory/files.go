package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/guardshare/internal/common"
	"github.com/dmitrijs2005/guardshare/internal/server/models"
	"github.com/dmitrijs2005/guardshare/internal/server/repositories/files"
)

var _ files.Repository = (*FilesRepository)(nil)

type FilesRepository struct {
	s  *Store
	tx *Tx
}

func cloneFile(f *models.File) *models.File {
	c := *f
	return &c
}

func (r *FilesRepository) Create(_ context.Context, file *models.File) (*models.File, error) {
	defer r.s.lock(r.tx)()

	for _, f := range r.s.files {
		if f.IsActive && f.OwnerID == file.OwnerID && f.DisplayName == file.DisplayName {
			return nil, common.ErrAlreadyExists
		}
	}

	now := time.Now().UTC()
	file.ID = uuid.NewString()
	file.IsActive = true
	file.DownloadCount = 0
	file.CreatedAt = now
	file.UpdatedAt = now
	r.s.files[file.ID] = cloneFile(file)

	id := file.ID
	r.tx.onRollback(func() { delete(r.s.files, id) })
	return file, nil
}

func (r *FilesRepository) GetByID(_ context.Context, id string) (*models.File, error) {
	defer r.s.lock(r.tx)()

	f, ok := r.s.files[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return cloneFile(f), nil
}

func (r *FilesRepository) List(_ context.Context, ownerID string, params models.ListParams) ([]*models.File, int, error) {
	params = params.Normalize()
	search := strings.ToLower(params.Search)

	unlock := r.s.lock(r.tx)
	var matched []*models.File
	for _, f := range r.s.files {
		if !f.IsActive || (ownerID != "" && f.OwnerID != ownerID) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(f.DisplayName), search) &&
			!strings.Contains(strings.ToLower(f.Description), search) {
			continue
		}
		matched = append(matched, cloneFile(f))
	}
	unlock()

	slices.SortFunc(matched, func(a, b *models.File) int {
		var c int
		switch params.SortBy {
		case "display_name":
			c = cmp.Compare(a.DisplayName, b.DisplayName)
		case "size_bytes":
			c = cmp.Compare(a.SizeBytes, b.SizeBytes)
		case "download_count":
			c = cmp.Compare(a.DownloadCount, b.DownloadCount)
		default:
			c = a.CreatedAt.Compare(b.CreatedAt)
		}
		if params.Desc {
			c = -c
		}
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		return c
	})

	return paginate(matched, params), len(matched), nil
}

func (r *FilesRepository) SoftDelete(_ context.Context, id string, now time.Time) error {
	defer r.s.lock(r.tx)()

	f, ok := r.s.files[id]
	if !ok || !f.IsActive {
		return common.ErrorNotFound
	}
	r.update(f, func(f *models.File) {
		f.IsActive = false
		f.UpdatedAt = now
	})
	return nil
}

func (r *FilesRepository) DeactivateByOwner(_ context.Context, ownerID string, now time.Time) (int64, error) {
	defer r.s.lock(r.tx)()

	var n int64
	for _, f := range r.s.files {
		if f.OwnerID == ownerID && f.IsActive {
			r.update(f, func(f *models.File) {
				f.IsActive = false
				f.UpdatedAt = now
			})
			n++
		}
	}
	return n, nil
}

func (r *FilesRepository) IncrementDownloadCount(_ context.Context, id string, now time.Time) error {
	defer r.s.lock(r.tx)()

	f, ok := r.s.files[id]
	if !ok {
		return common.ErrorNotFound
	}
	r.update(f, func(f *models.File) {
		f.DownloadCount++
		f.UpdatedAt = now
	})
	return nil
}

// update applies fn to f and registers the previous value for rollback.
func (r *FilesRepository) update(f *models.File, fn func(*models.File)) {
	prev := *f
	r.tx.onRollback(func() { *f = prev })
	fn(f)
}
