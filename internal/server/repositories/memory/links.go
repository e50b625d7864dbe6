package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/guardshare/internal/common"
	"github.com/dmitrijs2005/guardshare/internal/ringx"
	"github.com/dmitrijs2005/guardshare/internal/server/models"
	"github.com/dmitrijs2005/guardshare/internal/server/repositories/links"
)

var _ links.Repository = (*LinksRepository)(nil)

type LinksRepository struct {
	s  *Store
	tx *Tx
}

func cloneLink(l *models.Link) *models.Link {
	c := *l
	if l.ExpiresAt != nil {
		t := *l.ExpiresAt
		c.ExpiresAt = &t
	}
	if l.AccessLimit != nil {
		v := *l.AccessLimit
		c.AccessLimit = &v
	}
	c.Audience.AllowedUsers = slices.Clone(l.Audience.AllowedUsers)
	return &c
}

func (r *LinksRepository) Create(_ context.Context, link *models.Link) error {
	defer r.s.lock(r.tx)()

	if _, ok := r.s.links[link.ID]; ok {
		return common.ErrAlreadyExists
	}
	for _, l := range r.s.links {
		if l.Name == link.Name {
			return common.ErrAlreadyExists
		}
	}

	r.s.links[link.ID] = cloneLink(link)
	id := link.ID
	r.tx.onRollback(func() { delete(r.s.links, id) })
	return nil
}

func (r *LinksRepository) GetByID(_ context.Context, id string) (*models.Link, error) {
	defer r.s.lock(r.tx)()

	l, ok := r.s.links[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return cloneLink(l), nil
}

func (r *LinksRepository) List(_ context.Context, ownerID string, params models.ListParams) ([]*models.Link, int, error) {
	params = params.Normalize()
	search := strings.ToLower(params.Search)

	unlock := r.s.lock(r.tx)
	var matched []*models.Link
	for _, l := range r.s.links {
		if ownerID != "" && l.OwnerID != ownerID {
			continue
		}
		if params.Active != nil && l.IsActive != *params.Active {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(l.Name), search) &&
			!strings.Contains(strings.ToLower(l.Description), search) {
			continue
		}
		matched = append(matched, cloneLink(l))
	}
	unlock()

	slices.SortFunc(matched, func(a, b *models.Link) int {
		var c int
		switch params.SortBy {
		case "name":
			c = cmp.Compare(a.Name, b.Name)
		case "current_access_count":
			c = cmp.Compare(a.CurrentAccessCount, b.CurrentAccessCount)
		case "expires_at":
			c = compareExpiry(a.ExpiresAt, b.ExpiresAt)
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

// compareExpiry orders links without expiry last, as PostgreSQL does for NULLs in ascending order.
func compareExpiry(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return a.Compare(*b)
	}
}

func (r *LinksRepository) SetActive(_ context.Context, id string, active bool, now time.Time) error {
	defer r.s.lock(r.tx)()

	l, ok := r.s.links[id]
	if !ok {
		return common.ErrorNotFound
	}
	r.update(l, func(l *models.Link) {
		l.IsActive = active
		l.UpdatedAt = now
	})
	return nil
}

func (r *LinksRepository) Delete(_ context.Context, id string) error {
	defer r.s.lock(r.tx)()

	l, ok := r.s.links[id]
	if !ok {
		return common.ErrorNotFound
	}
	log, hadLog := r.s.logs[id]
	delete(r.s.links, id)
	delete(r.s.logs, id)
	r.tx.onRollback(func() {
		r.s.links[id] = l
		if hadLog {
			r.s.logs[id] = log
		}
	})
	return nil
}

func (r *LinksRepository) IncrementAccessCount(_ context.Context, id string, now time.Time) (int64, error) {
	defer r.s.lock(r.tx)()

	l, ok := r.s.links[id]
	if !ok || !l.IsActive {
		return 0, common.ErrConditionFailed
	}
	if l.AccessLimit != nil && l.CurrentAccessCount >= *l.AccessLimit {
		return 0, common.ErrConditionFailed
	}
	if l.ExpiresAt != nil && now.After(*l.ExpiresAt) {
		return 0, common.ErrConditionFailed
	}
	if f, ok := r.s.files[l.FileID]; !ok || !f.IsActive {
		return 0, common.ErrConditionFailed
	}

	r.update(l, func(l *models.Link) {
		l.CurrentAccessCount++
		l.UpdatedAt = now
	})
	return l.CurrentAccessCount, nil
}

func (r *LinksRepository) AppendAccessLog(_ context.Context, e *models.AccessLogEntry) error {
	defer r.s.lock(r.tx)()

	ring, ok := r.s.logs[e.LinkID]
	if !ok {
		ring = ringx.New[models.AccessLogEntry](models.MaxAccessLogEntries)
		r.s.logs[e.LinkID] = ring
		linkID := e.LinkID
		r.tx.onRollback(func() { delete(r.s.logs, linkID) })
	}

	r.s.nextLogID++
	e.ID = r.s.nextLogID
	stored := *e
	if e.RequesterID != nil {
		id := *e.RequesterID
		stored.RequesterID = &id
	}

	old, evicted := ring.Push(stored)
	r.tx.onRollback(func() {
		ring.PopNewest()
		if evicted {
			ring.PushOldest(old)
		}
		r.s.nextLogID--
	})
	return nil
}

func (r *LinksRepository) AccessLog(_ context.Context, linkID string, limit int) ([]*models.AccessLogEntry, error) {
	defer r.s.lock(r.tx)()

	ring, ok := r.s.logs[linkID]
	if !ok {
		return nil, nil
	}
	entries := ring.Newest(limit)
	out := make([]*models.AccessLogEntry, 0, len(entries))
	for i := range entries {
		out = append(out, &entries[i])
	}
	return out, nil
}

func (r *LinksRepository) DeactivateByFile(_ context.Context, fileID string, now time.Time) (int64, error) {
	return r.deactivateWhere(now, func(l *models.Link) bool { return l.FileID == fileID })
}

func (r *LinksRepository) DeactivateByOwner(_ context.Context, ownerID string, now time.Time) (int64, error) {
	return r.deactivateWhere(now, func(l *models.Link) bool { return l.OwnerID == ownerID })
}

func (r *LinksRepository) DeactivateExpired(_ context.Context, now time.Time) (int64, error) {
	return r.deactivateWhere(now, func(l *models.Link) bool {
		return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
	})
}

func (r *LinksRepository) DeleteInactiveBefore(_ context.Context, cutoff time.Time) (int64, error) {
	defer r.s.lock(r.tx)()

	var n int64
	for id, l := range r.s.links {
		if l.IsActive || !l.UpdatedAt.Before(cutoff) {
			continue
		}
		link := l
		log, hadLog := r.s.logs[id]
		delete(r.s.links, id)
		delete(r.s.logs, id)
		r.tx.onRollback(func() {
			r.s.links[id] = link
			if hadLog {
				r.s.logs[id] = log
			}
		})
		n++
	}
	return n, nil
}

func (r *LinksRepository) deactivateWhere(now time.Time, match func(*models.Link) bool) (int64, error) {
	defer r.s.lock(r.tx)()

	var n int64
	for _, l := range r.s.links {
		if !l.IsActive || !match(l) {
			continue
		}
		r.update(l, func(l *models.Link) {
			l.IsActive = false
			l.UpdatedAt = now
		})
		n++
	}
	return n, nil
}

// update applies fn to l and registers the previous value for rollback.
func (r *LinksRepository) update(l *models.Link, fn func(*models.Link)) {
	prev := *l
	r.tx.onRollback(func() { *l = prev })
	fn(l)
}
