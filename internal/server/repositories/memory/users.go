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
	"github.com/dmitrijs2005/guardshare/internal/server/repositories/users"
)

var _ users.Repository = (*UsersRepository)(nil)

type UsersRepository struct {
	s  *Store
	tx *Tx
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.PasswordHash = append([]byte(nil), u.PasswordHash...)
	return &c
}

func (r *UsersRepository) Create(_ context.Context, user *models.User) (*models.User, error) {
	defer r.s.lock(r.tx)()

	for _, u := range r.s.users {
		if u.UserName == user.UserName {
			return nil, common.ErrAlreadyExists
		}
	}

	now := time.Now().UTC()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.s.users[user.ID] = cloneUser(user)

	id := user.ID
	r.tx.onRollback(func() { delete(r.s.users, id) })
	return user, nil
}

func (r *UsersRepository) GetByUserName(_ context.Context, userName string) (*models.User, error) {
	defer r.s.lock(r.tx)()

	for _, u := range r.s.users {
		if u.UserName == userName {
			return cloneUser(u), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *UsersRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	defer r.s.lock(r.tx)()

	u, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return cloneUser(u), nil
}

func (r *UsersRepository) SetActive(_ context.Context, id string, active bool, now time.Time) error {
	defer r.s.lock(r.tx)()

	u, ok := r.s.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	prev := *u
	r.tx.onRollback(func() { *u = prev })

	u.IsActive = active
	u.UpdatedAt = now
	return nil
}

func (r *UsersRepository) Search(_ context.Context, query, excludeID string, limit int) ([]*models.User, error) {
	q := strings.ToLower(query)

	unlock := r.s.lock(r.tx)
	var out []*models.User
	for _, u := range r.s.users {
		if !u.IsActive || u.ID == excludeID || !strings.Contains(strings.ToLower(u.UserName), q) {
			continue
		}
		out = append(out, cloneUser(u))
	}
	unlock()

	slices.SortFunc(out, func(a, b *models.User) int { return cmp.Compare(a.UserName, b.UserName) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
