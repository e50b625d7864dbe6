package models

import (
	"time"

	"github.com/dmitrijs2005/guardshare/internal/common"
)

type User struct {
	ID           string
	UserName     string
	PasswordHash []byte
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Requester is the identity resolved for an incoming request.
// A nil *Requester stands for an anonymous caller.
type Requester struct {
	ID   string
	Role string
}

func (r *Requester) IsSuperuser() bool {
	return r != nil && r.Role == common.RoleSuperuser
}

// CanManage reports whether the requester may mutate a resource owned by ownerID.
func (r *Requester) CanManage(ownerID string) bool {
	if r == nil {
		return false
	}
	return r.ID == ownerID || r.IsSuperuser()
}
