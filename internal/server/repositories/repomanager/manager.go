package repomanager

import (
	"context"

	"github.com/dmitrijs2005/guardshare/internal/dbx"
	"github.com/dmitrijs2005/guardshare/internal/server/repositories/files"
	"github.com/dmitrijs2005/guardshare/internal/server/repositories/links"
	"github.com/dmitrijs2005/guardshare/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a connection or to a
// transaction handle obtained from WithTx.
type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	// Conn returns the non-transactional handle.
	Conn() dbx.DBTX
	// WithTx runs fn in a transaction: committed when fn returns nil,
	// rolled back on error or panic.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error
	Close() error

	Users(db dbx.DBTX) users.Repository
	Files(db dbx.DBTX) files.Repository
	Links(db dbx.DBTX) links.Repository
}
