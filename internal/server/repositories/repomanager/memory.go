package repomanager

import (
	"context"

	"github.com/dmitrijs2005/guardshare/internal/dbx"
	"github.com/dmitrijs2005/guardshare/internal/server/repositories/files"
	"github.com/dmitrijs2005/guardshare/internal/server/repositories/links"
	"github.com/dmitrijs2005/guardshare/internal/server/repositories/memory"
	"github.com/dmitrijs2005/guardshare/internal/server/repositories/users"
)

// MemoryRepositoryManager serves repositories from a process-local store.
type MemoryRepositoryManager struct {
	store *memory.Store
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{store: memory.NewStore()}
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context) error { return nil }

// Conn returns nil: memory repositories lock per call outside transactions.
func (m *MemoryRepositoryManager) Conn() dbx.DBTX { return nil }

func (m *MemoryRepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	return m.store.WithTx(ctx, fn)
}

func (m *MemoryRepositoryManager) Close() error { return nil }

func (m *MemoryRepositoryManager) Users(db dbx.DBTX) users.Repository { return m.store.Users(db) }

func (m *MemoryRepositoryManager) Files(db dbx.DBTX) files.Repository { return m.store.Files(db) }

func (m *MemoryRepositoryManager) Links(db dbx.DBTX) links.Repository { return m.store.Links(db) }
