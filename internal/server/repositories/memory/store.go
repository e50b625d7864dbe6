// Package memory implements the server repositories on top of in-process
// maps. It backs single-node development runs and service tests; state is
// lost on restart.
//
// All repositories share one Store. Calls outside a transaction take the
// store lock for their own duration. Store.WithTx holds the lock for the
// whole callback and undoes recorded mutations when the callback fails.
package memory

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/dmitrijs2005/guardshare/internal/dbx"
	"github.com/dmitrijs2005/guardshare/internal/ringx"
	"github.com/dmitrijs2005/guardshare/internal/server/models"
)

var errNotSQL = errors.New("memory: transaction handle does not accept SQL")

type Store struct {
	mu        sync.Mutex
	users     map[string]*models.User
	files     map[string]*models.File
	links     map[string]*models.Link
	logs      map[string]*ringx.Ring[models.AccessLogEntry]
	nextLogID int64
}

func NewStore() *Store {
	return &Store{
		users: make(map[string]*models.User),
		files: make(map[string]*models.File),
		links: make(map[string]*models.Link),
		logs:  make(map[string]*ringx.Ring[models.AccessLogEntry]),
	}
}

// Tx is the handle passed to WithTx callbacks. It satisfies dbx.DBTX only so
// it can travel through the repository manager; it executes no SQL.
type Tx struct {
	undo []func()
	done bool
}

func (t *Tx) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, errNotSQL
}

func (t *Tx) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errNotSQL
}

// QueryRowContext panics: a *sql.Row carrying an error can only be built by
// database/sql, and a nil row would fail later at Scan with no context.
func (t *Tx) QueryRowContext(context.Context, string, ...any) *sql.Row {
	panic(errNotSQL)
}

func (t *Tx) active() bool { return t != nil && !t.done }

func (t *Tx) onRollback(f func()) {
	if t.active() {
		t.undo = append(t.undo, f)
	}
}

func txFrom(db dbx.DBTX) *Tx {
	tx, _ := db.(*Tx)
	return tx
}

// lock acquires the store lock unless tx already holds it.
func (s *Store) lock(tx *Tx) func() {
	if tx.active() {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// WithTx runs fn while holding the store lock. When fn returns an error or
// panics, every mutation made through the transaction handle is reverted.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Tx{}
	defer func() {
		if p := recover(); p != nil {
			tx.rollback()
			panic(p)
		}
		if err != nil {
			tx.rollback()
			return
		}
		tx.done = true
	}()

	return fn(ctx, tx)
}

func (t *Tx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
	t.done = true
}

func (s *Store) Users(db dbx.DBTX) *UsersRepository {
	return &UsersRepository{s: s, tx: txFrom(db)}
}

func (s *Store) Files(db dbx.DBTX) *FilesRepository {
	return &FilesRepository{s: s, tx: txFrom(db)}
}

func (s *Store) Links(db dbx.DBTX) *LinksRepository {
	return &LinksRepository{s: s, tx: txFrom(db)}
}

func paginate[T any](items []T, p models.ListParams) []T {
	off := p.Offset()
	if off >= len(items) {
		return nil
	}
	end := min(off+p.Limit, len(items))
	return items[off:end]
}
