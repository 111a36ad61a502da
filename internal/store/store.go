// Package store persists notification templates, notifications and their attachment to job
// templates in PostgreSQL.
package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/lib/pq"

	"notification-dispatch/internal/common/errors"
	"notification-dispatch/internal/notifications/dispatch"
)

// uniqueViolation is the SQLSTATE postgres raises for a unique constraint.
const uniqueViolation = "23505"

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type Store struct {
	db *sql.DB
	q  querier
}

func New(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

// Begin opens a transaction. Repositories reached through Unit.Store write inside it;
// hooks registered with OnCommit run against the pool once it has committed.
func (s *Store) Begin(ctx context.Context) (*Unit, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewDatabaseConnectionFailedError(err)
	}
	return &Unit{tx: tx, store: &Store{db: s.db, q: tx}}, nil
}

// BeginUnit adapts Begin to the dispatch trigger.
func (s *Store) BeginUnit(ctx context.Context) (dispatch.UnitOfWork, error) {
	return s.Begin(ctx)
}

// Unit is a transaction with post-commit hooks.
type Unit struct {
	tx    *sql.Tx
	store *Store

	mu    sync.Mutex
	hooks []func(ctx context.Context) error
	done  bool
}

// Store returns repositories bound to the transaction.
func (u *Unit) Store() *Store { return u.store }

func (u *Unit) OnCommit(fn func(ctx context.Context) error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return
	}
	u.hooks = append(u.hooks, fn)
}

// Commit commits the transaction and then runs every hook in registration order. A failing
// hook does not stop the others; their errors are joined.
func (u *Unit) Commit(ctx context.Context) error {
	u.mu.Lock()
	if u.done {
		u.mu.Unlock()
		return sql.ErrTxDone
	}
	u.done = true
	hooks := u.hooks
	u.hooks = nil
	u.mu.Unlock()

	if err := u.tx.Commit(); err != nil {
		return errors.NewDatabaseConnectionFailedError(fmt.Errorf("commit: %w", err))
	}

	var errs []error
	for _, fn := range hooks {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// Rollback aborts the transaction and drops pending hooks. Calling it after Commit is a no-op.
func (u *Unit) Rollback() error {
	u.mu.Lock()
	if u.done {
		u.mu.Unlock()
		return nil
	}
	u.done = true
	u.hooks = nil
	u.mu.Unlock()
	return u.tx.Rollback()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return stderrors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
