// Package dbx holds the small database helpers shared by every repository:
// the DBTX subset of database/sql, WithTx for transactional units of work and
// Owner, which funnels all mutations of a store through one logical owner.
package dbx

import (
	"context"
	"database/sql"
	"sync"
)

// DBTX is the subset of database/sql used by repositories.
// Both *sql.DB and *sql.Tx satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx begins a transaction, runs fn against it and commits when fn returns
// nil. Any error or panic rolls the transaction back; panics are rethrown.
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    _, err := tx.ExecContext(ctx, "DELETE FROM entries WHERE record_uuid = ?", id)
//	    return err
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}

// WithSavepoint runs fn inside the savepoint name on db, which must already be
// in a transaction. When fn fails everything it wrote is rolled back and the
// enclosing transaction carries on. name must be a plain SQL identifier.
func WithSavepoint(ctx context.Context, db DBTX, name string, fn func(ctx context.Context) error) (err error) {
	if _, err := db.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_, _ = db.ExecContext(ctx, "ROLLBACK TO "+name)
			_, _ = db.ExecContext(ctx, "RELEASE "+name)
			panic(p)
		}
		if err != nil {
			_, _ = db.ExecContext(ctx, "ROLLBACK TO "+name)
			_, _ = db.ExecContext(ctx, "RELEASE "+name)
			return
		}
		_, err = db.ExecContext(ctx, "RELEASE "+name)
	}()

	err = fn(ctx)
	return err
}

// Owner is the single logical owner of a database handle. Every read and
// write goes through it, one at a time, so a store is never touched from two
// goroutines at once. Work submitted to an Owner must not submit more work to
// the same Owner.
type Owner struct {
	mu sync.Mutex
	db *sql.DB
}

// NewOwner wraps db.
func NewOwner(db *sql.DB) *Owner {
	return &Owner{db: db}
}

// Do runs fn inside a transaction while holding the owner.
func (o *Owner) Do(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return WithTx(ctx, o.db, nil, fn)
}

// Read runs fn against the plain handle while holding the owner.
func (o *Owner) Read(ctx context.Context, fn func(ctx context.Context, db DBTX) error) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return fn(ctx, o.db)
}

// DB exposes the underlying handle for lifecycle tasks such as migrations
// and Close.
func (o *Owner) DB() *sql.DB {
	return o.db
}
