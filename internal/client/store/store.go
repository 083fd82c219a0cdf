// Package store opens the client's SQLite database and owns every access to
// it. All reads and writes go through a single dbx.Owner; committed changes
// are published to subscribers so views can refresh without polling.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrijs2005/myhealthdata/internal/client/migrations"
	"github.com/dmitrijs2005/myhealthdata/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/myhealthdata/internal/client/repositories/records"
	"github.com/dmitrijs2005/myhealthdata/internal/dbx"
	"github.com/dmitrijs2005/myhealthdata/internal/filex"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// Repos are the repositories bound to the current unit of work.
type Repos struct {
	Records  records.Repository
	Metadata metadata.Repository

	tx      dbx.DBTX
	tracker *trackingRecords
}

// Savepoint runs fn so that a failure discards only what fn wrote; the rest
// of the unit of work still commits. Outside Update fn runs as is.
func (r Repos) Savepoint(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if r.tx == nil {
		return fn(ctx)
	}
	mark := 0
	if r.tracker != nil {
		mark = len(r.tracker.changes)
	}
	err := dbx.WithSavepoint(ctx, r.tx, name, fn)
	if err != nil && r.tracker != nil {
		r.tracker.changes = r.tracker.changes[:mark]
	}
	return err
}

// Store is the local record store.
type Store struct {
	owner *dbx.Owner

	mu     sync.Mutex
	subs   map[int]chan Change
	nextID int
}

// DSN builds a modernc.org/sqlite data source name with foreign keys on.
func DSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// RunMigrations applies the embedded schema migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, ".")
}

// Open opens (creating if needed) the database at path and migrates it.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := filex.EnsureParentDir(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, err
	}
	// One connection: the store has a single owner anyway and SQLite
	// serializes writers.
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations failed: %w", err)
	}
	return New(db), nil
}

// New wraps an already migrated database.
func New(db *sql.DB) *Store {
	return &Store{owner: dbx.NewOwner(db), subs: map[int]chan Change{}}
}

func (s *Store) Close() error {
	s.mu.Lock()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.mu.Unlock()
	return s.owner.DB().Close()
}

// Update runs fn in one transaction. Changes made through the passed
// repositories are published after a successful commit.
func (s *Store) Update(ctx context.Context, fn func(ctx context.Context, repos Repos) error) error {
	var changes []Change
	err := s.owner.Do(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		tr := &trackingRecords{Repository: records.NewSQLiteRepository(tx)}
		if err := fn(ctx, Repos{Records: tr, Metadata: metadata.NewSQLiteRepository(tx), tx: tx, tracker: tr}); err != nil {
			return err
		}
		changes = tr.changes
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(changes)
	return nil
}

// View runs fn outside a transaction for read-only work.
func (s *Store) View(ctx context.Context, fn func(ctx context.Context, repos Repos) error) error {
	return s.owner.Read(ctx, func(ctx context.Context, db dbx.DBTX) error {
		return fn(ctx, Repos{Records: records.NewSQLiteRepository(db), Metadata: metadata.NewSQLiteRepository(db)})
	})
}
