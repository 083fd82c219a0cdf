// Package zones stores the named record containers each account owns.
package zones

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/myhealthdata/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Ensure creates the zone if the owner does not have it yet.
func (r *PostgresRepository) Ensure(ctx context.Context, ownerID, name string) error {
	query := `INSERT INTO zones (owner_id, name) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, ownerID, name); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Exists(ctx context.Context, ownerID, name string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM zones WHERE owner_id = $1 AND name = $2)`
	var ok bool
	if err := r.db.QueryRowContext(ctx, query, ownerID, name).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}
