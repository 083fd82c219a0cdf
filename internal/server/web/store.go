package web

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/myhealthdata/internal/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SharePreview is what the landing page shows about a share.
type SharePreview struct {
	Title      string
	OwnerLogin string
	Token      string
}

// Store backs the HTTP surface.
type Store interface {
	Ping(ctx context.Context) error
	SharePreview(ctx context.Context, token string) (*SharePreview, error)
}

// PoolStore reads through a pgx connection pool.
type PoolStore struct {
	pool *pgxpool.Pool
}

func NewPoolStore(pool *pgxpool.Pool) *PoolStore {
	return &PoolStore{pool: pool}
}

func (s *PoolStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PoolStore) SharePreview(ctx context.Context, token string) (*SharePreview, error) {
	query := `SELECT s.title, u.username, s.token
		FROM shares s
		JOIN users u ON u.id = s.owner_id
		WHERE s.token = $1`

	var p SharePreview
	if err := s.pool.QueryRow(ctx, query, token).Scan(&p.Title, &p.OwnerLogin, &p.Token); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &p, nil
}
