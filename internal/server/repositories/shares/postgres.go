// Package shares stores record shares and the accounts taking part in them.
package shares

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/myhealthdata/internal/common"
	"github.com/dmitrijs2005/myhealthdata/internal/dbx"
	"github.com/dmitrijs2005/myhealthdata/internal/server/models"
)

const shareColumns = `SELECT name, owner_id, zone, root_record_name, title, token, created_at FROM shares`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert creates the share or updates its title. The token of an existing
// share never changes. A share name held by another owner yields
// common.ErrorForbidden.
func (r *PostgresRepository) Upsert(ctx context.Context, share *models.Share) (*models.Share, error) {
	query := `
		INSERT INTO shares (name, owner_id, zone, root_record_name, title, token)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name)
		DO UPDATE SET title = EXCLUDED.title
			WHERE shares.owner_id = EXCLUDED.owner_id
		RETURNING token, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		share.Name, share.OwnerID, share.Zone, share.RootRecordName, share.Title, share.Token,
	).Scan(&share.Token, &share.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorForbidden
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return share, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg string) (*models.Share, error) {
	var s models.Share
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&s.Name, &s.OwnerID, &s.Zone, &s.RootRecordName, &s.Title, &s.Token, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &s, nil
}

func (r *PostgresRepository) GetByName(ctx context.Context, name string) (*models.Share, error) {
	return r.getOne(ctx, shareColumns+` WHERE name = $1`, name)
}

func (r *PostgresRepository) GetByToken(ctx context.Context, token string) (*models.Share, error) {
	return r.getOne(ctx, shareColumns+` WHERE token = $1`, token)
}

// AddParticipant inserts p or updates its acceptance. The role of an
// existing participant is kept.
func (r *PostgresRepository) AddParticipant(ctx context.Context, p *models.Participant) error {
	query := `
		INSERT INTO share_participants (share_name, user_id, role, acceptance)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (share_name, user_id)
		DO UPDATE SET acceptance = EXCLUDED.acceptance
	`
	if _, err := r.db.ExecContext(ctx, query, p.ShareName, p.UserID, p.Role, p.Acceptance); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const participantColumns = `SELECT p.share_name, p.user_id, u.username, p.role, p.acceptance
	FROM share_participants p
	JOIN users u ON u.id = p.user_id`

func (r *PostgresRepository) Participant(ctx context.Context, shareName, userID string) (*models.Participant, error) {
	var p models.Participant
	err := r.db.QueryRowContext(ctx, participantColumns+`
	WHERE p.share_name = $1 AND p.user_id = $2`, shareName, userID).
		Scan(&p.ShareName, &p.UserID, &p.Login, &p.Role, &p.Acceptance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &p, nil
}

// Participants lists everyone in the share, owner first.
func (r *PostgresRepository) Participants(ctx context.Context, shareName string) ([]*models.Participant, error) {
	rows, err := r.db.QueryContext(ctx, participantColumns+`
	WHERE p.share_name = $1
	ORDER BY p.role = 'owner' DESC, u.username`, shareName)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Participant
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.ShareName, &p.UserID, &p.Login, &p.Role, &p.Acceptance); err != nil {
			return nil, err
		}
		result = append(result, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
