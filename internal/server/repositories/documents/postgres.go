// Package documents provides the PostgreSQL store for mirrored records.
package documents

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/myhealthdata/internal/common"
	"github.com/dmitrijs2005/myhealthdata/internal/dbx"
	"github.com/dmitrijs2005/myhealthdata/internal/server/models"
)

const selectColumns = `SELECT d.owner_id, u.username, d.zone, d.record_name, d.record_type,
		d.change_tag, d.fields, d.created_at, d.modified_at
	FROM documents d
	JOIN users u ON u.id = d.owner_id`

const sharedWith = `EXISTS (
		SELECT 1 FROM shares s
		JOIN share_participants p ON p.share_name = s.name
		WHERE s.owner_id = d.owner_id AND s.zone = d.zone AND s.root_record_name = d.record_name
		  AND p.user_id = $1 AND p.role <> 'owner' AND p.acceptance = 'accepted'
	)`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (*models.Document, error) {
	var (
		doc    models.Document
		fields []byte
	)
	if err := s.Scan(&doc.OwnerID, &doc.OwnerLogin, &doc.Zone, &doc.RecordName, &doc.RecordType,
		&doc.ChangeTag, &fields, &doc.CreatedAt, &doc.ModifiedAt); err != nil {
		return nil, err
	}
	doc.Fields = map[string]any{}
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &doc.Fields); err != nil {
			return nil, fmt.Errorf("decode fields of %s: %w", doc.RecordName, err)
		}
	}
	return &doc, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.Document, error) {
	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return doc, nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.Document, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Get(ctx context.Context, ownerID, zone, recordName string) (*models.Document, error) {
	query := selectColumns + `
	WHERE d.owner_id = $1 AND d.zone = $2 AND d.record_name = $3`
	return r.getOne(ctx, query, ownerID, zone, recordName)
}

// Upsert writes doc and returns it with the stored timestamps. The caller
// picks the change tag.
func (r *PostgresRepository) Upsert(ctx context.Context, doc *models.Document) (*models.Document, error) {
	fields := doc.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode fields of %s: %w", doc.RecordName, err)
	}

	query := `
		INSERT INTO documents (owner_id, zone, record_name, record_type, change_tag, fields, modified_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, now())
		ON CONFLICT (owner_id, zone, record_name)
		DO UPDATE SET
			record_type = EXCLUDED.record_type,
			change_tag = EXCLUDED.change_tag,
			fields = EXCLUDED.fields,
			modified_at = now()
		RETURNING created_at, modified_at
	`
	err = r.db.QueryRowContext(ctx, query,
		doc.OwnerID, doc.Zone, doc.RecordName, doc.RecordType, doc.ChangeTag, string(raw),
	).Scan(&doc.CreatedAt, &doc.ModifiedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	doc.Fields = fields
	return doc, nil
}

// Delete removes a document; shares rooted at it go with it.
func (r *PostgresRepository) Delete(ctx context.Context, ownerID, zone, recordName string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM documents WHERE owner_id = $1 AND zone = $2 AND record_name = $3`,
		ownerID, zone, recordName)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) ListByType(ctx context.Context, ownerID, zone, recordType string) ([]*models.Document, error) {
	query := selectColumns + `
	WHERE d.owner_id = $1 AND d.zone = $2 AND d.record_type = $3
	ORDER BY d.record_name`
	return r.list(ctx, query, ownerID, zone, recordType)
}

func (r *PostgresRepository) GetShared(ctx context.Context, userID, zone, recordName string) (*models.Document, error) {
	query := selectColumns + `
	WHERE d.zone = $2 AND d.record_name = $3 AND ` + sharedWith
	return r.getOne(ctx, query, userID, zone, recordName)
}

func (r *PostgresRepository) ListShared(ctx context.Context, userID, zone, recordType string) ([]*models.Document, error) {
	query := selectColumns + `
	WHERE d.zone = $2 AND d.record_type = $3 AND ` + sharedWith + `
	ORDER BY d.record_name`
	return r.list(ctx, query, userID, zone, recordType)
}
