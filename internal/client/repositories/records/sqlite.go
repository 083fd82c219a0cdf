package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/myhealthdata/internal/client/models"
	"github.com/dmitrijs2005/myhealthdata/internal/common"
	"github.com/dmitrijs2005/myhealthdata/internal/dbx"
)

// SQLiteRepository implements Repository over a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const recordColumns = `uuid, created_at, updated_at, is_pet, profile, is_cloud_enabled,
	cloud_record_name, cloud_share_record_name, is_sharing_enabled, participants_summary`

func (r *SQLiteRepository) Upsert(ctx context.Context, rec *models.MedicalRecord) error {
	profile, err := json.Marshal(rec.Profile)
	if err != nil {
		return fmt.Errorf("failed to encode profile of %s: %w", rec.UUID, err)
	}

	query := `INSERT INTO records (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uuid) DO UPDATE SET
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			is_pet = excluded.is_pet,
			profile = excluded.profile,
			is_cloud_enabled = excluded.is_cloud_enabled,
			cloud_record_name = excluded.cloud_record_name,
			cloud_share_record_name = excluded.cloud_share_record_name,
			is_sharing_enabled = excluded.is_sharing_enabled,
			participants_summary = excluded.participants_summary`

	_, err = r.db.ExecContext(ctx, query,
		rec.UUID, toNanos(rec.CreatedAt), toNanos(rec.UpdatedAt), rec.IsPet, string(profile),
		rec.Cloud.IsCloudEnabled, nullString(rec.Cloud.CloudRecordName), nullString(rec.Cloud.CloudShareRecordName),
		rec.Cloud.IsSharingEnabled, rec.Cloud.ParticipantsSummary)
	if err != nil {
		return fmt.Errorf("failed to upsert record %s: %w", rec.UUID, err)
	}

	if err := r.deleteChildren(ctx, rec.UUID); err != nil {
		return err
	}
	return r.insertChildren(ctx, rec)
}

func (r *SQLiteRepository) insertChildren(ctx context.Context, rec *models.MedicalRecord) error {
	query := `INSERT INTO entries (uuid, record_uuid, kind, position, created_at, updated_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	for _, c := range models.Collections {
		items, err := c.Items(rec)
		if err != nil {
			return err
		}
		for pos, it := range items {
			_, err := r.db.ExecContext(ctx, query, it.Meta.UUID, rec.UUID, string(it.Kind), pos,
				toNanos(it.Meta.CreatedAt), toNanos(it.Meta.UpdatedAt), string(it.Data))
			if err != nil {
				return fmt.Errorf("failed to insert %s entry %s: %w", it.Kind, it.Meta.UUID, err)
			}
		}
	}
	return nil
}

func (r *SQLiteRepository) deleteChildren(ctx context.Context, recordUUID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM entries WHERE record_uuid = ?`, recordUUID)
	if err != nil {
		return fmt.Errorf("failed to delete entries of %s: %w", recordUUID, err)
	}
	return nil
}

func (r *SQLiteRepository) GetByUUID(ctx context.Context, uuid string) (*models.MedicalRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE uuid = ?`, uuid)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to get record %s: %w", uuid, err)
	}
	if err := r.loadChildren(ctx, []*models.MedicalRecord{rec}); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*models.MedicalRecord, error) {
	return r.list(ctx, `SELECT `+recordColumns+` FROM records ORDER BY updated_at DESC`)
}

func (r *SQLiteRepository) ListCloudEnabled(ctx context.Context) ([]*models.MedicalRecord, error) {
	return r.list(ctx, `SELECT `+recordColumns+` FROM records WHERE is_cloud_enabled = 1 ORDER BY updated_at DESC`)
}

func (r *SQLiteRepository) list(ctx context.Context, query string) ([]*models.MedicalRecord, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}
	defer rows.Close()

	var result []*models.MedicalRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	rows.Close()

	if err := r.loadChildren(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) loadChildren(ctx context.Context, recs []*models.MedicalRecord) error {
	for _, rec := range recs {
		rows, err := r.db.QueryContext(ctx,
			`SELECT uuid, kind, created_at, updated_at, payload FROM entries
			 WHERE record_uuid = ? ORDER BY kind, position`, rec.UUID)
		if err != nil {
			return fmt.Errorf("failed to select entries of %s: %w", rec.UUID, err)
		}

		byKind := map[models.ChildKind][]models.Item{}
		for rows.Next() {
			var it models.Item
			var kind, payload string
			var created, updated int64
			if err := rows.Scan(&it.Meta.UUID, &kind, &created, &updated, &payload); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan entry of %s: %w", rec.UUID, err)
			}
			it.Kind = models.ChildKind(kind)
			it.Meta.CreatedAt = fromNanos(created)
			it.Meta.UpdatedAt = fromNanos(updated)
			it.Data = json.RawMessage(payload)
			byKind[it.Kind] = append(byKind[it.Kind], it)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return fmt.Errorf("failed to iterate entries of %s: %w", rec.UUID, err)
		}

		for _, c := range models.Collections {
			if err := c.SetItems(rec, byKind[c.Kind()]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *SQLiteRepository) UpdateCloudState(ctx context.Context, uuid string, state models.CloudState) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE records SET is_cloud_enabled = ?, cloud_record_name = ?, cloud_share_record_name = ?,
			is_sharing_enabled = ?, participants_summary = ?
		 WHERE uuid = ?`,
		state.IsCloudEnabled, nullString(state.CloudRecordName), nullString(state.CloudShareRecordName),
		state.IsSharingEnabled, state.ParticipantsSummary, uuid)
	if err != nil {
		return fmt.Errorf("failed to update cloud state of %s: %w", uuid, err)
	}
	return expectOneRow(res)
}

func (r *SQLiteRepository) Delete(ctx context.Context, uuid string) error {
	if err := r.deleteChildren(ctx, uuid); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE uuid = ?`, uuid)
	if err != nil {
		return fmt.Errorf("failed to delete record %s: %w", uuid, err)
	}
	return expectOneRow(res)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*models.MedicalRecord, error) {
	var rec models.MedicalRecord
	var created, updated int64
	var profile string
	var recordName, shareName sql.NullString

	err := s.Scan(&rec.UUID, &created, &updated, &rec.IsPet, &profile, &rec.Cloud.IsCloudEnabled,
		&recordName, &shareName, &rec.Cloud.IsSharingEnabled, &rec.Cloud.ParticipantsSummary)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(profile), &rec.Profile); err != nil {
		return nil, fmt.Errorf("corrupt profile of %s: %w", rec.UUID, err)
	}
	rec.CreatedAt = fromNanos(created)
	rec.UpdatedAt = fromNanos(updated)
	rec.Cloud.CloudRecordName = stringPtr(recordName)
	rec.Cloud.CloudShareRecordName = stringPtr(shareName)
	return &rec, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// Times are stored as Unix nanoseconds; 0 stands for the zero time.
func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
