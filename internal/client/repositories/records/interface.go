// Package records persists MedicalRecords and their child entries in SQLite.
package records

import (
	"context"

	"github.com/dmitrijs2005/myhealthdata/internal/client/models"
)

// Repository stores records together with all of their child entries.
// Methods that touch several tables expect to run inside a transaction.
type Repository interface {
	// Upsert inserts r or overwrites the stored copy with the same uuid,
	// replacing its children.
	Upsert(ctx context.Context, r *models.MedicalRecord) error

	// GetByUUID returns the record with its children, or common.ErrorNotFound.
	GetByUUID(ctx context.Context, uuid string) (*models.MedicalRecord, error)

	// List returns every record with its children, newest first.
	List(ctx context.Context) ([]*models.MedicalRecord, error)

	// ListCloudEnabled returns the records opted into cloud mirroring.
	ListCloudEnabled(ctx context.Context) ([]*models.MedicalRecord, error)

	// UpdateCloudState rewrites only the bookkeeping columns. UpdatedAt is
	// left alone.
	UpdateCloudState(ctx context.Context, uuid string, state models.CloudState) error

	// Delete removes the record and all of its children, or returns
	// common.ErrorNotFound.
	Delete(ctx context.Context, uuid string) error
}
