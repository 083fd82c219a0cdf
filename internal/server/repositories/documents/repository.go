package documents

import (
	"context"

	"github.com/dmitrijs2005/myhealthdata/internal/server/models"
)

// Repository stores owner documents and answers shared-scope reads.
type Repository interface {
	Get(ctx context.Context, ownerID, zone, recordName string) (*models.Document, error)
	Upsert(ctx context.Context, doc *models.Document) (*models.Document, error)
	Delete(ctx context.Context, ownerID, zone, recordName string) error
	ListByType(ctx context.Context, ownerID, zone, recordType string) ([]*models.Document, error)

	// GetShared and ListShared only see share roots userID accepted as a
	// participant.
	GetShared(ctx context.Context, userID, zone, recordName string) (*models.Document, error)
	ListShared(ctx context.Context, userID, zone, recordType string) ([]*models.Document, error)
}
