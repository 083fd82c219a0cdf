package shares

import (
	"context"

	"github.com/dmitrijs2005/myhealthdata/internal/server/models"
)

type Repository interface {
	Upsert(ctx context.Context, share *models.Share) (*models.Share, error)
	GetByName(ctx context.Context, name string) (*models.Share, error)
	GetByToken(ctx context.Context, token string) (*models.Share, error)

	AddParticipant(ctx context.Context, p *models.Participant) error
	Participant(ctx context.Context, shareName, userID string) (*models.Participant, error)
	Participants(ctx context.Context, shareName string) ([]*models.Participant, error)
}
