package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/dmitrijs2005/myhealthdata/internal/common"
	"github.com/dmitrijs2005/myhealthdata/internal/dbx"
	"github.com/dmitrijs2005/myhealthdata/internal/server/auth"
	"github.com/dmitrijs2005/myhealthdata/internal/server/config"
	"github.com/dmitrijs2005/myhealthdata/internal/server/models"
	"github.com/dmitrijs2005/myhealthdata/internal/server/repositories/repomanager"
	"github.com/oklog/ulid/v2"
)

const shareTokenSize = 16

// ShareView is a share with its public URL and participants.
type ShareView struct {
	Share        *models.Share
	URL          string
	Participants []*models.Participant
}

type ShareService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	documents   *DocumentService
	config      *config.Config
}

func NewShareService(db *sql.DB, m repomanager.RepositoryManager, docs *DocumentService, cfg *config.Config) *ShareService {
	return &ShareService{db: db, repomanager: m, documents: docs, config: cfg}
}

func (s *ShareService) view(ctx context.Context, tx dbx.DBTX, share *models.Share) (*ShareView, error) {
	participants, err := s.repomanager.Shares(tx).Participants(ctx, share.Name)
	if err != nil {
		return nil, err
	}
	return &ShareView{Share: share, URL: s.config.ShareURL(share.Token), Participants: participants}, nil
}

// SaveWithRoot stores root and its share atomically. The owner is recorded
// as an accepted participant.
func (s *ShareService) SaveWithRoot(ctx context.Context, id auth.Identity, root *models.Document, share *models.Share) (*models.Document, *ShareView, error) {
	if share == nil {
		return nil, nil, fmt.Errorf("%w: share is required", common.ErrorValidation)
	}

	var (
		saved *models.Document
		view  *ShareView
	)
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		saved, err = s.documents.saveTx(ctx, tx, id, root)
		if err != nil {
			return err
		}

		token, err := common.MakeRandHexString(shareTokenSize)
		if err != nil {
			return err
		}
		if share.Name == "" {
			share.Name = "share-" + strings.ToLower(ulid.Make().String())
		}
		share.OwnerID = id.UserID
		share.Zone = saved.Zone
		share.RootRecordName = saved.RecordName
		share.Token = token

		repo := s.repomanager.Shares(tx)
		stored, err := repo.Upsert(ctx, share)
		if err != nil {
			return err
		}
		err = repo.AddParticipant(ctx, &models.Participant{
			ShareName:  stored.Name,
			UserID:     id.UserID,
			Role:       models.RoleOwner,
			Acceptance: models.AcceptanceAccepted,
		})
		if err != nil {
			return err
		}

		view, err = s.view(ctx, tx, stored)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return saved, view, nil
}

// Fetch returns a share to its owner or one of its participants.
func (s *ShareService) Fetch(ctx context.Context, id auth.Identity, zone, shareName string) (*ShareView, error) {
	repo := s.repomanager.Shares(s.db)

	share, err := repo.GetByName(ctx, shareName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("share not found: %s: %w", shareName, err)
		}
		return nil, err
	}
	if zone != "" && share.Zone != zone {
		return nil, fmt.Errorf("share not found: %s: %w", shareName, common.ErrorNotFound)
	}
	if share.OwnerID != id.UserID {
		if _, err := repo.Participant(ctx, share.Name, id.UserID); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return nil, common.ErrorForbidden
			}
			return nil, err
		}
	}
	return s.view(ctx, s.db, share)
}

// TokenFromURL accepts a bare token or a share URL and returns the token.
func TokenFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		raw = u.Path
	}
	return path.Base(strings.TrimRight(raw, "/"))
}

// Accept joins the caller to the share behind shareURL. Accepting one's own
// share is a no-op.
func (s *ShareService) Accept(ctx context.Context, id auth.Identity, shareURL string) (*ShareView, error) {
	token := TokenFromURL(shareURL)
	if token == "" || token == "." || token == "/" {
		return nil, fmt.Errorf("%w: share url is required", common.ErrorValidation)
	}

	var view *ShareView
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Shares(tx)
		share, err := repo.GetByToken(ctx, token)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return fmt.Errorf("share not found: %w", err)
			}
			return err
		}
		if share.OwnerID != id.UserID {
			err = repo.AddParticipant(ctx, &models.Participant{
				ShareName:  share.Name,
				UserID:     id.UserID,
				Role:       models.RoleParticipant,
				Acceptance: models.AcceptanceAccepted,
			})
			if err != nil {
				return err
			}
		}
		view, err = s.view(ctx, tx, share)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}
