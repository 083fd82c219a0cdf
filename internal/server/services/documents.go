package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/myhealthdata/internal/common"
	"github.com/dmitrijs2005/myhealthdata/internal/dbx"
	"github.com/dmitrijs2005/myhealthdata/internal/server/auth"
	"github.com/dmitrijs2005/myhealthdata/internal/server/config"
	"github.com/dmitrijs2005/myhealthdata/internal/server/models"
	"github.com/dmitrijs2005/myhealthdata/internal/server/repositories/repomanager"
	"github.com/oklog/ulid/v2"
)

// Scope selects the caller's own documents or the share roots others
// granted it.
type Scope string

const (
	ScopePrivate Scope = "private"
	ScopeShared  Scope = "shared"
)

// newChangeTag is a seam for tests.
var newChangeTag = func() string {
	return ulid.Make().String()
}

// DocumentService is the document store behind the record RPCs.
type DocumentService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	environment config.Environment
}

func NewDocumentService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *DocumentService {
	return &DocumentService{
		db:          db,
		repomanager: m,
		environment: cfg.Environment,
	}
}

func validateDocument(doc *models.Document) error {
	switch {
	case doc == nil:
		return fmt.Errorf("%w: document is required", common.ErrorValidation)
	case doc.RecordName == "":
		return fmt.Errorf("%w: record name is required", common.ErrorValidation)
	case doc.RecordType == "":
		return fmt.Errorf("%w: record type is required", common.ErrorValidation)
	case doc.Zone == "":
		return fmt.Errorf("%w: zone is required", common.ErrorValidation)
	}
	return nil
}

func (s *DocumentService) ensureRecordType(ctx context.Context, tx dbx.DBTX, recordType string) error {
	repo := s.repomanager.RecordTypes(tx)

	ok, err := repo.Exists(ctx, recordType)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if s.environment == config.EnvProduction {
		return fmt.Errorf("%w %s in production schema", ErrUnknownRecordType, recordType)
	}
	return repo.Create(ctx, recordType)
}

// saveTx stores doc for the caller inside tx. A non-empty change tag must
// match the stored one.
func (s *DocumentService) saveTx(ctx context.Context, tx dbx.DBTX, id auth.Identity, doc *models.Document) (*models.Document, error) {
	if err := validateDocument(doc); err != nil {
		return nil, err
	}
	if err := s.ensureRecordType(ctx, tx, doc.RecordType); err != nil {
		return nil, err
	}
	if err := s.repomanager.Zones(tx).Ensure(ctx, id.UserID, doc.Zone); err != nil {
		return nil, err
	}

	docs := s.repomanager.Documents(tx)
	existing, err := docs.Get(ctx, id.UserID, doc.Zone, doc.RecordName)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}
	if existing != nil && doc.ChangeTag != "" && doc.ChangeTag != existing.ChangeTag {
		return nil, fmt.Errorf("%w: %s", ErrConflict, doc.RecordName)
	}

	doc.OwnerID = id.UserID
	doc.OwnerLogin = id.Login
	doc.ChangeTag = newChangeTag()

	return docs.Upsert(ctx, doc)
}

// Save creates or replaces a document in the caller's zone. The zone is
// created on first use.
func (s *DocumentService) Save(ctx context.Context, id auth.Identity, doc *models.Document) (*models.Document, error) {
	var saved *models.Document
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		saved, err = s.saveTx(ctx, tx, id, doc)
		return err
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (s *DocumentService) checkZone(ctx context.Context, id auth.Identity, zone string) error {
	ok, err := s.repomanager.Zones(s.db).Exists(ctx, id.UserID, zone)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrZoneNotFound, zone)
	}
	return nil
}

func (s *DocumentService) Fetch(ctx context.Context, id auth.Identity, scope Scope, zone, recordName string) (*models.Document, error) {
	docs := s.repomanager.Documents(s.db)

	var (
		doc *models.Document
		err error
	)
	switch scope {
	case ScopeShared:
		doc, err = docs.GetShared(ctx, id.UserID, zone, recordName)
	case ScopePrivate, "":
		if err := s.checkZone(ctx, id, zone); err != nil {
			return nil, err
		}
		doc, err = docs.Get(ctx, id.UserID, zone, recordName)
	default:
		return nil, fmt.Errorf("%w: unknown scope %q", common.ErrorValidation, scope)
	}
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("record not found: %s: %w", recordName, err)
		}
		return nil, err
	}
	return doc, nil
}

func (s *DocumentService) Delete(ctx context.Context, id auth.Identity, zone, recordName string) error {
	err := s.repomanager.Documents(s.db).Delete(ctx, id.UserID, zone, recordName)
	if errors.Is(err, common.ErrorNotFound) {
		return fmt.Errorf("record not found: %s: %w", recordName, err)
	}
	return err
}

// Query lists documents of recordType visible to the caller in zone.
func (s *DocumentService) Query(ctx context.Context, id auth.Identity, scope Scope, zone, recordType string) ([]*models.Document, error) {
	docs := s.repomanager.Documents(s.db)

	switch scope {
	case ScopeShared:
		return docs.ListShared(ctx, id.UserID, zone, recordType)
	case ScopePrivate, "":
		if err := s.checkZone(ctx, id, zone); err != nil {
			return nil, err
		}
		return docs.ListByType(ctx, id.UserID, zone, recordType)
	default:
		return nil, fmt.Errorf("%w: unknown scope %q", common.ErrorValidation, scope)
	}
}
