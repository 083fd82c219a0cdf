package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/myhealthdata/internal/client/cloud"
	"github.com/dmitrijs2005/myhealthdata/internal/client/identity"
	"github.com/dmitrijs2005/myhealthdata/internal/client/models"
	"github.com/dmitrijs2005/myhealthdata/internal/client/store"
	"github.com/dmitrijs2005/myhealthdata/internal/client/suppression"
	"github.com/dmitrijs2005/myhealthdata/internal/client/syncer"
	"github.com/dmitrijs2005/myhealthdata/internal/logging"
)

var (
	// ErrPushFailed wraps a push error after the local save succeeded.
	ErrPushFailed = errors.New("saved locally, cloud push failed")
	// ErrRemoteCleanup wraps a remote delete error after the local delete
	// succeeded.
	ErrRemoteCleanup = errors.New("deleted locally, remote cleanup failed")
	ErrUnknownKind   = errors.New("unknown entry kind")
	ErrEntryNotFound = errors.New("entry not found")
	ErrNoContact     = errors.New("no contact picked")
)

// RecordService is the local record CRUD used by the CLI. Every mutation
// advances the record's updatedAt and pushes opted-in records.
type RecordService struct {
	store  *store.Store
	remote cloud.Remote
	syncer *syncer.Engine
	logger logging.Logger
	now    func() time.Time
}

func NewRecordService(st *store.Store, remote cloud.Remote, sync *syncer.Engine, logger logging.Logger) *RecordService {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &RecordService{
		store:  st,
		remote: remote,
		syncer: sync,
		logger: logger.With("module", "records"),
		now:    time.Now,
	}
}

func (s *RecordService) Create(ctx context.Context, isPet bool, edit func(r *models.MedicalRecord) error) (*models.MedicalRecord, error) {
	r := models.NewMedicalRecord(s.now(), isPet)
	if edit != nil {
		if err := edit(r); err != nil {
			return nil, err
		}
	}
	r.EnsureChildIdentity(s.now())
	if err := r.Validate(); err != nil {
		return nil, err
	}
	err := s.store.Update(ctx, func(ctx context.Context, repos store.Repos) error {
		return repos.Records.Upsert(ctx, r)
	})
	if err != nil {
		return nil, fmt.Errorf("create record: %w", err)
	}
	return r, nil
}

func (s *RecordService) Get(ctx context.Context, uuid string) (*models.MedicalRecord, error) {
	var r *models.MedicalRecord
	err := s.store.View(ctx, func(ctx context.Context, repos store.Repos) error {
		var err error
		r, err = repos.Records.GetByUUID(ctx, uuid)
		return err
	})
	return r, err
}

func (s *RecordService) List(ctx context.Context) ([]*models.MedicalRecord, error) {
	var out []*models.MedicalRecord
	err := s.store.View(ctx, func(ctx context.Context, repos store.Repos) error {
		var err error
		out, err = repos.Records.List(ctx)
		return err
	})
	return out, err
}

// Update applies edit to the stored record, saves it and pushes it when it
// is opted in. When only the push fails, the saved record is returned with
// an error wrapping ErrPushFailed.
func (s *RecordService) Update(ctx context.Context, uuid string, edit func(r *models.MedicalRecord) error) (*models.MedicalRecord, error) {
	var r *models.MedicalRecord
	err := s.store.Update(ctx, func(ctx context.Context, repos store.Repos) error {
		var err error
		if r, err = repos.Records.GetByUUID(ctx, uuid); err != nil {
			return err
		}
		if err := edit(r); err != nil {
			return err
		}
		now := s.now()
		r.EnsureChildIdentity(now)
		if err := r.Validate(); err != nil {
			return err
		}
		r.Touch(now)
		return repos.Records.Upsert(ctx, r)
	})
	if err != nil {
		return nil, err
	}

	if err := s.syncer.SyncIfNeeded(ctx, r); err != nil {
		return r, fmt.Errorf("%w: %w", ErrPushFailed, err)
	}
	return r, nil
}

// Delete removes the record and its entries. A cloud-enabled record's
// remote document is deleted first; when that fails the local delete still
// happens and the returned error wraps ErrRemoteCleanup. The uuid is also
// suppressed so a shared copy is not imported again.
func (s *RecordService) Delete(ctx context.Context, uuid string) error {
	r, err := s.Get(ctx, uuid)
	if err != nil {
		return err
	}

	var remoteErr error
	if r.Cloud.IsCloudEnabled && r.Cloud.CloudRecordName != nil {
		remoteErr = s.remote.Delete(ctx, s.syncer.Zone(), identity.RemoteKey(r))
		if errors.Is(remoteErr, cloud.ErrNotFound) || errors.Is(remoteErr, cloud.ErrZoneNotFound) {
			remoteErr = nil
		}
		if remoteErr != nil {
			s.logger.Warn(ctx, "remote delete failed", "uuid", uuid, "error", remoteErr)
		}
	}

	err = s.store.Update(ctx, func(ctx context.Context, repos store.Repos) error {
		if err := repos.Records.Delete(ctx, uuid); err != nil {
			return err
		}
		return suppression.Suppress(ctx, repos.Metadata, uuid)
	})
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if remoteErr != nil {
		return fmt.Errorf("%w: %w", ErrRemoteCleanup, remoteErr)
	}
	return nil
}

// AddEntry appends a child entry given as the JSON body of kind and returns
// the new entry's uuid.
func (s *RecordService) AddEntry(ctx context.Context, uuid string, kind models.ChildKind, body json.RawMessage) (string, error) {
	c, ok := models.CollectionByKind(kind)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	var entryUUID string
	_, err := s.Update(ctx, uuid, func(r *models.MedicalRecord) error {
		items, err := c.Items(r)
		if err != nil {
			return err
		}
		meta := models.NewEntryMeta(s.now())
		entryUUID = meta.UUID
		items = append(items, models.Item{Kind: kind, Meta: meta, Data: body})
		return c.SetItems(r, items)
	})
	return entryUUID, err
}

// RemoveEntry deletes one child entry by uuid.
func (s *RecordService) RemoveEntry(ctx context.Context, uuid string, kind models.ChildKind, entryUUID string) error {
	c, ok := models.CollectionByKind(kind)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	_, err := s.Update(ctx, uuid, func(r *models.MedicalRecord) error {
		items, err := c.Items(r)
		if err != nil {
			return err
		}
		kept := items[:0]
		for _, it := range items {
			if it.Meta.UUID != entryUUID {
				kept = append(kept, it)
			}
		}
		if len(kept) == len(items) {
			return fmt.Errorf("%w: %s", ErrEntryNotFound, entryUUID)
		}
		return c.SetItems(r, kept)
	})
	return err
}

// CopyVetFromContact fills the vet fields from a contact the user picks.
func (s *RecordService) CopyVetFromContact(ctx context.Context, uuid string, src models.ContactSource) (*models.MedicalRecord, error) {
	c, err := src.Pick(ctx)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrNoContact
	}
	return s.Update(ctx, uuid, func(r *models.MedicalRecord) error {
		r.CopyVetDetails(*c)
		return nil
	})
}

// AddEmergencyContactFrom appends a contact the user picks.
func (s *RecordService) AddEmergencyContactFrom(ctx context.Context, uuid string, src models.ContactSource) (*models.MedicalRecord, error) {
	c, err := src.Pick(ctx)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrNoContact
	}
	return s.Update(ctx, uuid, func(r *models.MedicalRecord) error {
		r.EmergencyContacts = append(r.EmergencyContacts, models.EmergencyContactFrom(*c, models.NewEntryMeta(s.now())))
		return nil
	})
}
