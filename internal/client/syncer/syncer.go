// Package syncer pushes opted-in records to the remote store.
//
// A push is fetch-or-create then overwrite: the document is looked up under
// the record's remote key, created when missing, overwritten with the local
// field set and saved. The record's remote name is stored locally only once
// the save succeeded, so a failed push leaves no trace in local state.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/myhealthdata/internal/client/cloud"
	"github.com/dmitrijs2005/myhealthdata/internal/client/codec"
	"github.com/dmitrijs2005/myhealthdata/internal/client/identity"
	"github.com/dmitrijs2005/myhealthdata/internal/client/models"
	"github.com/dmitrijs2005/myhealthdata/internal/client/store"
	"github.com/dmitrijs2005/myhealthdata/internal/common"
	"github.com/dmitrijs2005/myhealthdata/internal/logging"
)

type Engine struct {
	store  *store.Store
	remote cloud.Remote
	zone   string
	logger logging.Logger
}

func New(st *store.Store, remote cloud.Remote, zone string, logger logging.Logger) *Engine {
	if zone == "" {
		zone = common.DefaultZoneName
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Engine{store: st, remote: remote, zone: zone, logger: logger.With("module", "syncer")}
}

// Zone is the private zone records are written to.
func (e *Engine) Zone() string {
	return e.zone
}

// SyncIfNeeded mirrors r to the remote store when r is opted in. On success
// r.Cloud.CloudRecordName holds the confirmed remote name, both in memory
// and in the local store.
func (e *Engine) SyncIfNeeded(ctx context.Context, r *models.MedicalRecord) error {
	if !r.Cloud.IsCloudEnabled {
		return nil
	}
	if err := e.checkAccount(ctx); err != nil {
		return err
	}

	saved, err := e.push(ctx, r)
	if err != nil {
		e.logger.Warn(ctx, "push failed", "uuid", r.UUID, "error", err)
		return err
	}

	identity.ConfirmRemote(r, saved.RecordName)
	if err := e.persistRecordName(ctx, r.UUID, saved.RecordName); err != nil {
		return err
	}
	e.logger.Debug(ctx, "record pushed", "uuid", r.UUID, "record_name", saved.RecordName, "change_tag", saved.ChangeTag)
	return nil
}

// push writes r and returns the stored document without touching local
// state.
func (e *Engine) push(ctx context.Context, r *models.MedicalRecord) (*cloud.Document, error) {
	key := identity.RemoteKey(r)

	doc, err := e.remote.Fetch(ctx, cloud.ScopePrivate, e.zone, key)
	switch {
	case errors.Is(err, cloud.ErrNotFound), errors.Is(err, cloud.ErrZoneNotFound):
		doc = cloud.NewDocument(common.RecordTypeMedicalRecord, e.zone, key)
	case err != nil:
		return nil, cloud.EnrichError(fmt.Errorf("fetch %s: %w", key, err), common.RecordTypeMedicalRecord)
	}

	if err := codec.Apply(doc, r); err != nil {
		return nil, err
	}

	saved, err := e.remote.Save(ctx, doc)
	if err != nil {
		return nil, cloud.EnrichError(fmt.Errorf("save %s: %w", key, err), common.RecordTypeMedicalRecord)
	}
	return saved, nil
}

func (e *Engine) checkAccount(ctx context.Context) error {
	status, err := e.remote.AccountStatus(ctx)
	if err != nil {
		return fmt.Errorf("account status: %w", err)
	}
	if status != cloud.AccountAvailable {
		return &cloud.AccountError{Status: status}
	}
	return nil
}

func (e *Engine) persistRecordName(ctx context.Context, uuid, name string) error {
	err := e.store.Update(ctx, func(ctx context.Context, repos store.Repos) error {
		cur, err := repos.Records.GetByUUID(ctx, uuid)
		if err != nil {
			return err
		}
		n := name
		cur.Cloud.CloudRecordName = &n
		return repos.Records.UpdateCloudState(ctx, uuid, cur.Cloud)
	})
	if errors.Is(err, common.ErrorNotFound) {
		// Deleted locally while the push was in flight.
		e.logger.Info(ctx, "pushed record no longer exists locally", "uuid", uuid)
		return nil
	}
	if err != nil {
		return fmt.Errorf("store record name: %w", err)
	}
	return nil
}

// EnableCloud opts r in and pushes it. The opt-in is kept even when the
// push fails; the next sync retries.
func (e *Engine) EnableCloud(ctx context.Context, r *models.MedicalRecord) error {
	if err := e.setCloudEnabled(ctx, r, true); err != nil {
		return err
	}
	return e.SyncIfNeeded(ctx, r)
}

// DisableCloud stops mirroring r. The remote document and the remote name
// are kept so a later opt-in writes to the same document.
func (e *Engine) DisableCloud(ctx context.Context, r *models.MedicalRecord) error {
	return e.setCloudEnabled(ctx, r, false)
}

func (e *Engine) setCloudEnabled(ctx context.Context, r *models.MedicalRecord, enabled bool) error {
	err := e.store.Update(ctx, func(ctx context.Context, repos store.Repos) error {
		cur, err := repos.Records.GetByUUID(ctx, r.UUID)
		if err != nil {
			return err
		}
		cur.Cloud.IsCloudEnabled = enabled
		return repos.Records.UpdateCloudState(ctx, r.UUID, cur.Cloud)
	})
	if err != nil {
		return err
	}
	r.Cloud.IsCloudEnabled = enabled
	return nil
}

// RecordError is one failed record of a SyncAll run.
type RecordError struct {
	UUID string
	Name string
	Err  error
}

func (e RecordError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Name, e.UUID, e.Err)
}

func (e RecordError) Unwrap() error {
	return e.Err
}

type Report struct {
	Synced   int
	Failures []RecordError
	Duration time.Duration
}

// SyncAll pushes every opted-in record. A failing record is reported and
// the loop moves on.
func (e *Engine) SyncAll(ctx context.Context) (Report, error) {
	started := time.Now()
	var recs []*models.MedicalRecord
	err := e.store.View(ctx, func(ctx context.Context, repos store.Repos) error {
		var err error
		recs, err = repos.Records.ListCloudEnabled(ctx)
		return err
	})
	if err != nil {
		return Report{}, fmt.Errorf("list cloud records: %w", err)
	}

	var rep Report
	for _, r := range recs {
		if err := e.SyncIfNeeded(ctx, r); err != nil {
			rep.Failures = append(rep.Failures, RecordError{UUID: r.UUID, Name: r.DisplayName(), Err: err})
			continue
		}
		rep.Synced++
	}
	rep.Duration = time.Since(started)
	e.logger.Info(ctx, "sync all finished", "synced", rep.Synced, "failed", len(rep.Failures), "duration", rep.Duration)
	return rep, nil
}
