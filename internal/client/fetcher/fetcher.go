// Package fetcher pulls remote documents and merges them into the local
// store with a last-writer-wins policy on the record's updatedAt.
package fetcher

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
	"github.com/dmitrijs2005/myhealthdata/internal/client/suppression"
	"github.com/dmitrijs2005/myhealthdata/internal/common"
	"github.com/dmitrijs2005/myhealthdata/internal/logging"
)

type Engine struct {
	store  *store.Store
	remote cloud.Remote
	zone   string
	logger logging.Logger
	now    func() time.Time
}

func New(st *store.Store, remote cloud.Remote, zone string, logger logging.Logger) *Engine {
	if zone == "" {
		zone = common.DefaultZoneName
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Engine{
		store:  st,
		remote: remote,
		zone:   zone,
		logger: logger.With("module", "fetcher"),
		now:    time.Now,
	}
}

// FetchAll queries the private scope and the shared scope. A missing zone
// counts as no documents. Documents that fail to load are logged and
// skipped, as are shared documents whose uuid the user suppressed. The
// returned error joins the scope-level failures; documents from a scope
// that worked are still returned.
func (e *Engine) FetchAll(ctx context.Context) ([]*cloud.Document, error) {
	var docs []*cloud.Document
	var errs []error

	for _, scope := range []cloud.Scope{cloud.ScopePrivate, cloud.ScopeShared} {
		got, err := e.fetchScope(ctx, scope)
		if err != nil {
			errs = append(errs, fmt.Errorf("fetch %s scope: %w", scope, err))
			continue
		}
		docs = append(docs, got...)
	}
	return docs, errors.Join(errs...)
}

func (e *Engine) fetchScope(ctx context.Context, scope cloud.Scope) ([]*cloud.Document, error) {
	results, err := e.remote.Query(ctx, scope, e.zone, common.RecordTypeMedicalRecord)
	if errors.Is(err, cloud.ErrZoneNotFound) {
		e.logger.Debug(ctx, "zone does not exist yet", "scope", scope, "zone", e.zone)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	docs := make([]*cloud.Document, 0, len(results))
	for _, res := range results {
		if res.Err != nil {
			e.logger.Warn(ctx, "skipping document", "scope", scope, "record_name", res.RecordName, "error", res.Err)
			continue
		}
		if scope == cloud.ScopeShared {
			skip, err := e.suppressed(ctx, res.Document)
			if err != nil {
				return nil, err
			}
			if skip {
				e.logger.Debug(ctx, "suppressed shared document", "record_name", res.RecordName)
				continue
			}
		}
		docs = append(docs, res.Document)
	}
	return docs, nil
}

func (e *Engine) suppressed(ctx context.Context, doc *cloud.Document) (bool, error) {
	id, err := identity.EmbeddedUUID(doc)
	if err != nil {
		// Import skips it anyway.
		return false, nil
	}
	var skip bool
	err = e.store.View(ctx, func(ctx context.Context, repos store.Repos) error {
		var err error
		skip, err = suppression.IsSuppressed(ctx, repos.Metadata, id)
		return err
	})
	return skip, err
}

// Outcome is what happened to one document during Import.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeKeptLocal Outcome = "kept_local"
	OutcomeSkipped   Outcome = "skipped"
)

type DocumentResult struct {
	RecordName string
	UUID       string
	Outcome    Outcome
	// Err is set for skipped documents; Warnings lists field-level
	// problems of documents that were still applied.
	Err      error
	Warnings []error
}

type Result struct {
	Documents []DocumentResult
	// Records are the in-memory records that were created or overwritten.
	Records []*models.MedicalRecord
}

func (r Result) Count(o Outcome) int {
	n := 0
	for _, d := range r.Documents {
		if d.Outcome == o {
			n++
		}
	}
	return n
}

// Import merges docs into the local store in one transaction.
//
// A document overwrites its local record unless the local updatedAt is
// strictly newer; a missing remote updatedAt counts as the earliest time.
// Applied records are marked cloud-enabled under the document's record
// name. Each document is written in its own savepoint, so a document the
// store refuses leaves its local record exactly as it was. When the commit
// fails the error is returned and Result still describes the in-memory
// state; nothing is rolled back in memory.
func (e *Engine) Import(ctx context.Context, docs []*cloud.Document) (Result, error) {
	var res Result
	err := e.store.Update(ctx, func(ctx context.Context, repos store.Repos) error {
		for _, doc := range docs {
			dr, rec := e.importOne(ctx, repos, doc)
			res.Documents = append(res.Documents, dr)
			if rec != nil {
				res.Records = append(res.Records, rec)
			}
		}
		return nil
	})
	if err != nil {
		e.logger.Error(ctx, "import commit failed", "documents", len(docs), "error", err)
		return res, fmt.Errorf("commit import: %w", err)
	}
	e.logger.Info(ctx, "import finished",
		"created", res.Count(OutcomeCreated),
		"updated", res.Count(OutcomeUpdated),
		"kept_local", res.Count(OutcomeKeptLocal),
		"skipped", res.Count(OutcomeSkipped))
	return res, nil
}

func (e *Engine) importOne(ctx context.Context, repos store.Repos, doc *cloud.Document) (DocumentResult, *models.MedicalRecord) {
	dr := DocumentResult{RecordName: doc.RecordName}
	skip := func(err error) (DocumentResult, *models.MedicalRecord) {
		dr.Outcome = OutcomeSkipped
		dr.Err = err
		e.logger.Warn(ctx, "skipping document", "record_name", doc.RecordName, "error", err)
		return dr, nil
	}

	id, err := identity.EmbeddedUUID(doc)
	if err != nil {
		return skip(err)
	}
	dr.UUID = id

	rec, err := identity.ResolveLocal(ctx, repos.Records, doc)
	if err != nil {
		return skip(err)
	}

	remoteUpdated, _ := codec.RemoteUpdatedAt(doc)
	if rec != nil && rec.UpdatedAt.After(remoteUpdated) {
		dr.Outcome = OutcomeKeptLocal
		return dr, nil
	}

	dr.Outcome = OutcomeUpdated
	if rec == nil {
		now := e.now().UTC()
		rec = &models.MedicalRecord{UUID: id, CreatedAt: now, UpdatedAt: now}
		dr.Outcome = OutcomeCreated
	}

	dr.Warnings = codec.Decode(doc, rec)
	codec.MigrateLegacyContact(rec)
	rec.Cloud.IsCloudEnabled = true
	identity.ConfirmRemote(rec, doc.RecordName)

	err = repos.Savepoint(ctx, "import_doc", func(ctx context.Context) error {
		return repos.Records.Upsert(ctx, rec)
	})
	if err != nil {
		return skip(fmt.Errorf("%w: %v", ErrPersistence, err))
	}
	return dr, rec
}

// ErrPersistence marks a document the local store refused.
var ErrPersistence = errors.New("local persistence failed")

// Refresh runs FetchAll followed by Import.
func (e *Engine) Refresh(ctx context.Context) (Result, error) {
	docs, fetchErr := e.FetchAll(ctx)
	res, err := e.Import(ctx, docs)
	return res, errors.Join(fetchErr, err)
}

// Watch calls Refresh immediately and then every interval until ctx is
// done. Failures are logged and the loop continues.
func (e *Engine) Watch(ctx context.Context, interval time.Duration, onResult func(Result, error)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		res, err := e.Refresh(ctx)
		if err != nil {
			e.logger.Warn(ctx, "refresh failed", "error", err)
		}
		if onResult != nil {
			onResult(res, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
