package fetcher

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/myhealthdata/internal/client/cloud"
	"github.com/dmitrijs2005/myhealthdata/internal/client/cloud/cloudtest"
	"github.com/dmitrijs2005/myhealthdata/internal/client/codec"
	"github.com/dmitrijs2005/myhealthdata/internal/client/models"
	"github.com/dmitrijs2005/myhealthdata/internal/client/store"
	"github.com/dmitrijs2005/myhealthdata/internal/client/suppression"
	"github.com/dmitrijs2005/myhealthdata/internal/client/syncer"
	"github.com/dmitrijs2005/myhealthdata/internal/common"
	"github.com/dmitrijs2005/myhealthdata/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const zone = common.DefaultZoneName

var t0 = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "phr.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func setup(t *testing.T) (*store.Store, *cloudtest.Memory, *Engine) {
	t.Helper()
	st := openStore(t)
	mem := cloudtest.NewMemory()
	e := New(st, mem, zone, logging.Nop{})
	e.now = func() time.Time { return t0.Add(24 * time.Hour) }
	return st, mem, e
}

func remoteDoc(name, uuid string, updated *time.Time, given string) *cloud.Document {
	doc := cloud.NewDocument(common.RecordTypeMedicalRecord, zone, name)
	if uuid != "" {
		doc.Set(codec.FieldUUID, uuid)
	}
	if updated != nil {
		doc.Set(codec.FieldUpdatedAt, updated.Format(time.RFC3339Nano))
	}
	doc.Set(codec.FieldSchemaVersion, 1.0)
	doc.Set("isPet", false)
	if given != "" {
		doc.Set("personalGivenName", given)
	}
	return doc
}

func at(d time.Duration) *time.Time {
	t := t0.Add(d)
	return &t
}

func localRecord(t *testing.T, st *store.Store, updated time.Time, given string) *models.MedicalRecord {
	t.Helper()
	r := models.NewMedicalRecord(t0, false)
	r.UpdatedAt = updated
	r.PersonalGivenName = given
	require.NoError(t, st.Update(context.Background(), func(ctx context.Context, repos store.Repos) error {
		return repos.Records.Upsert(ctx, r)
	}))
	return r
}

func load(t *testing.T, st *store.Store, uuid string) *models.MedicalRecord {
	t.Helper()
	var r *models.MedicalRecord
	require.NoError(t, st.View(context.Background(), func(ctx context.Context, repos store.Repos) error {
		var err error
		r, err = repos.Records.GetByUUID(ctx, uuid)
		return err
	}))
	return r
}

func TestImport_LocalNewerWins(t *testing.T) {
	st, _, e := setup(t)
	local := localRecord(t, st, t0.Add(2*time.Hour), "Local")

	res, err := e.Import(context.Background(), []*cloud.Document{
		remoteDoc("rn", local.UUID, at(time.Hour), "Remote"),
	})
	require.NoError(t, err)
	require.Len(t, res.Documents, 1)
	assert.Equal(t, OutcomeKeptLocal, res.Documents[0].Outcome)

	got := load(t, st, local.UUID)
	assert.Equal(t, "Local", got.PersonalGivenName)
	assert.True(t, got.UpdatedAt.Equal(t0.Add(2*time.Hour)))
	assert.False(t, got.Cloud.IsCloudEnabled)
	assert.Nil(t, got.Cloud.CloudRecordName)
}

func TestImport_RemoteNewerOverwrites(t *testing.T) {
	st, _, e := setup(t)
	local := localRecord(t, st, t0, "Local")

	res, err := e.Import(context.Background(), []*cloud.Document{
		remoteDoc("server-name", local.UUID, at(time.Hour), "Remote"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count(OutcomeUpdated))

	got := load(t, st, local.UUID)
	assert.Equal(t, "Remote", got.PersonalGivenName)
	assert.True(t, got.UpdatedAt.Equal(t0.Add(time.Hour)), "updatedAt is the remote value exactly")
	assert.True(t, got.Cloud.IsCloudEnabled)
	require.NotNil(t, got.Cloud.CloudRecordName)
	assert.Equal(t, "server-name", *got.Cloud.CloudRecordName)
	assert.True(t, got.CreatedAt.Equal(t0))
}

func TestImport_EqualTimestampsRemoteApplied(t *testing.T) {
	st, _, e := setup(t)
	local := localRecord(t, st, t0.Add(time.Hour), "Local")

	res, err := e.Import(context.Background(), []*cloud.Document{
		remoteDoc("rn", local.UUID, at(time.Hour), "Remote"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count(OutcomeUpdated))
	assert.Equal(t, "Remote", load(t, st, local.UUID).PersonalGivenName)
}

func TestImport_MissingRemoteTimestampIsEarliest(t *testing.T) {
	st, _, e := setup(t)
	local := localRecord(t, st, t0, "Local")

	res, err := e.Import(context.Background(), []*cloud.Document{
		remoteDoc("rn", local.UUID, nil, "Remote"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count(OutcomeKeptLocal))
	assert.Equal(t, "Local", load(t, st, local.UUID).PersonalGivenName)
}

func TestImport_CreatesNewRecord(t *testing.T) {
	st, _, e := setup(t)

	doc := remoteDoc("rn", "new-uuid", at(time.Hour), "Fresh")
	doc.Set(codec.FieldCreatedAt, t0.Format(time.RFC3339Nano))
	doc.Set("bloodEntries", []any{map[string]any{"uuid": "b1", "updatedAt": t0.Format(time.RFC3339Nano), "name": "AB"}})

	res, err := e.Import(context.Background(), []*cloud.Document{doc})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count(OutcomeCreated))
	require.Len(t, res.Records, 1)

	got := load(t, st, "new-uuid")
	assert.Equal(t, "Fresh", got.PersonalGivenName)
	assert.True(t, got.CreatedAt.Equal(t0))
	assert.True(t, got.UpdatedAt.Equal(t0.Add(time.Hour)))
	assert.True(t, got.Cloud.IsCloudEnabled)
	require.NotNil(t, got.Cloud.CloudRecordName)
	assert.Equal(t, "rn", *got.Cloud.CloudRecordName)
	require.Len(t, got.Blood, 1)
	assert.Equal(t, "AB", got.Blood[0].Name)
}

func TestImport_SkipsMalformed(t *testing.T) {
	st, _, e := setup(t)

	res, err := e.Import(context.Background(), []*cloud.Document{
		remoteDoc("no-uuid", "", at(time.Hour), "Ghost"),
		remoteDoc("ok", "good-uuid", at(time.Hour), "Good"),
	})
	require.NoError(t, err)
	require.Len(t, res.Documents, 2)
	assert.Equal(t, OutcomeSkipped, res.Documents[0].Outcome)
	assert.ErrorIs(t, res.Documents[0].Err, cloud.ErrMalformedDocument)
	assert.Equal(t, OutcomeCreated, res.Documents[1].Outcome)

	assert.Equal(t, "Good", load(t, st, "good-uuid").PersonalGivenName)

	var all []*models.MedicalRecord
	require.NoError(t, st.View(context.Background(), func(ctx context.Context, repos store.Repos) error {
		var err error
		all, err = repos.Records.List(ctx)
		return err
	}))
	assert.Len(t, all, 1)
}

func TestImport_BadFieldIsWarningNotFailure(t *testing.T) {
	st, _, e := setup(t)
	doc := remoteDoc("rn", "u1", at(time.Hour), "Name")
	doc.Set("personalFamilyName", 12.0)

	res, err := e.Import(context.Background(), []*cloud.Document{doc})
	require.NoError(t, err)
	require.Len(t, res.Documents, 1)
	assert.Equal(t, OutcomeCreated, res.Documents[0].Outcome)
	assert.Len(t, res.Documents[0].Warnings, 1)
	assert.Equal(t, "Name", load(t, st, "u1").PersonalGivenName)
}

func TestImport_MigratesLegacyEmergencyContact(t *testing.T) {
	st, _, e := setup(t)
	doc := remoteDoc("rn", "u1", at(time.Hour), "")
	doc.Set("emergencyName", "Bob")
	doc.Set("emergencyNumber", "555")

	_, err := e.Import(context.Background(), []*cloud.Document{doc})
	require.NoError(t, err)

	got := load(t, st, "u1")
	require.Len(t, got.EmergencyContacts, 1)
	assert.Equal(t, "Bob", got.EmergencyContacts[0].Name)
}

// openStoreRejecting returns a store whose entries table refuses the child
// uuid poison, standing in for any write the local database turns down.
func openStoreRejecting(t *testing.T, poison string) *store.Store {
	t.Helper()
	ctx := context.Background()
	db, err := sql.Open("sqlite", store.DSN(filepath.Join(t.TempDir(), "phr.db")))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	require.NoError(t, store.RunMigrations(ctx, db))
	_, err = db.ExecContext(ctx, `CREATE TRIGGER reject_entry BEFORE INSERT ON entries
		WHEN NEW.uuid = '`+poison+`'
		BEGIN SELECT RAISE(ABORT, 'entry rejected'); END`)
	require.NoError(t, err)

	st := store.New(db)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestImport_RefusedDocumentLeavesLocalRecordIntact(t *testing.T) {
	st := openStoreRejecting(t, "poison")
	e := New(st, cloudtest.NewMemory(), zone, logging.Nop{})
	e.now = func() time.Time { return t0.Add(24 * time.Hour) }

	local := models.NewMedicalRecord(t0, false)
	local.PersonalGivenName = "Sam"
	local.Weights = []models.WeightEntry{{EntryMeta: models.EntryMeta{UUID: "w1", CreatedAt: t0, UpdatedAt: t0}, WeightKg: 70}}
	require.NoError(t, st.Update(context.Background(), func(ctx context.Context, repos store.Repos) error {
		return repos.Records.Upsert(ctx, local)
	}))

	bad := remoteDoc("bad", local.UUID, at(time.Hour), "Remote")
	bad.Set("bloodEntries", []any{map[string]any{"uuid": "poison", "name": "AB"}})
	good := remoteDoc("good", "good-uuid", at(time.Hour), "Good")

	changes, cancel := st.Subscribe(8)
	defer cancel()

	res, err := e.Import(context.Background(), []*cloud.Document{bad, good})
	require.NoError(t, err)
	require.Len(t, res.Documents, 2)
	assert.Equal(t, OutcomeSkipped, res.Documents[0].Outcome)
	assert.ErrorIs(t, res.Documents[0].Err, ErrPersistence)
	assert.Equal(t, OutcomeCreated, res.Documents[1].Outcome)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "good-uuid", res.Records[0].UUID)

	got := load(t, st, local.UUID)
	assert.Equal(t, "Sam", got.PersonalGivenName)
	assert.True(t, got.UpdatedAt.Equal(t0))
	assert.False(t, got.Cloud.IsCloudEnabled)
	assert.Empty(t, got.Blood)
	require.Len(t, got.Weights, 1)
	assert.Equal(t, "w1", got.Weights[0].UUID)

	assert.Equal(t, "Good", load(t, st, "good-uuid").PersonalGivenName)

	require.Len(t, changes, 1)
	assert.Equal(t, "good-uuid", (<-changes).UUID)
}

func TestImport_CommitFailureReported(t *testing.T) {
	st, _, e := setup(t)
	require.NoError(t, st.Close())

	_, err := e.Import(context.Background(), []*cloud.Document{remoteDoc("rn", "u1", at(time.Hour), "X")})
	require.Error(t, err)
}

func TestFetchAll_MissingZoneIsEmpty(t *testing.T) {
	_, _, e := setup(t)
	docs, err := e.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestFetchAll_SkipsFailedAndSuppressedDocuments(t *testing.T) {
	st, mem, e := setup(t)
	mem.Put(cloud.ScopePrivate, remoteDoc("a", "ua", at(0), "A"))
	mem.Put(cloud.ScopePrivate, remoteDoc("b", "ub", at(0), "B"))
	mem.RecordErrors["b"] = errors.New("corrupt")
	mem.Put(cloud.ScopeShared, remoteDoc("c", "uc", at(0), "C"))
	mem.Put(cloud.ScopeShared, remoteDoc("d", "ud", at(0), "D"))

	require.NoError(t, suppression.New(st).Add(context.Background(), "uc"))

	docs, err := e.FetchAll(context.Background())
	require.NoError(t, err)
	var names []string
	for _, d := range docs {
		names = append(names, d.RecordName)
	}
	assert.Equal(t, []string{"a", "d"}, names)
}

func TestFetchAll_ScopeFailureReported(t *testing.T) {
	_, mem, e := setup(t)
	mem.QueryErr = cloud.ErrUnavailable

	docs, err := e.FetchAll(context.Background())
	require.ErrorIs(t, err, cloud.ErrUnavailable)
	assert.Empty(t, docs)
}

func TestRefresh_SecondDeviceReceivesPush(t *testing.T) {
	mem := cloudtest.NewMemory()

	deviceA := openStore(t)
	r := models.NewMedicalRecord(t0, true)
	r.PersonalName = "Rex"
	r.Cloud.IsCloudEnabled = true
	r.Weights = []models.WeightEntry{{EntryMeta: models.NewEntryMeta(t0), Date: t0, WeightKg: 21.5}}
	require.NoError(t, deviceA.Update(context.Background(), func(ctx context.Context, repos store.Repos) error {
		return repos.Records.Upsert(ctx, r)
	}))
	require.NoError(t, syncer.New(deviceA, mem, zone, nil).SyncIfNeeded(context.Background(), r))

	deviceB := openStore(t)
	res, err := New(deviceB, mem, zone, nil).Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count(OutcomeCreated))

	got := load(t, deviceB, r.UUID)
	assert.Equal(t, "Rex", got.DisplayName())
	assert.True(t, got.IsPet)
	require.Len(t, got.Weights, 1)
	assert.Equal(t, 21.5, got.Weights[0].WeightKg)
	assert.True(t, got.UpdatedAt.Equal(r.UpdatedAt))
}

func TestWatch_StopsOnCancel(t *testing.T) {
	_, _, e := setup(t)
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := e.Watch(ctx, time.Hour, func(Result, error) {
		calls++
		cancel()
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
