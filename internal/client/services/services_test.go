package services

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/myhealthdata/internal/client/cloud"
	"github.com/dmitrijs2005/myhealthdata/internal/client/cloud/cloudtest"
	"github.com/dmitrijs2005/myhealthdata/internal/client/models"
	"github.com/dmitrijs2005/myhealthdata/internal/client/store"
	"github.com/dmitrijs2005/myhealthdata/internal/client/suppression"
	"github.com/dmitrijs2005/myhealthdata/internal/client/syncer"
	"github.com/dmitrijs2005/myhealthdata/internal/common"
	"github.com/dmitrijs2005/myhealthdata/internal/cryptox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const zone = common.DefaultZoneName

var t0 = time.Date(2025, 8, 1, 7, 0, 0, 0, time.UTC)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "phr.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// ---- account service ----

type fakeAccountClient struct {
	salts     map[string][]byte
	verifiers map[string][]byte
	token     string
	pingErr   error
}

func newFakeAccountClient() *fakeAccountClient {
	return &fakeAccountClient{salts: map[string][]byte{}, verifiers: map[string][]byte{}}
}

func (f *fakeAccountClient) Register(ctx context.Context, login string, salt, verifier []byte) error {
	if _, ok := f.salts[login]; ok {
		return common.ErrorAlreadyExists
	}
	f.salts[login] = salt
	f.verifiers[login] = verifier
	return nil
}

func (f *fakeAccountClient) GetSalt(ctx context.Context, login string) ([]byte, error) {
	s, ok := f.salts[login]
	if !ok {
		return nil, cloud.ErrUnauthorized
	}
	return s, nil
}

func (f *fakeAccountClient) Login(ctx context.Context, login string, verifier []byte) (string, error) {
	if string(f.verifiers[login]) != string(verifier) {
		return "", cloud.ErrUnauthorized
	}
	f.token = "token-" + login
	return f.token, nil
}

func (f *fakeAccountClient) Ping(ctx context.Context) error { return f.pingErr }
func (f *fakeAccountClient) SetAccessToken(token string)   { f.token = token }

func TestAccount_RegisterLoginRestoreLogout(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	fc := newFakeAccountClient()
	svc := NewAccountService(fc, st)

	require.NoError(t, svc.Register(ctx, "anna", []byte("secret")))
	assert.Len(t, fc.salts["anna"], cryptox.SaltLength)
	assert.Equal(t, cryptox.MakeVerifier(cryptox.DeriveMasterKey([]byte("secret"), fc.salts["anna"])), fc.verifiers["anna"])
	require.ErrorIs(t, svc.Register(ctx, "anna", []byte("x")), common.ErrorAlreadyExists)

	require.ErrorIs(t, svc.Login(ctx, "anna", []byte("wrong")), cloud.ErrUnauthorized)
	require.NoError(t, svc.Login(ctx, "anna", []byte("secret")))

	// A new process restores the session from the store.
	fresh := newFakeAccountClient()
	login, err := NewAccountService(fresh, st).RestoreSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "anna", login)
	assert.Equal(t, "token-anna", fresh.token)

	require.NoError(t, svc.Logout(ctx))
	_, err = NewAccountService(newFakeAccountClient(), st).RestoreSession(ctx)
	require.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestAccount_Ping(t *testing.T) {
	fc := newFakeAccountClient()
	fc.pingErr = cloud.ErrUnavailable
	svc := NewAccountService(fc, openStore(t))
	require.ErrorIs(t, svc.Ping(context.Background()), cloud.ErrUnavailable)
}

// ---- record service ----

func newRecordService(t *testing.T) (*RecordService, *store.Store, *cloudtest.Memory) {
	t.Helper()
	st := openStore(t)
	mem := cloudtest.NewMemory()
	svc := NewRecordService(st, mem, syncer.New(st, mem, zone, nil), nil)
	now := t0
	svc.now = func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	return svc, st, mem
}

func TestRecords_CreateUpdateAdvancesClock(t *testing.T) {
	ctx := context.Background()
	svc, _, mem := newRecordService(t)

	r, err := svc.Create(ctx, false, func(r *models.MedicalRecord) error {
		r.PersonalGivenName = "Anna"
		r.Blood = []models.BloodEntry{{Name: "A+"}}
		return nil
	})
	require.NoError(t, err)
	require.NotEmpty(t, r.Blood[0].UUID, "child identity stamped on create")
	before := r.UpdatedAt

	updated, err := svc.Update(ctx, r.UUID, func(r *models.MedicalRecord) error {
		r.PersonalNickName = "Annie"
		return nil
	})
	require.NoError(t, err)
	assert.True(t, updated.UpdatedAt.After(before))
	assert.Equal(t, "Annie", updated.DisplayName())
	assert.Equal(t, 0, mem.Saves(), "local-only record is not pushed")

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRecords_UpdatePushesOptedIn(t *testing.T) {
	ctx := context.Background()
	svc, _, mem := newRecordService(t)
	r, err := svc.Create(ctx, true, func(r *models.MedicalRecord) error {
		r.Cloud.IsCloudEnabled = true
		return nil
	})
	require.NoError(t, err)

	_, err = svc.Update(ctx, r.UUID, func(r *models.MedicalRecord) error {
		r.PersonalName = "Rex"
		return nil
	})
	require.NoError(t, err)
	docs := mem.Documents(cloud.ScopePrivate, zone)
	require.Len(t, docs, 1)
	assert.Equal(t, "Rex", docs[0].Fields["personalName"])

	mem.SaveErr = cloud.ErrUnavailable
	got, err := svc.Update(ctx, r.UUID, func(r *models.MedicalRecord) error {
		r.PersonalName = "Max"
		return nil
	})
	require.ErrorIs(t, err, ErrPushFailed)
	require.ErrorIs(t, err, cloud.ErrUnavailable)
	assert.Equal(t, "Max", got.PersonalName)

	stored, err := svc.Get(ctx, r.UUID)
	require.NoError(t, err)
	assert.Equal(t, "Max", stored.PersonalName)
}

func TestRecords_UpdateValidates(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newRecordService(t)
	r, err := svc.Create(ctx, false, nil)
	require.NoError(t, err)

	_, err = svc.Update(ctx, r.UUID, func(r *models.MedicalRecord) error {
		for i := 0; i <= models.MaxHumanDoctors; i++ {
			r.HumanDoctors = append(r.HumanDoctors, models.HumanDoctorEntry{Name: "Dr"})
		}
		return nil
	})
	require.ErrorIs(t, err, models.ErrTooManyDoctors)

	stored, err := svc.Get(ctx, r.UUID)
	require.NoError(t, err)
	assert.Empty(t, stored.HumanDoctors)
}

func TestRecords_DeleteWithRemoteCleanup(t *testing.T) {
	ctx := context.Background()
	svc, st, mem := newRecordService(t)
	r, err := svc.Create(ctx, false, func(r *models.MedicalRecord) error {
		r.Cloud.IsCloudEnabled = true
		return nil
	})
	require.NoError(t, err)
	_, err = svc.Update(ctx, r.UUID, func(*models.MedicalRecord) error { return nil })
	require.NoError(t, err)
	require.Len(t, mem.Documents(cloud.ScopePrivate, zone), 1)

	require.NoError(t, svc.Delete(ctx, r.UUID))
	assert.Empty(t, mem.Documents(cloud.ScopePrivate, zone))

	_, err = svc.Get(ctx, r.UUID)
	require.ErrorIs(t, err, common.ErrorNotFound)

	suppressed, err := suppression.New(st).Contains(ctx, r.UUID)
	require.NoError(t, err)
	assert.True(t, suppressed)
}

func TestRecords_DeleteProceedsWhenRemoteFails(t *testing.T) {
	ctx := context.Background()
	svc, _, mem := newRecordService(t)
	r, err := svc.Create(ctx, false, func(r *models.MedicalRecord) error {
		r.Cloud.IsCloudEnabled = true
		return nil
	})
	require.NoError(t, err)
	_, err = svc.Update(ctx, r.UUID, func(*models.MedicalRecord) error { return nil })
	require.NoError(t, err)

	mem.DeleteErr = cloud.ErrUnavailable
	err = svc.Delete(ctx, r.UUID)
	require.ErrorIs(t, err, ErrRemoteCleanup)

	_, err = svc.Get(ctx, r.UUID)
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestRecords_AddAndRemoveEntry(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newRecordService(t)
	r, err := svc.Create(ctx, true, nil)
	require.NoError(t, err)

	id, err := svc.AddEntry(ctx, r.UUID, models.KindWeight, json.RawMessage(`{"date":"2025-01-01T00:00:00Z","weightKg":12.5}`))
	require.NoError(t, err)

	got, err := svc.Get(ctx, r.UUID)
	require.NoError(t, err)
	require.Len(t, got.Weights, 1)
	assert.Equal(t, id, got.Weights[0].UUID)
	assert.Equal(t, 12.5, got.Weights[0].WeightKg)

	_, err = svc.AddEntry(ctx, r.UUID, models.ChildKind("nope"), json.RawMessage(`{}`))
	require.ErrorIs(t, err, ErrUnknownKind)

	require.ErrorIs(t, svc.RemoveEntry(ctx, r.UUID, models.KindWeight, "missing"), ErrEntryNotFound)
	require.NoError(t, svc.RemoveEntry(ctx, r.UUID, models.KindWeight, id))
	got, err = svc.Get(ctx, r.UUID)
	require.NoError(t, err)
	assert.Empty(t, got.Weights)
}

type staticContact struct {
	c   *models.ContactInfo
	err error
}

func (s staticContact) Pick(ctx context.Context) (*models.ContactInfo, error) { return s.c, s.err }

func TestRecords_ContactSource(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newRecordService(t)
	r, err := svc.Create(ctx, true, nil)
	require.NoError(t, err)

	got, err := svc.CopyVetFromContact(ctx, r.UUID, staticContact{c: &models.ContactInfo{
		DisplayName: "Dr. Paws", Organization: "Paws Clinic", Phone: "555",
	}})
	require.NoError(t, err)
	assert.Equal(t, "Paws Clinic", got.VetClinicName)
	assert.Equal(t, "Dr. Paws", got.VetContactName)

	_, err = svc.CopyVetFromContact(ctx, r.UUID, staticContact{})
	require.ErrorIs(t, err, ErrNoContact)

	boom := errors.New("denied")
	_, err = svc.AddEmergencyContactFrom(ctx, r.UUID, staticContact{err: boom})
	require.ErrorIs(t, err, boom)

	got, err = svc.AddEmergencyContactFrom(ctx, r.UUID, staticContact{c: &models.ContactInfo{DisplayName: "Bob", Phone: "1"}})
	require.NoError(t, err)
	require.Len(t, got.EmergencyContacts, 1)
	assert.NotEmpty(t, got.EmergencyContacts[0].UUID)
}
