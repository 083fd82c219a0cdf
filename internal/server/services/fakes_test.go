package services

import (
	"context"
	"database/sql"
	"sort"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/myhealthdata/internal/common"
	"github.com/dmitrijs2005/myhealthdata/internal/dbx"
	"github.com/dmitrijs2005/myhealthdata/internal/server/config"
	"github.com/dmitrijs2005/myhealthdata/internal/server/models"
	"github.com/dmitrijs2005/myhealthdata/internal/server/repositories/documents"
	"github.com/dmitrijs2005/myhealthdata/internal/server/repositories/recordtypes"
	"github.com/dmitrijs2005/myhealthdata/internal/server/repositories/shares"
	"github.com/dmitrijs2005/myhealthdata/internal/server/repositories/users"
	"github.com/dmitrijs2005/myhealthdata/internal/server/repositories/zones"
	"github.com/stretchr/testify/require"
)

// memBackend keeps every table in maps. The fake repositories all share it
// regardless of which handle they are bound to.
type memBackend struct {
	users     map[string]*models.User // by id
	zones     map[[2]string]bool
	types     map[string]bool
	docs      map[[3]string]*models.Document
	shares    map[string]*models.Share
	parts     map[[2]string]*models.Participant
	failWith  error
}

func newMemBackend() *memBackend {
	return &memBackend{
		users:     map[string]*models.User{},
		zones:     map[[2]string]bool{},
		types:     map[string]bool{},
		docs:      map[[3]string]*models.Document{},
		shares:    map[string]*models.Share{},
		parts:     map[[2]string]*models.Participant{},
	}
}

func (b *memBackend) addUser(id, login string) {
	b.users[id] = &models.User{ID: id, UserName: login, Salt: []byte("salt-" + login), Verifier: []byte("ver-" + login)}
}

func copyDoc(d *models.Document) *models.Document {
	c := *d
	c.Fields = map[string]any{}
	for k, v := range d.Fields {
		c.Fields[k] = v
	}
	return &c
}

type memUsers struct{ b *memBackend }

func (r memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	for _, x := range r.b.users {
		if x.UserName == u.UserName {
			return nil, common.ErrorAlreadyExists
		}
	}
	u.ID = "u-" + u.UserName
	r.b.users[u.ID] = u
	return u, nil
}

func (r memUsers) GetUserByLogin(_ context.Context, login string) (*models.User, error) {
	if r.b.failWith != nil {
		return nil, r.b.failWith
	}
	for _, u := range r.b.users {
		if u.UserName == login {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memUsers) GetUserByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := r.b.users[id]; ok {
		return u, nil
	}
	return nil, common.ErrorNotFound
}

type memZones struct{ b *memBackend }

func (r memZones) Ensure(_ context.Context, owner, name string) error {
	r.b.zones[[2]string{owner, name}] = true
	return nil
}

func (r memZones) Exists(_ context.Context, owner, name string) (bool, error) {
	return r.b.zones[[2]string{owner, name}], nil
}

type memTypes struct{ b *memBackend }

func (r memTypes) Exists(_ context.Context, name string) (bool, error) { return r.b.types[name], nil }
func (r memTypes) Create(_ context.Context, name string) error {
	r.b.types[name] = true
	return nil
}

type memDocs struct{ b *memBackend }

func (r memDocs) login(id string) string {
	if u, ok := r.b.users[id]; ok {
		return u.UserName
	}
	return ""
}

func (r memDocs) Get(_ context.Context, owner, zone, name string) (*models.Document, error) {
	d, ok := r.b.docs[[3]string{owner, zone, name}]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return copyDoc(d), nil
}

func (r memDocs) Upsert(_ context.Context, doc *models.Document) (*models.Document, error) {
	k := [3]string{doc.OwnerID, doc.Zone, doc.RecordName}
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if old, ok := r.b.docs[k]; ok {
		doc.CreatedAt = old.CreatedAt
	} else {
		doc.CreatedAt = ts
	}
	doc.ModifiedAt = ts
	doc.OwnerLogin = r.login(doc.OwnerID)
	r.b.docs[k] = copyDoc(doc)
	return doc, nil
}

func (r memDocs) Delete(_ context.Context, owner, zone, name string) error {
	k := [3]string{owner, zone, name}
	if _, ok := r.b.docs[k]; !ok {
		return common.ErrorNotFound
	}
	delete(r.b.docs, k)
	for n, s := range r.b.shares {
		if s.OwnerID == owner && s.Zone == zone && s.RootRecordName == name {
			delete(r.b.shares, n)
			for pk := range r.b.parts {
				if pk[0] == n {
					delete(r.b.parts, pk)
				}
			}
		}
	}
	return nil
}

func (r memDocs) sorted(match func(*models.Document) bool) []*models.Document {
	var out []*models.Document
	for _, d := range r.b.docs {
		if match(d) {
			out = append(out, copyDoc(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordName < out[j].RecordName })
	return out
}

func (r memDocs) ListByType(_ context.Context, owner, zone, recordType string) ([]*models.Document, error) {
	return r.sorted(func(d *models.Document) bool {
		return d.OwnerID == owner && d.Zone == zone && d.RecordType == recordType
	}), nil
}

func (r memDocs) sharedWith(user string, d *models.Document) bool {
	for _, s := range r.b.shares {
		if s.OwnerID != d.OwnerID || s.Zone != d.Zone || s.RootRecordName != d.RecordName {
			continue
		}
		p, ok := r.b.parts[[2]string{s.Name, user}]
		if ok && p.Role != models.RoleOwner && p.Acceptance == models.AcceptanceAccepted {
			return true
		}
	}
	return false
}

func (r memDocs) GetShared(_ context.Context, user, zone, name string) (*models.Document, error) {
	docs := r.sorted(func(d *models.Document) bool {
		return d.Zone == zone && d.RecordName == name && r.sharedWith(user, d)
	})
	if len(docs) == 0 {
		return nil, common.ErrorNotFound
	}
	return docs[0], nil
}

func (r memDocs) ListShared(_ context.Context, user, zone, recordType string) ([]*models.Document, error) {
	return r.sorted(func(d *models.Document) bool {
		return d.Zone == zone && d.RecordType == recordType && r.sharedWith(user, d)
	}), nil
}

type memShares struct{ b *memBackend }

func (r memShares) Upsert(_ context.Context, s *models.Share) (*models.Share, error) {
	if old, ok := r.b.shares[s.Name]; ok {
		if old.OwnerID != s.OwnerID {
			return nil, common.ErrorForbidden
		}
		old.Title = s.Title
		c := *old
		return &c, nil
	}
	c := *s
	r.b.shares[s.Name] = &c
	return s, nil
}

func (r memShares) GetByName(_ context.Context, name string) (*models.Share, error) {
	if s, ok := r.b.shares[name]; ok {
		c := *s
		return &c, nil
	}
	return nil, common.ErrorNotFound
}

func (r memShares) GetByToken(_ context.Context, token string) (*models.Share, error) {
	for _, s := range r.b.shares {
		if s.Token == token {
			c := *s
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memShares) AddParticipant(_ context.Context, p *models.Participant) error {
	k := [2]string{p.ShareName, p.UserID}
	if old, ok := r.b.parts[k]; ok {
		old.Acceptance = p.Acceptance
		return nil
	}
	c := *p
	r.b.parts[k] = &c
	return nil
}

func (r memShares) Participant(_ context.Context, share, user string) (*models.Participant, error) {
	if p, ok := r.b.parts[[2]string{share, user}]; ok {
		c := *p
		if u, ok := r.b.users[user]; ok {
			c.Login = u.UserName
		}
		return &c, nil
	}
	return nil, common.ErrorNotFound
}

func (r memShares) Participants(_ context.Context, share string) ([]*models.Participant, error) {
	var out []*models.Participant
	for k, p := range r.b.parts {
		if k[0] != share {
			continue
		}
		c := *p
		if u, ok := r.b.users[p.UserID]; ok {
			c.Login = u.UserName
		}
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if (out[i].Role == models.RoleOwner) != (out[j].Role == models.RoleOwner) {
			return out[i].Role == models.RoleOwner
		}
		return out[i].Login < out[j].Login
	})
	return out, nil
}

type memRepoManager struct{ b *memBackend }

func (m memRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m memRepoManager) Users(dbx.DBTX) users.Repository              { return memUsers{m.b} }
func (m memRepoManager) Zones(dbx.DBTX) zones.Repository              { return memZones{m.b} }
func (m memRepoManager) RecordTypes(dbx.DBTX) recordtypes.Repository  { return memTypes{m.b} }
func (m memRepoManager) Documents(dbx.DBTX) documents.Repository      { return memDocs{m.b} }
func (m memRepoManager) Shares(dbx.DBTX) shares.Repository            { return memShares{m.b} }

// newTxDB returns a sqlmock handle that accepts any number of transactions.
func newTxDB(t *testing.T, txs int) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	for i := 0; i < txs; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}
	return db, mock
}

func testConfig(env config.Environment) *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.Environment = env
	cfg.PublicBaseURL = "https://phr.example"
	return cfg
}
