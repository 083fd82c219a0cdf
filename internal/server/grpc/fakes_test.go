package grpc

import (
	"context"
	"time"

	"github.com/dmitrijs2005/myhealthdata/internal/common"
	"github.com/dmitrijs2005/myhealthdata/internal/server/auth"
	"github.com/dmitrijs2005/myhealthdata/internal/server/models"
	"github.com/dmitrijs2005/myhealthdata/internal/server/services"
)

type fakeUsers struct {
	registered map[string][]byte
	token      string
	err        error
}

func (f *fakeUsers) Register(_ context.Context, login string, salt, verifier []byte) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.registered == nil {
		f.registered = map[string][]byte{}
	}
	f.registered[login] = salt
	return &models.User{ID: "u-" + login, UserName: login}, nil
}

func (f *fakeUsers) GetSalt(_ context.Context, login string) ([]byte, error) {
	return f.registered[login], f.err
}

func (f *fakeUsers) Login(_ context.Context, login string, verifier []byte) (string, error) {
	if string(verifier) != "ok" {
		return "", common.ErrorUnauthorized
	}
	return f.token, nil
}

type fakeDocs struct {
	lastID    auth.Identity
	lastScope services.Scope
	saved     *models.Document
	docs      []*models.Document
	err       error
}

func (f *fakeDocs) Fetch(_ context.Context, id auth.Identity, scope services.Scope, zone, name string) (*models.Document, error) {
	f.lastID, f.lastScope = id, scope
	if f.err != nil {
		return nil, f.err
	}
	for _, d := range f.docs {
		if d.RecordName == name {
			return d, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeDocs) Save(_ context.Context, id auth.Identity, doc *models.Document) (*models.Document, error) {
	f.lastID = id
	if f.err != nil {
		return nil, f.err
	}
	doc.OwnerID, doc.OwnerLogin = id.UserID, id.Login
	doc.ChangeTag = "tag-new"
	doc.ModifiedAt = time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	f.saved = doc
	return doc, nil
}

func (f *fakeDocs) Delete(_ context.Context, id auth.Identity, zone, name string) error {
	f.lastID = id
	return f.err
}

func (f *fakeDocs) Query(_ context.Context, id auth.Identity, scope services.Scope, zone, recordType string) ([]*models.Document, error) {
	f.lastID, f.lastScope = id, scope
	return f.docs, f.err
}

type fakeShares struct {
	view *services.ShareView
	err  error
}

func (f *fakeShares) SaveWithRoot(_ context.Context, id auth.Identity, root *models.Document, share *models.Share) (*models.Document, *services.ShareView, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	root.ChangeTag = "tag-share"
	share.RootRecordName, share.Zone, share.Token = root.RecordName, root.Zone, "tok"
	f.view = &services.ShareView{
		Share:        share,
		URL:          "https://phr.example/share/tok",
		Participants: []*models.Participant{{UserID: id.UserID, Login: id.Login, Role: models.RoleOwner, Acceptance: models.AcceptanceAccepted}},
	}
	return root, f.view, nil
}

func (f *fakeShares) Fetch(context.Context, auth.Identity, string, string) (*services.ShareView, error) {
	return f.view, f.err
}

func (f *fakeShares) Accept(_ context.Context, id auth.Identity, url string) (*services.ShareView, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.view.Participants = append(f.view.Participants, &models.Participant{UserID: id.UserID, Login: id.Login, Role: models.RoleParticipant, Acceptance: models.AcceptanceAccepted})
	return f.view, nil
}

type fakeSupport struct{ err error }

func (f fakeSupport) PresignUpload(context.Context, string) (string, string, error) {
	return "support/2025/01/01/x.txt", "https://s3.example/put", f.err
}
