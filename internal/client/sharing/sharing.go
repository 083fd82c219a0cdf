// Package sharing grants other users access to a record's remote document.
package sharing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/myhealthdata/internal/client/cloud"
	"github.com/dmitrijs2005/myhealthdata/internal/client/diag"
	"github.com/dmitrijs2005/myhealthdata/internal/client/identity"
	"github.com/dmitrijs2005/myhealthdata/internal/client/models"
	"github.com/dmitrijs2005/myhealthdata/internal/client/store"
	"github.com/dmitrijs2005/myhealthdata/internal/client/syncer"
	"github.com/dmitrijs2005/myhealthdata/internal/common"
	"github.com/dmitrijs2005/myhealthdata/internal/logging"
	"github.com/oklog/ulid/v2"
)

// ShareTitle is shown to recipients of every share.
const ShareTitle = "Shared Medical Record"

type Manager struct {
	store  *store.Store
	remote cloud.Remote
	syncer *syncer.Engine
	debug  *diag.Store
	logger logging.Logger
}

func New(st *store.Store, remote cloud.Remote, sync *syncer.Engine, debug *diag.Store, logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Nop{}
	}
	if debug == nil {
		debug = diag.New("")
	}
	return &Manager{store: st, remote: remote, syncer: sync, debug: debug, logger: logger.With("module", "sharing")}
}

// Handle is a created share.
type Handle struct {
	Name         string
	URL          string
	Participants []cloud.Participant
}

// CreateShare pushes r, then saves its remote document together with a new
// share grant in one atomic write. r is marked shared only after that write
// succeeded. A record that was not cloud-enabled is opted in before the
// push and stays opted in even when sharing fails.
func (m *Manager) CreateShare(ctx context.Context, r *models.MedicalRecord) (*Handle, error) {
	m.debug.Appendf("createShare: start for %s (%s)", r.DisplayName(), r.UUID)

	h, err := m.createShare(ctx, r)
	if err != nil {
		m.debug.Appendf("createShare: failed: %v", err)
		m.debug.SetLastError(err)
		m.logger.Warn(ctx, "share creation failed", "uuid", r.UUID, "error", err)
		return nil, err
	}

	m.debug.Appendf("createShare: saved share %s", h.Name)
	m.debug.SetLastShareURL(h.URL)
	m.debug.SetLastError(nil)

	if err := m.RefreshParticipants(ctx, r); err != nil {
		m.debug.Appendf("createShare: participants refresh failed: %v", err)
		m.logger.Info(ctx, "participants refresh failed", "uuid", r.UUID, "error", err)
	}
	return h, nil
}

func (m *Manager) createShare(ctx context.Context, r *models.MedicalRecord) (*Handle, error) {
	var err error
	if r.Cloud.IsCloudEnabled {
		err = m.syncer.SyncIfNeeded(ctx, r)
	} else {
		err = m.syncer.EnableCloud(ctx, r)
	}
	if err != nil {
		return nil, fmt.Errorf("sync before share: %w", err)
	}

	zone := m.syncer.Zone()
	root, err := m.remote.Fetch(ctx, cloud.ScopePrivate, zone, identity.RemoteKey(r))
	if err != nil {
		return nil, fmt.Errorf("fetch share root: %w", err)
	}

	name := ""
	if r.Cloud.CloudShareRecordName != nil {
		name = *r.Cloud.CloudShareRecordName
	}
	if name == "" {
		name = "share-" + strings.ToLower(ulid.Make().String())
	}

	_, share, err := m.remote.SaveWithShare(ctx, root, &cloud.Share{Name: name, Title: ShareTitle})
	if err != nil {
		return nil, cloud.EnrichError(fmt.Errorf("save share: %w", err), common.RecordTypeMedicalRecord)
	}

	err = m.store.Update(ctx, func(ctx context.Context, repos store.Repos) error {
		cur, err := repos.Records.GetByUUID(ctx, r.UUID)
		if err != nil {
			return err
		}
		shareName := share.Name
		cur.Cloud.IsSharingEnabled = true
		cur.Cloud.CloudShareRecordName = &shareName
		return repos.Records.UpdateCloudState(ctx, r.UUID, cur.Cloud)
	})
	if err != nil {
		return nil, fmt.Errorf("store sharing state: %w", err)
	}

	shareName := share.Name
	r.Cloud.IsSharingEnabled = true
	r.Cloud.CloudShareRecordName = &shareName

	return &Handle{Name: share.Name, URL: share.URL, Participants: share.Participants}, nil
}

// RefreshParticipants re-reads the share and stores a one-line summary of
// its participants.
func (m *Manager) RefreshParticipants(ctx context.Context, r *models.MedicalRecord) error {
	if r.Cloud.CloudShareRecordName == nil {
		return nil
	}
	share, err := m.remote.FetchShare(ctx, m.syncer.Zone(), *r.Cloud.CloudShareRecordName)
	if err != nil {
		return err
	}
	summary := Summarize(share.Participants)

	err = m.store.Update(ctx, func(ctx context.Context, repos store.Repos) error {
		cur, err := repos.Records.GetByUUID(ctx, r.UUID)
		if err != nil {
			return err
		}
		cur.Cloud.ParticipantsSummary = summary
		return repos.Records.UpdateCloudState(ctx, r.UUID, cur.Cloud)
	})
	if err != nil {
		return err
	}
	r.Cloud.ParticipantsSummary = summary
	return nil
}

// Summarize renders participants as "login (role, acceptance)" pairs.
func Summarize(ps []cloud.Participant) string {
	parts := make([]string, 0, len(ps))
	for _, p := range ps {
		who := p.Login
		if who == "" {
			who = p.UserID
		}
		parts = append(parts, fmt.Sprintf("%s (%s, %s)", who, p.Role, p.Acceptance))
	}
	return strings.Join(parts, ", ")
}

// AcceptShare joins a share by URL or token. Its record shows up in the
// shared scope on the next fetch.
func (m *Manager) AcceptShare(ctx context.Context, token string) (*cloud.Share, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("share url is empty")
	}
	m.debug.Appendf("acceptShare: %s", token)
	share, err := m.remote.AcceptShare(ctx, token)
	if err != nil {
		m.debug.Appendf("acceptShare: failed: %v", err)
		m.debug.SetLastError(err)
		return nil, err
	}
	m.debug.Appendf("acceptShare: joined %s", share.Name)
	return share, nil
}
