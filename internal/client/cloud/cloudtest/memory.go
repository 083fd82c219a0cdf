// Package cloudtest provides an in-memory cloud.Remote for tests and for
// running the client without a backend.
package cloudtest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/myhealthdata/internal/client/cloud"
)

// Memory is a cloud.Remote backed by maps. The exported fields inject
// failures; set them before the call under test.
type Memory struct {
	mu sync.Mutex

	Status    cloud.AccountStatus
	StatusErr error

	// Production rejects saves of record types not listed in KnownTypes.
	Production bool
	KnownTypes map[string]bool

	SaveErr   error
	ShareErr  error
	FetchErr  error
	QueryErr  error
	DeleteErr error
	// RecordErrors fails individual query results by record name.
	RecordErrors map[string]error

	Now func() time.Time

	zones  map[cloud.Scope]map[string]map[string]*cloud.Document
	shares map[string]*cloud.Share
	seq    int
	saves  int
}

var _ cloud.Remote = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		Status:       cloud.AccountAvailable,
		KnownTypes:   map[string]bool{},
		RecordErrors: map[string]error{},
		Now:          time.Now,
		zones: map[cloud.Scope]map[string]map[string]*cloud.Document{
			cloud.ScopePrivate: {},
			cloud.ScopeShared:  {},
		},
		shares: map[string]*cloud.Share{},
	}
}

// Put stores doc directly, bypassing failure injection and save counting.
func (m *Memory) Put(scope cloud.Scope, doc *cloud.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.zone(scope, doc.Zone, true)[doc.RecordName] = doc.Clone()
}

// Documents returns copies of every document in zone, sorted by name.
func (m *Memory) Documents(scope cloud.Scope, zone string) []*cloud.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	z := m.zone(scope, zone, false)
	out := make([]*cloud.Document, 0, len(z))
	for _, name := range sortedNames(z) {
		out = append(out, z[name].Clone())
	}
	return out
}

// Saves counts successful Save and SaveWithShare calls.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *Memory) Shares() []*cloud.Share {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*cloud.Share, 0, len(m.shares))
	for _, s := range m.shares {
		c := *s
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m *Memory) zone(scope cloud.Scope, name string, create bool) map[string]*cloud.Document {
	z, ok := m.zones[scope][name]
	if !ok && create {
		z = map[string]*cloud.Document{}
		m.zones[scope][name] = z
	}
	return z
}

func (m *Memory) AccountStatus(ctx context.Context) (cloud.AccountStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Status, m.StatusErr
}

func (m *Memory) Fetch(ctx context.Context, scope cloud.Scope, zone, recordName string) (*cloud.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	z, ok := m.zones[scope][zone]
	if !ok {
		return nil, fmt.Errorf("%w: %s", cloud.ErrZoneNotFound, zone)
	}
	doc, ok := z[recordName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", cloud.ErrNotFound, recordName)
	}
	return doc.Clone(), nil
}

func (m *Memory) Save(ctx context.Context, doc *cloud.Document) (*cloud.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return nil, m.SaveErr
	}
	stored, err := m.store(doc)
	if err != nil {
		return nil, err
	}
	m.saves++
	return stored.Clone(), nil
}

func (m *Memory) store(doc *cloud.Document) (*cloud.Document, error) {
	if m.Production && !m.KnownTypes[doc.RecordType] {
		return nil, fmt.Errorf("Cannot create new type %s in production schema", doc.RecordType)
	}
	m.KnownTypes[doc.RecordType] = true
	m.seq++
	stored := doc.Clone()
	stored.ChangeTag = fmt.Sprintf("tag-%d", m.seq)
	stored.ModifiedAt = m.Now().UTC()
	m.zone(cloud.ScopePrivate, doc.Zone, true)[doc.RecordName] = stored
	return stored, nil
}

func (m *Memory) Delete(ctx context.Context, zone, recordName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	z := m.zone(cloud.ScopePrivate, zone, false)
	if _, ok := z[recordName]; !ok {
		return fmt.Errorf("%w: %s", cloud.ErrNotFound, recordName)
	}
	delete(z, recordName)
	return nil
}

func (m *Memory) Query(ctx context.Context, scope cloud.Scope, zone, recordType string) ([]cloud.QueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	z, ok := m.zones[scope][zone]
	if !ok {
		return nil, fmt.Errorf("%w: %s", cloud.ErrZoneNotFound, zone)
	}
	var out []cloud.QueryResult
	for _, name := range sortedNames(z) {
		doc := z[name]
		if doc.RecordType != recordType {
			continue
		}
		if err := m.RecordErrors[name]; err != nil {
			out = append(out, cloud.QueryResult{RecordName: name, Err: err})
			continue
		}
		out = append(out, cloud.QueryResult{RecordName: name, Document: doc.Clone()})
	}
	return out, nil
}

func (m *Memory) SaveWithShare(ctx context.Context, root *cloud.Document, share *cloud.Share) (*cloud.Document, *cloud.Share, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShareErr != nil {
		return nil, nil, m.ShareErr
	}
	if m.SaveErr != nil {
		return nil, nil, m.SaveErr
	}

	stored, err := m.store(root)
	if err != nil {
		return nil, nil, err
	}
	m.saves++

	s := *share
	if s.Name == "" {
		s.Name = fmt.Sprintf("share-%d", m.seq)
	}
	s.RootRecordName = stored.RecordName
	s.Zone = stored.Zone
	s.URL = "https://cloud.invalid/share/" + s.Name
	s.Participants = []cloud.Participant{{Login: "owner", Role: "owner", Acceptance: "accepted"}}
	m.shares[s.Name] = &s

	out := s
	return stored.Clone(), &out, nil
}

func (m *Memory) FetchShare(ctx context.Context, zone, shareName string) (*cloud.Share, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shares[shareName]
	if !ok || s.Zone != zone {
		return nil, fmt.Errorf("%w: share %s", cloud.ErrNotFound, shareName)
	}
	c := *s
	return &c, nil
}

// AcceptShare copies the share's root document into the shared scope.
func (m *Memory) AcceptShare(ctx context.Context, token string) (*cloud.Share, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name := token
	if i := strings.LastIndex(token, "/"); i >= 0 {
		name = token[i+1:]
	}
	s, ok := m.shares[name]
	if !ok {
		return nil, fmt.Errorf("%w: share %s", cloud.ErrNotFound, name)
	}
	root, ok := m.zone(cloud.ScopePrivate, s.Zone, false)[s.RootRecordName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", cloud.ErrNotFound, s.RootRecordName)
	}
	m.zone(cloud.ScopeShared, s.Zone, true)[root.RecordName] = root.Clone()
	s.Participants = append(s.Participants, cloud.Participant{Login: "participant", Role: "participant", Acceptance: "accepted"})
	c := *s
	return &c, nil
}

func sortedNames(z map[string]*cloud.Document) []string {
	names := make([]string, 0, len(z))
	for n := range z {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
