// Package cloud is the client's view of the remote document store: the
// Remote contract the sync engines program against, the Document type and
// the error vocabulary shared by every Remote implementation.
package cloud

import (
	"context"
	"sort"
	"time"
)

// Scope selects the caller's own database or the one holding records other
// users shared with it.
type Scope string

const (
	ScopePrivate Scope = "private"
	ScopeShared  Scope = "shared"
)

// AccountStatus mirrors the states a cloud account can be in.
type AccountStatus string

const (
	AccountAvailable              AccountStatus = "available"
	AccountNoAccount              AccountStatus = "noAccount"
	AccountRestricted             AccountStatus = "restricted"
	AccountCouldNotDetermine      AccountStatus = "couldNotDetermine"
	AccountTemporarilyUnavailable AccountStatus = "temporarilyUnavailable"
)

// Document is one remote record: a named, typed bag of fields in a zone.
type Document struct {
	RecordName string
	RecordType string
	Zone       string
	Owner      string
	ChangeTag  string
	ModifiedAt time.Time
	Fields     map[string]any
}

// NewDocument returns an empty, not yet saved document.
func NewDocument(recordType, zone, recordName string) *Document {
	return &Document{
		RecordName: recordName,
		RecordType: recordType,
		Zone:       zone,
		Fields:     map[string]any{},
	}
}

func (d *Document) Get(key string) (any, bool) {
	if d == nil || d.Fields == nil {
		return nil, false
	}
	v, ok := d.Fields[key]
	return v, ok
}

// Set stores v under key. A nil v removes the field.
func (d *Document) Set(key string, v any) {
	if v == nil {
		d.Delete(key)
		return
	}
	if d.Fields == nil {
		d.Fields = map[string]any{}
	}
	d.Fields[key] = v
}

func (d *Document) Delete(key string) {
	delete(d.Fields, key)
}

// Keys returns the field names in sorted order.
func (d *Document) Keys() []string {
	keys := make([]string, 0, len(d.Fields))
	for k := range d.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep enough copy: the field map is copied, values are
// shared.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	c.Fields = make(map[string]any, len(d.Fields))
	for k, v := range d.Fields {
		c.Fields[k] = v
	}
	return &c
}

// QueryResult is one entry of a query response. Exactly one of Document and
// Err is set.
type QueryResult struct {
	RecordName string
	Document   *Document
	Err        error
}

type Participant struct {
	UserID     string
	Login      string
	Role       string
	Acceptance string
}

// Share grants other users access to a root document.
type Share struct {
	Name           string
	RootRecordName string
	Zone           string
	Title          string
	URL            string
	Participants   []Participant
}

// Remote is the remote document store.
type Remote interface {
	AccountStatus(ctx context.Context) (AccountStatus, error)

	// Fetch returns ErrNotFound when the record does not exist and
	// ErrZoneNotFound when the zone does not.
	Fetch(ctx context.Context, scope Scope, zone, recordName string) (*Document, error)

	// Save upserts doc in the private scope and returns the stored copy.
	Save(ctx context.Context, doc *Document) (*Document, error)

	Delete(ctx context.Context, zone, recordName string) error

	// Query returns every document of recordType in zone. Per-document
	// failures are reported in the results, not as the returned error.
	Query(ctx context.Context, scope Scope, zone, recordType string) ([]QueryResult, error)

	// SaveWithShare stores root and share atomically: both are written or
	// neither is.
	SaveWithShare(ctx context.Context, root *Document, share *Share) (*Document, *Share, error)

	FetchShare(ctx context.Context, zone, shareName string) (*Share, error)

	// AcceptShare joins the share identified by a share URL or token.
	AcceptShare(ctx context.Context, token string) (*Share, error)
}
