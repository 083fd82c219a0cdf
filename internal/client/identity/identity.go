// Package identity maps local records to their remote documents and back.
//
// The local uuid is the join key in both directions: it is embedded in every
// document the client writes, and a document is matched to a local record
// only by that embedded value, never by the remote record name.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/myhealthdata/internal/client/cloud"
	"github.com/dmitrijs2005/myhealthdata/internal/client/models"
	"github.com/dmitrijs2005/myhealthdata/internal/common"
)

// FieldUUID is the document field carrying the local uuid.
const FieldUUID = "uuid"

var ErrNoEmbeddedUUID = fmt.Errorf("%w: document has no uuid", cloud.ErrMalformedDocument)

// LocalKey returns the record's stable local identity.
func LocalKey(r *models.MedicalRecord) string {
	return r.UUID
}

// RemoteKey returns the remote record name to write to: the one last
// confirmed by the backend if any, else the local uuid.
func RemoteKey(r *models.MedicalRecord) string {
	if r.Cloud.CloudRecordName != nil && *r.Cloud.CloudRecordName != "" {
		return *r.Cloud.CloudRecordName
	}
	return r.UUID
}

// EmbeddedUUID extracts the local uuid a document was written with.
func EmbeddedUUID(doc *cloud.Document) (string, error) {
	v, ok := doc.Get(FieldUUID)
	if !ok {
		return "", ErrNoEmbeddedUUID
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", ErrNoEmbeddedUUID
	}
	return s, nil
}

// Resolver looks up local records by uuid.
type Resolver interface {
	GetByUUID(ctx context.Context, uuid string) (*models.MedicalRecord, error)
}

// ResolveLocal finds the local record doc belongs to. It returns (nil, nil)
// when there is none.
func ResolveLocal(ctx context.Context, res Resolver, doc *cloud.Document) (*models.MedicalRecord, error) {
	id, err := EmbeddedUUID(doc)
	if err != nil {
		return nil, err
	}
	r, err := res.GetByUUID(ctx, id)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ConfirmRemote records name as the record's remote identity. Call it only
// after the backend acknowledged a write under that name.
func ConfirmRemote(r *models.MedicalRecord, name string) {
	n := name
	r.Cloud.CloudRecordName = &n
}
