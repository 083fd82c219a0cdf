// Package codec converts a MedicalRecord to the flat, schema-versioned field
// set stored in a remote document, and applies a remote document back onto a
// local record.
//
// Encoding writes every profile field that has a value plus the record
// identity and timestamps; cloud bookkeeping never leaves the device.
// Decoding assigns only the fields present in the document and never fails
// as a whole: problems with single fields or child entries are returned as a
// list and the rest of the document is still applied.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/myhealthdata/internal/client/cloud"
	"github.com/dmitrijs2005/myhealthdata/internal/client/models"
)

// SchemaVersion is written into every document.
const SchemaVersion = 1

const (
	FieldUUID          = "uuid"
	FieldCreatedAt     = "createdAt"
	FieldUpdatedAt     = "updatedAt"
	FieldSchemaVersion = "schemaVersion"
)

var ErrNewerSchema = errors.New("document written by a newer schema version")

var (
	profileOnce sync.Once
	profileKeys []string
)

// ProfileFields lists the remote names of the profile scalar fields.
func ProfileFields() []string {
	profileOnce.Do(func() {
		t := reflect.TypeOf(models.Profile{})
		for i := 0; i < t.NumField(); i++ {
			name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
			if name != "" && name != "-" {
				profileKeys = append(profileKeys, name)
			}
		}
	})
	return profileKeys
}

// Encode returns the document fields for r.
func Encode(r *models.MedicalRecord) (map[string]any, error) {
	fields := map[string]any{
		FieldUUID:          r.UUID,
		FieldCreatedAt:     formatTime(r.CreatedAt),
		FieldUpdatedAt:     formatTime(r.UpdatedAt),
		FieldSchemaVersion: SchemaVersion,
	}

	profile := r.Profile
	if profile.PersonalBirthdate != nil {
		b := profile.PersonalBirthdate.UTC()
		profile.PersonalBirthdate = &b
	}
	raw, err := json.Marshal(profile)
	if err != nil {
		return nil, fmt.Errorf("encode profile: %w", err)
	}
	var pm map[string]any
	if err := json.Unmarshal(raw, &pm); err != nil {
		return nil, fmt.Errorf("encode profile: %w", err)
	}
	for k, v := range pm {
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		if v == nil {
			continue
		}
		fields[k] = v
	}

	for _, c := range models.Collections {
		items, err := c.Items(r)
		if err != nil {
			return nil, err
		}
		list := make([]any, 0, len(items))
		for _, it := range items {
			var m map[string]any
			if err := json.Unmarshal(it.Data, &m); err != nil {
				return nil, fmt.Errorf("encode %s entry %s: %w", c.Kind(), it.Meta.UUID, err)
			}
			list = append(list, m)
		}
		fields[c.Field()] = list
	}
	return fields, nil
}

// Apply overwrites the record fields of doc with the encoding of r. Profile
// fields that r leaves empty are removed from doc; anything else doc carries
// is kept.
func Apply(doc *cloud.Document, r *models.MedicalRecord) error {
	fields, err := Encode(r)
	if err != nil {
		return err
	}
	for _, k := range ProfileFields() {
		if _, ok := fields[k]; !ok {
			doc.Delete(k)
		}
	}
	for k, v := range fields {
		doc.Set(k, v)
	}
	return nil
}

// RemoteUpdatedAt returns the document's merge clock. ok is false when the
// field is missing or unreadable; callers treat that as the earliest time.
func RemoteUpdatedAt(doc *cloud.Document) (t time.Time, ok bool) {
	v, present := doc.Get(FieldUpdatedAt)
	if !present {
		return time.Time{}, false
	}
	return parseTime(v)
}

// Decode assigns every field present in doc to r and returns the problems
// it skipped over. The record uuid is never touched. UpdatedAt is set to the
// remote value exactly when the document has one.
func Decode(doc *cloud.Document, r *models.MedicalRecord) []error {
	var errs []error

	if v, ok := doc.Get(FieldSchemaVersion); ok {
		if n, ok := toInt(v); ok && n > SchemaVersion {
			errs = append(errs, fmt.Errorf("%w: %d", ErrNewerSchema, n))
		}
	}
	if v, ok := doc.Get(FieldCreatedAt); ok {
		if t, ok := parseTime(v); ok {
			r.CreatedAt = t
		} else {
			errs = append(errs, fieldError(FieldCreatedAt, v))
		}
	}

	remoteUpdated, hasUpdated := RemoteUpdatedAt(doc)
	if v, ok := doc.Get(FieldUpdatedAt); ok && !hasUpdated {
		errs = append(errs, fieldError(FieldUpdatedAt, v))
	}

	errs = append(errs, decodeProfile(doc, &r.Profile)...)

	for _, c := range models.Collections {
		v, ok := doc.Get(c.Field())
		if !ok {
			continue
		}
		errs = append(errs, mergeChildren(c, v, r, remoteUpdated)...)
	}
	errs = append(errs, dropSharedChildUUIDs(r)...)

	if hasUpdated {
		r.UpdatedAt = remoteUpdated
	}
	return errs
}

func decodeProfile(doc *cloud.Document, p *models.Profile) []error {
	var errs []error
	for _, k := range ProfileFields() {
		v, ok := doc.Get(k)
		if !ok || v == nil {
			continue
		}
		single := map[string]any{k: v}
		normalizeTimes(single, "personalBirthdate")
		raw, err := json.Marshal(single)
		if err != nil {
			errs = append(errs, fieldError(k, v))
			continue
		}
		// Unmarshal into a copy so a bad value leaves p untouched.
		tmp := *p
		if err := json.Unmarshal(raw, &tmp); err != nil {
			errs = append(errs, fieldError(k, v))
			continue
		}
		*p = tmp
	}
	return errs
}

func fieldError(key string, v any) error {
	return fmt.Errorf("%w: field %q has unexpected value %T", cloud.ErrMalformedDocument, key, v)
}
