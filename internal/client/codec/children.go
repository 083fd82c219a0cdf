package codec

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/myhealthdata/internal/client/cloud"
	"github.com/dmitrijs2005/myhealthdata/internal/client/models"
)

// mergeChildren merges the remote list v into the record's collection by
// child uuid.
//
//   - A remote child replaces the local one with the same uuid unless the
//     local copy is strictly newer.
//   - A local child missing from the remote list survives only when it was
//     changed after remoteUpdated; otherwise it was deleted remotely.
func mergeChildren(c models.Collection, v any, r *models.MedicalRecord, remoteUpdated time.Time) []error {
	list, ok := v.([]any)
	if !ok {
		return []error{fieldError(c.Field(), v)}
	}

	local, err := c.Items(r)
	if err != nil {
		return []error{err}
	}
	byUUID := make(map[string]models.Item, len(local))
	for _, it := range local {
		byUUID[it.Meta.UUID] = it
	}

	var errs []error
	seen := map[string]bool{}
	merged := make([]models.Item, 0, len(list))
	for i, raw := range list {
		item, err := decodeChild(c, raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s[%d]: %w", c.Field(), i, err))
			continue
		}
		if seen[item.Meta.UUID] {
			continue
		}
		seen[item.Meta.UUID] = true
		if l, ok := byUUID[item.Meta.UUID]; ok && l.Meta.UpdatedAt.After(item.Meta.UpdatedAt) {
			item = l
		}
		merged = append(merged, item)
	}
	for _, l := range local {
		if seen[l.Meta.UUID] {
			continue
		}
		if l.Meta.UpdatedAt.After(remoteUpdated) {
			merged = append(merged, l)
		}
	}

	if err := c.SetItems(r, merged); err != nil {
		errs = append(errs, err)
	}
	return errs
}

// dropSharedChildUUIDs keeps the first child for every uuid across all
// collections of r. Child uuids are unique per record, so a later child
// reusing one is dropped and reported as malformed.
func dropSharedChildUUIDs(r *models.MedicalRecord) []error {
	var errs []error
	owner := map[string]string{}
	for _, c := range models.Collections {
		items, err := c.Items(r)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		kept := make([]models.Item, 0, len(items))
		for _, it := range items {
			if prev, ok := owner[it.Meta.UUID]; ok {
				errs = append(errs, fmt.Errorf("%w: %s child %s already used in %s",
					cloud.ErrMalformedDocument, c.Field(), it.Meta.UUID, prev))
				continue
			}
			owner[it.Meta.UUID] = c.Field()
			kept = append(kept, it)
		}
		if len(kept) == len(items) {
			continue
		}
		if err := c.SetItems(r, kept); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func decodeChild(c models.Collection, raw any) (models.Item, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return models.Item{}, fmt.Errorf("%w: child is %T", cloud.ErrMalformedDocument, raw)
	}
	id, _ := m[FieldUUID].(string)
	if id == "" {
		return models.Item{}, fmt.Errorf("%w: child without uuid", cloud.ErrMalformedDocument)
	}

	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	normalizeTimes(cp, FieldCreatedAt, FieldUpdatedAt, "date")
	data, err := json.Marshal(cp)
	if err != nil {
		return models.Item{}, fmt.Errorf("%w: %v", cloud.ErrMalformedDocument, err)
	}

	var meta models.EntryMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return models.Item{}, fmt.Errorf("%w: child %s: %v", cloud.ErrMalformedDocument, id, err)
	}
	item := models.Item{Kind: c.Kind(), Meta: meta, Data: data}

	// Probe the body now so one bad child cannot fail the whole collection
	// later in SetItems.
	probe := models.MedicalRecord{}
	if err := c.SetItems(&probe, []models.Item{item}); err != nil {
		return models.Item{}, fmt.Errorf("%w: %v", cloud.ErrMalformedDocument, err)
	}
	return item, nil
}
