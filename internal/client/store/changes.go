package store

import (
	"context"

	"github.com/dmitrijs2005/myhealthdata/internal/client/models"
	"github.com/dmitrijs2005/myhealthdata/internal/client/repositories/records"
)

// ChangeKind describes what happened to a record.
type ChangeKind string

const (
	ChangeUpserted     ChangeKind = "upserted"
	ChangeCloudUpdated ChangeKind = "cloud_updated"
	ChangeDeleted      ChangeKind = "deleted"
)

// Change is published once per record touched by a committed Update.
type Change struct {
	Kind ChangeKind
	UUID string
}

// Subscribe returns a channel of committed changes and a cancel func.
// Delivery never blocks the store: a subscriber whose buffer is full misses
// events and should reload.
func (s *Store) Subscribe(buffer int) (<-chan Change, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Change, buffer)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			close(c)
			delete(s.subs, id)
		}
	}
	return ch, cancel
}

func (s *Store) publish(changes []Change) {
	if len(changes) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		for _, c := range changes {
			select {
			case ch <- c:
			default:
			}
		}
	}
}

// trackingRecords records which uuids a unit of work touched.
type trackingRecords struct {
	records.Repository
	changes []Change
}

func (t *trackingRecords) Upsert(ctx context.Context, r *models.MedicalRecord) error {
	if err := t.Repository.Upsert(ctx, r); err != nil {
		return err
	}
	t.changes = append(t.changes, Change{Kind: ChangeUpserted, UUID: r.UUID})
	return nil
}

func (t *trackingRecords) UpdateCloudState(ctx context.Context, uuid string, state models.CloudState) error {
	if err := t.Repository.UpdateCloudState(ctx, uuid, state); err != nil {
		return err
	}
	t.changes = append(t.changes, Change{Kind: ChangeCloudUpdated, UUID: uuid})
	return nil
}

func (t *trackingRecords) Delete(ctx context.Context, uuid string) error {
	if err := t.Repository.Delete(ctx, uuid); err != nil {
		return err
	}
	t.changes = append(t.changes, Change{Kind: ChangeDeleted, UUID: uuid})
	return nil
}
