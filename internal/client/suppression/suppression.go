// Package suppression keeps the set of record uuids that must not be
// imported again from the shared scope: records the user removed locally
// after they arrived through a share.
package suppression

import (
	"context"
	"sort"
	"strings"

	"github.com/dmitrijs2005/myhealthdata/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/myhealthdata/internal/client/store"
)

const keyPrefix = "suppressed/"

func key(uuid string) string {
	return keyPrefix + uuid
}

// Suppress adds uuid within the caller's unit of work.
func Suppress(ctx context.Context, repo metadata.Repository, uuid string) error {
	return repo.Set(ctx, key(uuid), []byte{1})
}

// IsSuppressed reports whether uuid is in the set.
func IsSuppressed(ctx context.Context, repo metadata.Repository, uuid string) (bool, error) {
	v, err := repo.Get(ctx, key(uuid))
	if err != nil {
		return false, err
	}
	return v != nil, nil
}

// Set is the suppression set stored in the local metadata table.
type Set struct {
	store *store.Store
}

func New(st *store.Store) *Set {
	return &Set{store: st}
}

func (s *Set) Add(ctx context.Context, uuid string) error {
	return s.store.Update(ctx, func(ctx context.Context, repos store.Repos) error {
		return Suppress(ctx, repos.Metadata, uuid)
	})
}

func (s *Set) Contains(ctx context.Context, uuid string) (bool, error) {
	var ok bool
	err := s.store.View(ctx, func(ctx context.Context, repos store.Repos) error {
		var err error
		ok, err = IsSuppressed(ctx, repos.Metadata, uuid)
		return err
	})
	return ok, err
}

// Remove clears a single uuid so the record can be imported again.
func (s *Set) Remove(ctx context.Context, uuid string) error {
	return s.store.Update(ctx, func(ctx context.Context, repos store.Repos) error {
		return repos.Metadata.Delete(ctx, key(uuid))
	})
}

// Clear empties the set.
func (s *Set) Clear(ctx context.Context) error {
	return s.store.Update(ctx, func(ctx context.Context, repos store.Repos) error {
		return repos.Metadata.DeletePrefix(ctx, keyPrefix)
	})
}

// List returns the suppressed uuids, sorted.
func (s *Set) List(ctx context.Context) ([]string, error) {
	var out []string
	err := s.store.View(ctx, func(ctx context.Context, repos store.Repos) error {
		m, err := repos.Metadata.ListPrefix(ctx, keyPrefix)
		if err != nil {
			return err
		}
		for k := range m {
			out = append(out, strings.TrimPrefix(k, keyPrefix))
		}
		return nil
	})
	sort.Strings(out)
	return out, err
}
