package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/myhealthdata/internal/client/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "phr.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_MigratesAndIsReopenable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "phr.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	var n int
	err = s.View(ctx, func(ctx context.Context, repos Repos) error {
		all, err := repos.Records.List(ctx)
		n = len(all)
		return err
	})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "a.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", DSN("a.db"))
	assert.Equal(t, "a.db?mode=rw&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", DSN("a.db?mode=rw"))
}

func TestUpdate_PublishesAfterCommit(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	ch, cancel := s.Subscribe(8)
	defer cancel()

	rec := models.NewMedicalRecord(time.Now(), false)
	require.NoError(t, s.Update(ctx, func(ctx context.Context, repos Repos) error {
		return repos.Records.Upsert(ctx, rec)
	}))
	require.NoError(t, s.Update(ctx, func(ctx context.Context, repos Repos) error {
		return repos.Records.Delete(ctx, rec.UUID)
	}))

	assert.Equal(t, Change{Kind: ChangeUpserted, UUID: rec.UUID}, <-ch)
	assert.Equal(t, Change{Kind: ChangeDeleted, UUID: rec.UUID}, <-ch)
}

func TestUpdate_RollbackPublishesNothing(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	ch, cancel := s.Subscribe(8)
	defer cancel()

	rec := models.NewMedicalRecord(time.Now(), false)
	err := s.Update(ctx, func(ctx context.Context, repos Repos) error {
		if err := repos.Records.Upsert(ctx, rec); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	select {
	case c := <-ch:
		t.Fatalf("unexpected change %v", c)
	default:
	}

	err = s.View(ctx, func(ctx context.Context, repos Repos) error {
		_, err := repos.Records.GetByUUID(ctx, rec.UUID)
		return err
	})
	assert.Error(t, err)
}

func TestSubscribe_CancelClosesChannel(t *testing.T) {
	s := openStore(t)
	ch, cancel := s.Subscribe(0)
	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
}

func TestPublish_FullSubscriberDoesNotBlock(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	ch, cancel := s.Subscribe(1)
	defer cancel()

	for i := 0; i < 3; i++ {
		rec := models.NewMedicalRecord(time.Now(), true)
		require.NoError(t, s.Update(ctx, func(ctx context.Context, repos Repos) error {
			return repos.Records.Upsert(ctx, rec)
		}))
	}
	assert.Len(t, ch, 1)
}
