// Package trackertest provides contract tests for [tracker.Store] implementations.
package trackertest

import (
	"context"
	"testing"
	"time"

	"github.com/cloudconsole/engine/internal/tracker"
	apperrors "github.com/cloudconsole/engine/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory creates a fresh [tracker.Store] for each test.
type Factory func(t *testing.T) tracker.Store

// Run exercises the [tracker.Store] contract, directly and through a Tracker.
func Run(t *testing.T, factory Factory) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("PutAndGet", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()
		done := base.Add(time.Minute)

		require.NoError(t, store.Put(ctx, &tracker.Entry{
			ID: "aws-000000000001", AccountID: "acct-1", Provider: "aws",
			Status: tracker.StatusFailed, StartedAt: base, CompletedAt: &done, Error: "boom",
		}))

		got, err := store.Get(ctx, "aws-000000000001")
		require.NoError(t, err)
		assert.Equal(t, "acct-1", got.AccountID)
		assert.Equal(t, "aws", got.Provider)
		assert.Equal(t, tracker.StatusFailed, got.Status)
		assert.True(t, got.StartedAt.Equal(base))
		require.NotNil(t, got.CompletedAt)
		assert.True(t, got.CompletedAt.Equal(done))
		assert.Equal(t, "boom", got.Error)
	})

	t.Run("GetNotFound", func(t *testing.T) {
		store := factory(t)
		_, err := store.Get(context.Background(), "missing")
		assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound), "got %v", err)
	})

	t.Run("PutOverwrites", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()
		e := &tracker.Entry{ID: "gcp-000000000001", AccountID: "a", Status: tracker.StatusPending, StartedAt: base}
		require.NoError(t, store.Put(ctx, e))
		e.Status = tracker.StatusDeploying
		require.NoError(t, store.Put(ctx, e))

		got, err := store.Get(ctx, "gcp-000000000001")
		require.NoError(t, err)
		assert.Equal(t, tracker.StatusDeploying, got.Status)
		assert.Nil(t, got.CompletedAt)
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()
		require.NoError(t, store.Put(ctx, &tracker.Entry{ID: "x", Status: tracker.StatusPending, StartedAt: base}))
		require.NoError(t, store.Delete(ctx, "x"))
		require.NoError(t, store.Delete(ctx, "x"))
		_, err := store.Get(ctx, "x")
		assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
	})

	t.Run("ListOrdersByStart", func(t *testing.T) {
		store := factory(t)
		ctx := context.Background()
		require.NoError(t, store.Put(ctx, &tracker.Entry{ID: "b", Status: tracker.StatusPending, StartedAt: base.Add(time.Hour)}))
		require.NoError(t, store.Put(ctx, &tracker.Entry{ID: "a", Status: tracker.StatusPending, StartedAt: base}))

		list, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "a", list[0].ID)
		assert.Equal(t, "b", list[1].ID)
	})

	t.Run("TrackerLifecycle", func(t *testing.T) {
		tr := tracker.New(factory(t))
		ctx := context.Background()
		id := "az-000000000001"

		require.NoError(t, tr.Begin(ctx, id, "acct-9", "azure"))
		assert.True(t, apperrors.IsCode(tr.Begin(ctx, id, "acct-9", "azure"), apperrors.CodeConflict))
		require.NoError(t, tr.MarkDeploying(ctx, id))
		require.NoError(t, tr.Succeed(ctx, id))

		e, err := tr.Status(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, tracker.StatusSuccess, e.Status)
		assert.NotNil(t, e.CompletedAt)

		assert.True(t, apperrors.IsCode(tr.Fail(ctx, id, "late"), apperrors.CodeConflict))
		require.NoError(t, tr.Destroyed(ctx, id, "acct-9"))
		assert.True(t, apperrors.IsCode(tr.MarkDeploying(ctx, id), apperrors.CodeConflict))

		e, err = tr.Status(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, tracker.StatusDestroyed, e.Status)
		assert.Equal(t, "acct-9", e.AccountID)
	})
}
