package queue

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/cloudconsole/engine/pkg/errors"
	"github.com/cloudconsole/engine/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	if _, err := logger.Init("error", "json"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type applyFunc func(ctx context.Context, id string) error

func (f applyFunc) RunApply(ctx context.Context, id string) error { return f(ctx, id) }

func TestLocalRunsJobsConcurrently(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	release := make(chan struct{})
	var running atomic.Int32

	d := NewLocal(applyFunc(func(ctx context.Context, id string) error {
		running.Add(1)
		<-release
		mu.Lock()
		seen[id] = true
		mu.Unlock()
		return nil
	}))

	require.NoError(t, d.Dispatch(context.Background(), "aws-000000000001"))
	require.NoError(t, d.Dispatch(context.Background(), "aws-000000000002"))
	require.Eventually(t, func() bool { return running.Load() == 2 }, time.Second, 5*time.Millisecond)

	close(release)
	require.NoError(t, d.Shutdown(context.Background()))
	assert.Equal(t, map[string]bool{"aws-000000000001": true, "aws-000000000002": true}, seen)

	err := d.Dispatch(context.Background(), "aws-000000000003")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnavailable), "got %v", err)
}

func TestLocalShutdownCancelsOnDeadline(t *testing.T) {
	d := NewLocal(applyFunc(func(ctx context.Context, id string) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	require.NoError(t, d.Dispatch(context.Background(), "gcp-000000000001"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLocalJobOutlivesRequestContext(t *testing.T) {
	done := make(chan error, 1)
	d := NewLocal(applyFunc(func(ctx context.Context, id string) error {
		time.Sleep(10 * time.Millisecond)
		done <- ctx.Err()
		return nil
	}))

	reqCtx, cancel := context.WithCancel(context.Background())
	require.NoError(t, d.Dispatch(reqCtx, "az-000000000001"))
	cancel()

	assert.NoError(t, <-done)
	d.Wait()
}

func TestLocalWithoutApplier(t *testing.T) {
	d := NewLocal(nil)
	err := d.Dispatch(context.Background(), "aws-000000000001")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInternal))
}
