// Package queue hands apply jobs to an executor: in-process goroutines or asynq workers.
package queue

import (
	"context"
	"sync"

	"github.com/cloudconsole/engine/internal/queue/tasks"
	apperrors "github.com/cloudconsole/engine/pkg/errors"
	"github.com/cloudconsole/engine/pkg/logger"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Dispatcher schedules the apply job of a deployment and returns immediately.
type Dispatcher interface {
	Dispatch(ctx context.Context, deploymentID string) error
	// Shutdown stops accepting jobs and waits for in-flight ones until ctx is done.
	Shutdown(ctx context.Context) error
}

// Local runs each job in its own goroutine.
type Local struct {
	applier tasks.Applier

	mu      sync.Mutex
	closed  bool
	wg      sync.WaitGroup
	baseCtx context.Context
	cancel  context.CancelFunc
}

func NewLocal(applier tasks.Applier) *Local {
	ctx, cancel := context.WithCancel(context.Background())
	return &Local{applier: applier, baseCtx: ctx, cancel: cancel}
}

// SetApplier binds the job body after construction, for services that own the dispatcher.
func (l *Local) SetApplier(a tasks.Applier) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.applier = a
}

func (l *Local) Dispatch(_ context.Context, deploymentID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return apperrors.New(apperrors.CodeUnavailable, "dispatcher is shutting down")
	}
	if l.applier == nil {
		return apperrors.New(apperrors.CodeInternal, "dispatcher has no applier")
	}
	applier := l.applier
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		// the request context ends with the HTTP response; jobs outlive it
		if err := applier.RunApply(l.baseCtx, deploymentID); err != nil {
			logger.ForDeployment(deploymentID).Warn("apply job failed", zap.Error(err))
		}
	}()
	return nil
}

// Wait blocks until every dispatched job has finished.
func (l *Local) Wait() { l.wg.Wait() }

// Shutdown waits for running jobs. When ctx expires first, running processes are killed
// and the jobs are waited for once more.
func (l *Local) Shutdown(ctx context.Context) error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		l.cancel()
		return nil
	case <-ctx.Done():
		l.cancel()
		<-done
		return ctx.Err()
	}
}

// Asynq enqueues jobs for cmd/worker.
type Asynq struct {
	client *asynq.Client
	queue  string
}

// NewAsynq returns a dispatcher enqueuing onto queue ("default" when empty).
func NewAsynq(opt asynq.RedisConnOpt, queue string) *Asynq {
	if queue == "" {
		queue = "default"
	}
	return &Asynq{client: asynq.NewClient(opt), queue: queue}
}

func (a *Asynq) Dispatch(ctx context.Context, deploymentID string) error {
	task, err := tasks.NewApplyTask(deploymentID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "build apply task failed")
	}
	info, err := a.client.EnqueueContext(ctx, task, asynq.Queue(a.queue), asynq.TaskID(deploymentID))
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeUnavailable, "enqueue apply task failed").
			WithMeta("deployment_id", deploymentID)
	}
	logger.ForDeployment(deploymentID).Info("apply task enqueued", zap.String("queue", info.Queue), zap.String("task_id", info.ID))
	return nil
}

func (a *Asynq) Shutdown(context.Context) error {
	return a.client.Close()
}
