// Package tracker is the deployment status state machine.
//
// Transitions are serialized with a mutex and persisted through an injected Store,
// so status survives restarts when the store is durable.
package tracker

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/cloudconsole/engine/pkg/errors"
)

// Status of a deployment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusDeploying Status = "deploying"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusDestroyed Status = "destroyed"
	// StatusUnknown is reported for workspaces that have no tracked entry.
	StatusUnknown Status = "unknown"
)

// Terminal reports whether no further apply-side transition can happen.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusDestroyed
}

var transitions = map[Status][]Status{
	StatusPending:   {StatusDeploying, StatusFailed},
	StatusDeploying: {StatusSuccess, StatusFailed},
	StatusSuccess:   {StatusDestroyed},
	StatusFailed:    {StatusDestroyed},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Entry is the tracked state of one deployment.
type Entry struct {
	ID          string     `json:"id"`
	AccountID   string     `json:"accountId"`
	Provider    string     `json:"provider"`
	Status      Status     `json:"status"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt"`
	Error       string     `json:"error,omitempty"`
}

// Store persists entries. Get returns a not_found AppError for unknown ids.
type Store interface {
	Get(ctx context.Context, id string) (*Entry, error)
	Put(ctx context.Context, e *Entry) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Entry, error)
}

// Tracker applies status transitions.
type Tracker struct {
	mu    sync.Mutex
	store Store
	now   func() time.Time
}

func New(store Store) *Tracker {
	return &Tracker{store: store, now: time.Now}
}

// Begin starts tracking a deployment in pending.
func (t *Tracker) Begin(ctx context.Context, id, accountID, provider string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.store.Get(ctx, id); err == nil {
		return apperrors.Newf(apperrors.CodeConflict, "deployment %s is already tracked", id)
	} else if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		return err
	}
	return t.store.Put(ctx, &Entry{
		ID:        id,
		AccountID: accountID,
		Provider:  provider,
		Status:    StatusPending,
		StartedAt: t.now().UTC(),
	})
}

// MarkDeploying moves pending -> deploying.
func (t *Tracker) MarkDeploying(ctx context.Context, id string) error {
	return t.transition(ctx, id, StatusDeploying, "")
}

// Succeed moves deploying -> success.
func (t *Tracker) Succeed(ctx context.Context, id string) error {
	return t.transition(ctx, id, StatusSuccess, "")
}

// Fail moves pending or deploying -> failed with a human-readable cause.
func (t *Tracker) Fail(ctx context.Context, id string, cause string) error {
	return t.transition(ctx, id, StatusFailed, cause)
}

// Destroyed moves success or failed -> destroyed. An id without an entry (lost after
// a restart with a non-durable store) is adopted directly as destroyed.
func (t *Tracker) Destroyed(ctx context.Context, id, accountID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, err := t.store.Get(ctx, id)
	if apperrors.IsCode(err, apperrors.CodeNotFound) {
		now := t.now().UTC()
		return t.store.Put(ctx, &Entry{ID: id, AccountID: accountID, Status: StatusDestroyed, StartedAt: now, CompletedAt: &now})
	}
	if err != nil {
		return err
	}
	return t.apply(ctx, e, StatusDestroyed, "")
}

// RecordError attaches an error message without changing status.
func (t *Tracker) RecordError(ctx context.Context, id, msg string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, err := t.store.Get(ctx, id)
	if err != nil {
		return err
	}
	e.Error = msg
	return t.store.Put(ctx, e)
}

// Status returns the entry for id or a not_found AppError.
func (t *Tracker) Status(ctx context.Context, id string) (*Entry, error) {
	return t.store.Get(ctx, id)
}

// List returns every tracked entry.
func (t *Tracker) List(ctx context.Context) ([]Entry, error) {
	return t.store.List(ctx)
}

// Forget removes an entry.
func (t *Tracker) Forget(ctx context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Delete(ctx, id)
}

func (t *Tracker) transition(ctx context.Context, id string, to Status, cause string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, err := t.store.Get(ctx, id)
	if err != nil {
		return err
	}
	return t.apply(ctx, e, to, cause)
}

func (t *Tracker) apply(ctx context.Context, e *Entry, to Status, cause string) error {
	if !CanTransition(e.Status, to) {
		return apperrors.Newf(apperrors.CodeConflict, "deployment %s cannot move from %s to %s", e.ID, e.Status, to).
			WithMeta("status", string(e.Status))
	}
	e.Status = to
	if to.Terminal() {
		now := t.now().UTC()
		e.CompletedAt = &now
	}
	if to == StatusFailed {
		e.Error = cause
	}
	return t.store.Put(ctx, e)
}
