// Package archive stores deployment artifacts (logs and state snapshots) in a pluggable
// object store once a run is finished.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"sync"
)

// ErrNotFound is returned by Get for a missing object.
var ErrNotFound = errors.New("archive object not found")

// Archive is an object store for deployment artifacts.
type Archive interface {
	Type() string
	Put(ctx context.Context, key string, data io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Factory builds an archive from key/value settings.
type Factory func(cfg map[string]string) (Archive, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available by name. Backends register themselves in init.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = f
}

// New builds the named backend.
func New(name string, cfg map[string]string) (Archive, error) {
	mu.RLock()
	f, ok := factories[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown archive backend %q (available: %v)", name, Backends())
	}
	return f(cfg)
}

// Backends lists registered backend names.
func Backends() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// LogKey is the object key of a deployment's archived log.
func LogKey(deploymentID string) string {
	return path.Join(deploymentID, "provision.log")
}

// StateKey is the object key of a deployment's archived state snapshot.
func StateKey(deploymentID string) string {
	return path.Join(deploymentID, "terraform.tfstate")
}

// Join prefixes key when prefix is set.
func Join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return path.Join(prefix, key)
}
