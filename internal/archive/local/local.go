// Package local implements a filesystem archive backend.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cloudconsole/engine/internal/archive"
)

func init() {
	archive.Register("local", NewBackend)
}

// Backend stores objects as files under a base directory.
type Backend struct {
	basePath string
}

func NewBackend(cfg map[string]string) (archive.Archive, error) {
	base := cfg["path"]
	if base == "" {
		return nil, fmt.Errorf("local archive requires 'path' configuration")
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}
	return &Backend{basePath: base}, nil
}

func (b *Backend) Type() string { return "local" }

func (b *Backend) Put(ctx context.Context, key string, data io.Reader) error {
	full := b.fullPath(key)
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".archive-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", full, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", full, err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return fmt.Errorf("rename %s: %w", full, err)
	}
	return nil
}

func (b *Backend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(b.fullPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, archive.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return f, nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	if err := os.Remove(b.fullPath(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (b *Backend) fullPath(key string) string {
	return filepath.Join(b.basePath, filepath.FromSlash(key))
}
