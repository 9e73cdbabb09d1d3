package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	apperrors "github.com/cloudconsole/engine/pkg/errors"
	"github.com/cloudconsole/engine/pkg/logger"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"go.uber.org/zap"
)

// ModuleLibrary is the shared, read-only tree of Terraform modules a workspace references.
type ModuleLibrary interface {
	// Root is the library's directory on disk.
	Root() string
	// Check fails with an unavailable AppError when the library cannot be used.
	Check(ctx context.Context) error
	// Materialize exposes the library as dir/modules.
	Materialize(ctx context.Context, dir string) error
}

// Library modes.
const (
	ModeSymlink = "symlink"
	ModeCopy    = "copy"
)

func libraryMissing(root string, cause error) error {
	return apperrors.Wrap(cause, apperrors.CodeUnavailable, "provisioning library missing").
		WithMeta("library", root)
}

// DirLibrary serves a module library from a local directory.
type DirLibrary struct {
	root string
	mode string
}

// NewDirLibrary returns a library rooted at root, linked or copied per mode.
func NewDirLibrary(root, mode string) *DirLibrary {
	if mode == "" {
		mode = ModeSymlink
	}
	return &DirLibrary{root: root, mode: mode}
}

func (l *DirLibrary) Root() string { return l.root }

func (l *DirLibrary) Check(ctx context.Context) error {
	fi, err := os.Stat(l.root)
	if err != nil {
		return libraryMissing(l.root, err)
	}
	if !fi.IsDir() {
		return libraryMissing(l.root, fmt.Errorf("%s is not a directory", l.root))
	}
	return nil
}

func (l *DirLibrary) Materialize(ctx context.Context, dir string) error {
	abs, err := filepath.Abs(l.root)
	if err != nil {
		return fmt.Errorf("resolve library root: %w", err)
	}
	target := filepath.Join(dir, "modules")

	if fi, err := os.Lstat(target); err == nil {
		if fi.Mode()&os.ModeSymlink != 0 && l.mode == ModeSymlink {
			if dest, err := os.Readlink(target); err == nil && dest == abs {
				return nil
			}
		}
		if err := os.RemoveAll(target); err != nil {
			return fmt.Errorf("remove stale module library: %w", err)
		}
	}

	switch l.mode {
	case ModeSymlink:
		if err := os.Symlink(abs, target); err != nil {
			return fmt.Errorf("link module library: %w", err)
		}
	case ModeCopy:
		if err := os.CopyFS(target, os.DirFS(abs)); err != nil {
			return fmt.Errorf("copy module library: %w", err)
		}
	default:
		return fmt.Errorf("unknown module library mode %q", l.mode)
	}
	return nil
}

// GitLibrary clones a module library once into a cache directory and then serves it
// like a DirLibrary.
type GitLibrary struct {
	url   string
	ref   string
	cache string

	mu     sync.Mutex
	cloned bool
	dir    *DirLibrary
}

// NewGitLibrary returns a library cloned from url at ref into cacheDir.
func NewGitLibrary(url, ref, cacheDir, mode string) *GitLibrary {
	return &GitLibrary{
		url:   url,
		ref:   ref,
		cache: cacheDir,
		dir:   NewDirLibrary(cacheDir, mode),
	}
}

func (g *GitLibrary) Root() string { return g.cache }

func (g *GitLibrary) Check(ctx context.Context) error {
	if err := g.ensure(ctx); err != nil {
		return err
	}
	return g.dir.Check(ctx)
}

func (g *GitLibrary) Materialize(ctx context.Context, dir string) error {
	if err := g.ensure(ctx); err != nil {
		return err
	}
	return g.dir.Materialize(ctx, dir)
}

func (g *GitLibrary) ensure(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cloned {
		return nil
	}

	if _, err := git.PlainOpen(g.cache); err == nil {
		g.cloned = true
		return nil
	}

	opts := &git.CloneOptions{URL: g.url, SingleBranch: true}
	if g.ref != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(g.ref)
	}
	if strings.Contains(g.url, "://") && !strings.HasPrefix(g.url, "file://") {
		opts.Depth = 1
	}

	logger.L().Info("cloning module library", zap.String("url", g.url), zap.String("ref", g.ref), zap.String("dir", g.cache))
	_, err := git.PlainCloneContext(ctx, g.cache, false, opts)
	if err != nil && g.ref != "" {
		_ = os.RemoveAll(g.cache)
		opts.ReferenceName = plumbing.NewTagReferenceName(g.ref)
		_, err = git.PlainCloneContext(ctx, g.cache, false, opts)
	}
	if err != nil {
		_ = os.RemoveAll(g.cache)
		return libraryMissing(g.url, err)
	}
	g.cloned = true
	return nil
}
