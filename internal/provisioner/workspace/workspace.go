// Package workspace allocates one isolated directory per deployment.
//
// A workspace holds the generated main.tf, a modules/ view of the shared module
// library, and the tool's local state. Credential material never lives inside the
// workspace: it is written to 0600 temp files elsewhere and referenced through the
// environment of the child process.
package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/cloudconsole/engine/internal/credentials"
	"github.com/cloudconsole/engine/internal/provisioner/catalog"
	"github.com/cloudconsole/engine/internal/provisioner/compiler"
	apperrors "github.com/cloudconsole/engine/pkg/errors"
	"github.com/cloudconsole/engine/pkg/logger"
	"go.uber.org/zap"
)

// DocumentName is the file the generated document is written to.
const DocumentName = "main.tf"

var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,127}$`)

// ValidateID rejects ids that are not a single safe path component.
func ValidateID(id string) error {
	if !idPattern.MatchString(id) {
		return apperrors.Newf(apperrors.CodeInvalid, "invalid deployment id %q", id).
			WithMeta("field", "deploymentId")
	}
	return nil
}

// Manager owns the deployments root directory.
type Manager struct {
	root    string
	library ModuleLibrary
	credDir string
}

// Option configures a Manager.
type Option func(*Manager)

// WithCredentialDir sets where credential temp files are created. Defaults to os.TempDir().
func WithCredentialDir(dir string) Option {
	return func(m *Manager) { m.credDir = dir }
}

// NewManager returns a manager allocating workspaces under root.
func NewManager(root string, library ModuleLibrary, opts ...Option) *Manager {
	m := &Manager{root: root, library: library}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Library returns the module library workspaces are prepared from.
func (m *Manager) Library() ModuleLibrary { return m.library }

// Dir returns the workspace directory of a deployment.
func (m *Manager) Dir(id string) string { return filepath.Join(m.root, id) }

// Handle is a prepared workspace. Env carries the credential overlay for child processes.
type Handle struct {
	ID  string
	Dir string
	Env map[string]string

	files []string
	once  sync.Once
}

// ReleaseCredentials unlinks credential files. Safe to call more than once.
func (h *Handle) ReleaseCredentials() {
	if h == nil {
		return
	}
	h.once.Do(func() {
		for _, f := range h.files {
			if err := os.Remove(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
				logger.L().Warn("failed to remove credential file", zap.String("deployment_id", h.ID), zap.Error(err))
			}
		}
		h.files = nil
	})
}

// Prepare creates or refreshes the workspace for id. The module library is checked
// before anything is written. Existing local state is left in place.
func (m *Manager) Prepare(ctx context.Context, id string, doc *compiler.Document, creds *credentials.Credentials) (*Handle, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "no document to write")
	}
	if err := m.library.Check(ctx); err != nil {
		return nil, err
	}

	dir := m.Dir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	if err := m.library.Materialize(ctx, dir); err != nil {
		return nil, err
	}
	if err := writeFileAtomic(filepath.Join(dir, DocumentName), doc.Bytes, 0o644); err != nil {
		return nil, fmt.Errorf("write document: %w", err)
	}

	h := &Handle{ID: id, Dir: dir, Env: map[string]string{}}
	if creds != nil {
		if err := m.writeCredentials(h, doc.Provider, creds); err != nil {
			h.ReleaseCredentials()
			return nil, err
		}
	}
	logger.L().Debug("workspace prepared", zap.String("deployment_id", id), zap.String("dir", dir))
	return h, nil
}

func (m *Manager) writeCredentials(h *Handle, provider catalog.Provider, c *credentials.Credentials) error {
	switch provider {
	case catalog.AWS:
		var b strings.Builder
		b.WriteString("[default]\n")
		fmt.Fprintf(&b, "aws_access_key_id = %s\n", c.AccessKeyID)
		fmt.Fprintf(&b, "aws_secret_access_key = %s\n", c.SecretAccessKey)
		if c.SessionToken != "" {
			fmt.Fprintf(&b, "aws_session_token = %s\n", c.SessionToken)
		}
		path, err := m.tempFile(h, "aws-credentials", []byte(b.String()))
		if err != nil {
			return err
		}
		h.Env["AWS_SHARED_CREDENTIALS_FILE"] = path
		h.Env["AWS_PROFILE"] = "default"

	case catalog.GCP:
		key, err := json.Marshal(map[string]string{
			"type":         "service_account",
			"project_id":   c.ProjectID,
			"client_email": c.ClientEmail,
			"private_key":  c.PrivateKey,
			"token_uri":    "https://oauth2.googleapis.com/token",
		})
		if err != nil {
			return fmt.Errorf("encode service account key: %w", err)
		}
		path, err := m.tempFile(h, "gcp-key", key)
		if err != nil {
			return err
		}
		h.Env["GOOGLE_APPLICATION_CREDENTIALS"] = path
		h.Env["GOOGLE_PROJECT"] = c.ProjectID

	case catalog.Azure:
		h.Env["ARM_SUBSCRIPTION_ID"] = c.SubscriptionID
		h.Env["ARM_TENANT_ID"] = c.TenantID
		h.Env["ARM_CLIENT_ID"] = c.ClientID
		h.Env["ARM_CLIENT_SECRET"] = c.ClientSecret

	default:
		return apperrors.Newf(apperrors.CodeInvalid, "unsupported provider %q", provider)
	}
	return nil
}

func (m *Manager) tempFile(h *Handle, kind string, data []byte) (string, error) {
	f, err := os.CreateTemp(m.credDir, h.ID+"-"+kind+"-*")
	if err != nil {
		return "", fmt.Errorf("create credential file: %w", err)
	}
	h.files = append(h.files, f.Name())
	if err := f.Chmod(0o600); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("restrict credential file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write credential file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close credential file: %w", err)
	}
	return f.Name(), nil
}

// Release deletes a deployment's workspace directory.
func (m *Manager) Release(id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if err := os.RemoveAll(m.Dir(id)); err != nil {
		return fmt.Errorf("remove workspace: %w", err)
	}
	return nil
}

// Exists reports whether a workspace directory exists for id.
func (m *Manager) Exists(id string) bool {
	if ValidateID(id) != nil {
		return false
	}
	fi, err := os.Stat(m.Dir(id))
	return err == nil && fi.IsDir()
}

// List returns the workspace namespaces present on disk, sorted.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() && ValidateID(e.Name()) == nil {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
