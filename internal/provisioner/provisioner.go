package provisioner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/cloudconsole/engine/internal/credentials"
	"github.com/cloudconsole/engine/internal/provisioner/catalog"
	"github.com/cloudconsole/engine/internal/provisioner/compiler"
	"github.com/cloudconsole/engine/internal/provisioner/terraform"
	"github.com/cloudconsole/engine/internal/provisioner/workspace"
	"github.com/cloudconsole/engine/pkg/logger"
	"go.uber.org/zap"
)

// Provisioner handles infrastructure provisioning via Terraform
type Provisioner interface {
	// Apply runs init and apply, then reads back the resulting resources.
	Apply(ctx context.Context, req Request) (*Result, error)

	// Destroy runs init and destroy, optionally scoped to one resource address.
	Destroy(ctx context.Context, req Request) (*Result, error)
}

// Request is one provisioning run for a deployment.
type Request struct {
	DeploymentID string
	Document     *compiler.Document
	Credentials  *credentials.Credentials
	// State is a saved local state file restored when the workspace has none.
	State []byte
	// Target limits destroy to one resource address.
	Target string
}

// Result of a run. State is the raw local state file after the run, if any.
type Result struct {
	Resources []terraform.Resource
	State     []byte
}

// Command argument sets.
var (
	initArgs    = []string{"init", "-input=false", "-no-color"}
	applyArgs   = []string{"apply", "-auto-approve", "-input=false", "-no-color"}
	destroyArgs = []string{"destroy", "-auto-approve", "-input=false", "-no-color"}
	showArgs    = []string{"show", "-json", "-no-color"}
)

// ApplySteps returns [workspace select-or-new] -> init -> apply.
func ApplySteps(spec *catalog.ProviderSpec, id string) []terraform.Step {
	return append(prelude(spec, id), terraform.Step{Args: applyArgs})
}

// DestroySteps returns [workspace select-or-new] -> init -> destroy, scoped to target when set.
func DestroySteps(spec *catalog.ProviderSpec, id, target string) []terraform.Step {
	args := append([]string(nil), destroyArgs...)
	if target != "" {
		args = append(args, "-target="+target)
	}
	return append(prelude(spec, id), terraform.Step{Args: args})
}

func prelude(spec *catalog.ProviderSpec, id string) []terraform.Step {
	var steps []terraform.Step
	if spec.IsolatedWorkspace {
		steps = append(steps, terraform.Step{
			Args:     []string{"workspace", "select", id},
			Fallback: []string{"workspace", "new", id},
		})
	}
	return append(steps, terraform.Step{Args: initArgs})
}

// StatePath is where the local backend keeps state for a deployment's workspace.
func StatePath(spec *catalog.ProviderSpec, dir, id string) string {
	if spec.IsolatedWorkspace {
		return filepath.Join(dir, "terraform.tfstate.d", id, "terraform.tfstate")
	}
	return filepath.Join(dir, "terraform.tfstate")
}

// TerraformProvisioner implements Provisioner using Terraform
type TerraformProvisioner struct {
	runner     *terraform.Runner
	workspaces *workspace.Manager
	logs       *terraform.LogStore
	timeout    time.Duration
}

func NewTerraformProvisioner(runner *terraform.Runner, workspaces *workspace.Manager, logs *terraform.LogStore, timeout time.Duration) *TerraformProvisioner {
	return &TerraformProvisioner{
		runner:     runner,
		workspaces: workspaces,
		logs:       logs,
		timeout:    timeout,
	}
}

func (t *TerraformProvisioner) Apply(ctx context.Context, req Request) (*Result, error) {
	return t.run(ctx, req, func(spec *catalog.ProviderSpec) []terraform.Step {
		return ApplySteps(spec, req.DeploymentID)
	}, true)
}

func (t *TerraformProvisioner) Destroy(ctx context.Context, req Request) (*Result, error) {
	return t.run(ctx, req, func(spec *catalog.ProviderSpec) []terraform.Step {
		return DestroySteps(spec, req.DeploymentID, req.Target)
	}, req.Target != "")
}

func (t *TerraformProvisioner) run(ctx context.Context, req Request, steps func(*catalog.ProviderSpec) []terraform.Step, readBack bool) (*Result, error) {
	if req.Document == nil {
		return nil, fmt.Errorf("no document for deployment %s", req.DeploymentID)
	}
	spec, err := catalog.Lookup(string(req.Document.Provider))
	if err != nil {
		return nil, err
	}

	h, err := t.workspaces.Prepare(ctx, req.DeploymentID, req.Document, req.Credentials)
	if err != nil {
		return nil, err
	}
	defer h.ReleaseCredentials()

	statePath := StatePath(spec, h.Dir, req.DeploymentID)
	if err := restoreState(statePath, req.State); err != nil {
		return nil, err
	}

	stream, err := t.logs.Open(req.DeploymentID)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	run := terraform.Spec{
		DeploymentID: req.DeploymentID,
		Dir:          h.Dir,
		Env:          h.Env,
		Steps:        steps(spec),
		Log:          stream,
	}
	if err := t.runner.Run(ctx, run); err != nil {
		return nil, err
	}

	res := &Result{}
	if readBack {
		// read-back errors do not fail the run
		out, err := t.runner.Output(ctx, run, showArgs...)
		if err != nil {
			logger.ForDeployment(req.DeploymentID).Warn("could not read back resources", zap.Error(err))
		} else if res.Resources, err = terraform.ExtractState(out); err != nil {
			logger.ForDeployment(req.DeploymentID).Warn("could not extract resources", zap.Error(err))
		}
	}

	if state, err := os.ReadFile(statePath); err == nil {
		res.State = state
	} else if !errors.Is(err, fs.ErrNotExist) {
		logger.ForDeployment(req.DeploymentID).Warn("could not read local state", zap.Error(err))
	}
	return res, nil
}

func restoreState(path string, state []byte) error {
	if len(state) == 0 {
		return nil
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	if err := os.WriteFile(path, state, 0o600); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}
