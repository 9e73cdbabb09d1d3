package terraform

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	apperrors "github.com/cloudconsole/engine/pkg/errors"
	"github.com/hashicorp/terraform-exec/tfexec"
)

// Preflight resolves the provisioning tool binary and asks it for its version.
func Preflight(ctx context.Context, workDir, binary string) (string, error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeUnavailable, "provisioning tool not found").
			WithMeta("binary", binary)
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", fmt.Errorf("create working dir: %w", err)
	}

	tf, err := tfexec.NewTerraform(workDir, path)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeUnavailable, "provisioning tool unusable").
			WithMeta("binary", path)
	}
	v, _, err := tf.Version(ctx, true)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeUnavailable, "provisioning tool version probe failed").
			WithMeta("binary", path)
	}
	return v.String(), nil
}
