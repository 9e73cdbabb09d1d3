package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cloudconsole/engine/internal/archive"
)

func newArchiveCmd() *cobra.Command {
	var (
		backendType   string
		backendConfig []string
		state         bool
	)

	cmd := &cobra.Command{
		Use:   "archive <deployment-id>",
		Short: "Print an archived deployment log or state snapshot",
		Long: `Fetch the provisioning log (or with --state the state snapshot) the engine
archived for a deployment.

Examples:
  iacgen archive aws-1a2b3c4d5e6f --backend local --backend-config path=/var/lib/engine/archive
  iacgen archive aws-1a2b3c4d5e6f --backend s3 --backend-config bucket=artifacts --backend-config region=us-east-1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := parseBackendConfig(backendConfig)
			if err != nil {
				return err
			}
			a, err := archive.New(backendType, settings)
			if err != nil {
				return err
			}

			key := archive.LogKey(args[0])
			if state {
				key = archive.StateKey(args[0])
			}
			r, err := a.Get(cmd.Context(), key)
			if err != nil {
				return fmt.Errorf("get %s from %s archive: %w", key, a.Type(), err)
			}
			defer r.Close()
			_, err = io.Copy(cmd.OutOrStdout(), r)
			return err
		},
	}
	cmd.Flags().StringVar(&backendType, "backend", "local", fmt.Sprintf("archive backend (%s)", strings.Join(archive.Backends(), ", ")))
	cmd.Flags().StringArrayVar(&backendConfig, "backend-config", nil, "backend setting as key=value")
	cmd.Flags().BoolVar(&state, "state", false, "print the state snapshot instead of the log")
	return cmd
}

func parseBackendConfig(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid backend config %q, expected key=value", p)
		}
		out[k] = v
	}
	return out, nil
}
