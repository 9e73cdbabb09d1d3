package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cloudconsole/engine/internal/provisioner/compiler"
)

// renderRequest is the file format read by render. JSON files parse as YAML.
type renderRequest struct {
	Provider       string                `yaml:"provider"`
	Region         string                `yaml:"region"`
	ProjectID      string                `yaml:"projectId"`
	SubscriptionID string                `yaml:"subscriptionId"`
	DeploymentID   string                `yaml:"deploymentId"`
	Modules        []string              `yaml:"modules"`
	ModuleConfig   compiler.ModuleConfig `yaml:"moduleConfig"`
}

func newRenderCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "render <request-file>",
		Short: "Render a deployment request into a document",
		Long: `Render reads a request (YAML or JSON) and prints the document the engine would
write into the deployment workspace.

Example request:
  provider: aws
  region: us-east-1
  modules: [storage]
  moduleConfig:
    storage:
      bucketName: assets`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read request: %w", err)
			}
			var req renderRequest
			if err := yaml.Unmarshal(raw, &req); err != nil {
				return fmt.Errorf("parse request: %w", err)
			}
			if req.DeploymentID == "" {
				req.DeploymentID = "preview"
			}

			doc, err := compiler.Generate(req.Modules, req.ModuleConfig, compiler.AccountContext{
				Provider:       req.Provider,
				Region:         req.Region,
				ProjectID:      req.ProjectID,
				SubscriptionID: req.SubscriptionID,
				DeploymentID:   req.DeploymentID,
			})
			if err != nil {
				return err
			}

			if out != "" {
				if err := os.WriteFile(out, doc.Bytes, 0o644); err != nil {
					return fmt.Errorf("write document: %w", err)
				}
			} else if _, err := cmd.OutOrStdout().Write(doc.Bytes); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "rendered %d module(s) for %s/%s, digest %s\n",
				len(doc.Modules), doc.Provider, doc.Region, doc.Digest)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the document to a file instead of stdout")
	return cmd
}
