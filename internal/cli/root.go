// Package cli implements the iacgen command, an offline companion to the engine for
// rendering documents, browsing the module catalog and fetching archived artifacts.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/cloudconsole/engine/pkg/logger"

	_ "github.com/cloudconsole/engine/internal/archive/azurerm"
	_ "github.com/cloudconsole/engine/internal/archive/gcs"
	_ "github.com/cloudconsole/engine/internal/archive/local"
	_ "github.com/cloudconsole/engine/internal/archive/s3"
)

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "iacgen",
		Short:         "Render and inspect infrastructure documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := logger.InitWriter(logLevel, "console", cmd.ErrOrStderr())
			return err
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level for diagnostics on stderr")
	root.AddCommand(newRenderCmd())
	root.AddCommand(newModulesCmd())
	root.AddCommand(newArchiveCmd())
	root.AddCommand(newInspectCmd())
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
