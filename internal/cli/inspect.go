package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cloudconsole/engine/internal/provisioner/terraform"
)

func newInspectCmd() *cobra.Command {
	var (
		plan         bool
		outputFormat string
	)

	cmd := &cobra.Command{
		Use:   "inspect <show-json-file|->",
		Short: "List the resources in a state or plan export",
		Long: `Inspect reads the output of "terraform show -json" (or "show -json <planfile>"
with --plan) and lists resources the way the engine reports them.

Examples:
  terraform show -json | iacgen inspect -
  terraform show -json tfplan > plan.json && iacgen inspect --plan plan.json -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				raw []byte
				err error
			)
			if args[0] == "-" {
				raw, err = io.ReadAll(cmd.InOrStdin())
			} else {
				raw, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("read export: %w", err)
			}

			extract := terraform.ExtractState
			if plan {
				extract = terraform.ExtractPlan
			}
			resources, err := extract(raw)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			switch outputFormat {
			case "json":
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(resources)
			case "yaml":
				return yaml.NewEncoder(w).Encode(resources)
			case "table", "":
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ADDRESS\tTYPE\tNAME\tSTATUS")
				for _, r := range resources {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Type, r.Name, r.Status)
				}
				return tw.Flush()
			default:
				return fmt.Errorf("unknown output format %q (table, json, yaml)", outputFormat)
			}
		},
	}
	cmd.Flags().BoolVar(&plan, "plan", false, "the input is a plan export")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "output format: table, json, yaml")
	return cmd
}
