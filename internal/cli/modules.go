package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cloudconsole/engine/internal/provisioner/catalog"
)

type fieldView struct {
	Name     string   `json:"name" yaml:"name"`
	Aliases  []string `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Type     string   `json:"type" yaml:"type"`
	Required bool     `json:"required" yaml:"required"`
	Default  any      `json:"default,omitempty" yaml:"default,omitempty"`
	Hint     string   `json:"hint,omitempty" yaml:"hint,omitempty"`
}

type moduleView struct {
	Provider    string      `json:"provider" yaml:"provider"`
	ID          string      `json:"id" yaml:"id"`
	Kind        string      `json:"kind" yaml:"kind"`
	Description string      `json:"description" yaml:"description"`
	Fields      []fieldView `json:"fields" yaml:"fields"`
}

func newModulesCmd() *cobra.Command {
	var (
		provider     string
		outputFormat string
	)

	cmd := &cobra.Command{
		Use:     "modules",
		Aliases: []string{"catalog"},
		Short:   "List the module catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			views, err := catalogViews(provider)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			switch outputFormat {
			case "json":
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(views)
			case "yaml":
				return yaml.NewEncoder(w).Encode(views)
			case "table", "":
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "PROVIDER\tMODULE\tKIND\tREQUIRED\tDESCRIPTION")
				for _, v := range views {
					var req []string
					for _, f := range v.Fields {
						if f.Required {
							req = append(req, f.Name)
						}
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", v.Provider, v.ID, v.Kind, strings.Join(req, ","), v.Description)
				}
				return tw.Flush()
			default:
				return fmt.Errorf("unknown output format %q (table, json, yaml)", outputFormat)
			}
		},
	}
	cmd.Flags().StringVarP(&provider, "provider", "p", "", "only list modules of this provider")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "output format: table, json, yaml")
	return cmd
}

func catalogViews(provider string) ([]moduleView, error) {
	providers := catalog.Providers()
	if provider != "" {
		spec, err := catalog.Lookup(provider)
		if err != nil {
			return nil, err
		}
		providers = []catalog.Provider{spec.Name}
	}

	var out []moduleView
	for _, p := range providers {
		spec, err := catalog.Lookup(string(p))
		if err != nil {
			return nil, err
		}
		for _, m := range spec.Modules {
			v := moduleView{Provider: string(p), ID: m.ID, Kind: string(m.Kind), Description: m.Description}
			for _, f := range m.Fields {
				v.Fields = append(v.Fields, fieldView{
					Name:     f.Name,
					Aliases:  f.Aliases,
					Type:     f.Kind.String(),
					Required: f.Required,
					Default:  f.Default,
					Hint:     f.Hint,
				})
			}
			out = append(out, v)
		}
	}
	return out, nil
}
