// Package compiler renders module selections into a Terraform document.
package compiler

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/cloudconsole/engine/internal/provisioner/catalog"
	"github.com/cloudconsole/engine/pkg/utils"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
)

// ManagedBy is stamped on every AWS resource through provider default tags.
const ManagedBy = "cloud-console"

// AccountContext carries the target account details rendered into the provider block.
type AccountContext struct {
	Provider       string
	Region         string
	ProjectID      string
	SubscriptionID string
	DeploymentID   string
}

// Document is a generated Terraform configuration.
type Document struct {
	Provider catalog.Provider
	Region   string
	Modules  []string
	Bytes    []byte
	Digest   string
}

// Generate renders the selected modules for one account. It is a pure function of its
// inputs and the catalog: identical inputs produce byte-identical documents.
func Generate(selected []string, config ModuleConfig, account AccountContext) (*Document, error) {
	spec, err := catalog.Lookup(account.Provider)
	if err != nil {
		return nil, err
	}
	region, err := spec.ResolveRegion(account.Region)
	if err != nil {
		return nil, err
	}
	modules, err := Normalize(spec, selected, config)
	if err != nil {
		return nil, err
	}

	f := hclwrite.NewEmptyFile()
	root := f.Body()

	writeRequiredProviders(root, spec)
	root.AppendNewline()
	writeProvider(root, spec, region, account)

	for _, nm := range modules {
		root.AppendNewline()
		body := root.AppendNewBlock("module", []string{nm.Module.ID}).Body()
		body.SetAttributeValue("source", cty.StringVal(spec.ModuleSource(nm.Module)))
		if spec.RegionInput != "" {
			body.SetAttributeValue(spec.RegionInput, cty.StringVal(region))
		}
		for _, v := range nm.Values {
			cv, err := toCty(v.Value)
			if err != nil {
				return nil, configError(nm.Module.ID, v.Field.Name, "%s.%s: %v", nm.Module.ID, v.Field.Name, err)
			}
			body.SetAttributeValue(v.Field.InputName(), cv)
		}
	}

	out := hclwrite.Format(f.Bytes())
	return &Document{
		Provider: spec.Name,
		Region:   region,
		Modules:  append([]string(nil), selected...),
		Bytes:    out,
		Digest:   utils.DigestHex(out),
	}, nil
}

func writeRequiredProviders(root *hclwrite.Body, spec *catalog.ProviderSpec) {
	rp := root.AppendNewBlock("terraform", nil).Body().
		AppendNewBlock("required_providers", nil).Body()
	rp.SetAttributeValue(spec.LocalName, cty.ObjectVal(map[string]cty.Value{
		"source":  cty.StringVal(spec.Source),
		"version": cty.StringVal(spec.Version),
	}))
}

func writeProvider(root *hclwrite.Body, spec *catalog.ProviderSpec, region string, account AccountContext) {
	body := root.AppendNewBlock("provider", []string{spec.LocalName}).Body()
	switch spec.Name {
	case catalog.AWS:
		body.SetAttributeValue("region", cty.StringVal(region))
		tags := map[string]cty.Value{"ManagedBy": cty.StringVal(ManagedBy)}
		if account.DeploymentID != "" {
			tags["DeploymentId"] = cty.StringVal(account.DeploymentID)
		}
		body.AppendNewBlock("default_tags", nil).Body().
			SetAttributeValue("tags", cty.ObjectVal(tags))
	case catalog.Azure:
		body.AppendNewBlock("features", nil)
		if account.SubscriptionID != "" {
			body.SetAttributeValue("subscription_id", cty.StringVal(account.SubscriptionID))
		}
	case catalog.GCP:
		if account.ProjectID != "" {
			body.SetAttributeValue("project", cty.StringVal(account.ProjectID))
		}
		body.SetAttributeValue("region", cty.StringVal(region))
	}
}

func toCty(v any) (cty.Value, error) {
	switch x := v.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType), nil
	case string:
		return cty.StringVal(x), nil
	case bool:
		return cty.BoolVal(x), nil
	case int:
		return cty.NumberIntVal(int64(x)), nil
	case int64:
		return cty.NumberIntVal(x), nil
	case json.Number:
		return cty.ParseNumberVal(x.String())
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return cty.NumberIntVal(int64(x)), nil
		}
		return cty.NumberFloatVal(x), nil
	case []any:
		if len(x) == 0 {
			return cty.EmptyTupleVal, nil
		}
		vals := make([]cty.Value, 0, len(x))
		for _, e := range x {
			cv, err := toCty(e)
			if err != nil {
				return cty.NilVal, err
			}
			vals = append(vals, cv)
		}
		return cty.TupleVal(vals), nil
	case map[string]any:
		if len(x) == 0 {
			return cty.EmptyObjectVal, nil
		}
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		attrs := make(map[string]cty.Value, len(x))
		for _, k := range keys {
			cv, err := toCty(x[k])
			if err != nil {
				return cty.NilVal, err
			}
			attrs[k] = cv
		}
		return cty.ObjectVal(attrs), nil
	default:
		return cty.NilVal, fmt.Errorf("unsupported value type %T", v)
	}
}
