package terraform

import (
	"encoding/json"
	"fmt"
	"strings"

	tfjson "github.com/hashicorp/terraform-json"
)

// Resource is one provisioned (or planned) resource flattened out of the module tree.
type Resource struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Provider   string         `json:"provider"`
	Status     string         `json:"status"`
	Attributes map[string]any `json:"attributes"`
}

// Resource statuses read from state.
const (
	StatusActive  = "active"
	StatusTainted = "tainted"
)

// ExtractState decodes `show -json` state output into resource records.
func ExtractState(raw []byte) ([]Resource, error) {
	var s tfjson.State
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return Extract(&s), nil
}

// Extract walks the state module tree depth first: a module's resources in order,
// then its child modules in order. Data sources are skipped.
func Extract(s *tfjson.State) []Resource {
	out := []Resource{}
	if s == nil || s.Values == nil {
		return out
	}
	walkState(s.Values.RootModule, &out)
	return out
}

func walkState(m *tfjson.StateModule, out *[]Resource) {
	if m == nil {
		return
	}
	for _, r := range m.Resources {
		if r == nil || r.Mode == tfjson.DataResourceMode {
			continue
		}
		var sensitive any
		if len(r.SensitiveValues) > 0 {
			_ = json.Unmarshal(r.SensitiveValues, &sensitive)
		}
		attrs := sanitize(r.AttributeValues, nil, sensitive)
		status := StatusActive
		if r.Tainted {
			status = StatusTainted
		}
		*out = append(*out, Resource{
			ID:         r.Address,
			Name:       resourceName(attrs, r.Name),
			Type:       r.Type,
			Provider:   r.ProviderName,
			Status:     status,
			Attributes: attrs,
		})
	}
	for _, c := range m.ChildModules {
		walkState(c, out)
	}
}

// ExtractPlan decodes `show -json <planfile>` output. Planned resources come first in
// module-tree order, followed by resources the plan deletes.
func ExtractPlan(raw []byte) ([]Resource, error) {
	var p tfjson.Plan
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}

	changes := make(map[string]*tfjson.ResourceChange, len(p.ResourceChanges))
	for _, rc := range p.ResourceChanges {
		if rc != nil {
			changes[rc.Address] = rc
		}
	}

	out := []Resource{}
	seen := map[string]bool{}
	if p.PlannedValues != nil {
		var walk func(m *tfjson.StateModule)
		walk = func(m *tfjson.StateModule) {
			if m == nil {
				return
			}
			for _, r := range m.Resources {
				if r == nil || r.Mode == tfjson.DataResourceMode {
					continue
				}
				var unknown, sensitive any
				if len(r.SensitiveValues) > 0 {
					_ = json.Unmarshal(r.SensitiveValues, &sensitive)
				}
				status := "no-op"
				if rc, ok := changes[r.Address]; ok && rc.Change != nil {
					unknown = rc.Change.AfterUnknown
					sensitive = mergeMarkers(sensitive, rc.Change.AfterSensitive)
					status = actionString(rc.Change.Actions)
				}
				attrs := sanitize(r.AttributeValues, unknown, sensitive)
				seen[r.Address] = true
				out = append(out, Resource{
					ID:         r.Address,
					Name:       resourceName(attrs, r.Name),
					Type:       r.Type,
					Provider:   r.ProviderName,
					Status:     status,
					Attributes: attrs,
				})
			}
			for _, c := range m.ChildModules {
				walk(c)
			}
		}
		walk(p.PlannedValues.RootModule)
	}

	for _, rc := range p.ResourceChanges {
		if rc == nil || rc.Change == nil || seen[rc.Address] || rc.Mode == tfjson.DataResourceMode {
			continue
		}
		if !rc.Change.Actions.Delete() {
			continue
		}
		before, _ := rc.Change.Before.(map[string]any)
		attrs := sanitize(before, nil, rc.Change.BeforeSensitive)
		out = append(out, Resource{
			ID:         rc.Address,
			Name:       resourceName(attrs, rc.Name),
			Type:       rc.Type,
			Provider:   rc.ProviderName,
			Status:     actionString(rc.Change.Actions),
			Attributes: attrs,
		})
	}
	return out, nil
}

func actionString(a tfjson.Actions) string {
	switch {
	case a.Replace():
		return "replace"
	case a.Create():
		return "create"
	case a.Delete():
		return "delete"
	case a.Update():
		return "update"
	case a.Read():
		return "read"
	case a.NoOp():
		return "no-op"
	}
	parts := make([]string, len(a))
	for i, x := range a {
		parts[i] = string(x)
	}
	return strings.Join(parts, ",")
}

func resourceName(attrs map[string]any, short string) string {
	if s, ok := attrs["name"].(string); ok && s != "" {
		return s
	}
	if labels, ok := attrs["labels"].(map[string]any); ok {
		if s, ok := labels["name"].(string); ok && s != "" {
			return s
		}
	}
	if tags, ok := attrs["tags"].(map[string]any); ok {
		if s, ok := tags["Name"].(string); ok && s != "" {
			return s
		}
	}
	if short != "" {
		return short
	}
	return "unknown"
}

// sanitize copies attrs with unknown values nulled, sensitive containers dropped,
// constant expressions resolved and reference-only expressions nulled.
func sanitize(attrs map[string]any, unknown, sensitive any) map[string]any {
	out := make(map[string]any, len(attrs))
	um, _ := unknown.(map[string]any)
	sm, _ := sensitive.(map[string]any)
	for k, v := range attrs {
		if marked(sm[k]) {
			continue
		}
		if um[k] == true {
			out[k] = nil
			continue
		}
		out[k] = clean(v, um[k])
	}
	return out
}

func clean(v any, unknown any) any {
	if unknown == true {
		return nil
	}
	switch x := v.(type) {
	case map[string]any:
		if c, ok := x["constant_value"]; ok && len(x) == 1 {
			return clean(c, unknown)
		}
		if _, ok := x["references"]; ok && len(x) == 1 {
			return nil
		}
		um, _ := unknown.(map[string]any)
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = clean(e, um[k])
		}
		return out
	case []any:
		ul, _ := unknown.([]any)
		out := make([]any, len(x))
		for i, e := range x {
			var u any
			if i < len(ul) {
				u = ul[i]
			}
			out[i] = clean(e, u)
		}
		return out
	default:
		return v
	}
}

// marked reports whether a sensitivity marker flags anything inside its container.
func marked(m any) bool {
	switch x := m.(type) {
	case bool:
		return x
	case map[string]any:
		for _, v := range x {
			if marked(v) {
				return true
			}
		}
	case []any:
		for _, v := range x {
			if marked(v) {
				return true
			}
		}
	}
	return false
}

func mergeMarkers(a, b any) any {
	am, aok := a.(map[string]any)
	bm, bok := b.(map[string]any)
	switch {
	case !aok:
		return b
	case !bok:
		return a
	}
	out := make(map[string]any, len(am)+len(bm))
	for k, v := range am {
		out[k] = v
	}
	for k, v := range bm {
		if marked(v) {
			out[k] = v
		}
	}
	return out
}
