package compiler

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/cloudconsole/engine/internal/provisioner/catalog"
	apperrors "github.com/cloudconsole/engine/pkg/errors"
	"github.com/cloudconsole/engine/pkg/logger"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ModuleConfig maps module id to caller-supplied field values.
type ModuleConfig map[string]map[string]any

// Value is one resolved module input.
type Value struct {
	Field catalog.Field
	Value any
}

// NormalizedModule is a selected module with its inputs in catalog field order.
type NormalizedModule struct {
	Module catalog.Module
	Values []Value
}

var validate = validator.New()

// Normalize resolves aliases, applies defaults, coerces kinds and validates every
// selected module against the provider catalog. Selection order is preserved.
func Normalize(spec *catalog.ProviderSpec, selected []string, config ModuleConfig) ([]NormalizedModule, error) {
	if len(selected) == 0 {
		return nil, apperrors.New(apperrors.CodeInvalid, "at least one module must be selected").
			WithMeta("field", "modules")
	}

	seen := make(map[string]bool, len(selected))
	out := make([]NormalizedModule, 0, len(selected))
	for _, id := range selected {
		if seen[id] {
			return nil, apperrors.Newf(apperrors.CodeInvalid, "module %q selected more than once", id).
				WithMeta("module", id)
		}
		seen[id] = true

		mod, ok := spec.Module(id)
		if !ok {
			return nil, apperrors.Newf(apperrors.CodeInvalid, "module %q is not available for %s", id, spec.Name).
				WithMeta("module", id).
				WithMeta("allowed", spec.ModuleIDs())
		}

		nm, err := normalizeModule(mod, config[id])
		if err != nil {
			return nil, err
		}
		out = append(out, nm)
	}

	for id := range config {
		if !seen[id] {
			logger.L().Debug("ignoring config for unselected module", zap.String("module", id))
		}
	}
	return out, nil
}

func normalizeModule(mod catalog.Module, raw map[string]any) (NormalizedModule, error) {
	given := canonicalKeys(raw)
	used := make(map[string]bool, len(given))

	nm := NormalizedModule{Module: mod}
	for _, f := range mod.Fields {
		v, key, ok := lookup(given, f)
		if ok {
			used[key] = true
		}
		if !ok || isEmpty(v) {
			if f.Required {
				return nm, configError(mod.ID, f.Name, "%s.%s is required", mod.ID, f.Name)
			}
			if f.Default == nil {
				continue
			}
			v = f.Default
		}

		cv, err := coerce(f, v)
		if err != nil {
			return nm, configError(mod.ID, f.Name, "%s.%s: %v", mod.ID, f.Name, err)
		}
		cv, err = check(mod.ID, f, cv)
		if err != nil {
			return nm, err
		}
		nm.Values = append(nm.Values, Value{Field: f, Value: cv})
	}

	for key := range given {
		if !used[key] {
			logger.L().Debug("dropping unknown module field", zap.String("module", mod.ID), zap.String("field", key))
		}
	}
	return nm, nil
}

// canonicalKeys snake-cases caller keys. When two keys collapse to the same form the
// one already written in snake_case wins, otherwise the lexically first.
func canonicalKeys(raw map[string]any) map[string]any {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(raw))
	exact := make(map[string]bool, len(raw))
	for _, k := range keys {
		ck := SnakeCase(k)
		if _, dup := out[ck]; dup && (exact[ck] || k != ck) {
			continue
		}
		out[ck] = raw[k]
		exact[ck] = k == ck
	}
	return out
}

func lookup(given map[string]any, f catalog.Field) (any, string, bool) {
	if v, ok := given[f.Name]; ok && !isEmpty(v) {
		return v, f.Name, true
	}
	for _, a := range f.Aliases {
		if v, ok := given[a]; ok && !isEmpty(v) {
			return v, a, true
		}
	}
	if v, ok := given[f.Name]; ok {
		return v, f.Name, true
	}
	return nil, "", false
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	}
	return false
}

func check(module string, f catalog.Field, v any) (any, error) {
	s, isString := v.(string)
	if isString {
		if f.Sanitize != nil {
			s = f.Sanitize(s)
			if s == "" && f.Required {
				return nil, configError(module, f.Name, "%s.%s is empty after removing invalid characters", module, f.Name)
			}
		}
		if f.Suffix != "" && !strings.HasSuffix(s, f.Suffix) {
			return nil, formatError(module, f, s, fmt.Sprintf("must end with %q", f.Suffix))
		}
		v = s
	}
	if f.Validate != "" {
		if err := validate.Var(v, f.Validate); err != nil {
			return nil, formatError(module, f, v, "failed "+f.Validate+" check")
		}
	}
	return v, nil
}

func formatError(module string, f catalog.Field, v any, reason string) error {
	msg := fmt.Sprintf("%s.%s %v %s", module, f.Name, v, reason)
	if f.Hint != "" {
		msg += ": expected " + f.Hint
	}
	return configError(module, f.Name, "%s", msg)
}

func configError(module, field, format string, args ...any) error {
	return apperrors.Newf(apperrors.CodeInvalid, format, args...).
		WithMeta("module", module).
		WithMeta("field", field)
}

func coerce(f catalog.Field, v any) (any, error) {
	switch f.Kind {
	case catalog.String:
		switch x := v.(type) {
		case string:
			return strings.TrimSpace(x), nil
		case bool:
			return strconv.FormatBool(x), nil
		case json.Number:
			return x.String(), nil
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64), nil
		case int:
			return strconv.Itoa(x), nil
		case int64:
			return strconv.FormatInt(x, 10), nil
		}
	case catalog.Number:
		switch x := v.(type) {
		case float64:
			return x, nil
		case int:
			return float64(x), nil
		case int64:
			return float64(x), nil
		case json.Number:
			return x.Float64()
		case string:
			n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
			if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
				return nil, fmt.Errorf("%q is not a number", x)
			}
			return n, nil
		}
	case catalog.Bool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(x))
			if err != nil {
				return nil, fmt.Errorf("%q is not a boolean", x)
			}
			return b, nil
		}
	case catalog.List:
		switch x := v.(type) {
		case []any:
			return append([]any(nil), x...), nil
		case []string:
			out := make([]any, len(x))
			for i, s := range x {
				out[i] = s
			}
			return out, nil
		case string:
			var out []any
			for _, part := range strings.Split(x, ",") {
				if p := strings.TrimSpace(part); p != "" {
					out = append(out, p)
				}
			}
			return out, nil
		}
	case catalog.Map:
		switch x := v.(type) {
		case map[string]any:
			out := make(map[string]any, len(x))
			for k, val := range x {
				out[k] = val
			}
			return out, nil
		case map[string]string:
			out := make(map[string]any, len(x))
			for k, val := range x {
				out[k] = val
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("expected %s, got %T", f.Kind, v)
}

// SnakeCase converts camelCase, PascalCase, kebab-case and spaced keys to snake_case.
func SnakeCase(s string) string {
	rs := []rune(strings.TrimSpace(s))
	var b strings.Builder
	for i, r := range rs {
		switch {
		case r == '-' || r == ' ' || r == '.':
			b.WriteByte('_')
		case unicode.IsUpper(r):
			if i > 0 {
				prev := rs[i-1]
				nextLower := i+1 < len(rs) && unicode.IsLower(rs[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
