// Package catalog is the static table of provisionable modules per cloud provider.
//
// Every module is described by an ordered list of fields. The compiler package
// resolves caller-supplied keys against these descriptors and renders one module
// block per selected module, so nothing outside this package hard-codes module
// inputs.
package catalog

import (
	"fmt"
	"slices"
	"strings"

	apperrors "github.com/cloudconsole/engine/pkg/errors"
)

// Provider names a supported cloud.
type Provider string

const (
	AWS   Provider = "aws"
	Azure Provider = "azure"
	GCP   Provider = "gcp"
)

// Kind tags the family a module belongs to.
type Kind string

const (
	KindNetwork    Kind = "network"
	KindStorage    Kind = "storage"
	KindCompute    Kind = "compute"
	KindKubernetes Kind = "kubernetes"
	KindDNS        Kind = "dns"
	KindIAM        Kind = "iam"
)

// FieldKind is the value type a field is coerced to.
type FieldKind int

const (
	String FieldKind = iota
	Number
	Bool
	List
	Map
)

func (k FieldKind) String() string {
	switch k {
	case String:
		return "string"
	case Number:
		return "number"
	case Bool:
		return "bool"
	case List:
		return "list"
	case Map:
		return "map"
	default:
		return "unknown"
	}
}

// Field describes one configurable module input.
type Field struct {
	// Name is the canonical snake_case key.
	Name string
	// Aliases are consulted in order when the canonical key is absent.
	Aliases  []string
	Kind     FieldKind
	Required bool
	Default  any
	// Input is the module variable name; empty means Name.
	Input string
	// Validate is a go-playground/validator tag applied after coercion.
	Validate string
	// Suffix must terminate string values (DNS names end with ".").
	Suffix   string
	Sanitize func(string) string
	// Hint is shown to callers when the format check fails.
	Hint string
}

// InputName returns the module variable the field renders into.
func (f Field) InputName() string {
	if f.Input != "" {
		return f.Input
	}
	return f.Name
}

// Module describes one selectable unit of infrastructure.
type Module struct {
	ID          string
	Kind        Kind
	Resource    string
	Description string
	Fields      []Field
}

// Field returns the descriptor with the given canonical name.
func (m Module) Field(name string) (Field, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// ProviderSpec is the catalog entry for one cloud.
type ProviderSpec struct {
	Name Provider
	// Prefix starts every deployment id for this provider.
	Prefix string
	// LocalName is the provider's name inside required_providers and the provider block.
	LocalName     string
	Source        string
	Version       string
	DefaultRegion string
	Regions       []string
	// RegionInput, when set, is passed the resolved region on every module.
	RegionInput string
	// IsolatedWorkspace selects a tool workspace named after the deployment id before every run.
	IsolatedWorkspace bool
	CredentialFields  []string
	Modules           []Module
}

// Module looks up a module by id.
func (p *ProviderSpec) Module(id string) (Module, bool) {
	for _, m := range p.Modules {
		if m.ID == id {
			return m, true
		}
	}
	return Module{}, false
}

// ModuleIDs lists module ids in catalog order.
func (p *ProviderSpec) ModuleIDs() []string {
	ids := make([]string, 0, len(p.Modules))
	for _, m := range p.Modules {
		ids = append(ids, m.ID)
	}
	return ids
}

// Source path of a module inside the module library.
func (p *ProviderSpec) ModuleSource(m Module) string {
	return fmt.Sprintf("./modules/%s/%s", p.Name, m.ID)
}

// ResolveRegion maps "global" to the default region and rejects anything outside the allow-list.
func (p *ProviderSpec) ResolveRegion(region string) (string, error) {
	region = strings.TrimSpace(strings.ToLower(region))
	switch region {
	case "":
		return "", apperrors.New(apperrors.CodeInvalid, "region is required").
			WithMeta("field", "region")
	case "global":
		return p.DefaultRegion, nil
	}
	if !slices.Contains(p.Regions, region) {
		return "", apperrors.Newf(apperrors.CodeInvalid, "region %q is not supported for %s", region, p.Name).
			WithMeta("field", "region").
			WithMeta("allowed", p.Regions)
	}
	return region, nil
}

var registry = map[Provider]*ProviderSpec{
	AWS:   awsSpec,
	Azure: azureSpec,
	GCP:   gcpSpec,
}

// Lookup returns the catalog entry for a provider name.
func Lookup(name string) (*ProviderSpec, error) {
	spec, ok := registry[Provider(strings.ToLower(name))]
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeInvalid, "unsupported provider %q", name).
			WithMeta("field", "provider")
	}
	return spec, nil
}

// ForDeploymentID returns the provider whose prefix starts the id.
func ForDeploymentID(id string) (*ProviderSpec, bool) {
	prefix, _, ok := strings.Cut(id, "-")
	if !ok {
		return nil, false
	}
	for _, p := range Providers() {
		if registry[p].Prefix == prefix {
			return registry[p], true
		}
	}
	return nil, false
}

// Providers returns the supported providers in a stable order.
func Providers() []Provider {
	return []Provider{AWS, Azure, GCP}
}
