// Package schemapack catalogs the supported MISMO schema variants. The
// catalog is embedded data loaded once at init; packs are immutable and
// safe to share across concurrent validations.
package schemapack

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed packs.yaml
var packsYAML []byte

// Namespace is a prefix/URI pair. An empty prefix marks the default
// namespace on the root element.
type Namespace struct {
	Prefix string `yaml:"prefix"`
	URI    string `yaml:"uri"`
}

// Pack is one supported MISMO variant: version, namespaces, root
// requirement, and strictness.
type Pack struct {
	ID            string `yaml:"id"`
	MISMOVersion  string `yaml:"mismo_version"` // MISMOVersionID prefix, e.g. "3.4"
	Build         int    `yaml:"build"`
	LDDIdentifier string `yaml:"ldd_identifier"`
	RootElement   string `yaml:"root_element"`

	RequiredNamespaces []Namespace `yaml:"required_namespaces"`
	OptionalNamespaces []Namespace `yaml:"optional_namespaces"`

	// Strict packs require the DU/ULAD wrapper and the LDD identifier
	// element; the generic pack only recommends the identifier.
	Strict bool `yaml:"strict"`
}

// VersionID returns the full MISMOVersionID attribute value emitted on export.
func (p Pack) VersionID() string {
	return p.MISMOVersion + ".0"
}

// Registry is the immutable pack catalog.
type Registry struct {
	packs map[string]Pack
	ids   []string
}

// NewRegistry loads the embedded pack catalog.
func NewRegistry() (*Registry, error) {
	var doc struct {
		Packs []Pack `yaml:"packs"`
	}
	if err := yaml.Unmarshal(packsYAML, &doc); err != nil {
		return nil, fmt.Errorf("parse schema pack catalog: %w", err)
	}
	if len(doc.Packs) == 0 {
		return nil, fmt.Errorf("schema pack catalog is empty")
	}

	r := &Registry{packs: make(map[string]Pack, len(doc.Packs))}
	for _, p := range doc.Packs {
		if p.ID == "" || p.RootElement == "" || p.LDDIdentifier == "" {
			return nil, fmt.Errorf("schema pack %q is incomplete", p.ID)
		}
		if _, dup := r.packs[p.ID]; dup {
			return nil, fmt.Errorf("duplicate schema pack %q", p.ID)
		}
		r.packs[p.ID] = p
		r.ids = append(r.ids, p.ID)
	}
	sort.Strings(r.ids)
	return r, nil
}

// Lookup returns the pack for an identifier.
func (r *Registry) Lookup(id string) (Pack, error) {
	p, ok := r.packs[id]
	if !ok {
		return Pack{}, fmt.Errorf("unknown schema pack %q (supported: %v)", id, r.ids)
	}
	return p, nil
}

// IDs returns the supported pack identifiers in sorted order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}
