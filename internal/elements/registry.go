// Package elements maps semantic element names to live UI handles.
//
// Selectors live in a registry file rather than in code because the target
// site changes its DOM frequently; update registry.yaml when lookups break.
package elements

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed registry.yaml
var defaultRegistry []byte

// ErrUnknownElement is returned for names missing from the registry.
var ErrUnknownElement = errors.New("unknown element")

// Spec describes how to locate one semantic element.
type Spec struct {
	Name string `yaml:"name"`
	// ID is tried before any selector when set.
	ID string `yaml:"id,omitempty"`
	// Selectors are tried in order. Order matters.
	Selectors []string `yaml:"selectors"`
	// Text is an expected visible-text substring used to break ties.
	Text string `yaml:"text,omitempty"`
}

type registryFile struct {
	Elements []Spec `yaml:"elements"`
}

// Registry is an immutable lookup table of element specs.
type Registry struct {
	specs map[string]Spec
	order []string
}

// Load parses a registry document.
func Load(r io.Reader) (*Registry, error) {
	var f registryFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse element registry: %w", err)
	}

	reg := &Registry{specs: make(map[string]Spec, len(f.Elements))}
	for i, s := range f.Elements {
		if s.Name == "" {
			return nil, fmt.Errorf("element %d has no name", i)
		}
		if _, dup := reg.specs[s.Name]; dup {
			return nil, fmt.Errorf("duplicate element %q", s.Name)
		}
		if s.ID == "" && len(s.Selectors) == 0 {
			return nil, fmt.Errorf("element %q has neither id nor selectors", s.Name)
		}
		reg.specs[s.Name] = s
		reg.order = append(reg.order, s.Name)
	}
	return reg, nil
}

// LoadFile parses a registry from disk.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// Default returns the registry embedded in the binary.
func Default() *Registry {
	reg, err := Load(bytes.NewReader(defaultRegistry))
	if err != nil {
		panic(fmt.Sprintf("embedded element registry is invalid: %v", err))
	}
	return reg
}

// Lookup returns the Spec registered under name.
func (r *Registry) Lookup(name string) (Spec, error) {
	s, ok := r.specs[name]
	if !ok {
		return Spec{}, fmt.Errorf("%w: %s", ErrUnknownElement, name)
	}
	s.Selectors = append([]string(nil), s.Selectors...)
	return s, nil
}

// Names lists element names in file order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}
