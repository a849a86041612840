// Package schema holds operator schemas: the formal interface of each operator
// version and the default values of its attributes.
//
// A Registry is an explicit handle passed to whoever needs schema lookups. It is
// safe for concurrent use.
package schema

import (
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/gomlx/onnx-inline/ir"
	"github.com/pkg/errors"
)

// AttrSpec declares an attribute of an operator.
type AttrSpec struct {
	Name     string
	Type     ir.AttrType
	Required bool
	// Default is nil when the attribute has no default value.
	Default *ir.AttrValue
	Doc     string
}

// OpSchema describes one version of an operator.
type OpSchema struct {
	Name         string
	Domain       string
	SinceVersion int64
	Doc          string
	Deprecated   bool

	Inputs     []string
	Outputs    []string
	Attributes map[string]AttrSpec
}

// Defaults returns a copy of every attribute default declared by the schema.
func (s *OpSchema) Defaults() map[string]ir.AttrValue {
	defaults := make(map[string]ir.AttrValue)
	for name, spec := range s.Attributes {
		if spec.Default != nil {
			defaults[name] = spec.Default.Clone()
		}
	}
	return defaults
}

// AttributeNames returns the declared attribute names, sorted.
func (s *OpSchema) AttributeNames() []string {
	return slices.Sorted(maps.Keys(s.Attributes))
}

// BuildFunction populates fn with the schema's metadata: name, domain, formal
// inputs and outputs, declared attributes and their defaults.
func (s *OpSchema) BuildFunction(fn *ir.Function) {
	fn.Name = s.Name
	fn.Domain = s.Domain
	fn.Doc = s.Doc
	fn.Inputs = slices.Clone(s.Inputs)
	fn.Outputs = slices.Clone(s.Outputs)
	fn.Attributes = fn.Attributes[:0]
	fn.AttributeDefaults = fn.AttributeDefaults[:0]
	for _, name := range s.AttributeNames() {
		spec := s.Attributes[name]
		if spec.Default != nil {
			fn.AttributeDefaults = append(fn.AttributeDefaults, ir.Literal(name, *spec.Default))
		} else {
			fn.Attributes = append(fn.Attributes, name)
		}
	}
}

// Source looks up operator schemas.
// Lookup returns the schema of opType in domain that is in effect at opset version
// version: the one with the greatest SinceVersion not above version.
type Source interface {
	Lookup(opType, domain string, version int64) (*OpSchema, bool)
}

type key struct {
	domain, name string
}

// Registry stores schemas by (domain, operator), each with its versions sorted by
// SinceVersion.
type Registry struct {
	mu      sync.RWMutex
	schemas map[key][]*OpSchema
}

var _ Source = (*Registry)(nil)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[key][]*OpSchema)}
}

// Register adds schemas. Registering the same (domain, name, SinceVersion) twice
// is an error, and no schema of the batch is added in that case.
func (r *Registry) Register(schemas ...*OpSchema) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[key]map[int64]bool)
	for _, s := range schemas {
		if s.Name == "" {
			return errors.New("schema without operator name")
		}
		k := key{s.Domain, s.Name}
		if seen[k] == nil {
			seen[k] = make(map[int64]bool)
			for _, existing := range r.schemas[k] {
				seen[k][existing.SinceVersion] = true
			}
		}
		if seen[k][s.SinceVersion] {
			return errors.Errorf("schema %s already registered for domain %q at version %d",
				s.Name, s.Domain, s.SinceVersion)
		}
		seen[k][s.SinceVersion] = true
	}
	for _, s := range schemas {
		k := key{s.Domain, s.Name}
		versions := append(r.schemas[k], s)
		sort.Slice(versions, func(i, j int) bool { return versions[i].SinceVersion < versions[j].SinceVersion })
		r.schemas[k] = versions
	}
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(schemas ...*OpSchema) {
	if err := r.Register(schemas...); err != nil {
		panic(err)
	}
}

// Lookup implements Source.
func (r *Registry) Lookup(opType, domain string, version int64) (*OpSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	versions := r.schemas[key{domain, opType}]
	for i := len(versions) - 1; i >= 0; i-- {
		if versions[i].SinceVersion <= version {
			return versions[i], true
		}
	}
	return nil, false
}

// All returns every registered schema sorted by domain, name and version.
func (r *Registry) All() []*OpSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []*OpSchema
	for _, versions := range r.schemas {
		all = append(all, versions...)
	}
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.Domain != b.Domain {
			return a.Domain < b.Domain
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.SinceVersion < b.SinceVersion
	})
	return all
}

// Len returns the number of registered schemas, counting each version.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, versions := range r.schemas {
		n += len(versions)
	}
	return n
}
