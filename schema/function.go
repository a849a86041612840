package schema

import (
	"slices"

	"github.com/gomlx/onnx-inline/ir"
)

// FromFunction derives the schema of a model-local function from its declaration:
// formal inputs and outputs, declared attributes and their defaults. It is the
// inverse of OpSchema.BuildFunction. The schema is in effect from version 1.
func FromFunction(fn *ir.Function) *OpSchema {
	s := &OpSchema{
		Name:         fn.Name,
		Domain:       fn.Domain,
		SinceVersion: 1,
		Doc:          fn.Doc,
		Inputs:       slices.Clone(fn.Inputs),
		Outputs:      slices.Clone(fn.Outputs),
		Attributes:   make(map[string]AttrSpec, len(fn.Attributes)+len(fn.AttributeDefaults)),
	}
	for _, name := range fn.Attributes {
		s.Attributes[name] = AttrSpec{Name: name}
	}
	for _, attr := range fn.AttributeDefaults {
		if attr.IsRef() {
			continue
		}
		value := attr.Value.Clone()
		s.Attributes[attr.Name] = AttrSpec{Name: attr.Name, Type: value.Type, Default: &value, Doc: attr.Doc}
	}
	return s
}

// Chain looks schemas up in each source in turn; the first hit wins.
type Chain []Source

var _ Source = Chain(nil)

// Lookup implements Source.
func (c Chain) Lookup(opType, domain string, version int64) (*OpSchema, bool) {
	for _, src := range c {
		if src == nil {
			continue
		}
		if s, ok := src.Lookup(opType, domain, version); ok {
			return s, true
		}
	}
	return nil, false
}

// ForLibrary returns a registry holding the derived schema of every function of lib.
func ForLibrary(lib *ir.Library) (*Registry, error) {
	r := NewRegistry()
	if lib == nil {
		return r, nil
	}
	for _, fn := range lib.Functions() {
		if err := r.Register(FromFunction(fn)); err != nil {
			return nil, err
		}
	}
	return r, nil
}
