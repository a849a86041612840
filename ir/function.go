package ir

import "slices"

// OpsetID declares a dependency on version Version of the operator set Domain.
// The empty domain is the default ONNX operator set.
type OpsetID struct {
	Domain  string
	Version int64
}

// Function is a reusable operator body: formal inputs, outputs and attributes,
// an ordered list of nodes and the opset imports its nodes rely on.
//
// Functions are treated as immutable once registered in a Library.
type Function struct {
	Name     string
	Domain   string
	Overload string
	Doc      string

	Inputs     []string
	Outputs    []string
	Attributes []string

	// AttributeDefaults are declared attributes carrying a default value.
	AttributeDefaults []*Attribute

	Nodes        []*Node
	OpsetImports []OpsetID
}

// OpsetVersion returns the version imported for domain.
// All imports are scanned; if the domain is imported more than once, the last one wins.
func (f *Function) OpsetVersion(domain string) (int64, bool) {
	version, found := int64(-1), false
	for _, imp := range f.OpsetImports {
		if imp.Domain == domain {
			version, found = imp.Version, true
		}
	}
	return version, found
}

// Clone returns a deep copy of the function.
func (f *Function) Clone() *Function {
	c := &Function{
		Name:         f.Name,
		Domain:       f.Domain,
		Overload:     f.Overload,
		Doc:          f.Doc,
		Inputs:       slices.Clone(f.Inputs),
		Outputs:      slices.Clone(f.Outputs),
		Attributes:   slices.Clone(f.Attributes),
		OpsetImports: slices.Clone(f.OpsetImports),
	}
	for _, a := range f.AttributeDefaults {
		c.AttributeDefaults = append(c.AttributeDefaults, a.Clone())
	}
	for _, n := range f.Nodes {
		c.Nodes = append(c.Nodes, n.Clone())
	}
	return c
}
