// Package ir holds the in-memory representation of ONNX models that the
// inliner works on: nodes, attributes, tensors, graphs and functions.
//
// Values are referred to by name. Nothing in this package is safe for concurrent
// mutation; concurrent reads are fine.
package ir

import "sort"

// Model is a graph together with the functions it may call.
type Model struct {
	IRVersion       int64
	ProducerName    string
	ProducerVersion string
	Domain          string
	ModelVersion    int64
	Doc             string
	OpsetImports    []OpsetID
	Graph           *Graph
	Functions       []*Function
}

// Library returns a lookup table over the model's functions.
func (m *Model) Library() *Library {
	return NewLibrary(m.Functions...)
}

type libraryKey struct {
	domain, name string
}

// Library indexes functions by (domain, name).
type Library struct {
	functions map[libraryKey]*Function
}

// NewLibrary creates a library holding fns. A later function replaces an earlier
// one with the same domain and name.
func NewLibrary(fns ...*Function) *Library {
	l := &Library{functions: make(map[libraryKey]*Function, len(fns))}
	for _, fn := range fns {
		l.Add(fn)
	}
	return l
}

// Add registers fn.
func (l *Library) Add(fn *Function) {
	l.functions[libraryKey{fn.Domain, fn.Name}] = fn
}

// Lookup returns the function called by a node of the given domain and op type.
func (l *Library) Lookup(domain, name string) (*Function, bool) {
	if l == nil {
		return nil, false
	}
	fn, ok := l.functions[libraryKey{domain, name}]
	return fn, ok
}

// Len returns the number of functions.
func (l *Library) Len() int {
	return len(l.functions)
}

// Functions returns the functions sorted by domain and name.
func (l *Library) Functions() []*Function {
	fns := make([]*Function, 0, len(l.functions))
	for _, fn := range l.functions {
		fns = append(fns, fn)
	}
	sort.Slice(fns, func(i, j int) bool {
		if fns[i].Domain != fns[j].Domain {
			return fns[i].Domain < fns[j].Domain
		}
		return fns[i].Name < fns[j].Name
	})
	return fns
}
