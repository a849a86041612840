package model

import (
	"fmt"

	"github.com/gomlx/onnx-inline/ir"
)

// Renamer is the binding scope of one graph splice.
//
// Names explicitly bound (graph inputs, outputs and initializers) map to their
// bound target. Every other name maps to prefix+name, memoized so that repeated
// occurrences rename identically. Generated names avoid every name already taken
// in the function under construction.
type Renamer struct {
	prefix   string
	bindings map[string]string
	taken    map[string]struct{}
}

// NewRenamer creates a scope generating names under prefix. taken holds the names
// already used by the function under construction; the Renamer adds every name it
// generates to it.
func NewRenamer(prefix string, taken map[string]struct{}) *Renamer {
	if taken == nil {
		taken = make(map[string]struct{})
	}
	return &Renamer{
		prefix:   prefix,
		bindings: make(map[string]string),
		taken:    taken,
	}
}

// BindName maps formal to actual. A later binding of the same name replaces it.
func (r *Renamer) BindName(formal, actual string) {
	r.bindings[formal] = actual
	r.taken[actual] = struct{}{}
}

// BindToUniqueName binds name to a fresh name derived from the prefix and returns it.
func (r *Renamer) BindToUniqueName(name string) string {
	unique := r.unique(r.prefix + name)
	r.bindings[name] = unique
	return unique
}

// unique returns candidate, or candidate suffixed with a counter, whichever is
// first not taken, and marks it taken.
func (r *Renamer) unique(candidate string) string {
	name := candidate
	for i := 1; ; i++ {
		if _, used := r.taken[name]; !used {
			break
		}
		name = fmt.Sprintf("%s_%d", candidate, i)
	}
	r.taken[name] = struct{}{}
	return name
}

// Rename returns the name that name maps to in this scope. Empty names, which
// mark omitted optional inputs, stay empty.
func (r *Renamer) Rename(name string) string {
	if name == "" {
		return ""
	}
	if bound, ok := r.bindings[name]; ok {
		return bound
	}
	renamed := r.unique(r.prefix + name)
	r.bindings[name] = renamed
	return renamed
}

// RenameNode rewrites n's inputs and outputs in place, including the names used
// by the nodes of graph-valued attributes.
func (r *Renamer) RenameNode(n *ir.Node) {
	for i, in := range n.Inputs {
		n.Inputs[i] = r.Rename(in)
	}
	for i, out := range n.Outputs {
		n.Outputs[i] = r.Rename(out)
	}
	for _, attr := range n.Attributes {
		if attr.Value.G != nil {
			r.renameGraph(attr.Value.G)
		}
		for _, g := range attr.Value.Graphs {
			r.renameGraph(g)
		}
	}
}

// renameGraph renames a subgraph through the same scope: names it shares with
// the enclosing graph keep referring to the same values.
func (r *Renamer) renameGraph(g *ir.Graph) {
	for i, in := range g.Inputs {
		g.Inputs[i] = r.Rename(in)
	}
	for i, out := range g.Outputs {
		g.Outputs[i] = r.Rename(out)
	}
	for _, t := range g.Initializers {
		t.Name = r.Rename(t.Name)
	}
	for _, n := range g.Nodes() {
		r.RenameNode(n)
	}
}
