package ir

import "slices"

// NodeID addresses a node slot in a Graph. IDs stay valid until Compact is called.
type NodeID int

// Graph is a computation graph: declared inputs and outputs, named initializers
// and an arena of nodes.
//
// Nodes live in slots addressed by NodeID. Removing a node frees its slot without
// shifting the others, so IDs held by a pass remain valid while it mutates the graph.
type Graph struct {
	Name         string
	Doc          string
	Inputs       []string
	Outputs      []string
	Initializers []*Tensor

	slots []*Node
	freed int
}

// NewGraph creates an empty graph.
func NewGraph(name string) *Graph {
	return &Graph{Name: name}
}

// AddNode appends n to the graph and returns its ID. The graph takes ownership of n.
func (g *Graph) AddNode(n *Node) NodeID {
	g.slots = append(g.slots, n)
	return NodeID(len(g.slots) - 1)
}

// Node returns the node in slot id, or nil if the slot is free or out of range.
func (g *Graph) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(g.slots) {
		return nil
	}
	return g.slots[id]
}

// RemoveNode frees the slot of id. Removing a free slot is a no-op.
func (g *Graph) RemoveNode(id NodeID) {
	if g.Node(id) == nil {
		return
	}
	g.slots[id] = nil
	g.freed++
}

// NumNodes returns the number of live nodes.
func (g *Graph) NumNodes() int {
	return len(g.slots) - g.freed
}

// NodeIDs returns the IDs of live nodes in document order.
func (g *Graph) NodeIDs() []NodeID {
	ids := make([]NodeID, 0, g.NumNodes())
	for i, n := range g.slots {
		if n != nil {
			ids = append(ids, NodeID(i))
		}
	}
	return ids
}

// Nodes returns the live nodes in document order.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, g.NumNodes())
	for _, n := range g.slots {
		if n != nil {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// Compact drops free slots and returns the mapping from old to new IDs of the
// surviving nodes. Any NodeID obtained before Compact must be translated through it.
func (g *Graph) Compact() map[NodeID]NodeID {
	remap := make(map[NodeID]NodeID, g.NumNodes())
	live := make([]*Node, 0, g.NumNodes())
	for i, n := range g.slots {
		if n != nil {
			remap[NodeID(i)] = NodeID(len(live))
			live = append(live, n)
		}
	}
	g.slots = live
	g.freed = 0
	return remap
}

// Producer returns the ID of the live node that outputs value.
func (g *Graph) Producer(value string) (NodeID, bool) {
	if value == "" {
		return -1, false
	}
	for i, n := range g.slots {
		if n != nil && slices.Contains(n.Outputs, value) {
			return NodeID(i), true
		}
	}
	return -1, false
}

// Uses counts how many times value is consumed: node inputs plus graph outputs.
func (g *Graph) Uses(value string) int {
	if value == "" {
		return 0
	}
	count := 0
	for _, n := range g.slots {
		if n == nil {
			continue
		}
		for _, in := range n.Inputs {
			if in == value {
				count++
			}
		}
	}
	for _, out := range g.Outputs {
		if out == value {
			count++
		}
	}
	return count
}

// Initializer returns the initializer with the given name.
func (g *Graph) Initializer(name string) (*Tensor, bool) {
	for _, t := range g.Initializers {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// RemoveInitializer drops the named initializer and reports whether it existed.
func (g *Graph) RemoveInitializer(name string) bool {
	for i, t := range g.Initializers {
		if t.Name == name {
			g.Initializers = slices.Delete(g.Initializers, i, i+1)
			return true
		}
	}
	return false
}

// RemoveInput drops the named declared input and reports whether it existed.
func (g *Graph) RemoveInput(name string) bool {
	i := slices.Index(g.Inputs, name)
	if i < 0 {
		return false
	}
	g.Inputs = slices.Delete(g.Inputs, i, i+1)
	return true
}

// ValueNames returns every non-empty value name appearing as a node input or
// output, in first-appearance order.
func (g *Graph) ValueNames() []string {
	seen := make(map[string]bool)
	var names []string
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for _, n := range g.Nodes() {
		for _, in := range n.Inputs {
			add(in)
		}
		for _, out := range n.Outputs {
			add(out)
		}
	}
	return names
}

// Clone returns a deep copy of the graph with its free slots compacted away.
func (g *Graph) Clone() *Graph {
	if g == nil {
		return nil
	}
	c := &Graph{
		Name:    g.Name,
		Doc:     g.Doc,
		Inputs:  slices.Clone(g.Inputs),
		Outputs: slices.Clone(g.Outputs),
	}
	for _, t := range g.Initializers {
		c.Initializers = append(c.Initializers, t.Clone())
	}
	for _, n := range g.Nodes() {
		c.AddNode(n.Clone())
	}
	return c
}

// CloneHeader copies the graph's declarations and initializers but no nodes.
func (g *Graph) CloneHeader() *Graph {
	c := &Graph{
		Name:    g.Name,
		Doc:     g.Doc,
		Inputs:  slices.Clone(g.Inputs),
		Outputs: slices.Clone(g.Outputs),
	}
	for _, t := range g.Initializers {
		c.Initializers = append(c.Initializers, t.Clone())
	}
	return c
}
