// Package graphutil holds the consistency algorithms run over dependency
// graphs: transitive reduction, cycle detection and Lakos levels.
//
// The graphs are small adapters built by callers (the rule engine builds
// them from packages or components), so every function here is pure and
// deterministic: results follow node insertion order.
package graphutil

// Edge is a directed edge from a client to its provider.
type Edge[N comparable] struct {
	From N
	To   N
}

// Graph is a directed graph with insertion-ordered nodes and successors.
// It is not safe for concurrent mutation; the algorithms only read it.
type Graph[N comparable] struct {
	nodes []N
	index map[N]int
	succ  [][]int
	has   map[[2]int]bool
}

// New creates an empty Graph.
func New[N comparable]() *Graph[N] {
	return &Graph[N]{
		index: make(map[N]int),
		has:   make(map[[2]int]bool),
	}
}

// AddNode registers n and returns its dense index.
func (g *Graph[N]) AddNode(n N) int {
	if i, ok := g.index[n]; ok {
		return i
	}
	i := len(g.nodes)
	g.nodes = append(g.nodes, n)
	g.index[n] = i
	g.succ = append(g.succ, nil)
	return i
}

// AddEdge adds from -> to, registering both nodes. Duplicates are ignored.
func (g *Graph[N]) AddEdge(from, to N) {
	a, b := g.AddNode(from), g.AddNode(to)
	if g.has[[2]int{a, b}] {
		return
	}
	g.has[[2]int{a, b}] = true
	g.succ[a] = append(g.succ[a], b)
}

// HasEdge reports whether from -> to exists.
func (g *Graph[N]) HasEdge(from, to N) bool {
	a, ok := g.index[from]
	if !ok {
		return false
	}
	b, ok := g.index[to]
	return ok && g.has[[2]int{a, b}]
}

// Nodes returns the nodes in insertion order.
func (g *Graph[N]) Nodes() []N {
	return append([]N(nil), g.nodes...)
}

// Successors returns the providers of n in insertion order.
func (g *Graph[N]) Successors(n N) []N {
	i, ok := g.index[n]
	if !ok {
		return nil
	}
	out := make([]N, len(g.succ[i]))
	for k, j := range g.succ[i] {
		out[k] = g.nodes[j]
	}
	return out
}

// Edges returns every edge, grouped by source in node order.
func (g *Graph[N]) Edges() []Edge[N] {
	var out []Edge[N]
	for i, s := range g.succ {
		for _, j := range s {
			out = append(out, Edge[N]{From: g.nodes[i], To: g.nodes[j]})
		}
	}
	return out
}

// Len returns the number of nodes.
func (g *Graph[N]) Len() int { return len(g.nodes) }
