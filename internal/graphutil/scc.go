package graphutil

import "sort"

// components runs Tarjan's algorithm. Components come out sinks first, so
// every component reachable from c is emitted before c. Members of each
// component are in node order.
func (g *Graph[N]) components() [][]int {
	index := 0
	indices := make([]int, len(g.nodes))
	lowlinks := make([]int, len(g.nodes))
	onStack := make([]bool, len(g.nodes))
	for i := range indices {
		indices[i] = -1
	}
	var stack []int
	var sccs [][]int

	var strongConnect func(v int)
	strongConnect = func(v int) {
		indices[v] = index
		lowlinks[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.succ[v] {
			if indices[w] < 0 {
				strongConnect(w)
				lowlinks[v] = min(lowlinks[v], lowlinks[w])
			} else if onStack[w] {
				lowlinks[v] = min(lowlinks[v], indices[w])
			}
		}

		if lowlinks[v] == indices[v] {
			var scc []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sort.Ints(scc)
			sccs = append(sccs, scc)
		}
	}

	for v := range g.nodes {
		if indices[v] < 0 {
			strongConnect(v)
		}
	}
	return sccs
}

// Cycles returns the strongly connected components with more than one
// node, plus nodes with a self-loop. Each cycle lists its members in node
// order; cycles are ordered by their first member.
func Cycles[N comparable](g *Graph[N]) [][]N {
	var found [][]int
	for _, scc := range g.components() {
		if len(scc) > 1 || g.has[[2]int{scc[0], scc[0]}] {
			found = append(found, scc)
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i][0] < found[j][0] })

	out := make([][]N, len(found))
	for i, scc := range found {
		out[i] = make([]N, len(scc))
		for k, v := range scc {
			out[i][k] = g.nodes[v]
		}
	}
	return out
}

// Levels assigns Lakos levels: a node without providers is level 1, any
// other node is one more than its highest provider. Members of a cycle
// share a level, computed on the condensed graph.
func Levels[N comparable](g *Graph[N]) map[N]int {
	sccs := g.components()
	comp := make([]int, len(g.nodes))
	for c, scc := range sccs {
		for _, v := range scc {
			comp[v] = c
		}
	}

	level := make([]int, len(sccs))
	for c, scc := range sccs {
		lvl := 1
		for _, v := range scc {
			for _, w := range g.succ[v] {
				if d := comp[w]; d != c {
					lvl = max(lvl, level[d]+1)
				}
			}
		}
		level[c] = lvl
	}

	out := make(map[N]int, len(g.nodes))
	for v, n := range g.nodes {
		out[n] = level[comp[v]]
	}
	return out
}
