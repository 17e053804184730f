package graphutil

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// TransitiveReduction returns the redundant edges of g: an edge u -> v is
// redundant when v is also reachable from u through another successor.
// Cyclic graphs are handled; every search keeps its own visited set and
// never walks back through u.
//
// The per-node searches run in parallel. The result is ordered like
// g.Edges().
func TransitiveReduction[N comparable](ctx context.Context, g *Graph[N]) ([]Edge[N], error) {
	redundant := make([][]bool, len(g.succ))

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.NumCPU())
	for u := range g.succ {
		if len(g.succ[u]) < 2 {
			continue
		}
		eg.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			redundant[u] = redundantFrom(g, u)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var out []Edge[N]
	for u, flags := range redundant {
		for k, r := range flags {
			if r {
				out = append(out, Edge[N]{From: g.nodes[u], To: g.nodes[g.succ[u][k]]})
			}
		}
	}
	return out, nil
}

// redundantFrom flags, per successor slot of u, whether that direct edge is
// implied by a longer path.
func redundantFrom[N comparable](g *Graph[N], u int) []bool {
	direct := make(map[int]int, len(g.succ[u]))
	for k, v := range g.succ[u] {
		direct[v] = k
	}
	flags := make([]bool, len(g.succ[u]))

	for _, w := range g.succ[u] {
		if w == u {
			continue
		}
		// Everything reachable from w in one or more steps, without passing
		// through u.
		visited := map[int]bool{u: true}
		stack := append([]int(nil), g.succ[w]...)
		for len(stack) > 0 {
			x := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if visited[x] {
				continue
			}
			visited[x] = true
			if k, ok := direct[x]; ok && x != w {
				flags[k] = true
			}
			stack = append(stack, g.succ[x]...)
		}
	}
	return flags
}
