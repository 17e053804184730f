package rules

import (
	"context"
	"fmt"

	"github.com/jward/strata/internal/graphutil"
	"github.com/jward/strata/internal/store"
)

// Violation is an existing edge that the validating operations would have
// refused. Extraction writes edges without validation, so these surface
// after analysis.
type Violation struct {
	Edge store.EdgeKey
	Kind error
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %v", v.Edge, v.Kind)
}

// Audit lists logical relations whose components do not depend on each
// other and component or package dependencies that their parents do not
// justify. The result is ordered by source id.
func (e *Engine) Audit() []Violation {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []Violation
	for _, uid := range e.store.IDs(store.KindType) {
		n := e.load(uid)
		if n == nil {
			continue
		}
		for _, p := range n.providers {
			if !p.Kind.IsLogical() || p.Other.Kind != store.KindType {
				continue
			}
			if kindErr := e.componentGate(uid, p.Other); kindErr != nil {
				out = append(out, Violation{Edge: store.EdgeKey{From: uid, To: p.Other, Kind: p.Kind}, Kind: kindErr})
			}
		}
	}
	for _, k := range []store.Kind{store.KindPackage, store.KindComponent} {
		for _, uid := range e.store.IDs(k) {
			n := e.load(uid)
			if n == nil {
				continue
			}
			for _, p := range n.providers {
				if !p.Kind.IsPhysical() {
					continue
				}
				d := e.load(p.Other)
				if d == nil || d.kind() != k {
					continue
				}
				if kindErr := e.parentGate(n, d); kindErr != nil {
					out = append(out, Violation{Edge: store.EdgeKey{From: uid, To: p.Other, Kind: p.Kind}, Kind: kindErr})
				}
			}
		}
	}
	return out
}

// ============================================================================
// Graph adapters
// ============================================================================

// PackageGraph returns every package with its physical dependencies.
func (e *Engine) PackageGraph() *graphutil.Graph[store.UniqueID] {
	return e.physicalGraph(store.KindPackage)
}

// ComponentGraph returns every component with its physical dependencies.
func (e *Engine) ComponentGraph() *graphutil.Graph[store.UniqueID] {
	return e.physicalGraph(store.KindComponent)
}

func (e *Engine) physicalGraph(k store.Kind) *graphutil.Graph[store.UniqueID] {
	g := graphutil.New[store.UniqueID]()
	for _, uid := range e.store.IDs(k) {
		g.AddNode(uid)
	}
	for _, uid := range e.store.IDs(k) {
		for _, p := range e.Providers(uid) {
			if p.Kind.IsPhysical() && p.Other.Kind == k {
				g.AddEdge(uid, p.Other)
			}
		}
	}
	return g
}

// RedundantDependencies returns physical dependencies of kind k's graph
// that are implied by longer paths.
func (e *Engine) RedundantDependencies(ctx context.Context, k store.Kind) ([]graphutil.Edge[store.UniqueID], error) {
	switch k {
	case store.KindPackage, store.KindComponent:
	default:
		return nil, fail("redundant dependencies", ErrInvalidType, k.String())
	}
	return graphutil.TransitiveReduction(ctx, e.physicalGraph(k))
}
