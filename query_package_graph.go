package strata

import (
	"context"
	"fmt"

	"github.com/jward/strata/internal/graphutil"
	"github.com/jward/strata/internal/store"
)

// DependencyGraph is a physical dependency graph over packages or
// components.
type DependencyGraph struct {
	Nodes []DependencyNode
	Edges []DependencyEdge
}

// DependencyNode is a package or component in the dependency graph.
type DependencyNode struct {
	QualifiedName string
	Name          string
	Level         int // Lakos level; members of a cycle share one
	Group         bool
}

// DependencyEdge is a dependency of one node on another. Kind is
// "concrete" or "allowed"; both are reported when both exist.
type DependencyEdge struct {
	From string
	To   string
	Kind string
}

// PackageDependencies returns the package dependency graph.
func (q *QueryBuilder) PackageDependencies() (*DependencyGraph, error) {
	return q.dependencyGraph(store.KindPackage)
}

// ComponentDependencies returns the component dependency graph.
func (q *QueryBuilder) ComponentDependencies() (*DependencyGraph, error) {
	return q.dependencyGraph(store.KindComponent)
}

func (q *QueryBuilder) dependencyGraph(k store.Kind) (*DependencyGraph, error) {
	g, err := q.physicalGraph(k)
	if err != nil {
		return nil, err
	}
	levels := graphutil.Levels(g)

	out := &DependencyGraph{}
	for _, uid := range g.Nodes() {
		ent := q.store.GetByID(uid)
		if ent == nil {
			continue
		}
		out.Nodes = append(out.Nodes, DependencyNode{
			QualifiedName: ent.QualifiedName(),
			Name:          ent.Name(),
			Level:         levels[uid],
			Group:         k == store.KindPackage && q.rules.IsPackageGroup(uid),
		})
		for _, p := range q.rules.Providers(uid) {
			if !p.Kind.IsPhysical() || p.Other.Kind != k {
				continue
			}
			out.Edges = append(out.Edges, DependencyEdge{
				From: ent.QualifiedName(),
				To:   q.qualifiedName(p.Other),
				Kind: p.Kind.String(),
			})
		}
	}
	return out, nil
}

func (q *QueryBuilder) physicalGraph(k store.Kind) (*graphutil.Graph[UniqueID], error) {
	switch k {
	case store.KindPackage:
		return q.rules.PackageGraph(), nil
	case store.KindComponent:
		return q.rules.ComponentGraph(), nil
	}
	return nil, fmt.Errorf("dependency graph: %s has no physical dependencies", k)
}

// RedundantDependencies returns the dependencies of the package or
// component graph that are implied by a longer path.
func (q *QueryBuilder) RedundantDependencies(ctx context.Context, k Kind) ([]DependencyEdge, error) {
	edges, err := q.rules.RedundantDependencies(ctx, k)
	if err != nil {
		return nil, fmt.Errorf("redundant dependencies: %w", err)
	}
	out := make([]DependencyEdge, 0, len(edges))
	for _, e := range edges {
		out = append(out, DependencyEdge{
			From: q.qualifiedName(e.From),
			To:   q.qualifiedName(e.To),
			Kind: q.edgeKinds(e.From, e.To),
		})
	}
	return out, nil
}

// edgeKinds names the physical edge kinds from one node to another,
// preferring concrete.
func (q *QueryBuilder) edgeKinds(from, to UniqueID) string {
	if q.store.HasEdge(from, to, store.EdgeConcrete) {
		return store.EdgeConcrete.String()
	}
	return store.EdgeAllowed.String()
}

// Cycles returns the dependency cycles of the package or component graph,
// each as a list of qualified names.
func (q *QueryBuilder) Cycles(k Kind) ([][]string, error) {
	g, err := q.physicalGraph(k)
	if err != nil {
		return nil, err
	}
	cycles := graphutil.Cycles(g)
	out := make([][]string, len(cycles))
	for i, c := range cycles {
		out[i] = make([]string, len(c))
		for j, uid := range c {
			out[i][j] = q.qualifiedName(uid)
		}
	}
	return out, nil
}

// Levels returns the Lakos level of every package or component, keyed by
// qualified name.
func (q *QueryBuilder) Levels(k Kind) (map[string]int, error) {
	g, err := q.physicalGraph(k)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, g.Len())
	for uid, lvl := range graphutil.Levels(g) {
		out[q.qualifiedName(uid)] = lvl
	}
	return out, nil
}

// Violations lists the existing edges the rule engine would refuse.
func (q *QueryBuilder) Violations() []Violation {
	return q.rules.Audit()
}
