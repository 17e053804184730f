package strata

import (
	"fmt"

	"github.com/jward/strata/internal/rules"
	"github.com/jward/strata/internal/store"
)

// HierarchyNode is an entity with its children, as a tree.
type HierarchyNode struct {
	Entity   EntityResult
	Lakosian string // empty for logical entities
	Children []*HierarchyNode
}

// maxHierarchyDepth bounds the tree returned by Hierarchy.
const maxHierarchyDepth = 32

// Hierarchy returns the containment tree under qualifiedName, depth levels
// deep (0 returns the node alone). An empty qualifiedName returns every top
// level package. Returns nil with no error if the name does not exist.
func (q *QueryBuilder) Hierarchy(qualifiedName string, depth int) ([]*HierarchyNode, error) {
	if depth < 0 {
		return nil, fmt.Errorf("hierarchy: negative depth %d", depth)
	}
	depth = min(depth, maxHierarchyDepth)

	var roots []UniqueID
	if qualifiedName == "" {
		for _, uid := range q.store.IDs(store.KindPackage) {
			if ent := q.store.GetByID(uid); ent != nil && ent.Parent().IsZero() {
				roots = append(roots, uid)
			}
		}
	} else {
		ent := q.store.FindByQualifiedName(qualifiedName)
		if ent == nil {
			return nil, nil
		}
		roots = []UniqueID{ent.UID()}
	}

	out := make([]*HierarchyNode, 0, len(roots))
	for _, uid := range roots {
		n, err := q.hierarchyNode(uid, depth)
		if err != nil {
			return nil, fmt.Errorf("hierarchy: %w", err)
		}
		if n != nil {
			out = append(out, n)
		}
	}
	return out, nil
}

func (q *QueryBuilder) hierarchyNode(uid UniqueID, depth int) (*HierarchyNode, error) {
	er := q.entityResult(uid)
	if er == nil {
		return nil, nil
	}
	n := &HierarchyNode{Entity: *er}
	if uid.Kind == store.KindPackage || uid.Kind == store.KindComponent {
		res, err := q.rules.IsLakosian(uid)
		if err != nil {
			return nil, err
		}
		n.Lakosian = res.String()
	}
	if depth == 0 {
		return n, nil
	}
	for _, c := range q.rules.Children(uid) {
		if c.Kind == store.KindDiagnostic {
			continue
		}
		child, err := q.hierarchyNode(c, depth-1)
		if err != nil {
			return nil, err
		}
		if child != nil {
			n.Children = append(n.Children, child)
		}
	}
	return n, nil
}

// LakosianResult is the naming classification of one package or component.
type LakosianResult struct {
	QualifiedName string
	Kind          string
	Lakosian      bool
	Reason        string
}

// Lakosian classifies every package and component against the naming
// conventions. With onlyViolations set, conforming nodes are left out.
func (q *QueryBuilder) Lakosian(onlyViolations bool) ([]LakosianResult, error) {
	var out []LakosianResult
	for _, k := range []store.Kind{store.KindPackage, store.KindComponent} {
		for _, uid := range q.store.IDs(k) {
			res, err := q.rules.IsLakosian(uid)
			if err != nil {
				return nil, fmt.Errorf("lakosian: %w", err)
			}
			ok := res == rules.IsLakosian
			if onlyViolations && ok {
				continue
			}
			r := LakosianResult{
				QualifiedName: q.qualifiedName(uid),
				Kind:          k.String(),
				Lakosian:      ok,
			}
			if !ok {
				r.Reason = res.String()
			}
			out = append(out, r)
		}
	}
	return out, nil
}
