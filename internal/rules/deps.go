package rules

import (
	"fmt"

	"github.com/jward/strata/internal/store"
)

// AddPhysicalDependency adds a Concrete or Allowed dependency between two
// packages or two components. Checks run in order: self relation,
// hierarchy level, edge kind, duplicate, then parent gating.
func (e *Engine) AddPhysicalDependency(src, dst store.UniqueID, kind store.EdgeKind) error {
	const op = "add physical dependency"
	e.mu.Lock()
	err := func() error {
		s, d := e.load(src), e.load(dst)
		if s == nil || d == nil {
			return fail(op, ErrInvalidEntity, fmt.Sprintf("%s -> %s", src, dst))
		}
		if err := e.checkPhysical(s, d, kind); err != nil {
			return err
		}
		if _, err := e.store.AddEdge(src, dst, kind); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	}()
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.publish([]note{func(o Observer) { o.PhysicalDependencyAdded(src, dst, kind) }})
	return nil
}

// checkPhysical validates src -> dst of kind. Both nodes must be non-nil.
func (e *Engine) checkPhysical(s, d *node, kind store.EdgeKind) error {
	const op = "add physical dependency"
	if s == nil || d == nil {
		return fail(op, ErrInvalidEntity, "")
	}
	edge := s.qn + " -> " + d.qn
	if s.uid == d.uid {
		return fail(op, ErrSelfRelation, s.qn)
	}
	physical := func(n *node) bool { return n.is(store.KindPackage) || n.is(store.KindComponent) }
	if !physical(s) || !physical(d) || s.kind() != d.kind() {
		return fail(op, ErrHierarchyLevelMismatch, edge)
	}
	if !kind.IsPhysical() {
		return fail(op, ErrInvalidType, kind.String())
	}
	if s.hasProvider(d.uid, kind) {
		return fail(op, ErrAlreadyHaveDependency, edge)
	}
	if kindErr := e.parentGate(s, d); kindErr != nil {
		return fail(op, kindErr, edge)
	}
	return nil
}

// parentGate applies the hierarchy rules for a dependency between two
// nodes of the same level and returns the failing kind, or nil.
func (e *Engine) parentGate(s, d *node) error {
	switch {
	case s.isTopLevel():
		if !d.isTopLevel() && !d.isStandalone() {
			return ErrHierarchyLevelMismatch
		}
		return nil

	case s.is(store.KindPackage):
		if d.parent.IsZero() {
			return ErrHierarchyLevelMismatch
		}
		if s.parent != d.parent && !e.load(s.parent).hasPhysicalProvider(d.parent) {
			return ErrMissingParentDependency
		}
		return nil
	}

	// Components.
	if s.parent == d.parent {
		return nil
	}
	sp, dp := e.load(s.parent), e.load(d.parent)
	if sp == nil || dp == nil {
		return ErrMissingParentDependency
	}
	if sp.hasPhysicalProvider(dp.uid) {
		return nil
	}
	// A group depending on a standalone package covers its components. The
	// exemption is one way: components of the standalone package still need
	// their own package dependency to reach into the group.
	if sg := e.load(sp.parent); sg.isTopLevel() && dp.isStandalone() && sg.hasPhysicalProvider(dp.uid) {
		return nil
	}
	return ErrMissingParentDependency
}

// RemovePhysicalDependency deletes an existing physical dependency.
func (e *Engine) RemovePhysicalDependency(src, dst store.UniqueID, kind store.EdgeKind) error {
	const op = "remove physical dependency"
	e.mu.Lock()
	err := func() error {
		if !kind.IsPhysical() {
			return fail(op, ErrInvalidType, kind.String())
		}
		ok, err := e.store.RemoveEdge(src, dst, kind)
		if err != nil || !ok {
			return fail(op, ErrInexistentRelation, fmt.Sprintf("%s -> %s", src, dst))
		}
		return nil
	}()
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.publish([]note{func(o Observer) { o.PhysicalDependencyRemoved(src, dst, kind) }})
	return nil
}

// AddLogicalRelation adds an IsA, UsesInTheInterface or
// UsesInTheImplementation relation between two types. The owning
// components must be the same or already depend on each other.
func (e *Engine) AddLogicalRelation(src, dst store.UniqueID, kind store.EdgeKind) error {
	const op = "add logical relation"
	e.mu.Lock()
	err := func() error {
		s, d := e.load(src), e.load(dst)
		if !s.is(store.KindType) || !d.is(store.KindType) {
			return fail(op, ErrInvalidRelation, fmt.Sprintf("%s -> %s", src, dst))
		}
		edge := s.qn + " -> " + d.qn
		if s.uid == d.uid {
			return fail(op, ErrSelfRelation, s.qn)
		}
		if !kind.IsLogical() {
			return fail(op, ErrInvalidLakosRelationType, kind.String())
		}
		if kindErr := e.componentGate(src, dst); kindErr != nil {
			return fail(op, kindErr, edge)
		}
		if s.hasProvider(dst, kind) {
			return fail(op, ErrAlreadyHaveDependency, edge)
		}
		if _, err := e.store.AddEdge(src, dst, kind); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	}()
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.publish([]note{func(o Observer) { o.LogicalRelationAdded(src, dst, kind) }})
	return nil
}

// componentGate returns the failing kind for a logical relation whose
// owning components lack a physical dependency, or nil.
func (e *Engine) componentGate(src, dst store.UniqueID) error {
	cs, cd := e.owningComponent(src), e.owningComponent(dst)
	if cs.IsZero() || cd.IsZero() {
		return ErrParentDependencyRequired
	}
	if cs == cd || e.load(cs).hasPhysicalProvider(cd) {
		return nil
	}
	return ErrComponentDependencyRequired
}

// RemoveLogicalRelation deletes an existing logical relation.
func (e *Engine) RemoveLogicalRelation(src, dst store.UniqueID, kind store.EdgeKind) error {
	const op = "remove logical relation"
	e.mu.Lock()
	err := func() error {
		if !kind.IsLogical() {
			return fail(op, ErrInvalidLakosRelationType, kind.String())
		}
		ok, err := e.store.RemoveEdge(src, dst, kind)
		if err != nil || !ok {
			return fail(op, ErrInexistentRelation, fmt.Sprintf("%s -> %s", src, dst))
		}
		return nil
	}()
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.publish([]note{func(o Observer) { o.LogicalRelationRemoved(src, dst, kind) }})
	return nil
}
