package rules

import (
	"fmt"

	"github.com/jward/strata/internal/store"
)

// AddPackage creates a package. A zero parent makes it top level; a parent
// must be a package that does not already hold components.
func (e *Engine) AddPackage(name, qualifiedName string, parent store.UniqueID) (store.UniqueID, error) {
	const op = "add package"
	e.mu.Lock()
	uid, err := func() (store.UniqueID, error) {
		if name == "" || qualifiedName == "" {
			return store.UniqueID{}, fail(op, ErrInvalidName, "empty name")
		}
		if e.qualifiedNameTaken(store.KindPackage, qualifiedName) {
			return store.UniqueID{}, fail(op, ErrQualifiedNameAlreadyRegistered, qualifiedName)
		}
		if !parent.IsZero() {
			p := e.load(parent)
			if !p.is(store.KindPackage) {
				return store.UniqueID{}, fail(op, ErrMissingParent, parent.String())
			}
			if p.firstChildKind() == store.KindComponent {
				return store.UniqueID{}, fail(op, ErrCannotAddPackageToStandalonePackage, p.qn)
			}
		}
		ent, err := e.store.GetOrAddPackage(qualifiedName, name, parent, store.PackageDetails{})
		if err != nil {
			return store.UniqueID{}, fmt.Errorf("%s %q: %w", op, qualifiedName, err)
		}
		return ent.UID(), e.store.Pin(ent.UID())
	}()
	e.mu.Unlock()
	if err != nil {
		return store.UniqueID{}, err
	}
	e.publish([]note{func(o Observer) { o.NodeAdded(uid) }})
	return uid, nil
}

// AddComponent creates a component inside a package that does not already
// hold packages.
func (e *Engine) AddComponent(name, qualifiedName string, parent store.UniqueID) (store.UniqueID, error) {
	const op = "add component"
	e.mu.Lock()
	uid, err := func() (store.UniqueID, error) {
		if name == "" || qualifiedName == "" {
			return store.UniqueID{}, fail(op, ErrInvalidName, "empty name")
		}
		p := e.load(parent)
		if !p.is(store.KindPackage) {
			return store.UniqueID{}, fail(op, ErrMissingParent, parent.String())
		}
		if e.qualifiedNameTaken(store.KindComponent, qualifiedName) {
			return store.UniqueID{}, fail(op, ErrQualifiedNameAlreadyRegistered, qualifiedName)
		}
		if p.firstChildKind() == store.KindPackage {
			return store.UniqueID{}, fail(op, ErrCannotAddComponentToPkgGroup, p.qn)
		}
		ent, err := e.store.GetOrAddComponent(qualifiedName, name, parent)
		if err != nil {
			return store.UniqueID{}, fmt.Errorf("%s %q: %w", op, qualifiedName, err)
		}
		return ent.UID(), e.store.Pin(ent.UID())
	}()
	e.mu.Unlock()
	if err != nil {
		return store.UniqueID{}, err
	}
	e.publish([]note{func(o Observer) { o.NodeAdded(uid) }})
	return uid, nil
}

// AddLogicalEntity creates a user-defined type under a component or under a
// class, struct or union.
func (e *Engine) AddLogicalEntity(name, qualifiedName string, parent store.UniqueID, kind store.TypeKind) (store.UniqueID, error) {
	const op = "add logical entity"
	e.mu.Lock()
	uid, err := func() (store.UniqueID, error) {
		if name == "" || qualifiedName == "" {
			return store.UniqueID{}, fail(op, ErrInvalidName, "empty name")
		}
		if _, ok := validTypeKinds[kind]; !ok {
			return store.UniqueID{}, fail(op, ErrInvalidType, kind.String())
		}
		if !e.canHoldType(parent) {
			return store.UniqueID{}, fail(op, ErrBadParentType, parent.String())
		}
		if e.qualifiedNameTaken(store.KindType, qualifiedName) {
			return store.UniqueID{}, fail(op, ErrQualifiedNameAlreadyRegistered, qualifiedName)
		}
		ent, err := e.store.GetOrAddType(qualifiedName, name, parent, store.TypeDetails{TypeKind: kind})
		if err != nil {
			return store.UniqueID{}, fmt.Errorf("%s %q: %w", op, qualifiedName, err)
		}
		return ent.UID(), e.store.Pin(ent.UID())
	}()
	e.mu.Unlock()
	if err != nil {
		return store.UniqueID{}, err
	}
	e.publish([]note{func(o Observer) { o.NodeAdded(uid) }})
	return uid, nil
}

var validTypeKinds = map[store.TypeKind]struct{}{
	store.TypeClass: {}, store.TypeStruct: {}, store.TypeUnion: {}, store.TypeEnum: {}, store.TypeAlias: {},
}

// canHoldType reports whether a type may be placed under parent.
func (e *Engine) canHoldType(parent store.UniqueID) bool {
	p := e.load(parent)
	switch {
	case p.is(store.KindComponent):
		return true
	case p.is(store.KindType):
		td, _ := p.details.(store.TypeDetails)
		return td.TypeKind.CanNest()
	}
	return false
}

// ============================================================================
// Removal
// ============================================================================

// RemovePackage deletes an empty, unconnected package.
func (e *Engine) RemovePackage(uid store.UniqueID) error {
	return e.remove("remove package", uid, store.KindPackage)
}

// RemoveComponent deletes an empty, unconnected component.
func (e *Engine) RemoveComponent(uid store.UniqueID) error {
	return e.remove("remove component", uid, store.KindComponent)
}

// RemoveLogicalEntity deletes an unconnected type or member without
// children.
func (e *Engine) RemoveLogicalEntity(uid store.UniqueID) error {
	return e.remove("remove logical entity", uid,
		store.KindType, store.KindMethod, store.KindFunction, store.KindField, store.KindVariable)
}

func (e *Engine) remove(op string, uid store.UniqueID, kinds ...store.Kind) error {
	e.mu.Lock()
	err := func() error {
		n := e.load(uid)
		if n == nil || !kindIn(n.kind(), kinds) {
			return fail(op, ErrInvalidEntity, uid.String())
		}
		switch {
		case len(n.providers) > 0:
			return fail(op, ErrCannotRemoveWithProviders, n.qn)
		case len(n.clients) > 0:
			return fail(op, ErrCannotRemoveWithClients, n.qn)
		case len(n.children) > 0:
			return fail(op, ErrCannotRemoveWithChildren, n.qn)
		}
		if err := e.store.Remove(uid); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	}()
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.publish([]note{func(o Observer) { o.NodeRemoved(uid) }})
	return nil
}

func kindIn(k store.Kind, kinds []store.Kind) bool {
	for _, x := range kinds {
		if x == k {
			return true
		}
	}
	return false
}

// ============================================================================
// Hierarchy
// ============================================================================

// Reparent moves uid under newParent. Components go under packages that do
// not hold packages; packages under packages that do not hold components,
// or to the top level with a zero newParent; types under components or
// nesting types. Moving an entity below itself fails with
// ErrCyclicHierarchy.
//
// Dependency edges of uid are preserved. When a component moves, the new
// package gains the package dependencies its edges need, and the old
// package loses those no remaining component justifies.
func (e *Engine) Reparent(uid, newParent store.UniqueID) error {
	e.mu.Lock()
	notes, err := e.reparent("reparent", uid, newParent)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.publish(notes)
	return nil
}

// AddChild attaches the package child under the package parent.
func (e *Engine) AddChild(parent, child store.UniqueID) error {
	const op = "add child"
	e.mu.Lock()
	notes, err := func() ([]note, error) {
		p, c := e.load(parent), e.load(child)
		if !p.is(store.KindPackage) {
			return nil, fail(op, ErrInvalidParent, parent.String())
		}
		if !c.is(store.KindPackage) {
			return nil, fail(op, ErrInvalidEntity, child.String())
		}
		if c.parent == parent {
			return nil, fail(op, ErrAlreadyChild, c.qn)
		}
		return e.reparent(op, child, parent)
	}()
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.publish(notes)
	return nil
}

func (e *Engine) reparent(op string, uid, newParent store.UniqueID) ([]note, error) {
	n := e.load(uid)
	if n == nil {
		return nil, fail(op, ErrInvalidEntity, uid.String())
	}
	p := e.load(newParent)
	if !newParent.IsZero() && p == nil {
		return nil, fail(op, ErrInvalidParent, newParent.String())
	}

	switch n.kind() {
	case store.KindComponent:
		if !p.is(store.KindPackage) {
			return nil, fail(op, ErrInvalidParent, newParent.String())
		}
		if p.firstChildKind() == store.KindPackage {
			return nil, fail(op, ErrCannotAddComponentToPkgGroup, p.qn)
		}
	case store.KindPackage:
		if p != nil {
			if !p.is(store.KindPackage) {
				return nil, fail(op, ErrInvalidParent, newParent.String())
			}
			if p.firstChildKind() == store.KindComponent {
				return nil, fail(op, ErrCannotAddPackageToStandalonePackage, p.qn)
			}
		}
	case store.KindType:
		if !e.canHoldType(newParent) {
			return nil, fail(op, ErrBadParentType, newParent.String())
		}
	default:
		return nil, fail(op, ErrInvalidEntity, n.qn)
	}
	if !newParent.IsZero() && e.isDescendantOrSelf(newParent, uid) {
		return nil, fail(op, ErrCyclicHierarchy, n.qn)
	}
	if n.parent == newParent {
		return nil, nil
	}

	if err := e.store.SetParent(uid, newParent); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	notes := []note{func(o Observer) { o.EntityReparent(uid, n.parent, newParent) }}
	if n.is(store.KindComponent) {
		notes = append(notes, e.syncPackageDependencies(n, n.parent, newParent)...)
	}
	return notes, nil
}

// syncPackageDependencies runs after comp moved from oldPkg to newPkg.
// Failures are ignored: a dependency that already exists or that the
// gating rules refuse is simply not added.
func (e *Engine) syncPackageDependencies(comp *node, oldPkg, newPkg store.UniqueID) []note {
	var notes []note
	add := func(src, dst store.UniqueID) {
		if src.IsZero() || dst.IsZero() || src == dst {
			return
		}
		if e.checkPhysical(e.load(src), e.load(dst), store.EdgeConcrete) != nil {
			return
		}
		if ok, err := e.store.AddEdge(src, dst, store.EdgeConcrete); err == nil && ok {
			notes = append(notes, func(o Observer) { o.PhysicalDependencyAdded(src, dst, store.EdgeConcrete) })
		}
	}
	drop := func(src, dst store.UniqueID) {
		if src.IsZero() || dst.IsZero() {
			return
		}
		if ok, err := e.store.RemoveEdge(src, dst, store.EdgeConcrete); err == nil && ok {
			notes = append(notes, func(o Observer) { o.PhysicalDependencyRemoved(src, dst, store.EdgeConcrete) })
		}
	}

	for _, d := range comp.providers {
		if d.Kind.IsPhysical() {
			add(newPkg, e.parentOf(d.Other))
		}
	}
	for _, d := range comp.clients {
		if d.Kind.IsPhysical() {
			add(e.parentOf(d.Other), newPkg)
		}
	}

	if old := e.load(oldPkg); old != nil {
		stillProvided := make(map[store.UniqueID]bool)
		stillServed := make(map[store.UniqueID]bool)
		for _, cid := range old.children {
			c := e.load(cid)
			if c == nil {
				continue
			}
			for _, d := range c.providers {
				if d.Kind.IsPhysical() {
					stillProvided[e.parentOf(d.Other)] = true
				}
			}
			for _, d := range c.clients {
				if d.Kind.IsPhysical() {
					stillServed[e.parentOf(d.Other)] = true
				}
			}
		}
		for _, d := range comp.providers {
			if pkg := e.parentOf(d.Other); d.Kind.IsPhysical() && pkg != oldPkg && !stillProvided[pkg] {
				drop(oldPkg, pkg)
			}
		}
		for _, d := range comp.clients {
			if pkg := e.parentOf(d.Other); d.Kind.IsPhysical() && pkg != oldPkg && !stillServed[pkg] {
				drop(pkg, oldPkg)
			}
		}
	}
	return notes
}

func (e *Engine) parentOf(uid store.UniqueID) store.UniqueID {
	if n := e.load(uid); n != nil {
		return n.parent
	}
	return store.UniqueID{}
}

// SetName renames uid, rewriting the last segment of its qualified name.
// The id, parent and edges are unchanged.
func (e *Engine) SetName(uid store.UniqueID, newName string) error {
	const op = "set name"
	e.mu.Lock()
	var oldQN, newQN string
	err := func() error {
		n := e.load(uid)
		if n == nil {
			return fail(op, ErrInvalidEntity, uid.String())
		}
		if newName == "" {
			return fail(op, ErrInvalidName, "empty name")
		}
		oldQN = n.qn
		newQN = replaceLastSegment(n.qn, separator(n.kind()), newName)
		if newQN == oldQN {
			return nil
		}
		if e.qualifiedNameTaken(n.kind(), newQN) {
			return fail(op, ErrQualifiedNameAlreadyRegistered, newQN)
		}
		if err := e.store.Rename(uid, newName, newQN); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	}()
	e.mu.Unlock()
	if err != nil || oldQN == newQN {
		return err
	}
	e.publish([]note{func(o Observer) { o.NodeRenamed(uid, oldQN, newQN) }})
	return nil
}
