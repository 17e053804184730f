// Package rules is the architecture rule engine: a navigable forest of
// packages, components and types over a store.Store that validates every
// mutation against the Lakos physical-design rules before applying it.
//
// Validation completes before the first write, so a rejected operation
// leaves the store unchanged. Operations are serialized by the Engine;
// extraction must not run against the same Store concurrently.
package rules

import (
	"strings"
	"sync"

	"github.com/jward/strata/internal/store"
)

// Engine validates and applies model mutations.
type Engine struct {
	mu    sync.Mutex
	store *store.Store

	subMu sync.RWMutex
	subs  []subscription
}

// New creates an Engine over s.
func New(s *store.Store) *Engine {
	return &Engine{store: s}
}

// Store returns the underlying store.
func (e *Engine) Store() *store.Store { return e.store }

// node is a consistent read of one entity.
type node struct {
	uid       store.UniqueID
	name      string
	qn        string
	parent    store.UniqueID
	children  []store.UniqueID
	providers []store.Edge
	clients   []store.Edge
	details   store.Details
}

func (e *Engine) load(uid store.UniqueID) *node {
	if uid.IsZero() {
		return nil
	}
	ent := e.store.GetByID(uid)
	if ent == nil {
		return nil
	}
	n := &node{uid: uid}
	ent.WithRead(func(v store.View) {
		n.name = v.Name()
		n.qn = v.QualifiedName()
		n.parent = v.Parent()
		n.children = v.Children()
		n.providers = v.Providers()
		n.clients = v.Clients()
		n.details = v.Details()
	})
	return n
}

func (n *node) kind() store.Kind { return n.uid.Kind }

func (n *node) is(k store.Kind) bool { return n != nil && n.uid.Kind == k }

// firstChildKind fixes a package's mode: Package children make a group,
// Component children a standalone package.
func (n *node) firstChildKind() store.Kind {
	if len(n.children) == 0 {
		return 0
	}
	return n.children[0].Kind
}

func (n *node) isGroup() bool {
	return n.is(store.KindPackage) && n.firstChildKind() == store.KindPackage
}

// isStandalone reports a top-level package that holds components, or
// nothing yet.
func (n *node) isStandalone() bool {
	return n.isTopLevel() && n.firstChildKind() != store.KindPackage
}

// isTopLevel reports a package without parent: a group, or a standalone
// package living at the top of the forest.
func (n *node) isTopLevel() bool {
	return n.is(store.KindPackage) && n.parent.IsZero()
}

func (n *node) hasPhysicalProvider(to store.UniqueID) bool {
	for _, p := range n.providers {
		if p.Other == to && p.Kind.IsPhysical() {
			return true
		}
	}
	return false
}

func (n *node) hasProvider(to store.UniqueID, k store.EdgeKind) bool {
	for _, p := range n.providers {
		if p.Other == to && p.Kind == k {
			return true
		}
	}
	return false
}

// owningComponent walks up from a logical entity to its component.
func (e *Engine) owningComponent(uid store.UniqueID) store.UniqueID {
	for n := e.load(uid); n != nil; n = e.load(n.parent) {
		if n.is(store.KindComponent) {
			return n.uid
		}
	}
	return store.UniqueID{}
}

// isDescendantOrSelf reports whether candidate is uid or lies below it.
func (e *Engine) isDescendantOrSelf(candidate, uid store.UniqueID) bool {
	seen := make(map[store.UniqueID]bool)
	for cur := candidate; !cur.IsZero() && !seen[cur]; {
		if cur == uid {
			return true
		}
		seen[cur] = true
		n := e.load(cur)
		if n == nil {
			return false
		}
		cur = n.parent
	}
	return false
}

// qualifiedNameTaken checks the name space shared with kind.
func (e *Engine) qualifiedNameTaken(kind store.Kind, qn string) bool {
	switch kind {
	case store.KindPackage, store.KindComponent:
		return e.store.Get(store.KindPackage, qn) != nil || e.store.Get(store.KindComponent, qn) != nil
	case store.KindNamespace, store.KindType:
		return e.store.Get(store.KindNamespace, qn) != nil || e.store.Get(store.KindType, qn) != nil
	}
	return e.store.Get(kind, qn) != nil
}

// separator returns the qualified-name separator for kind.
func separator(kind store.Kind) string {
	switch kind {
	case store.KindFile, store.KindPackage, store.KindComponent:
		return "/"
	}
	return "::"
}

func replaceLastSegment(qn, sep, name string) string {
	if i := strings.LastIndex(qn, sep); i >= 0 {
		return qn[:i+len(sep)] + name
	}
	return name
}

// ============================================================================
// Navigation
// ============================================================================

// FindByQualifiedName returns the id of the entity named qn, or the zero
// id.
func (e *Engine) FindByQualifiedName(qn string) store.UniqueID {
	if ent := e.store.FindByQualifiedName(qn); ent != nil {
		return ent.UID()
	}
	return store.UniqueID{}
}

// FindByID returns the entity, or nil.
func (e *Engine) FindByID(uid store.UniqueID) *store.Entity {
	return e.store.GetByID(uid)
}

// Children returns the direct children of uid.
func (e *Engine) Children(uid store.UniqueID) []store.UniqueID {
	if n := e.load(uid); n != nil {
		return n.children
	}
	return nil
}

// Providers returns the outgoing edges of uid.
func (e *Engine) Providers(uid store.UniqueID) []store.Edge {
	if n := e.load(uid); n != nil {
		return n.providers
	}
	return nil
}

// Clients returns the incoming edges of uid.
func (e *Engine) Clients(uid store.UniqueID) []store.Edge {
	if n := e.load(uid); n != nil {
		return n.clients
	}
	return nil
}

// IsPackageGroup reports whether uid is a package whose children are
// packages.
func (e *Engine) IsPackageGroup(uid store.UniqueID) bool {
	return e.load(uid).isGroup()
}
