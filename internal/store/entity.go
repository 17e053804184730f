package store

import (
	"slices"
	"sort"
	"sync"
)

// Entity is an arena-owned node of the graph. Its fields are reachable only
// through the scoped guards WithRead and WithWrite.
type Entity struct {
	uid UniqueID
	mu  sync.RWMutex
	d   entityData
}

type entityData struct {
	name          string
	qualifiedName string
	parent        UniqueID
	children      []UniqueID
	providers     []Edge
	clients       []Edge
	units         map[string]struct{}
	manual        bool
	removed       bool
	details       Details
}

// UID returns the entity's identity. It is immutable and needs no lock.
func (e *Entity) UID() UniqueID { return e.uid }

// Kind is shorthand for UID().Kind.
func (e *Entity) Kind() Kind { return e.uid.Kind }

// WithRead runs fn holding the entity's read lock. The View must not escape
// fn, and fn must not call back into the Store.
func (e *Entity) WithRead(fn func(View)) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn(View{d: &e.d, uid: e.uid})
}

// WithWrite runs fn holding the entity's write lock. The Mut must not escape
// fn, and fn must not call back into the Store.
func (e *Entity) WithWrite(fn func(Mut)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(Mut{View{d: &e.d, uid: e.uid}})
}

// Name reads the entity name under its read lock.
func (e *Entity) Name() string {
	var s string
	e.WithRead(func(v View) { s = v.Name() })
	return s
}

// QualifiedName reads the qualified name under the read lock.
func (e *Entity) QualifiedName() string {
	var s string
	e.WithRead(func(v View) { s = v.QualifiedName() })
	return s
}

// Parent reads the parent id under the read lock.
func (e *Entity) Parent() UniqueID {
	var p UniqueID
	e.WithRead(func(v View) { p = v.Parent() })
	return p
}

// Details returns a copy of the payload.
func (e *Entity) Details() Details {
	var d Details
	e.WithRead(func(v View) { d = v.Details() })
	return d
}

// View is a read capability over one entity, valid only inside WithRead or
// WithWrite.
type View struct {
	d   *entityData
	uid UniqueID
}

func (v View) UID() UniqueID         { return v.uid }
func (v View) Name() string          { return v.d.name }
func (v View) QualifiedName() string { return v.d.qualifiedName }
func (v View) Parent() UniqueID      { return v.d.parent }
func (v View) Children() []UniqueID  { return slices.Clone(v.d.children) }
func (v View) Providers() []Edge     { return slices.Clone(v.d.providers) }
func (v View) Clients() []Edge       { return slices.Clone(v.d.clients) }
func (v View) Details() Details      { return cloneDetails(v.d.details) }
func (v View) Manual() bool          { return v.d.manual }
func (v View) Removed() bool         { return v.d.removed }
func (v View) ChildCount() int       { return len(v.d.children) }
func (v View) HasEdges() bool        { return len(v.d.providers)+len(v.d.clients) > 0 }
func (v View) ProviderCount() int    { return len(v.d.providers) }
func (v View) ClientCount() int      { return len(v.d.clients) }

// Units returns the analysis units contributing this entity, sorted.
func (v View) Units() []string {
	out := make([]string, 0, len(v.d.units))
	for u := range v.d.units {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// HasProvider reports whether an edge of kind k runs from this entity to to.
func (v View) HasProvider(to UniqueID, k EdgeKind) bool {
	return slices.Contains(v.d.providers, Edge{Other: to, Kind: k})
}

// HasClient reports whether an edge of kind k runs from from to this entity.
func (v View) HasClient(from UniqueID, k EdgeKind) bool {
	return slices.Contains(v.d.clients, Edge{Other: from, Kind: k})
}

// HasProviderAny reports whether any edge runs to to, whatever its kind.
func (v View) HasProviderAny(to UniqueID) bool {
	return slices.ContainsFunc(v.d.providers, func(e Edge) bool { return e.Other == to })
}

// Mut is a write capability over one entity, valid only inside WithWrite.
// Identity, hierarchy and edges are changed through Store methods so that
// both endpoints and the index stay consistent; Mut only edits the payload.
type Mut struct {
	View
}

// SetDetails replaces the payload. A payload for another kind is rejected.
func (m Mut) SetDetails(d Details) error {
	if d.detailsKind() != m.uid.Kind {
		return &DetailsMismatchError{QualifiedName: m.d.qualifiedName, Kind: m.uid.Kind, DetailsKind: d.detailsKind()}
	}
	m.d.details = cloneDetails(d)
	return nil
}

// lockAll acquires write locks on every distinct entity in ascending id
// order and returns the matching unlock.
func lockAll(ents ...*Entity) func() {
	uniq := make([]*Entity, 0, len(ents))
	for _, e := range ents {
		if e != nil && !slices.Contains(uniq, e) {
			uniq = append(uniq, e)
		}
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i].uid.Less(uniq[j].uid) })
	for _, e := range uniq {
		e.mu.Lock()
	}
	return func() {
		for i := len(uniq) - 1; i >= 0; i-- {
			uniq[i].mu.Unlock()
		}
	}
}
