package store

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrNotFound is returned when a UniqueID or qualified name resolves to
	// nothing.
	ErrNotFound = errors.New("store: entity not found")

	// ErrSelfEdge is returned by AddEdge when both endpoints are the same.
	ErrSelfEdge = errors.New("store: edge would be a self-loop")

	// ErrNameTaken is returned by Rename when the new qualified name is
	// already registered in the same name space.
	ErrNameTaken = errors.New("store: qualified name already registered")

	// ErrNotEmpty is returned by PopulateFromSnapshot on a non-empty Store.
	ErrNotEmpty = errors.New("store: populate requires an empty store")
)

// KindMismatchError reports a GetOrAdd for a qualified name that is already
// registered under a different kind of the same name space.
type KindMismatchError struct {
	QualifiedName string
	Existing      Kind
	Requested     Kind
}

func (e *KindMismatchError) Error() string {
	return fmt.Sprintf("store: %q is a %s, not a %s", e.QualifiedName, e.Existing, e.Requested)
}

// DetailsMismatchError reports a payload whose kind is not the kind of the
// entity it was given for.
type DetailsMismatchError struct {
	QualifiedName string
	Kind          Kind
	DetailsKind   Kind
}

func (e *DetailsMismatchError) Error() string {
	return fmt.Sprintf("store: %q: %s payload given for a %s", e.QualifiedName, e.DetailsKind, e.Kind)
}

// Store owns every entity and edge. Entities live in an arena keyed by
// UniqueID; all cross references are ids resolved through the Store.
//
// Lock order: mu (structural), then entity locks in ascending UniqueID
// order, then attrMu.
type Store struct {
	mu     sync.RWMutex
	arena  map[UniqueID]*Entity
	index  [familyCount]map[string]UniqueID
	nextID map[Kind]int64

	attrMu    sync.Mutex
	byUnit    map[string]*unitFacts
	edgeUnits map[EdgeKey]map[string]struct{}
}

type unitFacts struct {
	entities map[UniqueID]struct{}
	edges    map[EdgeKey]struct{}
}

// New creates an empty Store.
func New() *Store {
	s := &Store{
		arena:     make(map[UniqueID]*Entity),
		nextID:    make(map[Kind]int64),
		byUnit:    make(map[string]*unitFacts),
		edgeUnits: make(map[EdgeKey]map[string]struct{}),
	}
	for i := range s.index {
		s.index[i] = make(map[string]UniqueID)
	}
	return s
}

// Len returns the number of live entities.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.arena)
}

// GetOrAdd returns the entity registered as (kind, qualifiedName), creating
// it with the given name, parent and payload if absent. The bool reports
// whether the entity was created. A nil details means the zero payload.
//
// Concurrent calls for the same key return the same entity.
func (s *Store) GetOrAdd(kind Kind, qualifiedName, name string, parent UniqueID, details Details) (*Entity, bool, error) {
	if details == nil {
		details = zeroDetails(kind)
	}
	if details.detailsKind() != kind {
		return nil, false, &DetailsMismatchError{QualifiedName: qualifiedName, Kind: kind, DetailsKind: details.detailsKind()}
	}

	s.mu.RLock()
	e, err := s.lookupLocked(kind, qualifiedName)
	s.mu.RUnlock()
	if e != nil || err != nil {
		return e, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another goroutine may have won the race between the two locks.
	if e, err := s.lookupLocked(kind, qualifiedName); e != nil || err != nil {
		return e, false, err
	}

	var p *Entity
	if !parent.IsZero() {
		p = s.arena[parent]
		if p == nil {
			return nil, false, fmt.Errorf("parent %s of %q: %w", parent, qualifiedName, ErrNotFound)
		}
	}

	s.nextID[kind]++
	e = &Entity{
		uid: UniqueID{Kind: kind, ID: s.nextID[kind]},
		d: entityData{
			name:          name,
			qualifiedName: qualifiedName,
			parent:        parent,
			details:       cloneDetails(details),
		},
	}
	s.arena[e.uid] = e
	s.index[kind.family()][qualifiedName] = e.uid

	if p != nil {
		p.mu.Lock()
		p.d.children = append(p.d.children, e.uid)
		p.mu.Unlock()
	}
	return e, true, nil
}

func (s *Store) lookupLocked(kind Kind, qualifiedName string) (*Entity, error) {
	uid, ok := s.index[kind.family()][qualifiedName]
	if !ok {
		return nil, nil
	}
	if uid.Kind != kind {
		return nil, &KindMismatchError{QualifiedName: qualifiedName, Existing: uid.Kind, Requested: kind}
	}
	return s.arena[uid], nil
}

// GetOrAddFile registers a source file under its path.
func (s *Store) GetOrAddFile(path, name string, component UniqueID, d FileDetails) (*Entity, error) {
	e, _, err := s.GetOrAdd(KindFile, path, name, component, d)
	return e, err
}

// GetOrAddPackage registers a package or package group.
func (s *Store) GetOrAddPackage(qualifiedName, name string, parent UniqueID, d PackageDetails) (*Entity, error) {
	e, _, err := s.GetOrAdd(KindPackage, qualifiedName, name, parent, d)
	return e, err
}

// GetOrAddComponent registers a component under its package.
func (s *Store) GetOrAddComponent(qualifiedName, name string, pkg UniqueID) (*Entity, error) {
	e, _, err := s.GetOrAdd(KindComponent, qualifiedName, name, pkg, ComponentDetails{})
	return e, err
}

// GetOrAddNamespace registers a namespace under its enclosing namespace.
func (s *Store) GetOrAddNamespace(qualifiedName, name string, parent UniqueID) (*Entity, error) {
	e, _, err := s.GetOrAdd(KindNamespace, qualifiedName, name, parent, NamespaceDetails{})
	return e, err
}

// GetOrAddType registers a user-defined type.
func (s *Store) GetOrAddType(qualifiedName, name string, parent UniqueID, d TypeDetails) (*Entity, error) {
	e, _, err := s.GetOrAdd(KindType, qualifiedName, name, parent, d)
	return e, err
}

// GetOrAddMethod registers a member function of a type.
func (s *Store) GetOrAddMethod(qualifiedName, name string, owner UniqueID, d MethodDetails) (*Entity, error) {
	e, _, err := s.GetOrAdd(KindMethod, qualifiedName, name, owner, d)
	return e, err
}

// GetOrAddFunction registers a free function.
func (s *Store) GetOrAddFunction(qualifiedName, name string, component UniqueID, d FunctionDetails) (*Entity, error) {
	e, _, err := s.GetOrAdd(KindFunction, qualifiedName, name, component, d)
	return e, err
}

// GetOrAddField registers a data member of a type.
func (s *Store) GetOrAddField(qualifiedName, name string, owner UniqueID, d FieldDetails) (*Entity, error) {
	e, _, err := s.GetOrAdd(KindField, qualifiedName, name, owner, d)
	return e, err
}

// GetOrAddVariable registers a namespace-scope variable.
func (s *Store) GetOrAddVariable(qualifiedName, name string, component UniqueID, d VariableDetails) (*Entity, error) {
	e, _, err := s.GetOrAdd(KindVariable, qualifiedName, name, component, d)
	return e, err
}

// Get returns the entity registered as (kind, qualifiedName), or nil.
func (s *Store) Get(kind Kind, qualifiedName string) *Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	uid, ok := s.index[kind.family()][qualifiedName]
	if !ok || uid.Kind != kind {
		return nil
	}
	return s.arena[uid]
}

// FindByQualifiedName searches every kind, in Kinds order, and returns the
// first match or nil.
func (s *Store) FindByQualifiedName(qualifiedName string) *Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range Kinds {
		if uid, ok := s.index[k.family()][qualifiedName]; ok && uid.Kind == k {
			return s.arena[uid]
		}
	}
	return nil
}

// GetByID returns the entity with the given id, or nil.
func (s *Store) GetByID(uid UniqueID) *Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.arena[uid]
}

// IDs returns the ids of all live entities of kind k, ascending.
func (s *Store) IDs(k Kind) []UniqueID {
	s.mu.RLock()
	out := make([]UniqueID, 0)
	for uid := range s.arena {
		if uid.Kind == k {
			out = append(out, uid)
		}
	}
	s.mu.RUnlock()
	sortIDs(out)
	return out
}

// Pin marks an entity as manually modeled: retraction of analysis units
// never deletes it.
func (s *Store) Pin(uid UniqueID) error {
	e := s.GetByID(uid)
	if e == nil {
		return fmt.Errorf("pin %s: %w", uid, ErrNotFound)
	}
	e.mu.Lock()
	e.d.manual = true
	e.mu.Unlock()
	return nil
}

// SetDetails replaces an entity's payload.
func (s *Store) SetDetails(uid UniqueID, d Details) error {
	e := s.GetByID(uid)
	if e == nil {
		return fmt.Errorf("set details %s: %w", uid, ErrNotFound)
	}
	var err error
	e.WithWrite(func(m Mut) { err = m.SetDetails(d) })
	return err
}

// mergeDetails offers d as unit's payload for uid. Several units may
// declare the same entity with different payloads, e.g. a function declared
// in a header and defined in a source file; the entity carries the payload
// of its preferred contributor whatever order the units commit in. unit
// must already be attributed.
func (s *Store) mergeDetails(uid UniqueID, unit string, d Details) error {
	e := s.GetByID(uid)
	if e == nil {
		return fmt.Errorf("merge details %s: %w", uid, ErrNotFound)
	}
	var err error
	e.WithWrite(func(m Mut) {
		if owner := payloadOwnerLocked(e); owner != "" && owner != unit {
			return
		}
		err = m.SetDetails(d)
	})
	return err
}

// ============================================================================
// Edges
// ============================================================================

// AddEdge records a directed edge on both endpoints. It reports false if
// the edge already existed.
func (s *Store) AddEdge(from, to UniqueID, kind EdgeKind) (bool, error) {
	if from == to {
		return false, ErrSelfEdge
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, b := s.arena[from], s.arena[to]
	if a == nil || b == nil {
		return false, fmt.Errorf("edge %s: %w", EdgeKey{From: from, To: to, Kind: kind}, ErrNotFound)
	}

	unlock := lockAll(a, b)
	defer unlock()
	fwd := Edge{Other: to, Kind: kind}
	for _, e := range a.d.providers {
		if e == fwd {
			return false, nil
		}
	}
	a.d.providers = append(a.d.providers, fwd)
	b.d.clients = append(b.d.clients, Edge{Other: from, Kind: kind})
	return true, nil
}

// RemoveEdge deletes a directed edge from both endpoints. It reports false
// if there was no such edge.
func (s *Store) RemoveEdge(from, to UniqueID, kind EdgeKind) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, b := s.arena[from], s.arena[to]
	if a == nil || b == nil {
		return false, fmt.Errorf("edge %s: %w", EdgeKey{From: from, To: to, Kind: kind}, ErrNotFound)
	}
	unlock := lockAll(a, b)
	removed := unlinkLocked(a, b, kind)
	unlock()

	if removed {
		s.dropEdgeAttribution(EdgeKey{From: from, To: to, Kind: kind})
	}
	return removed, nil
}

// HasEdge reports whether the directed edge exists.
func (s *Store) HasEdge(from, to UniqueID, kind EdgeKind) bool {
	e := s.GetByID(from)
	if e == nil {
		return false
	}
	var ok bool
	e.WithRead(func(v View) { ok = v.HasProvider(to, kind) })
	return ok
}

// unlinkLocked removes a→b of kind from both edge lists. Both entities must
// be write-locked.
func unlinkLocked(a, b *Entity, kind EdgeKind) bool {
	fwd := Edge{Other: b.uid, Kind: kind}
	i := indexOfEdge(a.d.providers, fwd)
	if i < 0 {
		return false
	}
	a.d.providers = append(a.d.providers[:i], a.d.providers[i+1:]...)
	if j := indexOfEdge(b.d.clients, Edge{Other: a.uid, Kind: kind}); j >= 0 {
		b.d.clients = append(b.d.clients[:j], b.d.clients[j+1:]...)
	}
	return true
}

func indexOfEdge(edges []Edge, e Edge) int {
	for i, x := range edges {
		if x == e {
			return i
		}
	}
	return -1
}

// ============================================================================
// Hierarchy and identity
// ============================================================================

// SetParent moves child under parent. A zero parent detaches the child.
// Edges are untouched.
func (s *Store) SetParent(child, parent UniqueID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.arena[child]
	if c == nil {
		return fmt.Errorf("reparent %s: %w", child, ErrNotFound)
	}
	var p *Entity
	if !parent.IsZero() {
		if p = s.arena[parent]; p == nil {
			return fmt.Errorf("reparent %s under %s: %w", child, parent, ErrNotFound)
		}
	}

	c.mu.RLock()
	oldID := c.d.parent
	c.mu.RUnlock()
	old := s.arena[oldID]

	unlock := lockAll(c, old, p)
	defer unlock()
	if old != nil {
		old.d.children = removeID(old.d.children, child)
	}
	if p != nil {
		p.d.children = append(p.d.children, child)
	}
	c.d.parent = parent
	return nil
}

// Rename changes an entity's name and qualified name, re-indexing it
// atomically. The UniqueID, parent and edges are unchanged.
func (s *Store) Rename(uid UniqueID, name, qualifiedName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.arena[uid]
	if e == nil {
		return fmt.Errorf("rename %s: %w", uid, ErrNotFound)
	}
	idx := s.index[uid.Kind.family()]
	if other, ok := idx[qualifiedName]; ok && other != uid {
		return fmt.Errorf("rename %s to %q: %w", uid, qualifiedName, ErrNameTaken)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	delete(idx, e.d.qualifiedName)
	idx[qualifiedName] = uid
	e.d.name = name
	e.d.qualifiedName = qualifiedName
	return nil
}

// Remove deletes an entity together with every edge touching it. Children
// are detached, not deleted. Callers wanting the guarded behaviour go
// through the rules package.
func (s *Store) Remove(uid UniqueID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.arena[uid]
	if e == nil {
		return fmt.Errorf("remove %s: %w", uid, ErrNotFound)
	}
	s.removeLocked(e)
	return nil
}

// removal describes the side effects of deleting one entity: the edges
// that went with it and the units that had contributed those edges or the
// orphaned children.
type removal struct {
	edges    []EdgeKey
	orphaned []UniqueID
	touched  map[string]struct{}
}

// removeLocked deletes e. The caller holds s.mu exclusively.
func (s *Store) removeLocked(e *Entity) removal {
	r := removal{touched: make(map[string]struct{})}

	e.mu.RLock()
	providers := append([]Edge(nil), e.d.providers...)
	clients := append([]Edge(nil), e.d.clients...)
	children := append([]UniqueID(nil), e.d.children...)
	parentID := e.d.parent
	e.mu.RUnlock()

	for _, p := range providers {
		if other := s.arena[p.Other]; other != nil {
			unlock := lockAll(e, other)
			unlinkLocked(e, other, p.Kind)
			unlock()
		}
		r.edges = append(r.edges, EdgeKey{From: e.uid, To: p.Other, Kind: p.Kind})
	}
	for _, c := range clients {
		if other := s.arena[c.Other]; other != nil {
			unlock := lockAll(e, other)
			unlinkLocked(other, e, c.Kind)
			unlock()
		}
		r.edges = append(r.edges, EdgeKey{From: c.Other, To: e.uid, Kind: c.Kind})
	}
	for _, cid := range children {
		if child := s.arena[cid]; child != nil {
			child.mu.Lock()
			child.d.parent = UniqueID{}
			for u := range child.d.units {
				r.touched[u] = struct{}{}
			}
			child.mu.Unlock()
			r.orphaned = append(r.orphaned, cid)
		}
	}
	if parent := s.arena[parentID]; parent != nil {
		parent.mu.Lock()
		parent.d.children = removeID(parent.d.children, e.uid)
		parent.mu.Unlock()
	}

	e.mu.Lock()
	delete(s.index[e.uid.Kind.family()], e.d.qualifiedName)
	units := e.d.units
	e.d.units = nil
	e.d.children = nil
	e.d.removed = true
	e.mu.Unlock()
	delete(s.arena, e.uid)

	s.attrMu.Lock()
	for u := range units {
		if f := s.byUnit[u]; f != nil {
			delete(f.entities, e.uid)
		}
	}
	s.attrMu.Unlock()
	for _, k := range r.edges {
		for u := range s.dropEdgeAttribution(k) {
			r.touched[u] = struct{}{}
		}
	}
	return r
}

func removeID(ids []UniqueID, id UniqueID) []UniqueID {
	for i, x := range ids {
		if x == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

func sortIDs(ids []UniqueID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
}
