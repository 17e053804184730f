package store

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

// Attribute records that unit contributed the entity uid. Retracting the
// unit deletes the entity once no other unit contributes it.
func (s *Store) Attribute(unit string, uid UniqueID) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e := s.arena[uid]
	if e == nil {
		return fmt.Errorf("attribute %s to %s: %w", uid, unit, ErrNotFound)
	}
	e.mu.Lock()
	if e.d.units == nil {
		e.d.units = make(map[string]struct{})
	}
	e.d.units[unit] = struct{}{}
	e.mu.Unlock()

	s.attrMu.Lock()
	s.factsFor(unit).entities[uid] = struct{}{}
	s.attrMu.Unlock()
	return nil
}

// AttributeEdge records that unit contributed the edge k.
func (s *Store) AttributeEdge(unit string, k EdgeKey) {
	s.attrMu.Lock()
	defer s.attrMu.Unlock()
	owners := s.edgeUnits[k]
	if owners == nil {
		owners = make(map[string]struct{})
		s.edgeUnits[k] = owners
	}
	owners[unit] = struct{}{}
	s.factsFor(unit).edges[k] = struct{}{}
}

// factsFor returns the attribution record for unit. attrMu must be held.
func (s *Store) factsFor(unit string) *unitFacts {
	f := s.byUnit[unit]
	if f == nil {
		f = &unitFacts{
			entities: make(map[UniqueID]struct{}),
			edges:    make(map[EdgeKey]struct{}),
		}
		s.byUnit[unit] = f
	}
	return f
}

// dropEdgeAttribution forgets every unit contributing k and returns them.
func (s *Store) dropEdgeAttribution(k EdgeKey) map[string]struct{} {
	s.attrMu.Lock()
	defer s.attrMu.Unlock()
	owners := s.edgeUnits[k]
	delete(s.edgeUnits, k)
	for u := range owners {
		if f := s.byUnit[u]; f != nil {
			delete(f.edges, k)
		}
	}
	return owners
}

// EdgeUnits returns the units contributing edge k, sorted.
func (s *Store) EdgeUnits(k EdgeKey) []string {
	s.attrMu.Lock()
	defer s.attrMu.Unlock()
	return sortedKeys(s.edgeUnits[k])
}

// Units returns every unit with at least one attributed fact, sorted.
func (s *Store) Units() []string {
	s.attrMu.Lock()
	defer s.attrMu.Unlock()
	out := make([]string, 0, len(s.byUnit))
	for u, f := range s.byUnit {
		if len(f.entities)+len(f.edges) > 0 {
			out = append(out, u)
		}
	}
	sort.Strings(out)
	return out
}

// UnitEntities returns the entities attributed to unit, ascending.
func (s *Store) UnitEntities(unit string) []UniqueID {
	s.attrMu.Lock()
	f := s.byUnit[unit]
	var out []UniqueID
	if f != nil {
		out = make([]UniqueID, 0, len(f.entities))
		for uid := range f.entities {
			out = append(out, uid)
		}
	}
	s.attrMu.Unlock()
	sortIDs(out)
	return out
}

// RetractUnit withdraws every fact contributed by unit. Edges and entities
// whose only contributor was unit are deleted; facts shared with other
// units, and manually modeled entities, are kept.
//
// It returns the other units whose facts were touched by a deletion: an
// edge of theirs lost an endpoint, an entity of theirs lost its parent, or
// a logical entity they share lost the unit its payload came from. Those
// units must be re-extracted for the Store to converge.
func (s *Store) RetractUnit(unit string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attrMu.Lock()
	f := s.byUnit[unit]
	delete(s.byUnit, unit)
	s.attrMu.Unlock()
	if f == nil {
		return nil
	}

	touched := make(map[string]struct{})

	edges := make([]EdgeKey, 0, len(f.edges))
	for k := range f.edges {
		edges = append(edges, k)
	}
	sort.Slice(edges, func(i, j int) bool { return edgeKeyLess(edges[i], edges[j]) })
	for _, k := range edges {
		s.attrMu.Lock()
		owners := s.edgeUnits[k]
		delete(owners, unit)
		orphan := len(owners) == 0
		if orphan {
			delete(s.edgeUnits, k)
		}
		s.attrMu.Unlock()
		if !orphan {
			continue
		}
		a, b := s.arena[k.From], s.arena[k.To]
		if a == nil || b == nil {
			continue
		}
		unlock := lockAll(a, b)
		unlinkLocked(a, b, k.Kind)
		unlock()
	}

	ids := make([]UniqueID, 0, len(f.entities))
	for uid := range f.entities {
		ids = append(ids, uid)
	}
	sortIDs(ids)
	var doomed []*Entity
	for _, uid := range ids {
		e := s.arena[uid]
		if e == nil {
			continue
		}
		e.mu.Lock()
		owned := payloadOwnerLocked(e) == unit
		delete(e.d.units, unit)
		switch {
		case len(e.d.units) == 0 && !e.d.manual:
			doomed = append(doomed, e)
		case owned && uid.Kind.IsLogical():
			for u := range e.d.units {
				touched[u] = struct{}{}
			}
		}
		e.mu.Unlock()
	}
	for _, e := range doomed {
		r := s.removeLocked(e)
		for u := range r.touched {
			touched[u] = struct{}{}
		}
	}

	delete(touched, unit)
	return sortedKeys(touched)
}

var headerExtensions = map[string]bool{
	".h": true, ".hh": true, ".hpp": true, ".hxx": true, ".ipp": true, ".tpp": true,
}

// preferredUnit reports whether unit a outranks unit b as the source of a
// shared entity's payload: headers before sources, then by path.
func preferredUnit(a, b string) bool {
	ha := headerExtensions[strings.ToLower(path.Ext(a))]
	hb := headerExtensions[strings.ToLower(path.Ext(b))]
	if ha != hb {
		return ha
	}
	return a < b
}

// payloadOwnerLocked returns the contributing unit whose payload e carries,
// or "" when no unit contributes it. e.mu must be held.
func payloadOwnerLocked(e *Entity) string {
	owner := ""
	for u := range e.d.units {
		if owner == "" || preferredUnit(u, owner) {
			owner = u
		}
	}
	return owner
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func edgeKeyLess(a, b EdgeKey) bool {
	if a.From != b.From {
		return a.From.Less(b.From)
	}
	if a.To != b.To {
		return a.To.Less(b.To)
	}
	return a.Kind < b.Kind
}
