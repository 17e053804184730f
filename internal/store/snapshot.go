package store

import (
	"fmt"
	"sort"
)

// EntityRecord is the persisted form of one entity.
type EntityRecord struct {
	UID           UniqueID
	Name          string
	QualifiedName string
	Parent        UniqueID
	Units         []string
	Manual        bool
	Details       Details
}

// EdgeRecord is the persisted form of one directed edge.
type EdgeRecord struct {
	Key   EdgeKey
	Units []string
}

// ForEachEntity calls fn for every entity in ascending UniqueID order,
// which places parents created before their children first. Iteration
// stops at the first error.
func (s *Store) ForEachEntity(fn func(EntityRecord) error) error {
	s.mu.RLock()
	ents := make([]*Entity, 0, len(s.arena))
	for _, e := range s.arena {
		ents = append(ents, e)
	}
	s.mu.RUnlock()
	sort.Slice(ents, func(i, j int) bool { return ents[i].uid.Less(ents[j].uid) })

	for _, e := range ents {
		var rec EntityRecord
		e.WithRead(func(v View) {
			rec = EntityRecord{
				UID:           v.UID(),
				Name:          v.Name(),
				QualifiedName: v.QualifiedName(),
				Parent:        v.Parent(),
				Units:         v.Units(),
				Manual:        v.Manual(),
				Details:       v.Details(),
			}
		})
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

// ForEachEdge calls fn for every directed edge, ordered by source, target
// and kind.
func (s *Store) ForEachEdge(fn func(EdgeRecord) error) error {
	s.mu.RLock()
	var keys []EdgeKey
	for _, e := range s.arena {
		e.mu.RLock()
		for _, p := range e.d.providers {
			keys = append(keys, EdgeKey{From: e.uid, To: p.Other, Kind: p.Kind})
		}
		e.mu.RUnlock()
	}
	s.mu.RUnlock()
	sort.Slice(keys, func(i, j int) bool { return edgeKeyLess(keys[i], keys[j]) })

	for _, k := range keys {
		if err := fn(EdgeRecord{Key: k, Units: s.EdgeUnits(k)}); err != nil {
			return err
		}
	}
	return nil
}

// PopulateFromSnapshot loads previously exported records into an empty
// Store, preserving UniqueIDs. Records may arrive in any order.
func (s *Store) PopulateFromSnapshot(entities []EntityRecord, edges []EdgeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.arena) > 0 {
		return ErrNotEmpty
	}
	s.attrMu.Lock()
	defer s.attrMu.Unlock()

	sorted := append([]EntityRecord(nil), entities...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].UID.Less(sorted[j].UID) })

	for _, r := range sorted {
		if r.UID.IsZero() {
			return fmt.Errorf("populate: entity %q has no id", r.QualifiedName)
		}
		if _, dup := s.arena[r.UID]; dup {
			return fmt.Errorf("populate: duplicate id %s", r.UID)
		}
		fam := r.UID.Kind.family()
		if other, dup := s.index[fam][r.QualifiedName]; dup {
			return fmt.Errorf("populate: %q registered as both %s and %s", r.QualifiedName, other, r.UID)
		}
		details := r.Details
		if details == nil {
			details = zeroDetails(r.UID.Kind)
		}
		if details.detailsKind() != r.UID.Kind {
			return &DetailsMismatchError{QualifiedName: r.QualifiedName, Kind: r.UID.Kind, DetailsKind: details.detailsKind()}
		}
		e := &Entity{uid: r.UID, d: entityData{
			name:          r.Name,
			qualifiedName: r.QualifiedName,
			parent:        r.Parent,
			manual:        r.Manual,
			details:       cloneDetails(details),
		}}
		if len(r.Units) > 0 {
			e.d.units = make(map[string]struct{}, len(r.Units))
			for _, u := range r.Units {
				e.d.units[u] = struct{}{}
				s.factsFor(u).entities[r.UID] = struct{}{}
			}
		}
		s.arena[r.UID] = e
		s.index[fam][r.QualifiedName] = r.UID
		if r.UID.ID > s.nextID[r.UID.Kind] {
			s.nextID[r.UID.Kind] = r.UID.ID
		}
	}

	for _, r := range sorted {
		if r.Parent.IsZero() {
			continue
		}
		p := s.arena[r.Parent]
		if p == nil {
			return fmt.Errorf("populate: parent %s of %s: %w", r.Parent, r.UID, ErrNotFound)
		}
		p.d.children = append(p.d.children, r.UID)
	}

	for _, r := range edges {
		a, b := s.arena[r.Key.From], s.arena[r.Key.To]
		if a == nil || b == nil {
			return fmt.Errorf("populate: edge %s: %w", r.Key, ErrNotFound)
		}
		if r.Key.From == r.Key.To {
			return fmt.Errorf("populate: edge %s: %w", r.Key, ErrSelfEdge)
		}
		if indexOfEdge(a.d.providers, Edge{Other: r.Key.To, Kind: r.Key.Kind}) >= 0 {
			continue
		}
		a.d.providers = append(a.d.providers, Edge{Other: r.Key.To, Kind: r.Key.Kind})
		b.d.clients = append(b.d.clients, Edge{Other: r.Key.From, Kind: r.Key.Kind})
		for _, u := range r.Units {
			owners := s.edgeUnits[r.Key]
			if owners == nil {
				owners = make(map[string]struct{})
				s.edgeUnits[r.Key] = owners
			}
			owners[u] = struct{}{}
			s.factsFor(u).edges[r.Key] = struct{}{}
		}
	}
	return nil
}
