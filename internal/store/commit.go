package store

import (
	"errors"
	"fmt"
	"strconv"
)

// CommitEntities merges the buffered entities and diagnostics of b into the
// Store and attributes them to b.Unit. It is the first half of a commit:
// every batch of a run commits its entities before any batch commits its
// edges, so that edges can point across units.
//
// A payload for an existing entity replaces the old one only when b.Unit is
// the entity's preferred contributor (see preferredUnit). An entity that
// clashes with a different kind becomes a diagnostic.
func (s *Store) CommitEntities(b *Batch) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, p := range b.Entities {
		var parent UniqueID
		if !p.Parent.IsZero() {
			if pe := s.Get(p.Parent.Kind, p.Parent.QualifiedName); pe != nil {
				parent = pe.UID()
			}
		}
		details := p.Details
		if !p.Namespace.IsZero() {
			if ns := s.Get(p.Namespace.Kind, p.Namespace.QualifiedName); ns != nil {
				details = withNamespace(details, ns.UID())
			}
		}

		e, created, err := s.GetOrAdd(p.Kind, p.QualifiedName, p.Name, parent, details)
		if err != nil {
			// Kind clashes are recorded; the rest of the unit still commits.
			if derr := s.addDiagnostic(b.Unit, DiagnosticDetails{
				Kind:    DiagProducerError,
				Subject: p.QualifiedName,
				Message: err.Error(),
			}); derr != nil {
				return fmt.Errorf("commit %s: %w", b.Unit, derr)
			}
			continue
		}
		if err := s.Attribute(b.Unit, e.UID()); err != nil {
			return fmt.Errorf("commit %s: %w", b.Unit, err)
		}
		if !created && details != nil {
			if err := s.mergeDetails(e.UID(), b.Unit, details); err != nil {
				return fmt.Errorf("commit %s: entity %s: %w", b.Unit, p.Ref, err)
			}
		}
	}

	for _, d := range b.Diagnostics {
		if err := s.addDiagnostic(b.Unit, d); err != nil {
			return fmt.Errorf("commit %s: %w", b.Unit, err)
		}
	}
	return nil
}

// LinkParents attaches entities of b whose parent was declared by another
// batch and therefore did not exist yet when b's entities were committed.
// Run it after every batch of the run has gone through CommitEntities.
func (s *Store) LinkParents(b *Batch) error {
	b.mu.Lock()
	pending := append([]PendingEntity(nil), b.Entities...)
	b.mu.Unlock()

	for _, p := range pending {
		if p.Parent.IsZero() {
			continue
		}
		e := s.Get(p.Kind, p.QualifiedName)
		if e == nil || !e.Parent().IsZero() {
			continue
		}
		parent := s.Get(p.Parent.Kind, p.Parent.QualifiedName)
		if parent == nil {
			continue
		}
		if err := s.SetParent(e.UID(), parent.UID()); err != nil {
			return fmt.Errorf("commit %s: link %s: %w", b.Unit, p.Ref, err)
		}
	}
	return nil
}

// CommitEdges resolves and merges the buffered edges of b. Edges whose
// source or targets cannot be found become UnresolvedReference diagnostics
// attributed to the unit. It returns the edges that were recorded.
func (s *Store) CommitEdges(b *Batch) ([]EdgeKey, error) {
	b.mu.Lock()
	edges := append([]PendingEdge(nil), b.Edges...)
	b.mu.Unlock()

	var recorded []EdgeKey
	for _, p := range edges {
		from := s.Get(p.From.Kind, p.From.QualifiedName)
		if from == nil {
			continue
		}
		var to *Entity
		for _, cand := range p.To {
			if to = s.Get(cand.Kind, cand.QualifiedName); to != nil {
				break
			}
		}
		if to == nil {
			if err := s.addDiagnostic(b.Unit, DiagnosticDetails{
				Kind:     DiagUnresolvedReference,
				Subject:  p.From.QualifiedName,
				Message:  "cannot resolve " + strconv.Quote(p.Spelling),
				Location: p.Location,
			}); err != nil {
				return recorded, fmt.Errorf("commit %s: %w", b.Unit, err)
			}
			continue
		}

		key := EdgeKey{From: from.UID(), To: to.UID(), Kind: p.Kind}
		if _, err := s.AddEdge(key.From, key.To, key.Kind); err != nil {
			if errors.Is(err, ErrSelfEdge) {
				continue
			}
			return recorded, fmt.Errorf("commit %s: edge %s: %w", b.Unit, key, err)
		}
		s.AttributeEdge(b.Unit, key)
		recorded = append(recorded, key)
	}
	return recorded, nil
}

// addDiagnostic records d as a Diagnostic entity owned by unit.
func (s *Store) addDiagnostic(unit string, d DiagnosticDetails) error {
	qn := DiagnosticName(unit, d)
	e, _, err := s.GetOrAdd(KindDiagnostic, qn, string(d.Kind), UniqueID{}, d)
	if err != nil {
		return fmt.Errorf("diagnostic %q: %w", qn, err)
	}
	return s.Attribute(unit, e.UID())
}

// DiagnosticName is the qualified name under which a diagnostic raised by
// unit is registered. Identical diagnostics from one unit collapse.
func DiagnosticName(unit string, d DiagnosticDetails) string {
	return unit + "#" + string(d.Kind) + "#" + d.Subject + "#" + d.Message + "#" + d.Location.String()
}

// withNamespace returns d with its namespace reference set, for the kinds
// that carry one.
func withNamespace(d Details, ns UniqueID) Details {
	switch v := d.(type) {
	case TypeDetails:
		v.Namespace = ns
		return v
	case FunctionDetails:
		v.Namespace = ns
		return v
	case VariableDetails:
		v.Namespace = ns
		return v
	}
	return d
}
