package store

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
)

// Digest computes a deterministic hash of the Store's content: every
// entity's kind, qualified name, name, parent and payload, and every edge.
// Entities are identified by qualified name rather than UniqueID, so
// retracting and re-extracting identical facts leaves the digest unchanged.
// Unit attribution and type locations do not affect the hash.
func (s *Store) Digest() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	qn := func(uid UniqueID) string {
		if e := s.arena[uid]; e != nil {
			return uid.Kind.String() + " " + e.d.qualifiedName
		}
		return ""
	}

	var entities, edges []string
	for _, e := range s.arena {
		e.mu.RLock()
		entities = append(entities, fmt.Sprintf("%s|%s|%s|%s|%s",
			e.uid.Kind, e.d.qualifiedName, e.d.name, qn(e.d.parent), canonicalDetails(e.d.details, qn)))
		for _, p := range e.d.providers {
			edges = append(edges, fmt.Sprintf("%s|%s|%s", qn(e.uid), p.Kind, qn(p.Other)))
		}
		e.mu.RUnlock()
	}
	sort.Strings(entities)
	sort.Strings(edges)

	h := sha256.New()
	for _, line := range entities {
		fmt.Fprintf(h, "entity:%s\n", line)
	}
	for _, line := range edges {
		fmt.Fprintf(h, "edge:%s\n", line)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// canonicalDetails renders a payload with ids replaced by names.
func canonicalDetails(d Details, qn func(UniqueID) string) string {
	switch v := d.(type) {
	case FileDetails:
		return fmt.Sprintf("header=%t hash=%s", v.IsHeader, v.Hash)
	case PackageDetails:
		return "disk=" + v.DiskPath
	case ComponentDetails, NamespaceDetails:
		return ""
	case TypeDetails:
		return fmt.Sprintf("%s %s ns=%s alias=%s", v.TypeKind, v.Access, qn(v.Namespace), v.AliasOf)
	case MethodDetails:
		return fmt.Sprintf("%s %s ret=%s params=%s static=%t virtual=%t",
			v.Access, v.Signature, v.ReturnType, strings.Join(v.Params, ","), v.Static, v.Virtual)
	case FunctionDetails:
		return fmt.Sprintf("ns=%s %s ret=%s params=%s",
			qn(v.Namespace), v.Signature, v.ReturnType, strings.Join(v.Params, ","))
	case FieldDetails:
		return fmt.Sprintf("%s %s static=%t", v.Access, v.TypeName, v.Static)
	case VariableDetails:
		return fmt.Sprintf("ns=%s %s", qn(v.Namespace), v.TypeName)
	case DiagnosticDetails:
		return fmt.Sprintf("%s %s %s %s", v.Kind, v.Subject, v.Message, v.Location)
	}
	return ""
}
