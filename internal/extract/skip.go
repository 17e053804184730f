package extract

import (
	"strings"

	"github.com/jward/strata/internal/facts"
)

// DefaultIgnoredNamespaces are never recorded.
var DefaultIgnoredNamespaces = []string{"std"}

// ignoreSet matches qualified names against ignored namespaces.
type ignoreSet map[string]bool

func newIgnoreSet(namespaces []string) ignoreSet {
	s := make(ignoreSet, len(namespaces))
	for _, ns := range namespaces {
		if ns = strings.Trim(ns, ":"); ns != "" {
			s[ns] = true
		}
	}
	return s
}

// contains reports whether qn lies inside an ignored namespace.
func (s ignoreSet) contains(qn string) bool {
	qn = strings.TrimPrefix(qn, "::")
	for ns := range s {
		if qn == ns || strings.HasPrefix(qn, ns+"::") {
			return true
		}
	}
	return false
}

// skipType reports why a type declaration is not recorded, or "" to keep it.
func (s ignoreSet) skipType(ev facts.TypeDeclared) string {
	switch {
	case ev.Anonymous || ev.Name == "" || ev.QualifiedName == "":
		return "anonymous"
	case ev.Local:
		return "local"
	case ev.InternalLinkage || inAnonymousNamespace(ev.QualifiedName):
		return "internal linkage"
	case ev.Implicit:
		return "implicit specialization"
	case s.contains(ev.QualifiedName):
		return "ignored namespace"
	}
	return ""
}

// skipMember reports why a member declaration is not recorded, or "" to
// keep it.
func (s ignoreSet) skipMember(ev facts.MemberDeclared) string {
	switch {
	case ev.Name == "" || ev.QualifiedName == "":
		return "anonymous"
	case ev.Local:
		return "local"
	case ev.InternalLinkage || inAnonymousNamespace(ev.QualifiedName):
		return "internal linkage"
	case s.contains(ev.QualifiedName):
		return "ignored namespace"
	}
	if (ev.Kind == facts.MemberMethod || ev.Kind == facts.MemberField) && ev.Owner == "" {
		return "no owner"
	}
	return ""
}

// inAnonymousNamespace reports whether a qualified name has an empty or
// "(anonymous namespace)" segment.
func inAnonymousNamespace(qn string) bool {
	for _, seg := range strings.Split(strings.TrimPrefix(qn, "::"), "::") {
		if seg == "" || strings.HasPrefix(seg, "(anonymous") {
			return true
		}
	}
	return false
}
