package extract

import (
	"github.com/jward/strata/internal/facts"
	"github.com/jward/strata/internal/store"
)

// Classification is the outcome of classifying one usage: which entity the
// relation starts from, what kind it is, and the scope its spelling must be
// resolved in.
type Classification struct {
	Source store.Ref
	Kind   store.EdgeKind
	Scope  string
}

// Classify decides the relation recorded for a usage.
//
// The source is the innermost type enclosing the usage, ignoring types
// declared inside a function body; with no such type the enclosing free
// function is the source. The kind follows the site:
//
//	base                      IsA
//	local, body               UsesInTheImplementation
//	parameter, return, field  UsesInTheInterface for public and protected
//	                          members, UsesInTheImplementation for private
//
// Lambdas are transparent: a usage inside a lambda takes the access of the
// method the lambda is defined in, through any number of nested lambdas.
// For a free function, signature usages are interface and body usages are
// implementation. Anything inside a local class is implementation.
//
// ok is false when the usage has no recordable source.
func Classify(u facts.UsageDiscovered) (c Classification, ok bool) {
	ctx := u.Context
	callable := -1
	for i, s := range ctx {
		if s.Kind.Callable() {
			callable = i
			break
		}
	}
	outer := ctx
	if callable >= 0 {
		outer = ctx[:callable]
	}

	for i := len(outer) - 1; i >= 0; i-- {
		if outer[i].Kind == facts.ScopeType {
			c.Source = store.Ref{Kind: store.KindType, QualifiedName: outer[i].Name}
			break
		}
	}
	if c.Source.IsZero() && callable >= 0 && ctx[callable].Kind == facts.ScopeFunction {
		c.Source = store.Ref{Kind: store.KindFunction, QualifiedName: ctx[callable].Name}
	}
	if c.Source.IsZero() || c.Source.QualifiedName == "" {
		return Classification{}, false
	}

	for i := len(outer) - 1; i >= 0; i-- {
		if k := outer[i].Kind; k == facts.ScopeType || k == facts.ScopeNamespace {
			c.Scope = outer[i].Name
			break
		}
	}

	localType := false
	if callable >= 0 {
		for _, s := range ctx[callable+1:] {
			if s.Kind == facts.ScopeType {
				localType = true
				break
			}
		}
	}

	switch u.Site {
	case facts.SiteBase:
		c.Kind = store.EdgeIsA
		if localType {
			c.Kind = store.EdgeUsesInTheImplementation
		}
	case facts.SiteLocal, facts.SiteBody:
		c.Kind = store.EdgeUsesInTheImplementation
	case facts.SiteParameter, facts.SiteReturn, facts.SiteField:
		if localType {
			c.Kind = store.EdgeUsesInTheImplementation
			break
		}
		c.Kind = kindForAccess(effectiveAccess(u))
	default:
		return Classification{}, false
	}
	return c, true
}

// effectiveAccess returns the access deciding an interface-or-implementation
// usage, walking outward through lambdas to the enclosing method.
func effectiveAccess(u facts.UsageDiscovered) store.Access {
	access := u.Access
	inLambda := false
	for i := len(u.Context) - 1; i >= 0; i-- {
		s := u.Context[i]
		switch s.Kind {
		case facts.ScopeLambda:
			inLambda = true
		case facts.ScopeMethod:
			if access == store.AccessNone || inLambda {
				access = s.Access
			}
			return access
		case facts.ScopeFunction:
			if inLambda {
				// A lambda in a free function is part of its body.
				return store.AccessPrivate
			}
			return access
		default:
			return access
		}
	}
	return access
}

func kindForAccess(a store.Access) store.EdgeKind {
	if a == store.AccessPrivate {
		return store.EdgeUsesInTheImplementation
	}
	return store.EdgeUsesInTheInterface
}
