// Package facts defines the boundary between a source front end and the
// extraction pipeline: the analysis Unit handed to a Producer and the closed
// set of events a Producer emits while analyzing it.
//
// Events carry spellings and qualified names, never store ids. Turning them
// into entities and edges is the job of the extract package.
package facts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jward/strata/internal/store"
)

// ErrStop may be returned by an Emit function to end a Produce call early
// without reporting a failure.
var ErrStop = errors.New("facts: stop producing")

// Unit is one analysis unit, normally a single source or header file.
type Unit struct {
	// Path is the slash-separated path relative to the analysis root. It is
	// also the unit's identity in the Store.
	Path string
	// AbsPath is the location on disk.
	AbsPath string
	// Content is the file's bytes as read by the orchestrator.
	Content []byte
	// IsHeader is true for .h/.hpp style files.
	IsHeader bool
	// Hash is the content fingerprint computed by the orchestrator.
	Hash string
}

// Emit receives one event. A non-nil error stops the producer.
type Emit func(Event) error

// Producer turns a unit into a stream of events. Implementations must check
// ctx between declarations and return ctx.Err() once it is done.
type Producer interface {
	Produce(ctx context.Context, u Unit, emit Emit) error
}

// ProducerFunc adapts a function to the Producer interface.
type ProducerFunc func(ctx context.Context, u Unit, emit Emit) error

func (f ProducerFunc) Produce(ctx context.Context, u Unit, emit Emit) error {
	return f(ctx, u, emit)
}

// Event is one of the concrete event types in this package. The interface
// is closed: only types declared here implement it.
type Event interface {
	event()
}

// FileDiscovered announces the unit's file. Producers emit it first.
type FileDiscovered struct {
	Path     string
	IsHeader bool
}

// IncludeDiscovered reports an #include directive.
type IncludeDiscovered struct {
	Spelling string
	// System is true for angle-bracket includes.
	System   bool
	Location store.Location
}

// TypeDeclared reports the definition of a user-defined type.
type TypeDeclared struct {
	Kind          store.TypeKind
	Name          string
	QualifiedName string
	// Parent is the qualified name of the enclosing type, empty at
	// namespace scope.
	Parent string
	// Namespace is the qualified name of the innermost enclosing
	// namespace, empty for the global namespace.
	Namespace string
	Access    store.Access
	// AliasOf is the aliased spelling for typedefs and alias declarations.
	AliasOf string
	// TemplateParams lists the names of the type's template parameters.
	TemplateParams []string

	// Anonymous, Local and InternalLinkage mark declarations without a
	// globally unique name. Implicit marks compiler-synthesized template
	// specializations.
	Anonymous       bool
	Local           bool
	InternalLinkage bool
	Implicit        bool

	Location store.Location
}

// MemberKind says what a MemberDeclared event declares.
type MemberKind uint8

const (
	MemberMethod MemberKind = iota + 1
	MemberField
	MemberFunction
	MemberVariable
)

var memberKindNames = [...]string{
	MemberMethod:   "method",
	MemberField:    "field",
	MemberFunction: "function",
	MemberVariable: "variable",
}

func (k MemberKind) String() string {
	if int(k) < len(memberKindNames) && memberKindNames[k] != "" {
		return memberKindNames[k]
	}
	return "unknown"
}

// ParseMemberKind is the inverse of MemberKind.String.
func ParseMemberKind(s string) (MemberKind, error) {
	for k, name := range memberKindNames {
		if name != "" && name == s {
			return MemberKind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown member kind %q", s)
}

// StoreKind maps k to the entity kind it produces.
func (k MemberKind) StoreKind() store.Kind {
	switch k {
	case MemberMethod:
		return store.KindMethod
	case MemberField:
		return store.KindField
	case MemberFunction:
		return store.KindFunction
	case MemberVariable:
		return store.KindVariable
	}
	return 0
}

// MemberDeclared reports a method, field, free function or namespace-scope
// variable.
type MemberDeclared struct {
	Kind          MemberKind
	Name          string
	QualifiedName string
	// Owner is the qualified name of the owning type for methods and
	// fields.
	Owner     string
	Namespace string
	Access    store.Access

	Signature  string
	ReturnType string
	Params     []string
	// TypeName is the declared type of a field or variable.
	TypeName string
	Static   bool
	Virtual  bool

	Local           bool
	InternalLinkage bool

	Location store.Location
}

// Site says where in a declaration a type was used.
type Site uint8

const (
	SiteBase Site = iota + 1
	SiteParameter
	SiteReturn
	SiteField
	SiteLocal
	SiteBody
)

var siteNames = [...]string{
	SiteBase:      "base",
	SiteParameter: "parameter",
	SiteReturn:    "return",
	SiteField:     "field",
	SiteLocal:     "local",
	SiteBody:      "body",
}

func (s Site) String() string {
	if int(s) < len(siteNames) && siteNames[s] != "" {
		return siteNames[s]
	}
	return "unknown"
}

// ParseSite is the inverse of Site.String.
func ParseSite(s string) (Site, error) {
	for k, name := range siteNames {
		if name != "" && name == s {
			return Site(k), nil
		}
	}
	return 0, fmt.Errorf("unknown usage site %q", s)
}

// ScopeKind classifies one level of a usage's context chain.
type ScopeKind uint8

const (
	ScopeNamespace ScopeKind = iota + 1
	ScopeType
	ScopeMethod
	ScopeFunction
	ScopeLambda
)

var scopeKindNames = [...]string{
	ScopeNamespace: "namespace",
	ScopeType:      "type",
	ScopeMethod:    "method",
	ScopeFunction:  "function",
	ScopeLambda:    "lambda",
}

func (k ScopeKind) String() string {
	if int(k) < len(scopeKindNames) && scopeKindNames[k] != "" {
		return scopeKindNames[k]
	}
	return "unknown"
}

// ParseScopeKind is the inverse of ScopeKind.String.
func ParseScopeKind(s string) (ScopeKind, error) {
	for k, name := range scopeKindNames {
		if name != "" && name == s {
			return ScopeKind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown scope kind %q", s)
}

// Callable reports whether code inside a scope of kind k runs as a body.
func (k ScopeKind) Callable() bool {
	return k == ScopeMethod || k == ScopeFunction || k == ScopeLambda
}

// Scope is one level of the context chain. Name is the qualified name for
// namespaces, types, methods and functions, and empty for lambdas. Access
// is set for methods.
type Scope struct {
	Kind   ScopeKind
	Name   string
	Access store.Access
}

// UsageDiscovered reports a raw type spelling used somewhere in the unit.
// The extract package normalizes and classifies it.
type UsageDiscovered struct {
	Spelling string
	Site     Site
	// Access is the access of the declaring member for field, parameter
	// and return sites when it is not implied by Context.
	Access store.Access
	// Context lists enclosing scopes, outermost first.
	Context []Scope
	// TemplateParams names template parameters visible at the site.
	TemplateParams []string
	Location       store.Location
}

// RelationDiscovered reports a relation whose endpoints the producer has
// already resolved to qualified type names.
type RelationDiscovered struct {
	From     string
	To       string
	Kind     store.EdgeKind
	Location store.Location
}

// Diagnostic reports a problem found while producing events. It never
// aborts extraction.
type Diagnostic struct {
	Kind     store.DiagnosticKind
	Subject  string
	Message  string
	Location store.Location
}

func (FileDiscovered) event()     {}
func (IncludeDiscovered) event()  {}
func (TypeDeclared) event()       {}
func (MemberDeclared) event()     {}
func (UsageDiscovered) event()    {}
func (RelationDiscovered) event() {}
func (Diagnostic) event()         {}
