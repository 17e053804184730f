package rules

import (
	"errors"
	"fmt"
)

// Validation failures. Every Engine operation that rejects a mutation
// returns an *Error whose Kind is one of these, so callers branch with
// errors.Is.
var (
	ErrInvalidEntity                       = errors.New("invalid entity")
	ErrInvalidName                         = errors.New("invalid name")
	ErrQualifiedNameAlreadyRegistered      = errors.New("qualified name already registered")
	ErrMissingParent                       = errors.New("missing parent")
	ErrCannotAddPackageToStandalonePackage = errors.New("cannot add a package to a standalone package")
	ErrCannotAddComponentToPkgGroup        = errors.New("cannot add a component to a package group")
	ErrBadParentType                       = errors.New("bad parent type")
	ErrCannotRemoveWithProviders           = errors.New("cannot remove an entity with providers")
	ErrCannotRemoveWithClients             = errors.New("cannot remove an entity with clients")
	ErrCannotRemoveWithChildren            = errors.New("cannot remove an entity with children")
	ErrInvalidParent                       = errors.New("invalid parent")
	ErrCyclicHierarchy                     = errors.New("parent is a descendant of the entity")
	ErrAlreadyChild                        = errors.New("entity is already a child of the parent")
	ErrSelfRelation                        = errors.New("self relation")
	ErrHierarchyLevelMismatch              = errors.New("hierarchy level mismatch")
	ErrInvalidType                         = errors.New("invalid dependency type")
	ErrAlreadyHaveDependency               = errors.New("dependency already exists")
	ErrMissingParentDependency             = errors.New("missing parent dependency")
	ErrInvalidRelation                     = errors.New("logical relations connect two types")
	ErrInvalidLakosRelationType            = errors.New("invalid lakos relation type")
	ErrComponentDependencyRequired         = errors.New("component dependency required")
	ErrParentDependencyRequired            = errors.New("parent dependency required")
	ErrInexistentRelation                  = errors.New("inexistent relation")
)

// Error is a rejected mutation. The store is unchanged when an Error is
// returned.
type Error struct {
	Op     string
	Kind   error
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("rules: %s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("rules: %s: %v: %s", e.Op, e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Kind }

func fail(op string, kind error, detail string) error {
	return &Error{Op: op, Kind: kind, Detail: detail}
}
