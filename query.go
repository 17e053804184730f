package strata

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/jward/strata/internal/rules"
	"github.com/jward/strata/internal/store"
)

// QueryBuilder provides a consumer-facing, read-only API over the model.
// Mutations go through the rule engine returned by Engine.Rules.
type QueryBuilder struct {
	store *store.Store
	rules *rules.Engine
}

// --- Common Types ---

// Pagination controls offset+limit paging on list results.
type Pagination struct {
	Offset int // skip this many results (default 0)
	Limit  int // max results to return (default 50, max 500)
}

const (
	defaultLimit = 50
	maxLimit     = 500
)

// normalize returns a Pagination with defaults applied and bounds enforced.
func (p Pagination) normalize() Pagination {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}

// SortField specifies how to order results.
type SortField string

const (
	SortByName          SortField = "name"
	SortByQualifiedName SortField = "qualified_name"
	SortByKind          SortField = "kind"
	SortByClients       SortField = "clients"
)

// SortOrder specifies ascending or descending.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// Sort controls result ordering.
type Sort struct {
	Field SortField
	Order SortOrder
}

// PagedResult wraps a page of results with total count for pagination.
type PagedResult[T any] struct {
	Items      []T
	TotalCount int // total matching results (before pagination)
}

// page slices items according to p.
func page[T any](items []T, p Pagination) *PagedResult[T] {
	p = p.normalize()
	res := &PagedResult[T]{TotalCount: len(items)}
	if p.Offset >= len(items) {
		res.Items = []T{}
		return res
	}
	end := min(p.Offset+p.Limit, len(items))
	res.Items = items[p.Offset:end]
	return res
}

// EntityResult is a snapshot of one entity.
type EntityResult struct {
	ID            UniqueID
	Kind          string
	Name          string
	QualifiedName string
	Parent        string // qualified name of the parent, empty at the top
	Units         []string
	Providers     int
	Clients       int
}

// entityResult reads uid, or returns nil when it does not exist.
func (q *QueryBuilder) entityResult(uid UniqueID) *EntityResult {
	ent := q.store.GetByID(uid)
	if ent == nil {
		return nil
	}
	var r EntityResult
	var parent UniqueID
	ent.WithRead(func(v store.View) {
		r = EntityResult{
			ID:            v.UID(),
			Kind:          v.UID().Kind.String(),
			Name:          v.Name(),
			QualifiedName: v.QualifiedName(),
			Units:         v.Units(),
			Providers:     v.ProviderCount(),
			Clients:       v.ClientCount(),
		}
		parent = v.Parent()
	})
	r.Parent = q.qualifiedName(parent)
	return &r
}

// qualifiedName returns the qualified name of uid, or "" if it is absent.
func (q *QueryBuilder) qualifiedName(uid UniqueID) string {
	if uid.IsZero() {
		return ""
	}
	if ent := q.store.GetByID(uid); ent != nil {
		return ent.QualifiedName()
	}
	return ""
}

// Entity looks an entity up by qualified name across all kinds. Returns nil
// with no error when nothing matches.
func (q *QueryBuilder) Entity(qualifiedName string) (*EntityResult, error) {
	ent := q.store.FindByQualifiedName(qualifiedName)
	if ent == nil {
		return nil, nil
	}
	return q.entityResult(ent.UID()), nil
}

// --- Diagnostics ---

// DiagnosticFilter specifies which diagnostics to include.
type DiagnosticFilter struct {
	Kinds      []string // match any of these kinds
	Unit       *string  // raised while analyzing this unit
	PathPrefix *string  // raised by units under this directory
}

// DiagnosticResult is one diagnostic entity.
type DiagnosticResult struct {
	Kind     string
	Subject  string
	Message  string
	Location string
	Units    []string
}

// Diagnostics lists the diagnostics raised by analysis, ordered by
// location then message.
func (q *QueryBuilder) Diagnostics(filter DiagnosticFilter, p Pagination) (*PagedResult[DiagnosticResult], error) {
	prefix := ""
	if filter.PathPrefix != nil {
		prefix = normalizePathPrefix(*filter.PathPrefix)
	}

	var out []DiagnosticResult
	for _, uid := range q.store.IDs(store.KindDiagnostic) {
		ent := q.store.GetByID(uid)
		if ent == nil {
			continue
		}
		var d store.DiagnosticDetails
		var units []string
		ent.WithRead(func(v store.View) {
			d, _ = v.Details().(store.DiagnosticDetails)
			units = v.Units()
		})
		if len(filter.Kinds) > 0 && !slices.Contains(filter.Kinds, string(d.Kind)) {
			continue
		}
		if filter.Unit != nil && !slices.Contains(units, *filter.Unit) {
			continue
		}
		if prefix != "" && !slices.ContainsFunc(units, func(u string) bool { return strings.HasPrefix(u, prefix) }) {
			continue
		}
		out = append(out, DiagnosticResult{
			Kind:     string(d.Kind),
			Subject:  d.Subject,
			Message:  d.Message,
			Location: d.Location.String(),
			Units:    units,
		})
	}
	slices.SortFunc(out, func(a, b DiagnosticResult) int {
		return cmp.Or(cmp.Compare(a.Location, b.Location), cmp.Compare(a.Message, b.Message), cmp.Compare(a.Subject, b.Subject))
	})
	return page(out, p), nil
}

// --- Types ---

// TypeFilter specifies which types to include.
type TypeFilter struct {
	Kinds      []string // class, struct, union, enum, alias
	Namespace  *string  // exact qualified name of the namespace
	Component  *string  // qualified name of the owning component
	NamePrefix *string  // qualified name prefix
}

// TypeResult extends EntityResult with the type payload.
type TypeResult struct {
	EntityResult
	TypeKind  string
	Access    string
	Namespace string
	Component string
	Location  string
}

// Types lists logical types.
func (q *QueryBuilder) Types(filter TypeFilter, s Sort, p Pagination) (*PagedResult[TypeResult], error) {
	var out []TypeResult
	for _, uid := range q.store.IDs(store.KindType) {
		base := q.entityResult(uid)
		if base == nil {
			continue
		}
		d, ok := q.store.GetByID(uid).Details().(store.TypeDetails)
		if !ok {
			return nil, fmt.Errorf("types: %s has no type payload", uid)
		}
		tr := TypeResult{
			EntityResult: *base,
			TypeKind:     d.TypeKind.String(),
			Access:       d.Access.String(),
			Namespace:    q.qualifiedName(d.Namespace),
			Component:    q.owningComponent(uid),
			Location:     d.Location.String(),
		}
		if len(filter.Kinds) > 0 && !slices.Contains(filter.Kinds, tr.TypeKind) {
			continue
		}
		if filter.Namespace != nil && tr.Namespace != *filter.Namespace {
			continue
		}
		if filter.Component != nil && tr.Component != *filter.Component {
			continue
		}
		if filter.NamePrefix != nil && !strings.HasPrefix(tr.QualifiedName, *filter.NamePrefix) {
			continue
		}
		out = append(out, tr)
	}

	slices.SortStableFunc(out, func(a, b TypeResult) int {
		var c int
		switch s.Field {
		case SortByName:
			c = cmp.Compare(a.Name, b.Name)
		case SortByKind:
			c = cmp.Compare(a.TypeKind, b.TypeKind)
		case SortByClients:
			c = cmp.Compare(a.Clients, b.Clients)
		}
		c = cmp.Or(c, cmp.Compare(a.QualifiedName, b.QualifiedName))
		if s.Order == Desc {
			return -c
		}
		return c
	})
	return page(out, p), nil
}

// owningComponent walks up the parent chain to the component holding uid.
func (q *QueryBuilder) owningComponent(uid UniqueID) string {
	for cur := uid; !cur.IsZero(); {
		if cur.Kind == store.KindComponent {
			return q.qualifiedName(cur)
		}
		ent := q.store.GetByID(cur)
		if ent == nil {
			return ""
		}
		cur = ent.Parent()
	}
	return ""
}

// normalizePathPrefix ensures a path prefix ends with "/" so that
// "groups/bsl" does not match "groups/bslx".
func normalizePathPrefix(prefix string) string {
	if prefix == "" {
		return ""
	}
	if !strings.HasSuffix(prefix, "/") {
		return prefix + "/"
	}
	return prefix
}
