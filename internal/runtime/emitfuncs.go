package runtime

import (
	"context"
	"fmt"

	"github.com/risor-io/risor/object"

	"github.com/jward/strata/internal/facts"
	"github.com/jward/strata/internal/store"
)

// emitter backs the emit_* host functions for one unit. Risor cannot build
// Go structs, so each function takes a map and builds the event Go-side.
type emitter struct {
	unit facts.Unit
	emit facts.Emit
	// err is the first error returned by emit. Once set, every later
	// emit_* call fails so the script unwinds.
	err error
}

func (e *emitter) globals() map[string]any {
	return map[string]any{
		"emit_type":       e.builtin("emit_type", e.typeDeclared),
		"emit_member":     e.builtin("emit_member", e.memberDeclared),
		"emit_usage":      e.builtin("emit_usage", e.usageDiscovered),
		"emit_include":    e.builtin("emit_include", e.includeDiscovered),
		"emit_relation":   e.builtin("emit_relation", e.relationDiscovered),
		"emit_diagnostic": e.builtin("emit_diagnostic", e.diagnostic),
	}
}

func (e *emitter) builtin(name string, build func(m map[string]object.Object) (facts.Event, error)) *object.Builtin {
	return object.NewBuiltin(name, func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError(name, 1, len(args))
		}
		if e.err != nil {
			return object.Errorf("%s: %v", name, e.err)
		}
		m, err := extractMap(args[0])
		if err != nil {
			return object.Errorf("%s: %v", name, err)
		}
		ev, err := build(m)
		if err != nil {
			return object.Errorf("%s: %v", name, err)
		}
		if err := e.emit(ev); err != nil {
			e.err = err
			return object.Errorf("%s: %v", name, err)
		}
		return object.Nil
	})
}

func (e *emitter) location(m map[string]object.Object) store.Location {
	return store.Location{File: e.unit.Path, Line: getInt(m, "line"), Column: getInt(m, "column")}
}

func (e *emitter) typeDeclared(m map[string]object.Object) (facts.Event, error) {
	name := getString(m, "name")
	if name == "" {
		return nil, fmt.Errorf("missing name")
	}
	kind, err := store.ParseTypeKind(getStringDefault(m, "kind", "class"))
	if err != nil {
		return nil, err
	}
	return facts.TypeDeclared{
		Kind:            kind,
		Name:            name,
		QualifiedName:   getStringDefault(m, "qualified_name", name),
		Parent:          getString(m, "parent"),
		Namespace:       getString(m, "namespace"),
		Access:          store.ParseAccess(getString(m, "access")),
		AliasOf:         getString(m, "alias_of"),
		TemplateParams:  getStringList(m, "template_params"),
		Anonymous:       getBool(m, "anonymous"),
		Local:           getBool(m, "local"),
		InternalLinkage: getBool(m, "internal_linkage"),
		Implicit:        getBool(m, "implicit"),
		Location:        e.location(m),
	}, nil
}

func (e *emitter) memberDeclared(m map[string]object.Object) (facts.Event, error) {
	name := getString(m, "name")
	if name == "" {
		return nil, fmt.Errorf("missing name")
	}
	kind, err := facts.ParseMemberKind(getString(m, "kind"))
	if err != nil {
		return nil, err
	}
	return facts.MemberDeclared{
		Kind:            kind,
		Name:            name,
		QualifiedName:   getStringDefault(m, "qualified_name", name),
		Owner:           getString(m, "owner"),
		Namespace:       getString(m, "namespace"),
		Access:          store.ParseAccess(getString(m, "access")),
		Signature:       getString(m, "signature"),
		ReturnType:      getString(m, "return_type"),
		Params:          getStringList(m, "params"),
		TypeName:        getString(m, "type_name"),
		Static:          getBool(m, "static"),
		Virtual:         getBool(m, "virtual"),
		Local:           getBool(m, "local"),
		InternalLinkage: getBool(m, "internal_linkage"),
		Location:        e.location(m),
	}, nil
}

func (e *emitter) usageDiscovered(m map[string]object.Object) (facts.Event, error) {
	spelling := getString(m, "spelling")
	if spelling == "" {
		return nil, fmt.Errorf("missing spelling")
	}
	site, err := facts.ParseSite(getString(m, "site"))
	if err != nil {
		return nil, err
	}
	var scopes []facts.Scope
	if v, ok := m["context"]; ok {
		list, ok := v.(*object.List)
		if !ok {
			return nil, fmt.Errorf("context must be a list, got %s", v.Type())
		}
		for _, item := range list.Value() {
			sm, err := extractMap(item)
			if err != nil {
				return nil, fmt.Errorf("context: %w", err)
			}
			kind, err := facts.ParseScopeKind(getString(sm, "kind"))
			if err != nil {
				return nil, fmt.Errorf("context: %w", err)
			}
			scopes = append(scopes, facts.Scope{
				Kind:   kind,
				Name:   getString(sm, "name"),
				Access: store.ParseAccess(getString(sm, "access")),
			})
		}
	}
	return facts.UsageDiscovered{
		Spelling:       spelling,
		Site:           site,
		Access:         store.ParseAccess(getString(m, "access")),
		Context:        scopes,
		TemplateParams: getStringList(m, "template_params"),
		Location:       e.location(m),
	}, nil
}

func (e *emitter) includeDiscovered(m map[string]object.Object) (facts.Event, error) {
	spelling := getString(m, "spelling")
	if spelling == "" {
		return nil, fmt.Errorf("missing spelling")
	}
	return facts.IncludeDiscovered{
		Spelling: spelling,
		System:   getBool(m, "system"),
		Location: e.location(m),
	}, nil
}

func (e *emitter) relationDiscovered(m map[string]object.Object) (facts.Event, error) {
	from, to := getString(m, "from"), getString(m, "to")
	if from == "" || to == "" {
		return nil, fmt.Errorf("relation needs from and to")
	}
	kind, err := store.ParseEdgeKind(getString(m, "kind"))
	if err != nil {
		return nil, err
	}
	if !kind.IsLogical() {
		return nil, fmt.Errorf("relation kind %s is not logical", kind)
	}
	return facts.RelationDiscovered{From: from, To: to, Kind: kind, Location: e.location(m)}, nil
}

func (e *emitter) diagnostic(m map[string]object.Object) (facts.Event, error) {
	return facts.Diagnostic{
		Kind:     store.DiagnosticKind(getStringDefault(m, "kind", string(store.DiagParserError))),
		Subject:  getStringDefault(m, "subject", e.unit.Path),
		Message:  getString(m, "message"),
		Location: e.location(m),
	}, nil
}

// --- map helpers ---

func extractMap(obj object.Object) (map[string]object.Object, error) {
	m, ok := obj.(*object.Map)
	if !ok {
		return nil, fmt.Errorf("expected map, got %s", obj.Type())
	}
	return m.Value(), nil
}

func getString(m map[string]object.Object, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	if s, ok := v.(*object.String); ok {
		return s.Value()
	}
	return ""
}

func getStringDefault(m map[string]object.Object, key, def string) string {
	v := getString(m, key)
	if v == "" {
		return def
	}
	return v
}

func getInt(m map[string]object.Object, key string) int {
	v, ok := m[key]
	if !ok {
		return 0
	}
	if i, ok := v.(*object.Int); ok {
		return int(i.Value())
	}
	if f, ok := v.(*object.Float); ok {
		return int(f.Value())
	}
	return 0
}

func getBool(m map[string]object.Object, key string) bool {
	v, ok := m[key]
	if !ok {
		return false
	}
	if b, ok := v.(*object.Bool); ok {
		return b.Value()
	}
	return false
}

// getStringList returns the string items of a list value, skipping
// anything that is not a string.
func getStringList(m map[string]object.Object, key string) []string {
	v, ok := m[key]
	if !ok {
		return nil
	}
	list, ok := v.(*object.List)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range list.Value() {
		if s, err := toString(item); err == nil {
			out = append(out, s)
		}
	}
	return out
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}
