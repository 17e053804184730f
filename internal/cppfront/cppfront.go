// Package cppfront is a facts.Producer for C++ built on tree-sitter. It
// works on one file at a time without a preprocessor or semantic analysis:
// declarations are recognized syntactically, type usages are reported as
// spelled and left to the extract package to normalize and resolve.
package cppfront

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/cpp"

	"github.com/jward/strata/internal/facts"
	"github.com/jward/strata/internal/store"
)

// maxSyntaxErrors caps the parser diagnostics reported per unit.
const maxSyntaxErrors = 20

const anonymousNamespace = "(anonymous namespace)"

// Producer parses C++ units with tree-sitter.
type Producer struct{}

// New creates a Producer.
func New() *Producer { return &Producer{} }

var _ facts.Producer = (*Producer)(nil)

// Produce parses u.Content and emits its events.
func (p *Producer) Produce(ctx context.Context, u facts.Unit, emit facts.Emit) error {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(cpp.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, u.Content)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		return fmt.Errorf("parse %s: %w", u.Path, err)
	}
	defer tree.Close()

	w := &walker{ctx: ctx, src: u.Content, path: u.Path, emit: emit}
	w.send(facts.FileDiscovered{Path: u.Path, IsHeader: u.IsHeader})

	root := tree.RootNode()
	if root.HasError() {
		w.syntaxErrors(root)
	}
	w.declarations(root, store.AccessNone)
	return w.err
}

// walker carries the state of one Produce call.
type walker struct {
	ctx  context.Context
	src  []byte
	path string
	emit facts.Emit
	err  error

	// scopes is the context chain, outermost first.
	scopes  []facts.Scope
	tparams []string
	// anon is set inside an anonymous namespace.
	anon     bool
	reported int
}

func (w *walker) send(ev facts.Event) {
	if w.err != nil {
		return
	}
	w.err = w.emit(ev)
}

// stopped reports whether the walk must end, checking the context.
func (w *walker) stopped() bool {
	if w.err == nil {
		w.err = w.ctx.Err()
	}
	return w.err != nil
}

func (w *walker) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(w.src)
}

func (w *walker) loc(n *sitter.Node) store.Location {
	p := n.StartPoint()
	return store.Location{File: w.path, Line: int(p.Row) + 1, Column: int(p.Column) + 1}
}

func (w *walker) syntaxErrors(n *sitter.Node) {
	if w.reported >= maxSyntaxErrors {
		return
	}
	if n.IsMissing() || n.Type() == "ERROR" {
		msg := "syntax error"
		if n.IsMissing() {
			msg = "missing " + n.Type()
		}
		w.reported++
		w.send(facts.Diagnostic{Kind: store.DiagParserError, Subject: w.path, Message: msg, Location: w.loc(n)})
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c.HasError() || c.IsMissing() {
			w.syntaxErrors(c)
		}
	}
}

// ============================================================================
// Scopes
// ============================================================================

func (w *walker) push(s facts.Scope) { w.scopes = append(w.scopes, s) }
func (w *walker) pop()               { w.scopes = w.scopes[:len(w.scopes)-1] }

func (w *walker) context() []facts.Scope {
	return append([]facts.Scope(nil), w.scopes...)
}

func (w *walker) templateParams() []string {
	if len(w.tparams) == 0 {
		return nil
	}
	return append([]string(nil), w.tparams...)
}

// scopeName is the qualified name new declarations are nested in.
func (w *walker) scopeName() string {
	for i := len(w.scopes) - 1; i >= 0; i-- {
		if k := w.scopes[i].Kind; k == facts.ScopeType || k == facts.ScopeNamespace {
			return w.scopes[i].Name
		}
	}
	return ""
}

func (w *walker) namespace() string {
	for i := len(w.scopes) - 1; i >= 0; i-- {
		if w.scopes[i].Kind == facts.ScopeNamespace {
			return w.scopes[i].Name
		}
	}
	return ""
}

// enclosingType returns the type whose member list is being walked.
func (w *walker) enclosingType() string {
	if n := len(w.scopes); n > 0 && w.scopes[n-1].Kind == facts.ScopeType {
		return w.scopes[n-1].Name
	}
	return ""
}

func (w *walker) inCallable() bool {
	for _, s := range w.scopes {
		if s.Kind.Callable() {
			return true
		}
	}
	return false
}

func join(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + "::" + name
}

func (w *walker) usage(spelling string, site facts.Site, access store.Access, n *sitter.Node) {
	if spelling == "" {
		return
	}
	w.send(facts.UsageDiscovered{
		Spelling:       spelling,
		Site:           site,
		Access:         access,
		Context:        w.context(),
		TemplateParams: w.templateParams(),
		Location:       w.loc(n),
	})
}

// ============================================================================
// Declarations
// ============================================================================

// declarations walks the children of a translation unit, namespace body or
// class body. access is the current member access inside a class body.
func (w *walker) declarations(n *sitter.Node, access store.Access) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if w.stopped() {
			return
		}
		c := n.NamedChild(i)
		if c.Type() == "access_specifier" {
			access = store.ParseAccess(strings.TrimSpace(w.text(c)))
			continue
		}
		w.declaration(c, access)
	}
}

func (w *walker) declaration(n *sitter.Node, access store.Access) {
	switch n.Type() {
	case "preproc_include":
		w.include(n)
	case "preproc_ifdef", "preproc_if", "preproc_else", "preproc_elif", "declaration_list":
		w.declarations(n, access)
	case "namespace_definition":
		w.namespaceDefinition(n)
	case "linkage_specification":
		if body := n.ChildByFieldName("body"); body != nil {
			if body.Type() == "declaration_list" {
				w.declarations(body, access)
			} else {
				w.declaration(body, access)
			}
		}
	case "class_specifier", "struct_specifier", "union_specifier", "enum_specifier":
		w.typeSpecifier(n, access)
	case "template_declaration":
		w.templateDeclaration(n, access)
	case "alias_declaration":
		w.aliasDeclaration(n, access)
	case "type_definition":
		w.typeDefinition(n, access)
	case "function_definition":
		w.functionDefinition(n, access)
	case "field_declaration":
		w.fieldDeclaration(n, access)
	case "declaration":
		w.plainDeclaration(n, access)
	}
}

func (w *walker) include(n *sitter.Node) {
	path := n.ChildByFieldName("path")
	if path == nil {
		return
	}
	spelled := strings.TrimSpace(w.text(path))
	switch path.Type() {
	case "system_lib_string":
		w.send(facts.IncludeDiscovered{Spelling: strings.Trim(spelled, "<>"), System: true, Location: w.loc(n)})
	case "string_literal":
		w.send(facts.IncludeDiscovered{Spelling: strings.Trim(spelled, `"`), Location: w.loc(n)})
	}
}

func (w *walker) namespaceDefinition(n *sitter.Node) {
	name := strings.ReplaceAll(w.text(n.ChildByFieldName("name")), " ", "")
	wasAnon := w.anon
	if name == "" {
		name = anonymousNamespace
		w.anon = true
	}
	w.push(facts.Scope{Kind: facts.ScopeNamespace, Name: join(w.namespace(), name)})
	if body := n.ChildByFieldName("body"); body != nil {
		w.declarations(body, store.AccessNone)
	}
	w.pop()
	w.anon = wasAnon
}

func (w *walker) templateDeclaration(n *sitter.Node, access store.Access) {
	mark := len(w.tparams)
	if params := n.ChildByFieldName("parameters"); params != nil {
		for i := 0; i < int(params.NamedChildCount()); i++ {
			if name := w.templateParamName(params.NamedChild(i)); name != "" {
				w.tparams = append(w.tparams, name)
			}
		}
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "template_parameter_list" {
			continue
		}
		w.declaration(c, access)
	}
	w.tparams = w.tparams[:mark]
}

func (w *walker) templateParamName(p *sitter.Node) string {
	switch p.Type() {
	case "type_parameter_declaration", "variadic_type_parameter_declaration":
		for i := 0; i < int(p.NamedChildCount()); i++ {
			if c := p.NamedChild(i); c.Type() == "type_identifier" {
				return w.text(c)
			}
		}
	case "optional_type_parameter_declaration", "template_template_parameter_declaration":
		if name := p.ChildByFieldName("name"); name != nil {
			return w.text(name)
		}
		for i := 0; i < int(p.NamedChildCount()); i++ {
			if c := p.NamedChild(i); c.Type() == "type_identifier" {
				return w.text(c)
			}
		}
	case "parameter_declaration", "optional_parameter_declaration", "variadic_parameter_declaration":
		return declaratorName(p.ChildByFieldName("declarator"), w.src)
	}
	return ""
}

// ============================================================================
// Types
// ============================================================================

var typeKinds = map[string]store.TypeKind{
	"class_specifier":  store.TypeClass,
	"struct_specifier": store.TypeStruct,
	"union_specifier":  store.TypeUnion,
	"enum_specifier":   store.TypeEnum,
}

// typeSpecifier handles a class, struct, union or enum. Only definitions
// are reported; forward declarations and elaborated uses are not.
func (w *walker) typeSpecifier(n *sitter.Node, access store.Access) {
	body := n.ChildByFieldName("body")
	if body == nil {
		return
	}
	kind := typeKinds[n.Type()]

	spelled := strings.TrimSpace(w.text(n.ChildByFieldName("name")))
	if i := strings.IndexByte(spelled, '<'); i >= 0 {
		// An explicit specialization merges with its primary template.
		spelled = strings.TrimSpace(spelled[:i])
	}
	name := spelled
	if i := strings.LastIndex(spelled, "::"); i >= 0 {
		name = spelled[i+2:]
	}
	qn := ""
	if spelled != "" {
		qn = join(w.scopeName(), strings.TrimPrefix(spelled, "::"))
	}

	w.send(facts.TypeDeclared{
		Kind:            kind,
		Name:            name,
		QualifiedName:   qn,
		Parent:          w.enclosingType(),
		Namespace:       w.namespace(),
		Access:          access,
		TemplateParams:  w.templateParams(),
		Anonymous:       spelled == "",
		Local:           w.inCallable(),
		InternalLinkage: w.anon,
		Location:        w.loc(n),
	})
	if spelled == "" || kind == store.TypeEnum {
		return
	}

	w.push(facts.Scope{Kind: facts.ScopeType, Name: qn})
	defer w.pop()

	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == "base_class_clause" {
			w.baseClause(c)
		}
	}
	memberAccess := store.AccessPublic
	if kind == store.TypeClass {
		memberAccess = store.AccessPrivate
	}
	w.declarations(body, memberAccess)
}

func (w *walker) baseClause(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "type_identifier", "qualified_identifier", "template_type":
			w.usage(w.text(c), facts.SiteBase, store.AccessNone, c)
		}
	}
}

func (w *walker) aliasDeclaration(n *sitter.Node, access store.Access) {
	name := w.text(n.ChildByFieldName("name"))
	w.alias(n, name, w.text(n.ChildByFieldName("type")), access)
}

func (w *walker) typeDefinition(n *sitter.Node, access store.Access) {
	typ := n.ChildByFieldName("type")
	if typ == nil {
		return
	}
	if _, ok := typeKinds[typ.Type()]; ok {
		w.typeSpecifier(typ, access)
	}
	aliased := w.text(typ)
	if typ.ChildByFieldName("body") != nil {
		aliased = w.text(typ.ChildByFieldName("name"))
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.FieldNameForChild(i) != "declarator" {
			continue
		}
		w.alias(n, declaratorName(n.Child(i), w.src), aliased, access)
	}
}

func (w *walker) alias(n *sitter.Node, name, aliased string, access store.Access) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	w.send(facts.TypeDeclared{
		Kind:            store.TypeAlias,
		Name:            name,
		QualifiedName:   join(w.scopeName(), name),
		Parent:          w.enclosingType(),
		Namespace:       w.namespace(),
		Access:          access,
		AliasOf:         strings.TrimSpace(aliased),
		TemplateParams:  w.templateParams(),
		Local:           w.inCallable(),
		InternalLinkage: w.anon,
		Location:        w.loc(n),
	})
}

// ============================================================================
// Members and functions
// ============================================================================

func (w *walker) fieldDeclaration(n *sitter.Node, access store.Access) {
	typ := n.ChildByFieldName("type")
	if typ != nil {
		if _, ok := typeKinds[typ.Type()]; ok && typ.ChildByFieldName("body") != nil {
			w.typeSpecifier(typ, access)
		}
	}
	owner := w.enclosingType()
	static := hasChild(n, w.src, "storage_class_specifier", "static")
	virtual := hasChild(n, w.src, "virtual", "virtual") || hasChild(n, w.src, "virtual_function_specifier", "virtual")

	for i := 0; i < int(n.ChildCount()); i++ {
		if n.FieldNameForChild(i) != "declarator" {
			continue
		}
		decl := n.Child(i)
		if fn := functionDeclarator(decl); fn != nil {
			w.method(n, fn, typ, owner, access, static, virtual)
			continue
		}
		name := declaratorName(decl, w.src)
		if name == "" || owner == "" {
			continue
		}
		typeName := w.typeSpelling(typ)
		w.send(facts.MemberDeclared{
			Kind:          facts.MemberField,
			Name:          name,
			QualifiedName: join(owner, name),
			Owner:         owner,
			Namespace:     w.namespace(),
			Access:        access,
			TypeName:      typeName,
			Static:        static,
			Local:         w.inCallable(),
			Location:      w.loc(decl),
		})
		w.usage(typeName, facts.SiteField, access, typ)
	}
}

// method reports a member function declared or defined in a class body.
func (w *walker) method(n, fn, typ *sitter.Node, owner string, access store.Access, static, virtual bool) {
	name := declaratorName(fn.ChildByFieldName("declarator"), w.src)
	if name == "" || owner == "" {
		return
	}
	qn := join(owner, name)
	params := w.paramTypes(fn)
	w.send(facts.MemberDeclared{
		Kind:          facts.MemberMethod,
		Name:          name,
		QualifiedName: qn,
		Owner:         owner,
		Namespace:     w.namespace(),
		Access:        access,
		Signature:     strings.TrimSpace(w.text(fn)),
		ReturnType:    w.typeSpelling(typ),
		Params:        params,
		Static:        static,
		Virtual:       virtual,
		Local:         w.inCallable(),
		Location:      w.loc(fn),
	})

	w.push(facts.Scope{Kind: facts.ScopeMethod, Name: qn, Access: access})
	w.signature(fn, typ, access)
	if body := n.ChildByFieldName("body"); body != nil && n.Type() == "function_definition" {
		w.body(body)
	}
	w.pop()
}

func (w *walker) functionDefinition(n *sitter.Node, access store.Access) {
	fn := functionDeclarator(n.ChildByFieldName("declarator"))
	if fn == nil {
		return
	}
	typ := n.ChildByFieldName("type")

	if owner := w.enclosingType(); owner != "" {
		static := hasChild(n, w.src, "storage_class_specifier", "static")
		virtual := hasChild(n, w.src, "virtual", "virtual") || hasChild(n, w.src, "virtual_function_specifier", "virtual")
		w.method(n, fn, typ, owner, access, static, virtual)
		return
	}

	name := declaratorName(fn.ChildByFieldName("declarator"), w.src)
	if name == "" {
		return
	}
	if i := strings.LastIndex(name, "::"); i >= 0 {
		w.outOfLineMethod(n, strings.TrimPrefix(name[:i], "::"), name[i+2:])
		return
	}
	w.freeFunction(n, fn, typ, name, true)
}

// outOfLineMethod walks the body of "R Owner::name(...) { ... }". The
// declaration inside the class already reported the signature.
func (w *walker) outOfLineMethod(n *sitter.Node, owner, name string) {
	body := n.ChildByFieldName("body")
	if body == nil {
		return
	}
	if i := strings.IndexByte(owner, '<'); i >= 0 {
		owner = owner[:i]
	}
	ownerQN := join(w.namespace(), owner)
	depth := len(w.scopes)
	w.push(facts.Scope{Kind: facts.ScopeType, Name: ownerQN})
	w.push(facts.Scope{Kind: facts.ScopeMethod, Name: join(ownerQN, name)})
	w.body(body)
	w.scopes = w.scopes[:depth]
}

func (w *walker) freeFunction(n, fn, typ *sitter.Node, name string, definition bool) {
	qn := join(w.namespace(), name)
	static := hasChild(n, w.src, "storage_class_specifier", "static")
	w.send(facts.MemberDeclared{
		Kind:            facts.MemberFunction,
		Name:            name,
		QualifiedName:   qn,
		Namespace:       w.namespace(),
		Signature:       strings.TrimSpace(w.text(fn)),
		ReturnType:      w.typeSpelling(typ),
		Params:          w.paramTypes(fn),
		Static:          static,
		Local:           w.inCallable(),
		InternalLinkage: w.anon || static,
		Location:        w.loc(fn),
	})

	w.push(facts.Scope{Kind: facts.ScopeFunction, Name: qn})
	w.signature(fn, typ, store.AccessNone)
	if body := n.ChildByFieldName("body"); definition && body != nil {
		w.body(body)
	}
	w.pop()
}

// plainDeclaration handles a namespace-scope declaration: function
// prototypes, variables and type definitions followed by declarators.
func (w *walker) plainDeclaration(n *sitter.Node, access store.Access) {
	if w.enclosingType() != "" {
		// Constructors and friends inside a class body parse as plain
		// declarations.
		if !hasChild(n, w.src, "friend", "friend") {
			w.fieldDeclaration(n, access)
		}
		return
	}
	typ := n.ChildByFieldName("type")
	if typ != nil {
		if _, ok := typeKinds[typ.Type()]; ok && typ.ChildByFieldName("body") != nil {
			w.typeSpecifier(typ, access)
		}
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.FieldNameForChild(i) != "declarator" {
			continue
		}
		decl := n.Child(i)
		if fn := functionDeclarator(decl); fn != nil {
			name := declaratorName(fn.ChildByFieldName("declarator"), w.src)
			if name != "" && !strings.Contains(name, "::") {
				w.freeFunction(n, fn, typ, name, false)
			}
			continue
		}
		name := declaratorName(decl, w.src)
		if name == "" || strings.Contains(name, "::") {
			continue
		}
		static := hasChild(n, w.src, "storage_class_specifier", "static")
		w.send(facts.MemberDeclared{
			Kind:            facts.MemberVariable,
			Name:            name,
			QualifiedName:   join(w.namespace(), name),
			Namespace:       w.namespace(),
			TypeName:        w.typeSpelling(typ),
			Static:          static,
			InternalLinkage: w.anon || static,
			Location:        w.loc(decl),
		})
	}
}

// signature reports the parameter and return types of fn.
func (w *walker) signature(fn, typ *sitter.Node, access store.Access) {
	if typ != nil {
		w.usage(w.typeSpelling(typ), facts.SiteReturn, access, typ)
	}
	params := fn.ChildByFieldName("parameters")
	if params == nil {
		return
	}
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		if pt := p.ChildByFieldName("type"); pt != nil {
			w.usage(w.typeSpelling(pt), facts.SiteParameter, access, pt)
		}
	}
}

func (w *walker) paramTypes(fn *sitter.Node) []string {
	params := fn.ChildByFieldName("parameters")
	if params == nil {
		return nil
	}
	var out []string
	for i := 0; i < int(params.NamedChildCount()); i++ {
		if pt := params.NamedChild(i).ChildByFieldName("type"); pt != nil {
			out = append(out, w.typeSpelling(pt))
		}
	}
	return out
}

// typeSpelling is the spelled type of a declaration. For an inline
// definition it is the defined type's name.
func (w *walker) typeSpelling(typ *sitter.Node) string {
	if typ == nil {
		return ""
	}
	if typ.ChildByFieldName("body") != nil {
		return strings.TrimSpace(w.text(typ.ChildByFieldName("name")))
	}
	return strings.TrimSpace(w.text(typ))
}

// ============================================================================
// Bodies
// ============================================================================

// body reports the types used inside a function body: local variable
// types, new-expressions, casts and explicit template arguments.
func (w *walker) body(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if w.stopped() {
			return
		}
		c := n.NamedChild(i)
		switch c.Type() {
		case "declaration":
			typ := c.ChildByFieldName("type")
			if typ != nil {
				if _, ok := typeKinds[typ.Type()]; ok && typ.ChildByFieldName("body") != nil {
					w.typeSpecifier(typ, store.AccessNone)
				} else {
					w.usage(w.typeSpelling(typ), facts.SiteLocal, store.AccessNone, typ)
				}
			}
			for j := 0; j < int(c.ChildCount()); j++ {
				if c.FieldNameForChild(j) == "declarator" {
					w.body(c.Child(j))
				}
			}
		case "class_specifier", "struct_specifier", "union_specifier", "enum_specifier":
			w.typeSpecifier(c, store.AccessNone)
		case "alias_declaration", "type_definition":
			w.declaration(c, store.AccessNone)
		case "parameter_declaration", "optional_parameter_declaration":
			if typ := c.ChildByFieldName("type"); typ != nil {
				w.usage(w.typeSpelling(typ), facts.SiteLocal, store.AccessNone, typ)
			}
		case "new_expression":
			if typ := c.ChildByFieldName("type"); typ != nil {
				w.usage(w.text(typ), facts.SiteBody, store.AccessNone, typ)
			}
			if args := c.ChildByFieldName("arguments"); args != nil {
				w.body(args)
			}
		case "type_descriptor":
			w.usage(w.text(c), facts.SiteBody, store.AccessNone, c)
		case "lambda_expression":
			w.push(facts.Scope{Kind: facts.ScopeLambda})
			w.body(c)
			w.pop()
		default:
			w.body(c)
		}
	}
}

// ============================================================================
// Declarators
// ============================================================================

// functionDeclarator finds the function_declarator inside a declarator,
// looking through pointer and reference wrappers. A parenthesized inner
// declarator means a function pointer, which is not a function.
func functionDeclarator(n *sitter.Node) *sitter.Node {
	for depth := 0; n != nil && depth < 8; depth++ {
		switch n.Type() {
		case "function_declarator":
			if d := n.ChildByFieldName("declarator"); d != nil && d.Type() == "parenthesized_declarator" {
				return nil
			}
			return n
		case "pointer_declarator", "reference_declarator", "attributed_declarator":
			n = innerDeclarator(n)
		default:
			return nil
		}
	}
	return nil
}

func innerDeclarator(n *sitter.Node) *sitter.Node {
	if d := n.ChildByFieldName("declarator"); d != nil {
		return d
	}
	for i := int(n.NamedChildCount()) - 1; i >= 0; i-- {
		c := n.NamedChild(i)
		if strings.HasSuffix(c.Type(), "declarator") || strings.HasSuffix(c.Type(), "identifier") {
			return c
		}
	}
	return nil
}

// declaratorName returns the declared name, qualified if spelled so.
func declaratorName(n *sitter.Node, src []byte) string {
	for depth := 0; n != nil && depth < 8; depth++ {
		switch n.Type() {
		case "identifier", "field_identifier", "type_identifier", "qualified_identifier",
			"destructor_name", "operator_name", "namespace_identifier":
			return strings.TrimSpace(n.Content(src))
		case "template_function":
			if name := n.ChildByFieldName("name"); name != nil {
				return strings.TrimSpace(name.Content(src))
			}
			return ""
		}
		n = innerDeclarator(n)
	}
	return ""
}

func hasChild(n *sitter.Node, src []byte, typ, text string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.Type() == typ && strings.TrimSpace(c.Content(src)) == text {
			return true
		}
	}
	return false
}
