package runtime

import (
	"context"
	"log/slog"
	"sync"
	"unsafe"

	"github.com/risor-io/risor/object"
	sitter "github.com/smacker/go-tree-sitter"
)

// parsedTree is what a script run remembers about one parse_src call.
type parsedTree struct {
	src  []byte
	lang *sitter.Language
}

// treeIndex maps the root node of every tree parsed during one script run
// to its source and grammar. go-tree-sitter has no Node.Tree(), so lookups
// walk Parent() up to the root.
type treeIndex struct {
	mu    sync.RWMutex
	trees map[uintptr]parsedTree
}

func newTreeIndex() *treeIndex {
	return &treeIndex{trees: make(map[uintptr]parsedTree)}
}

func (ti *treeIndex) register(tree *sitter.Tree, src []byte, lang *sitter.Language) {
	key := uintptr(unsafe.Pointer(tree.RootNode()))
	ti.mu.Lock()
	ti.trees[key] = parsedTree{src: src, lang: lang}
	ti.mu.Unlock()
}

func (ti *treeIndex) lookup(node *sitter.Node) (parsedTree, bool) {
	for node.Parent() != nil {
		node = node.Parent()
	}
	ti.mu.RLock()
	pt, ok := ti.trees[uintptr(unsafe.Pointer(node))]
	ti.mu.RUnlock()
	return pt, ok
}

func (ti *treeIndex) source(node *sitter.Node) ([]byte, bool) {
	pt, ok := ti.lookup(node)
	return pt.src, ok
}

// nodeArg unwraps a proxied *sitter.Node argument of builtin fn.
func nodeArg(fn string, arg object.Object) (*sitter.Node, *object.Error) {
	proxy, ok := arg.(*object.Proxy)
	if !ok {
		return nil, object.Errorf("%s: expected proxy (Node), got %s", fn, arg.Type())
	}
	node, ok := proxy.Interface().(*sitter.Node)
	if !ok || node == nil {
		return nil, object.Errorf("%s: expected *sitter.Node, got %T", fn, proxy.Interface())
	}
	return node, nil
}

func stringArg(fn, what string, arg object.Object) (string, *object.Error) {
	s, ok := arg.(*object.String)
	if !ok {
		return "", object.Errorf("%s: %s must be a string, got %s", fn, what, arg.Type())
	}
	return s.Value(), nil
}

// proxyNode wraps node for the script, mapping a Go nil to Risor nil.
func proxyNode(fn string, node *sitter.Node) object.Object {
	if node == nil {
		return object.Nil
	}
	p, err := object.NewProxy(node)
	if err != nil {
		return object.Errorf("%s: proxy error: %v", fn, err)
	}
	return p
}

// makeParseSrcFn creates "parse_src". The producer hands every unit's
// content to the script, so there is no file-reading variant.
//
// parse_src(source, language) → *sitter.Tree
func makeParseSrcFn(ti *treeIndex) *object.Builtin {
	return object.NewBuiltin("parse_src", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("parse_src", 2, len(args))
		}
		src, errObj := stringArg("parse_src", "source", args[0])
		if errObj != nil {
			return errObj
		}
		langName, errObj := stringArg("parse_src", "language", args[1])
		if errObj != nil {
			return errObj
		}

		lang, found := ParserForLanguage(langName)
		if !found {
			return object.Errorf("parse_src: unsupported language %q", langName)
		}
		parser := sitter.NewParser()
		defer parser.Close()
		parser.SetLanguage(lang)

		tree, err := parser.ParseCtx(ctx, nil, []byte(src))
		if err != nil {
			return object.Errorf("parse_src: tree-sitter parse failed: %v", err)
		}
		ti.register(tree, []byte(src), lang)

		proxy, err := object.NewProxy(tree)
		if err != nil {
			return object.Errorf("parse_src: proxy error: %v", err)
		}
		return proxy
	})
}

// makeNodeTextFn creates "node_text". Risor's proxies cannot pass a
// []byte to node.Content, so the source comes from the tree index.
//
// node_text(node) → string
func makeNodeTextFn(ti *treeIndex) *object.Builtin {
	return object.NewBuiltin("node_text", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("node_text", 1, len(args))
		}
		node, errObj := nodeArg("node_text", args[0])
		if errObj != nil {
			return errObj
		}
		src, found := ti.source(node)
		if !found {
			return object.Errorf("node_text: no source found for node's tree")
		}
		return object.NewString(node.Content(src))
	})
}

// makeQueryFn creates "query".
//
// query(pattern, node) → []map[string]Node
func makeQueryFn(ti *treeIndex) *object.Builtin {
	return object.NewBuiltin("query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("query", 2, len(args))
		}
		pattern, errObj := stringArg("query", "pattern", args[0])
		if errObj != nil {
			return errObj
		}
		node, errObj := nodeArg("query", args[1])
		if errObj != nil {
			return errObj
		}
		pt, found := ti.lookup(node)
		if !found {
			return object.Errorf("query: no tree found for node")
		}

		q, err := sitter.NewQuery([]byte(pattern), pt.lang)
		if err != nil {
			return object.Errorf("query: invalid pattern: %v", err)
		}
		defer q.Close()

		cursor := sitter.NewQueryCursor()
		defer cursor.Close()
		cursor.Exec(q, node)

		results := []object.Object{}
		for {
			match, ok := cursor.NextMatch()
			if !ok {
				break
			}
			match = cursor.FilterPredicates(match, pt.src)

			captures := make(map[string]object.Object, len(match.Captures))
			for _, c := range match.Captures {
				name := q.CaptureNameForId(c.Index)
				p, err := object.NewProxy(c.Node)
				if err != nil {
					return object.Errorf("query: proxy error for capture %q: %v", name, err)
				}
				captures[name] = p
			}
			results = append(results, object.NewMap(captures))
		}
		return object.NewList(results)
	})
}

// makeNodeChildFn creates "node_child", ChildByFieldName returning Risor
// nil for a missing field.
//
// node_child(node, field) → Node or nil
func makeNodeChildFn() *object.Builtin {
	return object.NewBuiltin("node_child", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("node_child", 2, len(args))
		}
		node, errObj := nodeArg("node_child", args[0])
		if errObj != nil {
			return errObj
		}
		field, errObj := stringArg("node_child", "field", args[1])
		if errObj != nil {
			return errObj
		}
		return proxyNode("node_child", node.ChildByFieldName(field))
	})
}

// makeNamedChildrenFn creates "named_children". With a type argument only
// children of that type are returned.
//
// named_children(node[, type]) → []Node
func makeNamedChildrenFn() *object.Builtin {
	return object.NewBuiltin("named_children", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 || len(args) > 2 {
			return object.Errorf("named_children: expected 1 or 2 arguments, got %d", len(args))
		}
		node, errObj := nodeArg("named_children", args[0])
		if errObj != nil {
			return errObj
		}
		typ := ""
		if len(args) == 2 {
			if typ, errObj = stringArg("named_children", "type", args[1]); errObj != nil {
				return errObj
			}
		}

		out := []object.Object{}
		for i := 0; i < int(node.NamedChildCount()); i++ {
			c := node.NamedChild(i)
			if typ != "" && c.Type() != typ {
				continue
			}
			out = append(out, proxyNode("named_children", c))
		}
		return object.NewList(out)
	})
}

// makeHasTokenFn creates "has_token", which reports a direct child of the
// given node type whose text is text: specifiers such as static or
// virtual.
//
// has_token(node, type, text) → bool
func makeHasTokenFn(ti *treeIndex) *object.Builtin {
	return object.NewBuiltin("has_token", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 3 {
			return object.NewArgsError("has_token", 3, len(args))
		}
		node, errObj := nodeArg("has_token", args[0])
		if errObj != nil {
			return errObj
		}
		typ, errObj := stringArg("has_token", "type", args[1])
		if errObj != nil {
			return errObj
		}
		text, errObj := stringArg("has_token", "text", args[2])
		if errObj != nil {
			return errObj
		}
		src, found := ti.source(node)
		if !found {
			return object.Errorf("has_token: no source found for node's tree")
		}
		for i := 0; i < int(node.ChildCount()); i++ {
			if c := node.Child(i); c.Type() == typ && c.Content(src) == text {
				return object.NewBool(true)
			}
		}
		return object.NewBool(false)
	})
}

// makeUnwrapDeclaratorFn creates "unwrap_declarator", which strips the
// pointer and reference declarators around a declared name or function
// declarator. nil passes through.
//
// unwrap_declarator(node) → Node or nil
func makeUnwrapDeclaratorFn() *object.Builtin {
	return object.NewBuiltin("unwrap_declarator", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("unwrap_declarator", 1, len(args))
		}
		if args[0] == object.Nil {
			return object.Nil
		}
		node, errObj := nodeArg("unwrap_declarator", args[0])
		if errObj != nil {
			return errObj
		}
		// reference_declarator has no declarator field; the wrapped
		// declarator is the last named child of both forms.
		for node != nil && (node.Type() == "pointer_declarator" || node.Type() == "reference_declarator") {
			n := int(node.NamedChildCount())
			if n == 0 {
				return object.Nil
			}
			node = node.NamedChild(n - 1)
		}
		return proxyNode("unwrap_declarator", node)
	})
}

// logObject provides log.info/warn/error methods for Risor scripts.
type logObject struct {
	logger *slog.Logger
}

func (l *logObject) Info(msg string) {
	l.logger.Info(msg)
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn(msg)
}

func (l *logObject) Error(msg string) {
	l.logger.Error(msg)
}
