package extract

import (
	"fmt"
	"slices"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of spellings a Normalizer remembers.
const DefaultCacheSize = 4096

// Normalizer reduces a type spelling to the named types it mentions.
// Qualifiers, pointers, references, array extents and elaborated-type
// keywords are dropped; template arguments are walked recursively, so
// "const std::map<Key, Value*>&" yields std::map, Key and Value. Builtin
// types and template parameters in scope are dropped. A leading "::" is
// kept so that name resolution can restrict the lookup to the global
// namespace.
//
// A Normalizer is safe for concurrent use.
type Normalizer struct {
	cache *lru.Cache[string, []string]
}

// NewNormalizer creates a Normalizer caching up to size results.
func NewNormalizer(size int) (*Normalizer, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[string, []string](size)
	if err != nil {
		return nil, fmt.Errorf("normalizer cache: %w", err)
	}
	return &Normalizer{cache: c}, nil
}

// Names returns the named types in spelling, outermost first, without
// duplicates.
func (n *Normalizer) Names(spelling string, templateParams []string) []string {
	key := spelling
	if len(templateParams) > 0 {
		key += "\x00" + strings.Join(templateParams, ",")
	}
	if names, ok := n.cache.Get(key); ok {
		return append([]string(nil), names...)
	}

	p := &typeParser{toks: tokenize(spelling), seen: make(map[string]bool)}
	if len(templateParams) > 0 {
		p.params = make(map[string]bool, len(templateParams))
		for _, tp := range templateParams {
			p.params[tp] = true
		}
	}
	for p.pos < len(p.toks) {
		p.parseSeq()
		// Stray closers at the top level are skipped.
		if p.pos < len(p.toks) {
			p.pos++
		}
	}

	n.cache.Add(key, p.out)
	return append([]string(nil), p.out...)
}

// Len reports how many spellings are cached.
func (n *Normalizer) Len() int { return n.cache.Len() }

type tokKind uint8

const (
	tokIdent tokKind = iota + 1
	tokNumber
	tokScope
	tokPunct
)

type token struct {
	kind tokKind
	text string
}

func tokenize(s string) []token {
	var toks []token
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case isIdentStart(c):
			j := i + 1
			for j < len(s) && isIdentChar(s[j]) {
				j++
			}
			toks = append(toks, token{kind: tokIdent, text: s[i:j]})
			i = j
		case c >= '0' && c <= '9':
			j := i + 1
			for j < len(s) && (isIdentChar(s[j]) || s[j] == '.') {
				j++
			}
			toks = append(toks, token{kind: tokNumber, text: s[i:j]})
			i = j
		case c == ':' && i+1 < len(s) && s[i+1] == ':':
			toks = append(toks, token{kind: tokScope, text: "::"})
			i += 2
		default:
			toks = append(toks, token{kind: tokPunct, text: s[i : i+1]})
			i++
		}
	}
	return toks
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

type typeParser struct {
	toks   []token
	pos    int
	params map[string]bool
	seen   map[string]bool
	out    []string
}

func (p *typeParser) peek() (token, bool) {
	if p.pos < len(p.toks) {
		return p.toks[p.pos], true
	}
	return token{}, false
}

func (p *typeParser) peekPunct(s string) bool {
	t, ok := p.peek()
	return ok && t.kind == tokPunct && t.text == s
}

// parseSeq consumes tokens until an unmatched closer or the end.
func (p *typeParser) parseSeq() {
	for {
		t, ok := p.peek()
		if !ok {
			return
		}
		switch {
		case t.kind == tokIdent || t.kind == tokScope:
			p.parseName()
		case t.kind == tokPunct && (t.text == "<" || t.text == "(" || t.text == "["):
			p.pos++
			p.parseSeq()
			p.closeGroup()
		case t.kind == tokPunct && (t.text == ">" || t.text == ")" || t.text == "]"):
			return
		default:
			p.pos++
		}
	}
}

func (p *typeParser) closeGroup() {
	if t, ok := p.peek(); ok && t.kind == tokPunct && (t.text == ">" || t.text == ")" || t.text == "]") {
		p.pos++
	}
}

func (p *typeParser) parseName() {
	// Template arguments are emitted while the name is still being read;
	// the name itself goes in front of them.
	slot := len(p.out)
	global := false
	if t, _ := p.peek(); t.kind == tokScope {
		global = true
		p.pos++
	}

	var segs []string
	for {
		t, ok := p.peek()
		if !ok || t.kind != tokIdent {
			break
		}
		if len(segs) == 0 && !global && qualifierWords[t.text] {
			p.pos++
			if t.text == "decltype" && p.peekPunct("(") {
				p.skipGroup()
			}
			return
		}
		segs = append(segs, t.text)
		p.pos++

		if p.peekPunct("<") {
			p.pos++
			p.parseSeq()
			p.closeGroup()
		}
		if t, ok := p.peek(); ok && t.kind == tokScope {
			p.pos++
			continue
		}
		break
	}
	if len(segs) == 0 {
		return
	}
	p.emit(slot, global, segs)
}

// skipGroup drops a balanced parenthesized group, such as the operand of
// decltype.
func (p *typeParser) skipGroup() {
	depth := 0
	for p.pos < len(p.toks) {
		t := p.toks[p.pos]
		p.pos++
		if t.kind != tokPunct {
			continue
		}
		switch t.text {
		case "(":
			depth++
		case ")":
			depth--
			if depth == 0 {
				return
			}
		}
	}
}

func (p *typeParser) emit(slot int, global bool, segs []string) {
	if p.params[segs[0]] {
		return
	}
	name := strings.Join(segs, "::")
	if builtinTypes[name] {
		return
	}
	if global {
		name = "::" + name
	}
	if p.seen[name] {
		return
	}
	p.seen[name] = true
	p.out = slices.Insert(p.out, slot, name)
}

// qualifierWords never name a type by themselves.
var qualifierWords = map[string]bool{
	"const": true, "volatile": true, "mutable": true, "constexpr": true,
	"typename": true, "class": true, "struct": true, "enum": true, "union": true,
	"static": true, "inline": true, "extern": true, "register": true,
	"template": true, "decltype": true, "noexcept": true, "restrict": true,
	"__restrict": true, "thread_local": true, "virtual": true, "explicit": true,
	"friend": true, "sizeof": true, "alignof": true, "operator": true,
	"true": true, "false": true, "nullptr": true,
}

var builtinTypes = map[string]bool{
	"void": true, "bool": true, "char": true, "wchar_t": true, "char8_t": true,
	"char16_t": true, "char32_t": true, "short": true, "int": true, "long": true,
	"float": true, "double": true, "signed": true, "unsigned": true, "auto": true,
	"size_t": true, "ssize_t": true, "ptrdiff_t": true, "nullptr_t": true,
	"intptr_t": true, "uintptr_t": true, "intmax_t": true, "uintmax_t": true,
	"int8_t": true, "int16_t": true, "int32_t": true, "int64_t": true,
	"uint8_t": true, "uint16_t": true, "uint32_t": true, "uint64_t": true,
	"std::size_t": true, "std::ptrdiff_t": true, "std::nullptr_t": true,
	"std::int8_t": true, "std::int16_t": true, "std::int32_t": true, "std::int64_t": true,
	"std::uint8_t": true, "std::uint16_t": true, "std::uint32_t": true, "std::uint64_t": true,
}
