package store

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies which arm of the entity union an entity belongs to.
type Kind uint8

const (
	KindFile Kind = iota + 1
	KindPackage
	KindComponent
	KindNamespace
	KindType
	KindMethod
	KindFunction
	KindField
	KindVariable
	KindDiagnostic
)

// Kinds lists every entity kind in lookup order.
var Kinds = []Kind{
	KindPackage, KindComponent, KindFile, KindNamespace, KindType,
	KindMethod, KindFunction, KindField, KindVariable, KindDiagnostic,
}

var kindNames = map[Kind]string{
	KindFile:       "file",
	KindPackage:    "package",
	KindComponent:  "component",
	KindNamespace:  "namespace",
	KindType:       "type",
	KindMethod:     "method",
	KindFunction:   "function",
	KindField:      "field",
	KindVariable:   "variable",
	KindDiagnostic: "diagnostic",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown entity kind %q", s)
}

// family groups kinds that share one qualified-name space.
type family uint8

const (
	familyFiles family = iota
	familyPhysical
	familyScopes
	familyMembers
	familyDiagnostics
	familyCount
)

func (k Kind) family() family {
	switch k {
	case KindFile:
		return familyFiles
	case KindPackage, KindComponent:
		return familyPhysical
	case KindNamespace, KindType:
		return familyScopes
	case KindMethod, KindFunction, KindField, KindVariable:
		return familyMembers
	case KindDiagnostic:
		return familyDiagnostics
	}
	panic("store: unknown kind " + k.String())
}

// IsLogical reports whether k is a logical entity: a type or a member.
func (k Kind) IsLogical() bool {
	switch k {
	case KindType, KindMethod, KindFunction, KindField, KindVariable:
		return true
	}
	return false
}

// UniqueID is the stable identity of an entity. IDs are never reused by a
// Store, so a stale UniqueID resolves to nothing rather than to a stranger.
type UniqueID struct {
	Kind Kind
	ID   int64
}

// IsZero reports whether u is the zero (absent) id.
func (u UniqueID) IsZero() bool { return u.Kind == 0 && u.ID == 0 }

// Less orders ids canonically; the Store acquires entity locks in this order.
func (u UniqueID) Less(o UniqueID) bool {
	if u.Kind != o.Kind {
		return u.Kind < o.Kind
	}
	return u.ID < o.ID
}

func (u UniqueID) String() string {
	if u.IsZero() {
		return "none"
	}
	return u.Kind.String() + ":" + strconv.FormatInt(u.ID, 10)
}

// ParseUniqueID parses the "kind:id" form produced by UniqueID.String.
func ParseUniqueID(s string) (UniqueID, error) {
	if s == "" || s == "none" {
		return UniqueID{}, nil
	}
	kindStr, idStr, ok := strings.Cut(s, ":")
	if !ok {
		return UniqueID{}, fmt.Errorf("malformed unique id %q", s)
	}
	k, err := ParseKind(kindStr)
	if err != nil {
		return UniqueID{}, err
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return UniqueID{}, fmt.Errorf("malformed unique id %q: %w", s, err)
	}
	return UniqueID{Kind: k, ID: id}, nil
}

// EdgeKind classifies a relationship edge.
type EdgeKind uint8

const (
	EdgeIsA EdgeKind = iota + 1
	EdgeUsesInTheInterface
	EdgeUsesInTheImplementation
	EdgeConcrete
	EdgeAllowed
	EdgeIncludes
)

var edgeKindNames = map[EdgeKind]string{
	EdgeIsA:                     "isa",
	EdgeUsesInTheInterface:      "uses_in_the_interface",
	EdgeUsesInTheImplementation: "uses_in_the_implementation",
	EdgeConcrete:                "concrete",
	EdgeAllowed:                 "allowed",
	EdgeIncludes:                "includes",
}

func (k EdgeKind) String() string {
	if s, ok := edgeKindNames[k]; ok {
		return s
	}
	return "edge(" + strconv.Itoa(int(k)) + ")"
}

// ParseEdgeKind is the inverse of EdgeKind.String.
func ParseEdgeKind(s string) (EdgeKind, error) {
	for k, name := range edgeKindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown edge kind %q", s)
}

// IsLogical reports whether k relates two logical entities.
func (k EdgeKind) IsLogical() bool {
	return k == EdgeIsA || k == EdgeUsesInTheInterface || k == EdgeUsesInTheImplementation
}

// IsPhysical reports whether k is a package or component dependency.
func (k EdgeKind) IsPhysical() bool {
	return k == EdgeConcrete || k == EdgeAllowed
}

// Edge is one endpoint's view of a relationship: the entity on the other
// side and the relation kind.
type Edge struct {
	Other UniqueID
	Kind  EdgeKind
}

// EdgeKey identifies a directed edge.
type EdgeKey struct {
	From UniqueID
	To   UniqueID
	Kind EdgeKind
}

func (k EdgeKey) String() string {
	return k.From.String() + " -" + k.Kind.String() + "-> " + k.To.String()
}

// Access is a C++ access specifier.
type Access uint8

const (
	AccessNone Access = iota
	AccessPublic
	AccessProtected
	AccessPrivate
)

func (a Access) String() string {
	switch a {
	case AccessPublic:
		return "public"
	case AccessProtected:
		return "protected"
	case AccessPrivate:
		return "private"
	}
	return "none"
}

// ParseAccess accepts the String forms; anything else is AccessNone.
func ParseAccess(s string) Access {
	switch s {
	case "public":
		return AccessPublic
	case "protected":
		return AccessProtected
	case "private":
		return AccessPrivate
	}
	return AccessNone
}

// TypeKind distinguishes the user-defined type flavours.
type TypeKind uint8

const (
	TypeClass TypeKind = iota + 1
	TypeStruct
	TypeUnion
	TypeEnum
	TypeAlias
)

var typeKindNames = map[TypeKind]string{
	TypeClass:  "class",
	TypeStruct: "struct",
	TypeUnion:  "union",
	TypeEnum:   "enum",
	TypeAlias:  "alias",
}

func (k TypeKind) String() string {
	if s, ok := typeKindNames[k]; ok {
		return s
	}
	return "unknown"
}

// ParseTypeKind is the inverse of TypeKind.String; "typedef" maps to alias.
func ParseTypeKind(s string) (TypeKind, error) {
	if s == "typedef" || s == "using" {
		return TypeAlias, nil
	}
	for k, name := range typeKindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown type kind %q", s)
}

// CanNest reports whether a type of this kind may contain nested types.
func (k TypeKind) CanNest() bool {
	return k == TypeClass || k == TypeStruct || k == TypeUnion
}

// DiagnosticKind classifies a Diagnostic entity.
type DiagnosticKind string

const (
	DiagParserError         DiagnosticKind = "parser_error"
	DiagUnresolvedReference DiagnosticKind = "unresolved_reference"
	DiagMissingInclude      DiagnosticKind = "missing_include"
	DiagProducerError       DiagnosticKind = "producer_error"
)

// Location is a position in a source file. Line and Column are 1-based;
// zero means unknown.
type Location struct {
	File   string
	Line   int
	Column int
}

func (l Location) String() string {
	if l.File == "" {
		return ""
	}
	if l.Line == 0 {
		return l.File
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}
