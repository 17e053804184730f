package store

import "slices"

// Details is the kind-specific payload of an entity. The set of
// implementations is closed: one struct per Kind, sealed by detailsKind.
type Details interface {
	detailsKind() Kind
}

// FileDetails describes a source file.
// The owning component is the file's parent.
type FileDetails struct {
	Path     string
	IsHeader bool
	Hash     string
}

// PackageDetails describes a package or package group. DiskPath is the
// directory the package was synthesized from; empty for manual packages.
type PackageDetails struct {
	DiskPath string
}

// ComponentDetails describes a component.
type ComponentDetails struct{}

// NamespaceDetails describes a namespace.
type NamespaceDetails struct{}

// TypeDetails describes a class, struct, union, enum or alias. The parent of
// a type is its enclosing type or owning component; Namespace records the
// logical scope. AliasOf is the spelled target of an alias.
type TypeDetails struct {
	TypeKind  TypeKind
	Access    Access
	Namespace UniqueID
	AliasOf   string
	Location  Location
}

// MethodDetails describes a member function.
type MethodDetails struct {
	Access     Access
	Signature  string
	ReturnType string
	Params     []string
	Static     bool
	Virtual    bool
}

// FunctionDetails describes a free function.
type FunctionDetails struct {
	Namespace  UniqueID
	Signature  string
	ReturnType string
	Params     []string
}

// FieldDetails describes a data member.
type FieldDetails struct {
	Access   Access
	TypeName string
	Static   bool
}

// VariableDetails describes a namespace-scope variable.
type VariableDetails struct {
	Namespace UniqueID
	TypeName  string
}

// DiagnosticDetails describes a non-fatal problem found during analysis.
type DiagnosticDetails struct {
	Kind     DiagnosticKind
	Subject  string
	Message  string
	Location Location
}

func (FileDetails) detailsKind() Kind       { return KindFile }
func (PackageDetails) detailsKind() Kind    { return KindPackage }
func (ComponentDetails) detailsKind() Kind  { return KindComponent }
func (NamespaceDetails) detailsKind() Kind  { return KindNamespace }
func (TypeDetails) detailsKind() Kind       { return KindType }
func (MethodDetails) detailsKind() Kind     { return KindMethod }
func (FunctionDetails) detailsKind() Kind   { return KindFunction }
func (FieldDetails) detailsKind() Kind      { return KindField }
func (VariableDetails) detailsKind() Kind   { return KindVariable }
func (DiagnosticDetails) detailsKind() Kind { return KindDiagnostic }

// KindOf returns the kind a payload belongs to.
func KindOf(d Details) Kind { return d.detailsKind() }

// zeroDetails returns the empty payload for k.
func zeroDetails(k Kind) Details {
	switch k {
	case KindFile:
		return FileDetails{}
	case KindPackage:
		return PackageDetails{}
	case KindComponent:
		return ComponentDetails{}
	case KindNamespace:
		return NamespaceDetails{}
	case KindType:
		return TypeDetails{}
	case KindMethod:
		return MethodDetails{}
	case KindFunction:
		return FunctionDetails{}
	case KindField:
		return FieldDetails{}
	case KindVariable:
		return VariableDetails{}
	case KindDiagnostic:
		return DiagnosticDetails{}
	}
	panic("store: unknown kind " + k.String())
}

// cloneDetails returns a copy that shares no mutable memory with d.
func cloneDetails(d Details) Details {
	switch v := d.(type) {
	case MethodDetails:
		v.Params = slices.Clone(v.Params)
		return v
	case FunctionDetails:
		v.Params = slices.Clone(v.Params)
		return v
	}
	return d
}
