// Package extract turns the events of a facts.Producer into a store.Batch:
// it places files into the physical hierarchy, applies the skip rules,
// normalizes type spellings, classifies usages into relation kinds and
// lists the candidate targets each reference may resolve to.
//
// Nothing here touches the Store. Candidates are resolved when the batch
// is committed, so that references across units work regardless of the
// order units were extracted in.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jward/strata/internal/facts"
	"github.com/jward/strata/internal/store"
)

// Mode selects which layer of the model a pass extracts.
type Mode uint8

const (
	// ModePhysical extracts files, components, packages and includes.
	ModePhysical Mode = iota + 1
	// ModeFull extracts the physical layer and the logical layer on top.
	ModeFull
)

func (m Mode) String() string {
	switch m {
	case ModePhysical:
		return "physical"
	case ModeFull:
		return "full"
	}
	return "unknown"
}

// ParseMode is the inverse of Mode.String.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "physical":
		return ModePhysical, nil
	case "full", "":
		return ModeFull, nil
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

// Options configures an Extractor.
type Options struct {
	IgnoredNamespaces []string
	IncludeDirs       []string
	NonLakosianDirs   []string
	ThirdParty        []ThirdPartyRule
	CacheSize         int
}

// Extractor applies the extraction rules to producer output. It is safe
// for concurrent use once configured.
type Extractor struct {
	norm    *Normalizer
	namer   Namer
	ignored ignoreSet
	dirs    []string
	exists  func(string) bool
}

// New creates an Extractor.
func New(opts Options) (*Extractor, error) {
	norm, err := NewNormalizer(opts.CacheSize)
	if err != nil {
		return nil, err
	}
	ignored := opts.IgnoredNamespaces
	if ignored == nil {
		ignored = DefaultIgnoredNamespaces
	}
	return &Extractor{
		norm:    norm,
		namer:   Namer{NonLakosianDirs: opts.NonLakosianDirs, ThirdParty: opts.ThirdParty},
		ignored: newIgnoreSet(ignored),
		dirs:    opts.IncludeDirs,
	}, nil
}

// SetKnownUnits restricts include resolution to the given root-relative
// paths. Call it before a run, not while extraction is in progress.
func (x *Extractor) SetKnownUnits(exists func(string) bool) {
	x.exists = exists
}

// Namer returns the physical namer in use.
func (x *Extractor) Namer() Namer { return x.namer }

// Extract runs p over u and returns the batch of facts for u. Producer
// failures other than cancellation become a diagnostic in the batch; a
// cancelled context returns ctx.Err() and no batch.
func (x *Extractor) Extract(ctx context.Context, p facts.Producer, u facts.Unit, mode Mode) (*store.Batch, error) {
	w := &unitWriter{
		x:     x,
		b:     store.NewBatch(u.Path),
		unit:  u,
		mode:  mode,
		added: make(map[store.Ref]bool),
	}
	w.addFile(u.Path, u.IsHeader, u.Hash)

	err := p.Produce(ctx, u, func(ev facts.Event) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		w.handle(ev)
		return nil
	})
	if cerr := ctx.Err(); cerr != nil {
		return nil, cerr
	}
	if err != nil && !errors.Is(err, facts.ErrStop) {
		w.b.AddDiagnostic(store.DiagnosticDetails{
			Kind:    store.DiagProducerError,
			Subject: u.Path,
			Message: err.Error(),
		})
	}
	return w.b, nil
}

// unitWriter accumulates the batch of one unit.
type unitWriter struct {
	x     *Extractor
	b     *store.Batch
	unit  facts.Unit
	mode  Mode
	added map[store.Ref]bool
}

func (w *unitWriter) add(p store.PendingEntity) {
	if w.added[p.Ref] {
		return
	}
	w.added[p.Ref] = true
	w.b.AddEntity(p)
}

func (w *unitWriter) handle(ev facts.Event) {
	switch ev := ev.(type) {
	case facts.FileDiscovered:
		hash := ""
		if ev.Path == w.unit.Path {
			hash = w.unit.Hash
		}
		w.addFile(ev.Path, ev.IsHeader, hash)
	case facts.IncludeDiscovered:
		w.addInclude(ev)
	case facts.Diagnostic:
		w.b.AddDiagnostic(store.DiagnosticDetails{
			Kind:     ev.Kind,
			Subject:  ev.Subject,
			Message:  ev.Message,
			Location: ev.Location,
		})
	case facts.TypeDeclared:
		if w.mode == ModeFull {
			w.addType(ev)
		}
	case facts.MemberDeclared:
		if w.mode == ModeFull {
			w.addMember(ev)
		}
	case facts.UsageDiscovered:
		if w.mode == ModeFull {
			w.addUsage(ev)
		}
	case facts.RelationDiscovered:
		if w.mode == ModeFull {
			w.addRelation(ev)
		}
	default:
		panic(fmt.Sprintf("extract: unhandled event %T", ev))
	}
}

// ============================================================================
// Physical layer
// ============================================================================

func fileRef(path string) store.Ref {
	return store.Ref{Kind: store.KindFile, QualifiedName: path}
}

func (w *unitWriter) addFile(path string, isHeader bool, hash string) {
	pl := w.x.namer.Place(path)
	if pl.Group != nil {
		w.add(store.PendingEntity{
			Ref:     store.Ref{Kind: store.KindPackage, QualifiedName: pl.Group.QualifiedName},
			Name:    pl.Group.Name,
			Details: store.PackageDetails{DiskPath: pl.Group.DiskPath},
		})
	}
	var pkgParent store.Ref
	if pl.Group != nil {
		pkgParent = store.Ref{Kind: store.KindPackage, QualifiedName: pl.Group.QualifiedName}
	}
	pkgRef := store.Ref{Kind: store.KindPackage, QualifiedName: pl.Package.QualifiedName}
	w.add(store.PendingEntity{
		Ref:     pkgRef,
		Name:    pl.Package.Name,
		Parent:  pkgParent,
		Details: store.PackageDetails{DiskPath: pl.Package.DiskPath},
	})
	compRef := store.Ref{Kind: store.KindComponent, QualifiedName: pl.Component.QualifiedName}
	w.add(store.PendingEntity{Ref: compRef, Name: pl.Component.Name, Parent: pkgRef})
	w.add(store.PendingEntity{
		Ref:     fileRef(path),
		Name:    baseName(path),
		Parent:  compRef,
		Details: store.FileDetails{Path: path, IsHeader: isHeader, Hash: hash},
	})
}

// componentRef is the component owning the unit's file.
func (w *unitWriter) componentRef() store.Ref {
	return store.Ref{Kind: store.KindComponent, QualifiedName: w.x.namer.Place(w.unit.Path).Component.QualifiedName}
}

func (w *unitWriter) addInclude(ev facts.IncludeDiscovered) {
	if ev.System {
		return
	}
	r := IncludeResolver{Dirs: w.x.dirs, Exists: w.x.exists}
	cands := r.Resolve(w.unit.Path, ev.Spelling)
	if len(cands) == 0 {
		w.b.AddDiagnostic(store.DiagnosticDetails{
			Kind:     store.DiagMissingInclude,
			Subject:  w.unit.Path,
			Message:  "cannot find include " + strconv.Quote(ev.Spelling),
			Location: ev.Location,
		})
		return
	}
	refs := make([]store.Ref, len(cands))
	for i, c := range cands {
		refs[i] = fileRef(c)
	}
	w.b.AddEdge(store.PendingEdge{
		From:     fileRef(w.unit.Path),
		To:       refs,
		Kind:     store.EdgeIncludes,
		Spelling: ev.Spelling,
		Location: ev.Location,
	})
}

// ============================================================================
// Logical layer
// ============================================================================

func typeRef(qn string) store.Ref {
	return store.Ref{Kind: store.KindType, QualifiedName: qn}
}

// addNamespaces records qn and every enclosing namespace, returning the
// innermost one's Ref.
func (w *unitWriter) addNamespaces(qn string) store.Ref {
	if qn == "" || w.x.ignored.contains(qn) || inAnonymousNamespace(qn) {
		return store.Ref{}
	}
	var parent store.Ref
	segs := strings.Split(qn, "::")
	for i := range segs {
		ref := store.Ref{Kind: store.KindNamespace, QualifiedName: strings.Join(segs[:i+1], "::")}
		w.add(store.PendingEntity{Ref: ref, Name: segs[i], Parent: parent})
		parent = ref
	}
	return parent
}

func (w *unitWriter) addType(ev facts.TypeDeclared) {
	if w.x.ignored.skipType(ev) != "" {
		return
	}
	ns := w.addNamespaces(ev.Namespace)
	parent := w.componentRef()
	if ev.Parent != "" {
		parent = typeRef(ev.Parent)
	}
	w.add(store.PendingEntity{
		Ref:       typeRef(ev.QualifiedName),
		Name:      ev.Name,
		Parent:    parent,
		Namespace: ns,
		Details: store.TypeDetails{
			TypeKind: ev.Kind,
			Access:   ev.Access,
			AliasOf:  ev.AliasOf,
			Location: ev.Location,
		},
	})

	if ev.Kind != store.TypeAlias || ev.AliasOf == "" {
		return
	}
	scope := ev.Parent
	if scope == "" {
		scope = ev.Namespace
	}
	for _, name := range w.x.norm.Names(ev.AliasOf, ev.TemplateParams) {
		w.addReference(typeRef(ev.QualifiedName), name, scope, store.EdgeUsesInTheImplementation, ev.Location)
	}
	if ev.Parent != "" {
		w.b.AddEdge(store.PendingEdge{
			From:     typeRef(ev.Parent),
			To:       []store.Ref{typeRef(ev.QualifiedName)},
			Kind:     kindForAccess(ev.Access),
			Spelling: ev.Name,
			Location: ev.Location,
		})
	}
}

func (w *unitWriter) addMember(ev facts.MemberDeclared) {
	if w.x.ignored.skipMember(ev) != "" {
		return
	}
	ref := store.Ref{Kind: ev.Kind.StoreKind(), QualifiedName: ev.QualifiedName}
	var details store.Details
	var parent, ns store.Ref

	switch ev.Kind {
	case facts.MemberMethod:
		parent = typeRef(ev.Owner)
		details = store.MethodDetails{
			Access:     ev.Access,
			Signature:  ev.Signature,
			ReturnType: ev.ReturnType,
			Params:     ev.Params,
			Static:     ev.Static,
			Virtual:    ev.Virtual,
		}
	case facts.MemberField:
		parent = typeRef(ev.Owner)
		details = store.FieldDetails{Access: ev.Access, TypeName: ev.TypeName, Static: ev.Static}
	case facts.MemberFunction:
		parent = w.componentRef()
		ns = w.addNamespaces(ev.Namespace)
		details = store.FunctionDetails{Signature: ev.Signature, ReturnType: ev.ReturnType, Params: ev.Params}
	case facts.MemberVariable:
		parent = w.componentRef()
		ns = w.addNamespaces(ev.Namespace)
		details = store.VariableDetails{TypeName: ev.TypeName}
	default:
		return
	}
	w.add(store.PendingEntity{Ref: ref, Name: ev.Name, Parent: parent, Namespace: ns, Details: details})
}

func (w *unitWriter) addUsage(ev facts.UsageDiscovered) {
	c, ok := Classify(ev)
	if !ok || w.x.ignored.contains(c.Source.QualifiedName) {
		return
	}
	for _, name := range w.x.norm.Names(ev.Spelling, ev.TemplateParams) {
		w.addReference(c.Source, name, c.Scope, c.Kind, ev.Location)
	}
}

// addReference records an edge from source to the type spelled name, as
// seen from scope.
func (w *unitWriter) addReference(source store.Ref, name, scope string, kind store.EdgeKind, loc store.Location) {
	if w.x.ignored.contains(name) {
		return
	}
	cands := Candidates(name, scope)
	refs := make([]store.Ref, 0, len(cands))
	for _, c := range cands {
		if !w.x.ignored.contains(c) {
			refs = append(refs, typeRef(c))
		}
	}
	if len(refs) == 0 {
		return
	}
	w.b.AddEdge(store.PendingEdge{From: source, To: refs, Kind: kind, Spelling: name, Location: loc})
}

func (w *unitWriter) addRelation(ev facts.RelationDiscovered) {
	if !ev.Kind.IsLogical() || ev.From == "" || ev.To == "" {
		return
	}
	if w.x.ignored.contains(ev.From) || w.x.ignored.contains(ev.To) {
		return
	}
	w.b.AddEdge(store.PendingEdge{
		From:     typeRef(ev.From),
		To:       []store.Ref{typeRef(ev.To)},
		Kind:     ev.Kind,
		Spelling: ev.To,
		Location: ev.Location,
	})
}

func baseName(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}
