package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func typeRef(qn string) Ref { return Ref{Kind: KindType, QualifiedName: qn} }

func TestCommit_EntitiesThenEdges(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	b := NewBatch("a.h")
	b.AddEntity(PendingEntity{Ref: Ref{Kind: KindPackage, QualifiedName: "pkg"}, Name: "pkg"})
	b.AddEntity(PendingEntity{Ref: Ref{Kind: KindComponent, QualifiedName: "pkg/a"}, Name: "a",
		Parent: Ref{Kind: KindPackage, QualifiedName: "pkg"}})
	b.AddEntity(PendingEntity{Ref: Ref{Kind: KindNamespace, QualifiedName: "ns"}, Name: "ns"})
	b.AddEntity(PendingEntity{Ref: typeRef("ns::A"), Name: "A",
		Parent:    Ref{Kind: KindComponent, QualifiedName: "pkg/a"},
		Namespace: Ref{Kind: KindNamespace, QualifiedName: "ns"},
		Details:   TypeDetails{TypeKind: TypeClass}})
	b.AddEntity(PendingEntity{Ref: typeRef("ns::B"), Name: "B", Details: TypeDetails{TypeKind: TypeStruct}})
	b.AddEdge(PendingEdge{From: typeRef("ns::A"), To: []Ref{typeRef("ns::A::B"), typeRef("ns::B")},
		Kind: EdgeUsesInTheInterface, Spelling: "B"})

	require.NoError(t, s.CommitEntities(b))
	recorded, err := s.CommitEdges(b)
	require.NoError(t, err)

	a := s.Get(KindType, "ns::A")
	bt := s.Get(KindType, "ns::B")
	require.NotNil(t, a)
	require.NotNil(t, bt)
	assert.Equal(t, []EdgeKey{{From: a.UID(), To: bt.UID(), Kind: EdgeUsesInTheInterface}}, recorded)
	assert.True(t, s.HasEdge(a.UID(), bt.UID(), EdgeUsesInTheInterface))
	assert.Equal(t, s.Get(KindComponent, "pkg/a").UID(), a.Parent())
	assert.Equal(t, s.Get(KindNamespace, "ns").UID(), a.Details().(TypeDetails).Namespace)
	assert.Equal(t, []string{"a.h"}, s.Units())
	assert.Equal(t, []string{"a.h"}, s.EdgeUnits(recorded[0]))
}

func TestCommit_UnresolvedBecomesDiagnostic(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	b := NewBatch("a.cpp")
	b.AddEntity(PendingEntity{Ref: typeRef("A"), Name: "A", Details: TypeDetails{TypeKind: TypeClass}})
	b.AddEdge(PendingEdge{From: typeRef("A"), To: []Ref{typeRef("Missing")},
		Kind: EdgeUsesInTheImplementation, Spelling: "Missing",
		Location: Location{File: "a.cpp", Line: 3, Column: 5}})

	require.NoError(t, s.CommitEntities(b))
	recorded, err := s.CommitEdges(b)
	require.NoError(t, err)
	assert.Empty(t, recorded)

	diags := s.IDs(KindDiagnostic)
	require.Len(t, diags, 1)
	d := s.GetByID(diags[0]).Details().(DiagnosticDetails)
	assert.Equal(t, DiagUnresolvedReference, d.Kind)
	assert.Equal(t, "A", d.Subject)
	assert.Equal(t, `cannot resolve "Missing"`, d.Message)
	assert.Equal(t, 3, d.Location.Line)
}

func TestCommit_SelfReferenceIgnored(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	b := NewBatch("a.h")
	b.AddEntity(PendingEntity{Ref: typeRef("Node"), Name: "Node", Details: TypeDetails{TypeKind: TypeStruct}})
	b.AddEdge(PendingEdge{From: typeRef("Node"), To: []Ref{typeRef("Node")}, Kind: EdgeUsesInTheInterface})

	require.NoError(t, s.CommitEntities(b))
	recorded, err := s.CommitEdges(b)
	require.NoError(t, err)
	assert.Empty(t, recorded)
	assert.Empty(t, s.IDs(KindDiagnostic))
}

func TestCommit_KindClashBecomesDiagnostic(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	_, err := s.GetOrAddNamespace("clash", "clash", UniqueID{})
	require.NoError(t, err)

	b := NewBatch("x.h")
	b.AddEntity(PendingEntity{Ref: typeRef("clash"), Name: "clash", Details: TypeDetails{TypeKind: TypeClass}})
	b.AddEntity(PendingEntity{Ref: typeRef("fine"), Name: "fine", Details: TypeDetails{TypeKind: TypeClass}})

	require.NoError(t, s.CommitEntities(b))
	assert.NotNil(t, s.Get(KindType, "fine"))
	assert.Nil(t, s.Get(KindType, "clash"))
	require.Len(t, s.IDs(KindDiagnostic), 1)
}

func TestCommit_UpdatesPayloadOfExistingEntity(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	first := NewBatch("f.cpp")
	first.AddEntity(PendingEntity{Ref: Ref{Kind: KindFile, QualifiedName: "f.cpp"}, Name: "f.cpp",
		Details: FileDetails{Path: "f.cpp", Hash: "one"}})
	require.NoError(t, s.CommitEntities(first))

	second := NewBatch("f.cpp")
	second.AddEntity(PendingEntity{Ref: Ref{Kind: KindFile, QualifiedName: "f.cpp"}, Name: "f.cpp",
		Details: FileDetails{Path: "f.cpp", Hash: "two"}})
	require.NoError(t, s.CommitEntities(second))

	assert.Equal(t, "two", s.Get(KindFile, "f.cpp").Details().(FileDetails).Hash)
	assert.Equal(t, 1, s.Len())
}

// functionBatch declares the free function f in unit with signature sig.
func functionBatch(unit, sig string) *Batch {
	b := NewBatch(unit)
	b.AddEntity(PendingEntity{Ref: Ref{Kind: KindFunction, QualifiedName: "f"}, Name: "f",
		Details: FunctionDetails{Signature: sig}})
	return b
}

func TestCommit_SharedPayloadIndependentOfOrder(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		units []string
	}{
		{"header first", []string{"f.h", "f.cpp"}},
		{"source first", []string{"f.cpp", "f.h"}},
	}
	sigs := map[string]string{"f.h": "f(int a = 0)", "f.cpp": "f(int a)"}

	var digests []string
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			for _, u := range tt.units {
				require.NoError(t, s.CommitEntities(functionBatch(u, sigs[u])))
			}
			f := s.Get(KindFunction, "f")
			require.NotNil(t, f)
			assert.Equal(t, "f(int a = 0)", f.Details().(FunctionDetails).Signature, "the header's declaration wins")
			digests = append(digests, s.Digest())
		})
	}
	require.Len(t, digests, 2)
	assert.Equal(t, digests[0], digests[1])
}

func TestPreferredUnit(t *testing.T) {
	t.Parallel()
	assert.True(t, preferredUnit("z.h", "a.cpp"))
	assert.False(t, preferredUnit("a.cpp", "z.h"))
	assert.True(t, preferredUnit("a.hpp", "b.h"))
	assert.True(t, preferredUnit("a.cpp", "b.cc"))
}

func TestBatch_Len(t *testing.T) {
	t.Parallel()

	b := NewBatch("u")
	assert.Zero(t, b.Len())
	b.AddEntity(PendingEntity{Ref: typeRef("A")})
	b.AddDiagnostic(DiagnosticDetails{Kind: DiagParserError})
	assert.Equal(t, 2, b.Len())
	assert.True(t, b.HasEntity(typeRef("A")))
	assert.False(t, b.HasEntity(typeRef("B")))
}

func TestLinkParents_AcrossBatches(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	impl := NewBatch("c.cpp")
	impl.AddEntity(PendingEntity{Ref: Ref{Kind: KindMethod, QualifiedName: "C::run"}, Name: "run",
		Parent: typeRef("C"), Details: MethodDetails{Access: AccessPublic}})
	header := NewBatch("c.h")
	header.AddEntity(PendingEntity{Ref: typeRef("C"), Name: "C", Details: TypeDetails{TypeKind: TypeClass}})

	require.NoError(t, s.CommitEntities(impl))
	require.NoError(t, s.CommitEntities(header))
	assert.True(t, s.Get(KindMethod, "C::run").Parent().IsZero())

	require.NoError(t, s.LinkParents(impl))
	require.NoError(t, s.LinkParents(header))
	assert.Equal(t, s.Get(KindType, "C").UID(), s.Get(KindMethod, "C::run").Parent())
}
