package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// commitUnit declares types in unit and records uses edges from the first
// type to the others.
func commitUnit(t *testing.T, s *Store, unit string, declared []string, uses map[string]string) {
	t.Helper()
	b := NewBatch(unit)
	b.AddEntity(PendingEntity{Ref: Ref{Kind: KindNamespace, QualifiedName: "ns"}, Name: "ns"})
	for _, qn := range declared {
		b.AddEntity(PendingEntity{Ref: typeRef(qn), Name: qn, Details: TypeDetails{TypeKind: TypeClass}})
	}
	for from, to := range uses {
		b.AddEdge(PendingEdge{From: typeRef(from), To: []Ref{typeRef(to)}, Kind: EdgeUsesInTheImplementation, Spelling: to})
	}
	require.NoError(t, s.CommitEntities(b))
	_, err := s.CommitEdges(b)
	require.NoError(t, err)
}

func TestRetractUnit_DeletesSoleFacts(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	commitUnit(t, s, "a.h", []string{"A", "B"}, map[string]string{"A": "B"})

	touched := s.RetractUnit("a.h")

	assert.Empty(t, touched)
	assert.Nil(t, s.Get(KindType, "A"))
	assert.Nil(t, s.Get(KindType, "B"))
	assert.Nil(t, s.Get(KindNamespace, "ns"))
	assert.Zero(t, s.Len())
	assert.Empty(t, s.Units())
}

func TestRetractUnit_KeepsSharedFacts(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	commitUnit(t, s, "a.h", []string{"A"}, nil)
	commitUnit(t, s, "b.h", []string{"B"}, nil)

	s.RetractUnit("a.h")

	assert.Nil(t, s.Get(KindType, "A"))
	require.NotNil(t, s.Get(KindNamespace, "ns"), "namespace is shared with b.h")
	s.Get(KindNamespace, "ns").WithRead(func(v View) {
		assert.Equal(t, []string{"b.h"}, v.Units())
	})
	assert.NotNil(t, s.Get(KindType, "B"))
}

func TestRetractUnit_ReportsUnitsThatLostEdges(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	commitUnit(t, s, "b.h", []string{"B"}, nil)
	commitUnit(t, s, "a.h", []string{"A"}, map[string]string{"A": "B"})
	a := s.Get(KindType, "A").UID()

	touched := s.RetractUnit("b.h")

	assert.Equal(t, []string{"a.h"}, touched)
	s.GetByID(a).WithRead(func(v View) { assert.False(t, v.HasEdges()) })
}

func TestRetractUnit_SharedEdgeSurvives(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	commitUnit(t, s, "x.h", []string{"A", "B"}, nil)
	commitUnit(t, s, "a.cpp", nil, map[string]string{"A": "B"})
	commitUnit(t, s, "b.cpp", nil, map[string]string{"A": "B"})
	a, b := s.Get(KindType, "A").UID(), s.Get(KindType, "B").UID()

	s.RetractUnit("a.cpp")
	assert.True(t, s.HasEdge(a, b, EdgeUsesInTheImplementation))

	s.RetractUnit("b.cpp")
	assert.False(t, s.HasEdge(a, b, EdgeUsesInTheImplementation))
}

func TestRetractUnit_KeepsPinnedEntities(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	commitUnit(t, s, "a.h", []string{"A"}, nil)
	require.NoError(t, s.Pin(s.Get(KindType, "A").UID()))

	s.RetractUnit("a.h")

	assert.NotNil(t, s.Get(KindType, "A"))
}

func TestRetractUnit_Unknown(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	assert.Nil(t, s.RetractUnit("never-seen"))
}

func TestRetractUnit_ThenRecommitConverges(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	commitUnit(t, s, "a.h", []string{"A"}, nil)
	before := s.Digest()

	s.RetractUnit("a.h")
	commitUnit(t, s, "a.h", []string{"A"}, nil)

	assert.Equal(t, before, s.Digest())
}

func TestRetractUnit_PayloadOwnerTouchesContributors(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.CommitEntities(functionBatch("f.h", "f(int a = 0)")))
	require.NoError(t, s.CommitEntities(functionBatch("f.cpp", "f(int a)")))

	// The source file does not own the payload; nothing else needs redoing.
	assert.Empty(t, s.RetractUnit("f.cpp"))
	require.NoError(t, s.CommitEntities(functionBatch("f.cpp", "f(int a)")))

	// The header does; the source must be re-extracted to supply it.
	assert.Equal(t, []string{"f.cpp"}, s.RetractUnit("f.h"))
	require.NotNil(t, s.Get(KindFunction, "f"))

	s.RetractUnit("f.cpp")
	require.NoError(t, s.CommitEntities(functionBatch("f.cpp", "f(int a)")))
	assert.Equal(t, "f(int a)", s.Get(KindFunction, "f").Details().(FunctionDetails).Signature)
}
