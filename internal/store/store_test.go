package store

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New()
}

// mustPackage adds a package and returns its id.
func mustPackage(t *testing.T, s *Store, qn string, parent UniqueID) UniqueID {
	t.Helper()
	e, err := s.GetOrAddPackage(qn, qn, parent, PackageDetails{})
	require.NoError(t, err)
	return e.UID()
}

// mustComponent adds a component and returns its id.
func mustComponent(t *testing.T, s *Store, qn string, pkg UniqueID) UniqueID {
	t.Helper()
	e, err := s.GetOrAddComponent(qn, qn, pkg)
	require.NoError(t, err)
	return e.UID()
}

// mustType adds a class and returns its id.
func mustType(t *testing.T, s *Store, qn string, parent UniqueID) UniqueID {
	t.Helper()
	e, err := s.GetOrAddType(qn, qn, parent, TypeDetails{TypeKind: TypeClass})
	require.NoError(t, err)
	return e.UID()
}

// =============================================================================
// GetOrAdd & lookup
// =============================================================================

func TestGetOrAdd_CreatesOnce(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	a, created, err := s.GetOrAdd(KindPackage, "grp", "grp", UniqueID{}, nil)
	require.NoError(t, err)
	assert.True(t, created)

	b, created, err := s.GetOrAdd(KindPackage, "grp", "other", UniqueID{}, nil)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, a, b)
	assert.Equal(t, "grp", b.Name())
	assert.Equal(t, 1, s.Len())
}

func TestGetOrAdd_ConcurrentSameKey(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	const n = 64
	ids := make([]UniqueID, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, _, err := s.GetOrAdd(KindType, "ns::Widget", "Widget", UniqueID{}, TypeDetails{TypeKind: TypeClass})
			assert.NoError(t, err)
			ids[i] = e.UID()
		}()
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 1, s.Len())
}

func TestGetOrAdd_KindMismatch(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	_, err := s.GetOrAddNamespace("ns::inner", "inner", UniqueID{})
	require.NoError(t, err)

	_, err = s.GetOrAddType("ns::inner", "inner", UniqueID{}, TypeDetails{TypeKind: TypeClass})
	var mismatch *KindMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, KindNamespace, mismatch.Existing)
	assert.Equal(t, KindType, mismatch.Requested)
	assert.Equal(t, 1, s.Len())
}

func TestGetOrAdd_DetailsForWrongKind(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	_, _, err := s.GetOrAdd(KindPackage, "p", "p", UniqueID{}, TypeDetails{})
	var mismatch *DetailsMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, KindPackage, mismatch.Kind)
	assert.Equal(t, KindType, mismatch.DetailsKind)
	assert.Equal(t, `store: "p": type payload given for a package`, err.Error())
	assert.False(t, errors.As(err, new(*KindMismatchError)))
	assert.Zero(t, s.Len())
}

func TestGetOrAdd_SeparateNameSpaces(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	pkg := mustPackage(t, s, "bal", UniqueID{})
	ns, err := s.GetOrAddNamespace("bal", "bal", UniqueID{})
	require.NoError(t, err)

	assert.NotEqual(t, pkg, ns.UID())
	assert.Equal(t, pkg, s.Get(KindPackage, "bal").UID())
	assert.Equal(t, ns.UID(), s.Get(KindNamespace, "bal").UID())
	assert.Nil(t, s.Get(KindComponent, "bal"))
}

func TestGetOrAdd_MissingParent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	_, err := s.GetOrAddComponent("p/c", "c", UniqueID{Kind: KindPackage, ID: 42})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, s.Len())
}

func TestGetOrAdd_LinksParentAndChild(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	pkg := mustPackage(t, s, "pkg", UniqueID{})
	comp := mustComponent(t, s, "pkg/pkg_thing", pkg)

	s.GetByID(pkg).WithRead(func(v View) {
		assert.Equal(t, []UniqueID{comp}, v.Children())
	})
	assert.Equal(t, pkg, s.GetByID(comp).Parent())
}

func TestFindByQualifiedName(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	comp := mustComponent(t, s, "standalones/s_a/s_a_b", UniqueID{})
	assert.Equal(t, comp, s.FindByQualifiedName("standalones/s_a/s_a_b").UID())
	assert.Nil(t, s.FindByQualifiedName("nope"))
	assert.Nil(t, s.GetByID(UniqueID{Kind: KindType, ID: 1}))
}

func TestIDs_SortedPerKind(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	a := mustPackage(t, s, "a", UniqueID{})
	b := mustPackage(t, s, "b", UniqueID{})
	mustType(t, s, "T", UniqueID{})

	assert.Equal(t, []UniqueID{a, b}, s.IDs(KindPackage))
}

// =============================================================================
// Edges
// =============================================================================

func TestEdge_Symmetry(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	a := mustPackage(t, s, "a", UniqueID{})
	b := mustPackage(t, s, "b", UniqueID{})

	added, err := s.AddEdge(a, b, EdgeConcrete)
	require.NoError(t, err)
	assert.True(t, added)

	s.GetByID(a).WithRead(func(v View) {
		assert.True(t, v.HasProvider(b, EdgeConcrete))
		assert.Empty(t, v.Clients())
	})
	s.GetByID(b).WithRead(func(v View) {
		assert.True(t, v.HasClient(a, EdgeConcrete))
		assert.Empty(t, v.Providers())
	})

	added, err = s.AddEdge(a, b, EdgeConcrete)
	require.NoError(t, err)
	assert.False(t, added, "duplicate edge")

	removed, err := s.RemoveEdge(a, b, EdgeConcrete)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.False(t, s.HasEdge(a, b, EdgeConcrete))
	s.GetByID(b).WithRead(func(v View) {
		assert.False(t, v.HasClient(a, EdgeConcrete))
	})

	removed, err = s.RemoveEdge(a, b, EdgeConcrete)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestEdge_KindsCoexist(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	a := mustPackage(t, s, "a", UniqueID{})
	b := mustPackage(t, s, "b", UniqueID{})

	_, err := s.AddEdge(a, b, EdgeConcrete)
	require.NoError(t, err)
	_, err = s.AddEdge(a, b, EdgeAllowed)
	require.NoError(t, err)

	_, err = s.RemoveEdge(a, b, EdgeConcrete)
	require.NoError(t, err)
	assert.False(t, s.HasEdge(a, b, EdgeConcrete))
	assert.True(t, s.HasEdge(a, b, EdgeAllowed))
}

func TestEdge_SelfLoopRejected(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	a := mustPackage(t, s, "a", UniqueID{})

	_, err := s.AddEdge(a, a, EdgeConcrete)
	assert.ErrorIs(t, err, ErrSelfEdge)
}

func TestEdge_UnknownEndpoint(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	a := mustPackage(t, s, "a", UniqueID{})

	_, err := s.AddEdge(a, UniqueID{Kind: KindPackage, ID: 99}, EdgeConcrete)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEdge_ConcurrentOppositeDirections(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	a := mustType(t, s, "A", UniqueID{})
	b := mustType(t, s, "B", UniqueID{})

	var wg sync.WaitGroup
	for i := range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			from, to := a, b
			if i%2 == 1 {
				from, to = b, a
			}
			_, err := s.AddEdge(from, to, EdgeUsesInTheImplementation)
			assert.NoError(t, err)
			_, err = s.RemoveEdge(from, to, EdgeUsesInTheImplementation)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	s.GetByID(a).WithRead(func(v View) { assert.False(t, v.HasEdges()) })
	s.GetByID(b).WithRead(func(v View) { assert.False(t, v.HasEdges()) })
}

// =============================================================================
// Hierarchy & identity
// =============================================================================

func TestRename_ReindexesAndKeepsEdges(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	a := mustPackage(t, s, "old", UniqueID{})
	b := mustPackage(t, s, "b", UniqueID{})
	_, err := s.AddEdge(a, b, EdgeConcrete)
	require.NoError(t, err)

	require.NoError(t, s.Rename(a, "new", "new"))

	assert.Nil(t, s.Get(KindPackage, "old"))
	require.NotNil(t, s.Get(KindPackage, "new"))
	assert.Equal(t, a, s.Get(KindPackage, "new").UID())
	assert.True(t, s.HasEdge(a, b, EdgeConcrete))
}

func TestRename_NameTaken(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	a := mustPackage(t, s, "a", UniqueID{})
	mustComponent(t, s, "b", UniqueID{})

	err := s.Rename(a, "b", "b")
	assert.ErrorIs(t, err, ErrNameTaken)
	assert.Equal(t, "a", s.GetByID(a).QualifiedName())
}

func TestSetParent_MovesChild(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	p1 := mustPackage(t, s, "p1", UniqueID{})
	p2 := mustPackage(t, s, "p2", UniqueID{})
	c := mustComponent(t, s, "c", p1)

	require.NoError(t, s.SetParent(c, p2))

	assert.Equal(t, p2, s.GetByID(c).Parent())
	s.GetByID(p1).WithRead(func(v View) { assert.Zero(t, v.ChildCount()) })
	s.GetByID(p2).WithRead(func(v View) { assert.Equal(t, []UniqueID{c}, v.Children()) })

	require.NoError(t, s.SetParent(c, UniqueID{}))
	assert.True(t, s.GetByID(c).Parent().IsZero())
}

func TestRemove_DetachesEverything(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	pkg := mustPackage(t, s, "pkg", UniqueID{})
	c := mustComponent(t, s, "c", pkg)
	other := mustComponent(t, s, "other", pkg)
	typ := mustType(t, s, "T", c)
	_, err := s.AddEdge(other, c, EdgeConcrete)
	require.NoError(t, err)

	e := s.GetByID(c)
	require.NoError(t, s.Remove(c))

	assert.Nil(t, s.GetByID(c))
	assert.Nil(t, s.Get(KindComponent, "c"))
	e.WithRead(func(v View) { assert.True(t, v.Removed()) })
	s.GetByID(pkg).WithRead(func(v View) { assert.Equal(t, []UniqueID{other}, v.Children()) })
	s.GetByID(other).WithRead(func(v View) { assert.False(t, v.HasEdges()) })
	assert.True(t, s.GetByID(typ).Parent().IsZero())

	assert.ErrorIs(t, s.Remove(c), ErrNotFound)
}

func TestWithWrite_SetDetailsChecksKind(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	typ := mustType(t, s, "T", UniqueID{})

	var err error
	s.GetByID(typ).WithWrite(func(m Mut) {
		err = m.SetDetails(TypeDetails{TypeKind: TypeStruct, Access: AccessPublic})
	})
	require.NoError(t, err)
	assert.Equal(t, TypeStruct, s.GetByID(typ).Details().(TypeDetails).TypeKind)

	s.GetByID(typ).WithWrite(func(m Mut) {
		err = m.SetDetails(FieldDetails{})
	})
	var mismatch *DetailsMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, KindType, mismatch.Kind)
	assert.Equal(t, KindField, mismatch.DetailsKind)
}

func TestDetails_ReturnedCopyIsIsolated(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	m, err := s.GetOrAddMethod("T::f(int)", "f", UniqueID{}, MethodDetails{Params: []string{"int"}})
	require.NoError(t, err)

	d := m.Details().(MethodDetails)
	d.Params[0] = "mutated"
	assert.Equal(t, []string{"int"}, m.Details().(MethodDetails).Params)
}

// =============================================================================
// Digest
// =============================================================================

func TestDigest_IndependentOfCreationOrder(t *testing.T) {
	t.Parallel()

	build := func(reverse bool) string {
		s := New()
		names := []string{"a", "b", "c"}
		if reverse {
			names = []string{"c", "b", "a"}
		}
		for _, n := range names {
			mustPackage(t, s, n, UniqueID{})
		}
		a := s.Get(KindPackage, "a").UID()
		c := s.Get(KindPackage, "c").UID()
		_, err := s.AddEdge(a, c, EdgeConcrete)
		require.NoError(t, err)
		return s.Digest()
	}

	assert.Equal(t, build(false), build(true))
}

func TestDigest_ChangesWithContent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	a := mustPackage(t, s, "a", UniqueID{})
	b := mustPackage(t, s, "b", UniqueID{})
	before := s.Digest()

	_, err := s.AddEdge(a, b, EdgeAllowed)
	require.NoError(t, err)
	assert.NotEqual(t, before, s.Digest())

	_, err = s.RemoveEdge(a, b, EdgeAllowed)
	require.NoError(t, err)
	assert.Equal(t, before, s.Digest())
}

// =============================================================================
// Types
// =============================================================================

func TestUniqueID_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, uid := range []UniqueID{{}, {Kind: KindComponent, ID: 7}, {Kind: KindDiagnostic, ID: 1}} {
		got, err := ParseUniqueID(uid.String())
		require.NoError(t, err)
		assert.Equal(t, uid, got)
	}
	_, err := ParseUniqueID("component")
	assert.Error(t, err)
	_, err = ParseUniqueID("widget:3")
	assert.Error(t, err)
}

func TestEdgeKind_Classes(t *testing.T) {
	t.Parallel()

	assert.True(t, EdgeIsA.IsLogical())
	assert.True(t, EdgeUsesInTheInterface.IsLogical())
	assert.False(t, EdgeConcrete.IsLogical())
	assert.True(t, EdgeAllowed.IsPhysical())
	assert.False(t, EdgeIncludes.IsPhysical())
	assert.False(t, EdgeIncludes.IsLogical())
}
