package strata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/strata/internal/rules"
	"github.com/jward/strata/internal/store"
)

// =============================================================================
// Hierarchy
// =============================================================================

func TestHierarchy_FullTree(t *testing.T) {
	t.Parallel()
	q, r := newTestQueryBuilder(t)
	comp := buildComponent(t, r, "foo")
	foo := addType(t, r, comp, "Foo", store.TypeClass)
	_, err := r.AddLogicalEntity("Inner", "grp::Foo::Inner", foo, store.TypeStruct)
	require.NoError(t, err)

	roots, err := q.Hierarchy("", 10)
	require.NoError(t, err)
	require.Len(t, roots, 1)

	grp := roots[0]
	assert.Equal(t, "groups/grp", grp.Entity.QualifiedName)
	assert.Equal(t, "lakosian", grp.Lakosian)
	require.Len(t, grp.Children, 1)

	pkg := grp.Children[0]
	assert.Equal(t, "grpa", pkg.Entity.Name)
	assert.Equal(t, "lakosian", pkg.Lakosian)
	require.Len(t, pkg.Children, 1)

	c := pkg.Children[0]
	assert.Equal(t, "component", c.Entity.Kind)
	assert.Equal(t, "grpa_foo", c.Entity.Name)
	require.Len(t, c.Children, 1)

	typ := c.Children[0]
	assert.Equal(t, "grp::Foo", typ.Entity.QualifiedName)
	assert.Empty(t, typ.Lakosian)
	require.Len(t, typ.Children, 1)
	assert.Equal(t, "grp::Foo::Inner", typ.Children[0].Entity.QualifiedName)
}

func TestHierarchy_Depth(t *testing.T) {
	t.Parallel()
	q, r := newTestQueryBuilder(t)
	buildComponent(t, r, "foo")

	roots, err := q.Hierarchy("groups/grp", 0)
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Empty(t, roots[0].Children)

	roots, err = q.Hierarchy("groups/grp", 1)
	require.NoError(t, err)
	require.Len(t, roots[0].Children, 1)
	assert.Empty(t, roots[0].Children[0].Children)
}

func TestHierarchy_Errors(t *testing.T) {
	t.Parallel()
	q, r := newTestQueryBuilder(t)
	buildComponent(t, r, "foo")

	got, err := q.Hierarchy("groups/nope", 3)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = q.Hierarchy("groups/grp", -1)
	require.Error(t, err)
}

// =============================================================================
// Lakosian
// =============================================================================

func TestLakosian(t *testing.T) {
	t.Parallel()
	q, r := newTestQueryBuilder(t)
	buildComponent(t, r, "foo")
	_, err := r.AddPackage("toolong", "toolong", UniqueID{})
	require.NoError(t, err)
	pkg := r.FindByQualifiedName("groups/grp/grpa")
	_, err = r.AddComponent("foo", "groups/grp/grpa/foo", pkg)
	require.NoError(t, err)

	all, err := q.Lakosian(false)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	bad, err := q.Lakosian(true)
	require.NoError(t, err)
	require.Len(t, bad, 2)

	byName := map[string]LakosianResult{}
	for _, res := range bad {
		byName[res.QualifiedName] = res
	}
	assert.Equal(t, rules.PackageGroupNameInvalidNumberOfChars.String(), byName["toolong"].Reason)
	assert.Equal(t, "package", byName["toolong"].Kind)
	assert.Equal(t, rules.ComponentDoesntStartWithParentName.String(), byName["groups/grp/grpa/foo"].Reason)
	assert.False(t, byName["groups/grp/grpa/foo"].Lakosian)
}
