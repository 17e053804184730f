package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/strata/internal/store"
)

func writeDepFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

// allowedModel builds two groups and a standalone package:
//
//	groups/grp: grpa, grpb
//	groups/grp2: grp2a
//	standalones/sln
func allowedModel(t *testing.T) (*Engine, map[string]store.UniqueID) {
	t.Helper()
	e := newTestEngine(t)
	ids := make(map[string]store.UniqueID)
	ids["grp"] = mustPackage(t, e, "groups/grp", store.UniqueID{})
	ids["grpa"] = mustPackage(t, e, "groups/grp/grpa", ids["grp"])
	ids["grpb"] = mustPackage(t, e, "groups/grp/grpb", ids["grp"])
	ids["grp2"] = mustPackage(t, e, "groups/grp2", store.UniqueID{})
	ids["grp2a"] = mustPackage(t, e, "groups/grp2/grp2a", ids["grp2"])
	ids["sln"] = mustPackage(t, e, "standalones/sln", store.UniqueID{})
	mustComponent(t, e, "standalones/sln/sln_c", ids["sln"])
	return e, ids
}

// =============================================================================
// Allowed dependencies
// =============================================================================

func TestLoadAllowedDependencies(t *testing.T) {
	t.Parallel()
	e, ids := allowedModel(t)
	root := t.TempDir()
	writeDepFile(t, root, "groups/grp/group/grp.dep", "grp2\n  sln  \n\ngrp\ngrp2\nunknown\n")
	writeDepFile(t, root, "groups/grp/grpb/package/grpb.t.dep", "grpa\n")
	writeDepFile(t, root, "standalones/sln/package/sln.dep", "grp2\n")

	res, err := e.LoadAllowedDependencies(root)
	require.NoError(t, err)
	assert.Equal(t, AllowedResult{Added: 4}, res)

	s := e.Store()
	assert.True(t, s.HasEdge(ids["grp"], ids["grp2"], store.EdgeAllowed))
	assert.True(t, s.HasEdge(ids["grp"], ids["sln"], store.EdgeAllowed))
	assert.True(t, s.HasEdge(ids["grpb"], ids["grpa"], store.EdgeAllowed))
	assert.True(t, s.HasEdge(ids["sln"], ids["grp2"], store.EdgeAllowed))
	assert.False(t, s.HasEdge(ids["grp"], ids["grp"], store.EdgeAllowed))
	assert.False(t, s.HasEdge(ids["grpb"], ids["grpa"], store.EdgeConcrete))
}

func TestLoadAllowedDependencies_Reconciles(t *testing.T) {
	t.Parallel()
	e, ids := allowedModel(t)
	root := t.TempDir()
	writeDepFile(t, root, "groups/grp/group/grp.dep", "grp2\nsln\n")

	_, err := e.LoadAllowedDependencies(root)
	require.NoError(t, err)
	digest := e.Store().Digest()

	res, err := e.LoadAllowedDependencies(root)
	require.NoError(t, err)
	assert.Equal(t, AllowedResult{}, res)
	assert.Equal(t, digest, e.Store().Digest())

	writeDepFile(t, root, "groups/grp/group/grp.dep", "grp2\n")
	res, err = e.LoadAllowedDependencies(root)
	require.NoError(t, err)
	assert.Equal(t, AllowedResult{Removed: 1}, res)
	assert.True(t, e.Store().HasEdge(ids["grp"], ids["grp2"], store.EdgeAllowed))
	assert.False(t, e.Store().HasEdge(ids["grp"], ids["sln"], store.EdgeAllowed))
}

func TestLoadAllowedDependencies_KeepsConcreteEdges(t *testing.T) {
	t.Parallel()
	e, ids := allowedModel(t)
	require.NoError(t, e.AddPhysicalDependency(ids["grp"], ids["grp2"], store.EdgeConcrete))

	res, err := e.LoadAllowedDependencies(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, AllowedResult{}, res)
	assert.True(t, e.Store().HasEdge(ids["grp"], ids["grp2"], store.EdgeConcrete))
}

func TestLoadAllowedDependencies_NotifiesObservers(t *testing.T) {
	t.Parallel()
	e, ids := allowedModel(t)
	root := t.TempDir()
	writeDepFile(t, root, "groups/grp2/grp2a/package/grp2a.dep", "grp2a\n")
	writeDepFile(t, root, "groups/grp/grpa/package/grpa.dep", "grpb\n")

	rec := &recorder{}
	unsubscribe := e.Subscribe(rec)
	defer unsubscribe()

	_, err := e.LoadAllowedDependencies(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"dep+ " + ids["grpa"].String() + " " + ids["grpb"].String() + " allowed"}, rec.events)
}

func TestLoadAllowedDependencies_UnreadableFile(t *testing.T) {
	t.Parallel()
	e, _ := allowedModel(t)
	root := t.TempDir()
	// A directory where the file is expected cannot be scanned.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "standalones", "sln", "package", "sln.dep"), 0o755))

	_, err := e.LoadAllowedDependencies(root)
	assert.Error(t, err)
}
