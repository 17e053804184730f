package strata

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/strata/internal/config"
	"github.com/jward/strata/internal/persist"
	"github.com/jward/strata/internal/store"
)

const fixtureDir = "testdata/cpp/level-01-packages/src"

// copyFixture copies a testdata source tree into a temp dir so tests can
// edit it.
func copyFixture(t *testing.T, src string) string {
	t.Helper()
	dst := t.TempDir()
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o644)
	})
	require.NoError(t, err)
	return dst
}

func openFixtureEngine(t *testing.T, root, dbPath string, opts ...Option) *Engine {
	t.Helper()
	cfg, err := config.LoadConfig(root)
	require.NoError(t, err)
	e, err := New(dbPath, append([]Option{WithRoot(root), WithConfig(cfg)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func hasEdge(s *store.Store, from, to string, k store.EdgeKind) bool {
	f, d := s.FindByQualifiedName(from), s.FindByQualifiedName(to)
	return f != nil && d != nil && s.HasEdge(f.UID(), d.UID(), k)
}

// =============================================================================
// Persistence
// =============================================================================

func TestIntegration_ReloadSkipsUnchangedUnits(t *testing.T) {
	t.Parallel()
	root := copyFixture(t, fixtureDir)
	dbPath := filepath.Join(t.TempDir(), "strata.db")
	ctx := context.Background()

	first := openFixtureEngine(t, root, dbPath)
	require.NoError(t, first.RunDirectory(ctx, ModeFull))
	require.True(t, first.MadeChanges())
	require.NoError(t, first.Save(ctx))
	digest := first.Store().Digest()
	runID := first.RunID()
	require.NoError(t, first.Close())

	second := openFixtureEngine(t, root, dbPath)
	assert.Equal(t, AllReady, second.State())
	assert.Equal(t, runID, second.RunID())
	assert.Equal(t, digest, second.Store().Digest())

	require.NoError(t, second.RunDirectory(ctx, ModeFull))
	assert.False(t, second.MadeChanges())
	assert.Equal(t, digest, second.Store().Digest())
	assert.True(t, hasEdge(second.Store(), "grp::Widget", "grp::Base", store.EdgeIsA))
}

func TestIntegration_EditRetractsDerivedDependencies(t *testing.T) {
	t.Parallel()
	root := copyFixture(t, fixtureDir)
	ctx := context.Background()

	e := openFixtureEngine(t, root, "")
	require.NoError(t, e.RunDirectory(ctx, ModeFull))
	s := e.Store()
	require.True(t, hasEdge(s, "groups/grp/grpb", "groups/grp/grpa", store.EdgeConcrete))

	user := filepath.Join(root, "groups", "grp", "grpb", "grpb_user.h")
	require.NoError(t, os.WriteFile(user, []byte(`namespace grp {
class User {
  private:
    int d_count;
};
}
`), 0o644))

	require.NoError(t, e.RunDirectory(ctx, ModeFull))
	assert.True(t, e.MadeChanges())
	assert.False(t, hasEdge(s, "groups/grp/grpb", "groups/grp/grpa", store.EdgeConcrete))
	assert.False(t, hasEdge(s, "groups/grp/grpb/grpb_user", "groups/grp/grpa/grpa_widget", store.EdgeConcrete))
	assert.False(t, hasEdge(s, "grp::User", "grp::Widget", store.EdgeUsesInTheImplementation))
	assert.NotNil(t, s.Get(store.KindType, "grp::User"))

	// Dependencies inside grpa are untouched.
	assert.True(t, hasEdge(s, "groups/grp/grpa/grpa_widget", "groups/grp/grpa/grpa_base", store.EdgeConcrete))

	res, err := e.Query().Diagnostics(DiagnosticFilter{Kinds: []string{"missing_include"}}, Pagination{})
	require.NoError(t, err)
	assert.Zero(t, res.TotalCount)
}

func TestIntegration_FreshRunMatchesIncremental(t *testing.T) {
	t.Parallel()
	root := copyFixture(t, fixtureDir)
	ctx := context.Background()

	inc := openFixtureEngine(t, root, "")
	require.NoError(t, inc.RunDirectory(ctx, ModeFull))

	base := filepath.Join(root, "groups", "grp", "grpa", "grpa_base.h")
	require.NoError(t, os.WriteFile(base, []byte(`namespace grp {
class Base {
  public:
    long id() const;
};
}
`), 0o644))
	require.NoError(t, inc.RunDirectory(ctx, ModeFull))

	fresh := openFixtureEngine(t, root, "")
	require.NoError(t, fresh.RunDirectory(ctx, ModeFull))

	assert.Equal(t, fresh.Store().Digest(), inc.Store().Digest())
}

func TestIntegration_SharedDeclarationPayloadIsStable(t *testing.T) {
	t.Parallel()
	root := copyFixture(t, fixtureDir)
	ctx := context.Background()

	pkg := filepath.Join(root, "groups", "grp", "grpa")
	require.NoError(t, os.WriteFile(filepath.Join(pkg, "grpa_f.h"), []byte(`namespace grp {
void f(int a = 0);
}
`), 0o644))
	source := filepath.Join(pkg, "grpa_f.cpp")
	require.NoError(t, os.WriteFile(source, []byte(`#include "grpa_f.h"
namespace grp {
void f(int a) {}
}
`), 0o644))

	inc := openFixtureEngine(t, root, "")
	require.NoError(t, inc.RunDirectory(ctx, ModeFull))

	require.NoError(t, os.WriteFile(source, []byte(`#include "grpa_f.h"
namespace grp {
void f(int a) { (void)a; }
}
`), 0o644))
	require.NoError(t, inc.RunDirectory(ctx, ModeFull))

	fresh := openFixtureEngine(t, root, "")
	require.NoError(t, fresh.RunDirectory(ctx, ModeFull))

	assert.Equal(t, fresh.Store().Digest(), inc.Store().Digest())
	for _, s := range []*store.Store{inc.Store(), fresh.Store()} {
		f := s.Get(store.KindFunction, "grp::f")
		require.NotNil(t, f)
		d, ok := f.Details().(store.FunctionDetails)
		require.True(t, ok)
		assert.Equal(t, "f(int a = 0)", d.Signature)
	}
}

func TestIntegration_AllowedDependenciesFromDepFiles(t *testing.T) {
	t.Parallel()
	root := copyFixture(t, fixtureDir)
	ctx := context.Background()
	depFile := filepath.Join(root, "groups", "grp", "grpa", "package", "grpa.dep")
	require.NoError(t, os.MkdirAll(filepath.Dir(depFile), 0o755))
	require.NoError(t, os.WriteFile(depFile, []byte("grpb\ngrpa\n"), 0o644))

	e := openFixtureEngine(t, root, "", WithAllowedDependencies(true))
	require.NoError(t, e.RunDirectory(ctx, ModeFull))
	s := e.Store()
	assert.True(t, hasEdge(s, "groups/grp/grpa", "groups/grp/grpb", store.EdgeAllowed))
	assert.False(t, hasEdge(s, "groups/grp/grpa", "groups/grp/grpa", store.EdgeAllowed))
	assert.Equal(t, AllReady, e.State())

	require.NoError(t, os.WriteFile(depFile, nil, 0o644))
	require.NoError(t, e.RunDirectory(ctx, ModeFull))
	assert.True(t, e.MadeChanges())
	assert.False(t, hasEdge(s, "groups/grp/grpa", "groups/grp/grpb", store.EdgeAllowed))

	plain := openFixtureEngine(t, root, "")
	require.NoError(t, plain.RunDirectory(ctx, ModeFull))
	assert.Equal(t, plain.Store().Digest(), s.Digest())
}

// =============================================================================
// Export
// =============================================================================

func TestIntegration_ExportImport(t *testing.T) {
	t.Parallel()
	root := copyFixture(t, fixtureDir)

	e := openFixtureEngine(t, root, "")
	require.NoError(t, e.RunDirectory(context.Background(), ModePhysical))
	assert.Equal(t, PhysicalReady, e.State())
	assert.Empty(t, e.Store().IDs(store.KindType))

	var buf bytes.Buffer
	require.NoError(t, e.Export(&buf))

	s, meta, err := persist.Import(&buf)
	require.NoError(t, err)
	assert.Equal(t, e.Store().Digest(), s.Digest())
	assert.Equal(t, "physical_ready", meta.State)
	assert.Equal(t, "physical", meta.Mode)
	assert.Equal(t, e.RunID(), meta.RunID)
}
