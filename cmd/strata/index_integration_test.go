package main_test

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildBinary compiles the strata binary and returns the path.
// The binary is placed in t.TempDir() so it's cleaned up automatically.
func buildBinary(t *testing.T) string {
	t.Helper()
	binName := "strata"
	if runtime.GOOS == "windows" {
		binName += ".exe"
	}
	bin := filepath.Join(t.TempDir(), binName)
	cmd := exec.Command("go", "build", "-o", bin, ".")
	cmd.Dir = filepath.Join(projectRoot(t), "cmd", "strata")
	cmd.Env = append(os.Environ(), "CGO_ENABLED=1")
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "build failed: %s", string(out))
	return bin
}

// projectRoot returns the root of the project by walking up from the test
// file's directory to find go.mod.
func projectRoot(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok, "runtime.Caller failed")
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		require.NotEqual(t, parent, dir, "could not find project root")
		dir = parent
	}
}

// createFixture copies the level-01 C++ tree into a temporary repository
// with a .git dir so findRepoRoot stops there.
func createFixture(t *testing.T) string {
	t.Helper()
	src := filepath.Join(projectRoot(t), "testdata", "cpp", "level-01-packages", "src")
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dir, rel)
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
	return dir
}

// runStrata runs the binary in dir and returns stdout and stderr.
func runStrata(t *testing.T, bin, dir string, args ...string) (string, string, error) {
	t.Helper()
	cmd := exec.Command(bin, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func openDB(t *testing.T, dbPath string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func countRows(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(query, args...).Scan(&n))
	return n
}

func metadataValue(t *testing.T, db *sql.DB, key string) string {
	t.Helper()
	var v string
	require.NoError(t, db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&v))
	return v
}

// =============================================================================
// index
// =============================================================================

func TestIndex_CreatesDatabase(t *testing.T) {
	bin := buildBinary(t)
	dir := createFixture(t)

	_, stderr, err := runStrata(t, bin, dir, "index", "-q", dir)
	require.NoError(t, err, stderr)
	assert.Contains(t, stderr, "state: all_ready")

	dbPath := filepath.Join(dir, ".strata", "strata.db")
	require.FileExists(t, dbPath)
	db := openDB(t, dbPath)
	assert.Equal(t, 3, countRows(t, db, "SELECT COUNT(*) FROM units"))
	assert.Equal(t, 1, countRows(t, db, "SELECT COUNT(*) FROM entities WHERE kind = 'type' AND qualified_name = 'grp::Widget'"))
	assert.Equal(t, "all_ready", metadataValue(t, db, "state"))
}

func TestIndex_PhysicalMode(t *testing.T) {
	bin := buildBinary(t)
	dir := createFixture(t)

	_, stderr, err := runStrata(t, bin, dir, "index", "-q", "--mode", "physical", dir)
	require.NoError(t, err, stderr)

	db := openDB(t, filepath.Join(dir, ".strata", "strata.db"))
	assert.Equal(t, "physical_ready", metadataValue(t, db, "state"))
	assert.Zero(t, countRows(t, db, "SELECT COUNT(*) FROM entities WHERE kind = 'type'"))
	assert.Equal(t, 3, countRows(t, db, "SELECT COUNT(*) FROM entities WHERE kind = 'component'"))
}

func TestIndex_IncrementalSkip(t *testing.T) {
	bin := buildBinary(t)
	dir := createFixture(t)

	_, stderr, err := runStrata(t, bin, dir, "index", "-q", dir)
	require.NoError(t, err, stderr)

	_, stderr, err = runStrata(t, bin, dir, "index", "-q", dir)
	require.NoError(t, err, stderr)
	assert.Contains(t, stderr, "changed: false")
}

func TestIndex_Force_ClearsAndReindexes(t *testing.T) {
	bin := buildBinary(t)
	dir := createFixture(t)

	_, stderr, err := runStrata(t, bin, dir, "index", "-q", dir)
	require.NoError(t, err, stderr)

	_, stderr, err = runStrata(t, bin, dir, "index", "-q", "--force", dir)
	require.NoError(t, err, stderr)
	assert.Contains(t, stderr, "Cleared database")
	assert.Contains(t, stderr, "changed: true")
}

func TestIndex_CustomDBPath(t *testing.T) {
	bin := buildBinary(t)
	dir := createFixture(t)
	dbPath := filepath.Join(t.TempDir(), "custom.db")

	_, stderr, err := runStrata(t, bin, dir, "index", "-q", "--db", dbPath, dir)
	require.NoError(t, err, stderr)
	assert.FileExists(t, dbPath)
	assert.NoFileExists(t, filepath.Join(dir, ".strata", "strata.db"))
}

func TestIndex_NonExistentDirectory(t *testing.T) {
	bin := buildBinary(t)
	dir := t.TempDir()

	_, stderr, err := runStrata(t, bin, dir, "index", filepath.Join(dir, "missing"))
	require.Error(t, err)
	assert.Contains(t, stderr, "directory not found")
}

func TestIndex_AllowedDependencies(t *testing.T) {
	bin := buildBinary(t)
	dir := createFixture(t)
	depFile := filepath.Join(dir, "groups", "grp", "grpb", "package", "grpb.dep")
	require.NoError(t, os.MkdirAll(filepath.Dir(depFile), 0o755))
	require.NoError(t, os.WriteFile(depFile, []byte("grpa\n"), 0o644))

	const allowed = `SELECT COUNT(*) FROM edges e
		JOIN entities f ON f.uid = e.from_uid
		JOIN entities t ON t.uid = e.to_uid
		WHERE e.kind = 'allowed' AND f.qualified_name = ? AND t.qualified_name = ?`

	_, stderr, err := runStrata(t, bin, dir, "index", "-q", dir)
	require.NoError(t, err, stderr)
	db := openDB(t, filepath.Join(dir, ".strata", "strata.db"))
	assert.Zero(t, countRows(t, db, allowed, "groups/grp/grpb", "groups/grp/grpa"))
	require.NoError(t, db.Close())

	_, stderr, err = runStrata(t, bin, dir, "index", "-q", "--deps", dir)
	require.NoError(t, err, stderr)
	db = openDB(t, filepath.Join(dir, ".strata", "strata.db"))
	assert.Equal(t, 1, countRows(t, db, allowed, "groups/grp/grpb", "groups/grp/grpa"))
}

func TestIndex_ScriptProducer(t *testing.T) {
	bin := buildBinary(t)
	dir := createFixture(t)

	_, stderr, err := runStrata(t, bin, dir, "index", "-q", "--script", "--mode", "physical", dir)
	require.NoError(t, err, stderr)

	db := openDB(t, filepath.Join(dir, ".strata", "strata.db"))
	assert.Equal(t, 1, countRows(t, db, "SELECT COUNT(*) FROM entities WHERE kind = 'component' AND qualified_name = 'groups/grp/grpb/grpb_user'"))
}

// =============================================================================
// query
// =============================================================================

func TestQuery_WithoutIndex(t *testing.T) {
	bin := buildBinary(t)
	dir := createFixture(t)

	stdout, _, err := runStrata(t, bin, dir, "query", "levels", "packages")
	require.Error(t, err)
	var res struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.Contains(t, res.Error, "database not found")
}

func TestQuery_AfterIndex(t *testing.T) {
	bin := buildBinary(t)
	dir := createFixture(t)
	_, stderr, err := runStrata(t, bin, dir, "index", "-q", dir)
	require.NoError(t, err, stderr)

	t.Run("levels", func(t *testing.T) {
		stdout, stderr, err := runStrata(t, bin, dir, "query", "levels", "packages")
		require.NoError(t, err, stderr)
		var res struct {
			Command string `json:"command"`
			Results []struct {
				QualifiedName string `json:"qualified_name"`
				Level         int    `json:"level"`
			} `json:"results"`
		}
		require.NoError(t, json.Unmarshal([]byte(stdout), &res))
		assert.Equal(t, "levels", res.Command)
		levels := map[string]int{}
		for _, l := range res.Results {
			levels[l.QualifiedName] = l.Level
		}
		assert.Equal(t, 1, levels["groups/grp/grpa"])
		assert.Equal(t, 2, levels["groups/grp/grpb"])
	})

	t.Run("entity", func(t *testing.T) {
		stdout, stderr, err := runStrata(t, bin, dir, "query", "entity", "grp::Widget")
		require.NoError(t, err, stderr)
		var res struct {
			Results struct {
				Kind   string `json:"kind"`
				Name   string `json:"name"`
				Parent string `json:"parent"`
			} `json:"results"`
		}
		require.NoError(t, json.Unmarshal([]byte(stdout), &res))
		assert.Equal(t, "type", res.Results.Kind)
		assert.Equal(t, "Widget", res.Results.Name)
	})

	t.Run("cycles", func(t *testing.T) {
		stdout, stderr, err := runStrata(t, bin, dir, "query", "cycles", "components", "--format", "text")
		require.NoError(t, err, stderr)
		assert.Empty(t, strings.TrimSpace(stdout))
	})

	t.Run("diagnostics", func(t *testing.T) {
		stdout, stderr, err := runStrata(t, bin, dir, "query", "diagnostics", "--kind", "missing_include", "--format", "yaml")
		require.NoError(t, err, stderr)
		assert.Contains(t, stdout, "command: diagnostics")
		assert.Contains(t, stdout, "nowhere.h")
	})

	t.Run("invalid level", func(t *testing.T) {
		_, _, err := runStrata(t, bin, dir, "query", "levels", "types")
		require.Error(t, err)
	})
}

// =============================================================================
// export
// =============================================================================

func TestExport_WritesSnapshot(t *testing.T) {
	bin := buildBinary(t)
	dir := createFixture(t)
	_, stderr, err := runStrata(t, bin, dir, "index", "-q", dir)
	require.NoError(t, err, stderr)

	out := filepath.Join(t.TempDir(), "snapshot.jsonl.zst")
	_, stderr, err = runStrata(t, bin, dir, "export", "-o", out)
	require.NoError(t, err, stderr)
	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
