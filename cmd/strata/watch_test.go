package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWatcher(t *testing.T) *fsnotify.Watcher {
	t.Helper()
	w, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return w
}

func TestWatchNewDir_AddsSubdirectories(t *testing.T) {
	t.Parallel()
	w := newTestWatcher(t)
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "grp", "grpa"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "grp", ".hidden"), 0o755))

	var errOut bytes.Buffer
	assert.True(t, watchNewDir(w, filepath.Join(root, "grp"), &errOut))
	assert.Empty(t, errOut.String())
	assert.ElementsMatch(t, []string{
		filepath.Join(root, "grp"),
		filepath.Join(root, "grp", "grpa"),
	}, w.WatchList())
}

func TestWatchNewDir_IgnoresFiles(t *testing.T) {
	t.Parallel()
	w := newTestWatcher(t)
	file := filepath.Join(t.TempDir(), "grpa_widget.h")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	var errOut bytes.Buffer
	assert.False(t, watchNewDir(w, file, &errOut))
	assert.False(t, watchNewDir(w, filepath.Join(t.TempDir(), "gone"), &errOut))
	assert.Empty(t, errOut.String())
	assert.Empty(t, w.WatchList())
}

func TestWatchNewDir_ReportsWatchFailure(t *testing.T) {
	t.Parallel()
	w, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	require.NoError(t, w.Close())

	var errOut bytes.Buffer
	assert.True(t, watchNewDir(w, t.TempDir(), &errOut))
	assert.Contains(t, errOut.String(), "watch: ")
}
