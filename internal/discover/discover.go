// Package discover finds the C++ analysis units of a source tree.
package discover

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"
)

// DefaultExtensions are the C++ source and header extensions.
var DefaultExtensions = []string{".h", ".hh", ".hpp", ".hxx", ".c", ".cc", ".cpp", ".cxx", ".ipp", ".tpp"}

var headerExtensions = map[string]bool{
	".h": true, ".hh": true, ".hpp": true, ".hxx": true, ".ipp": true, ".tpp": true,
}

// IsHeader reports whether path names a header by its extension.
func IsHeader(path string) bool {
	return headerExtensions[strings.ToLower(filepath.Ext(path))]
}

var skipDirs = map[string]bool{
	"node_modules":        true,
	"vendor":              true,
	"build":               true,
	"cmake-build-debug":   true,
	"cmake-build-release": true,
}

// Options narrows discovery.
type Options struct {
	// Extensions to accept, with the leading dot. Empty means
	// DefaultExtensions.
	Extensions []string
	// Ignore holds extra gitignore-style patterns.
	Ignore []string
}

// Files returns the slash-separated paths, relative to root and sorted, of
// every analysis unit under root. Inside a git work tree the file list comes
// from git ls-files, which honors .gitignore; otherwise the tree is walked
// and the root .gitignore applied. Hidden directories and build output are
// never entered.
func Files(ctx context.Context, root string, opts Options) ([]string, error) {
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	accept := make(map[string]bool, len(exts))
	for _, e := range exts {
		accept[strings.ToLower(e)] = true
	}
	var extra *ignore.GitIgnore
	if len(opts.Ignore) > 0 {
		extra = ignore.CompileIgnoreLines(opts.Ignore...)
	}

	keep := func(rel string) bool {
		if !accept[strings.ToLower(filepath.Ext(rel))] {
			return false
		}
		return extra == nil || !extra.MatchesPath(rel)
	}

	if tracked, err := gitListFiles(ctx, root); err == nil {
		var out []string
		for _, rel := range tracked {
			if keep(rel) && !inSkippedDir(rel) {
				out = append(out, rel)
			}
		}
		sort.Strings(out)
		return out, nil
	}
	return walkListFiles(ctx, root, keep)
}

// gitListFiles lists tracked and untracked, not ignored, files.
func gitListFiles(ctx context.Context, root string) ([]string, error) {
	if info, err := os.Stat(filepath.Join(root, ".git")); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("git ls-files: %s is not a work tree root", root)
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			paths = append(paths, line)
		}
	}
	return paths, nil
}

func walkListFiles(ctx context.Context, root string, keep func(string) bool) ([]string, error) {
	gi, _ := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == root {
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if strings.HasPrefix(name, ".") || skipDirs[name] {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}
		if keep(rel) {
			paths = append(paths, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

func inSkippedDir(rel string) bool {
	parts := strings.Split(rel, "/")
	for _, p := range parts[:len(parts)-1] {
		if skipDirs[p] {
			return true
		}
	}
	return false
}
