package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/jward/strata"
	"github.com/jward/strata/internal/discover"
)

var flagDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Re-analyze whenever a C++ unit changes",
	Long:  "Runs the analysis once, then watches the tree and runs it again after each burst of changes. The model is saved after every run.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWatch,
}

func init() {
	addRunFlags(watchCmd)
	watchCmd.Flags().DurationVar(&flagDebounce, "debounce", 500*time.Millisecond, "quiet period before a run starts")
}

func runWatch(cmd *cobra.Command, args []string) error {
	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return err
	}
	dbPath := resolveDBPath(findRepoRoot(targetDir))
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err)
	}

	engine, mode, err := openRunEngine(targetDir, dbPath)
	if err != nil {
		return err
	}
	defer engine.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()
	if err := addRecursive(watcher, targetDir); err != nil {
		return fmt.Errorf("watching %s: %w", targetDir, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := runAndReport(ctx, engine, mode); err != nil {
		return err
	}

	accept := unitExtensions(engine)
	var timer *time.Timer
	var timerC <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) && watchNewDir(watcher, ev.Name, os.Stderr) {
				continue
			}
			if !accept[strings.ToLower(filepath.Ext(ev.Name))] {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(flagDebounce)
				timerC = timer.C
			} else {
				timer.Reset(flagDebounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watch: %s\n", err)

		case <-timerC:
			timer, timerC = nil, nil
			if err := runAndReport(ctx, engine, mode); err != nil {
				return err
			}
		}
	}
}

// runAndReport runs the analysis, saves the model and prints a summary. A
// failed run is reported and the watch goes on; only a failed save stops
// it.
func runAndReport(ctx context.Context, e *strata.Engine, mode strata.Mode) error {
	start := time.Now()
	runErr := e.RunDirectory(ctx, mode)
	if ctx.Err() != nil {
		return nil
	}
	if err := e.Save(context.Background()); err != nil {
		return err
	}
	summary := CLIRunSummary{
		RunID:    e.RunID(),
		State:    e.State().String(),
		Changed:  e.MadeChanges(),
		Duration: time.Since(start).Round(time.Millisecond).String(),
	}
	if runErr != nil {
		summary.Error = runErr.Error()
	}
	return outputResult(CLIResult{Command: "watch", Results: summary})
}

// addRecursive watches root and every directory below it, skipping hidden
// directories.
func addRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}

// watchNewDir adds a created directory and its subdirectories to w. It
// reports whether path is a directory; a failure to watch it is written to
// errOut like the watcher's own errors.
func watchNewDir(w *fsnotify.Watcher, path string, errOut io.Writer) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	if err := addRecursive(w, path); err != nil {
		fmt.Fprintf(errOut, "watch: %s\n", err)
	}
	return true
}

// unitExtensions returns the lower-cased extensions whose changes trigger
// a run.
func unitExtensions(e *strata.Engine) map[string]bool {
	exts := e.Config().Extensions
	if len(exts) == 0 {
		exts = discover.DefaultExtensions
	}
	out := make(map[string]bool, len(exts))
	for _, x := range exts {
		out[strings.ToLower(x)] = true
	}
	if flagDeps {
		out[".dep"] = true
	}
	return out
}
