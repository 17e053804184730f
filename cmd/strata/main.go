package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/strata"
	"github.com/jward/strata/internal/config"
	"github.com/jward/strata/internal/logging"
	"github.com/jward/strata/internal/runtime"
	"github.com/jward/strata/scripts"
)

var (
	flagDB      string
	flagFormat  string
	flagVerbose int
	flagQuiet   bool
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "strata",
	Short:         "Physical and logical architecture analysis for C++",
	Long:          "Strata models a C++ code base as package groups, packages, components and types, and checks the model against Lakos' design rules.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: .strata/strata.db relative to repo root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text|yaml")
	rootCmd.PersistentFlags().CountVarP(&flagVerbose, "verbose", "v", "increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "silence logging")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(watchCmd)
}

var (
	flagForce      bool
	flagMode       string
	flagScript     bool
	flagScriptsDir string
	flagWorkers    int
	flagSerial     bool
	flagDeps       bool
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Analyze a repository",
	Long:  "Discovers C++ units, extracts the physical and logical model and writes it to the SQLite database. Unchanged units are skipped.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func init() {
	addRunFlags(indexCmd)
	indexCmd.Flags().BoolVar(&flagForce, "force", false, "delete database and analyze from scratch")
}

// addRunFlags registers the flags shared by commands that run the pipeline.
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagMode, "mode", "", "parse mode: physical|full (default from config)")
	cmd.Flags().BoolVar(&flagScript, "script", false, "extract with the Risor script instead of the built-in front end")
	cmd.Flags().StringVar(&flagScriptsDir, "scripts-dir", "", "load scripts from disk path instead of embedded (implies --script)")
	cmd.Flags().IntVar(&flagWorkers, "workers", 0, "extraction workers (default from config)")
	cmd.Flags().BoolVar(&flagSerial, "serial", false, "extract on a single worker")
	cmd.Flags().BoolVar(&flagDeps, "deps", false, "load Allowed dependencies from BDE .dep files after each run")
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()

	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return err
	}
	dbPath := resolveDBPath(findRepoRoot(targetDir))

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err)
	}
	if flagForce {
		if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing database for --force: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Cleared database: %s\n", dbPath)
	}

	engine, mode, err := openRunEngine(targetDir, dbPath)
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	runErr := engine.RunDirectory(ctx, mode)
	// The snapshot records the final state, including a failed or stopped
	// run, so that the next run does not reuse it.
	if err := engine.Save(context.Background()); err != nil {
		return err
	}
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return fmt.Errorf("analysis stopped")
		}
		return fmt.Errorf("analyzing: %w", runErr)
	}

	fmt.Fprintf(os.Stderr, "Analyzed %s in %s (state: %s, changed: %t)\n",
		targetDir, time.Since(start).Round(time.Millisecond), engine.State(), engine.MadeChanges())
	fmt.Fprintf(os.Stderr, "Database: %s\n", dbPath)
	return nil
}

// openRunEngine loads the repository config under root and creates an
// Engine configured from it and from the run flags.
func openRunEngine(root, dbPath string) (*strata.Engine, strata.Mode, error) {
	cfg, err := config.LoadConfig(root)
	if err != nil {
		return nil, 0, err
	}
	mode, err := strata.ParseMode(cmp.Or(flagMode, cfg.Mode))
	if err != nil {
		return nil, 0, err
	}
	logger := newLogger(cfg)

	opts := []strata.Option{
		strata.WithRoot(root),
		strata.WithConfig(cfg),
		strata.WithLogger(logger),
		strata.WithParallel(!flagSerial),
		strata.WithWorkers(flagWorkers),
		strata.WithAllowedDependencies(flagDeps),
	}
	if flagScript || flagScriptsDir != "" {
		p, err := scriptProducer(logger)
		if err != nil {
			return nil, 0, err
		}
		opts = append(opts, strata.WithProducer(p))
	}

	engine, err := strata.New(dbPath, opts...)
	if err != nil {
		return nil, 0, fmt.Errorf("creating engine: %w", err)
	}
	return engine, mode, nil
}

// scriptProducer loads the C++ extraction script from --scripts-dir, or
// from the embedded scripts.
func scriptProducer(logger *slog.Logger) (*runtime.ScriptProducer, error) {
	opts := []runtime.RuntimeOption{runtime.WithLogger(logger)}
	if flagScriptsDir == "" {
		opts = append(opts, runtime.WithRuntimeFS(scripts.FS))
	}
	rt := runtime.NewRuntime(flagScriptsDir, opts...)
	p, err := runtime.NewScriptProducer(rt, runtime.ExtractionScriptPath("cpp"))
	if err != nil {
		return nil, fmt.Errorf("loading extraction script: %w", err)
	}
	return p, nil
}

// newLogger builds the stderr logger. -v and --quiet override the
// configured level.
func newLogger(cfg *config.Config) *slog.Logger {
	level := logging.LevelFromString(cfg.Logging.Level)
	if flagVerbose > 0 || flagQuiet {
		level = logging.LevelFromVerbosity(flagVerbose, flagQuiet)
	}
	return logging.NewLogger(os.Stderr, level)
}

// resolveTargetDir returns the absolute path of the directory to analyze.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

// resolveDBPath returns the database path from the --db flag or the default.
func resolveDBPath(repoRoot string) string {
	if flagDB != "" {
		if filepath.IsAbs(flagDB) {
			return flagDB
		}
		return filepath.Join(repoRoot, flagDB)
	}
	return filepath.Join(repoRoot, config.Dir, "strata.db")
}
