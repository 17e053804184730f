package strata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/jward/strata/internal/config"
	"github.com/jward/strata/internal/cppfront"
	"github.com/jward/strata/internal/discover"
	"github.com/jward/strata/internal/extract"
	"github.com/jward/strata/internal/facts"
	"github.com/jward/strata/internal/logging"
	"github.com/jward/strata/internal/persist"
	"github.com/jward/strata/internal/rules"
	"github.com/jward/strata/internal/store"
)

// ErrNoDatabase is returned by Save on an Engine created without a
// database path.
var ErrNoDatabase = errors.New("strata: engine has no database")

// ErrRunning is returned by Run when another run is in progress.
var ErrRunning = errors.New("strata: a run is already in progress")

// IOError reports an analysis unit that could not be read. It aborts the
// run before anything is merged.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string { return "read " + e.Path + ": " + e.Err.Error() }

func (e *IOError) Unwrap() error { return e.Err }

// Engine orchestrates the strata pipeline: unit fingerprinting, retraction
// of stale facts, parallel extraction and the merge into the Store.
type Engine struct {
	root      string
	db        *persist.DB
	store     *store.Store
	rules     *rules.Engine
	extractor *extract.Extractor
	producer  facts.Producer
	cfg       *config.Config
	logger    *slog.Logger
	observers []rules.Observer

	useParallel bool
	workers     int
	allowedDeps bool

	runMu        sync.Mutex
	state        State
	mode         extract.Mode
	runID        string
	fingerprints map[string]string
	madeChanges  bool

	cancelMu sync.Mutex
	cancel   context.CancelFunc
}

// Option configures an Engine.
type Option func(*Engine)

// WithParallel controls parallel extraction. When true (default), Run
// extracts units on a worker pool and commits batches concurrently. Set to
// false for serial mode.
func WithParallel(parallel bool) Option {
	return func(e *Engine) {
		e.useParallel = parallel
	}
}

// WithWorkers bounds the extraction pool. Zero or less uses the configured
// worker count.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithAllowedDependencies makes every run finish by loading the Allowed
// dependencies declared in the BDE .dep files under the root.
func WithAllowedDependencies(load bool) Option {
	return func(e *Engine) {
		e.allowedDeps = load
	}
}

// WithLogger sets the logger for run progress.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithProducer replaces the built-in tree-sitter front end.
func WithProducer(p facts.Producer) Option {
	return func(e *Engine) {
		e.producer = p
	}
}

// WithConfig supplies the repository configuration. Without it the Engine
// uses config.DefaultConfig.
func WithConfig(cfg *config.Config) Option {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

// WithObserver registers o with the rule engine for the Engine's lifetime.
func WithObserver(o rules.Observer) Option {
	return func(e *Engine) {
		e.observers = append(e.observers, o)
	}
}

// WithRoot sets the analysis root. Unit paths are relative to it. The
// default is the working directory.
func WithRoot(root string) Option {
	return func(e *Engine) {
		e.root = root
	}
}

// New creates an Engine. When dbPath is not empty the model is persisted in
// a SQLite database there, and a snapshot already present is loaded so
// that the next run only processes what changed.
func New(dbPath string, opts ...Option) (*Engine, error) {
	e := &Engine{
		useParallel:  true,
		fingerprints: make(map[string]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.NewDiscardLogger()
	}
	if e.cfg == nil {
		e.cfg = config.DefaultConfig()
	}
	if e.producer == nil {
		e.producer = cppfront.New()
	}
	if e.root == "" {
		e.root = "."
	}
	root, err := filepath.Abs(e.root)
	if err != nil {
		return nil, fmt.Errorf("strata: resolve root: %w", err)
	}
	e.root = root

	xopts, err := e.cfg.ExtractOptions()
	if err != nil {
		return nil, fmt.Errorf("strata: %w", err)
	}
	if e.extractor, err = extract.New(xopts); err != nil {
		return nil, fmt.Errorf("strata: create extractor: %w", err)
	}

	e.store = store.New()
	if dbPath != "" {
		if err := e.open(dbPath); err != nil {
			return nil, err
		}
	}

	e.rules = rules.New(e.store)
	for _, o := range e.observers {
		e.rules.Subscribe(o)
	}
	return e, nil
}

// open attaches the database and loads its snapshot.
func (e *Engine) open(dbPath string) error {
	db, err := persist.Open(dbPath)
	if err != nil {
		return fmt.Errorf("strata: open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return fmt.Errorf("strata: migrate: %w", err)
	}
	s, meta, err := db.Load(context.Background())
	if err != nil {
		db.Close()
		return fmt.Errorf("strata: %w", err)
	}

	state, err := ParseState(meta.State)
	if err != nil {
		e.logger.Warn("ignoring stored state", "error", err)
	}
	if meta.Mode != "" {
		if m, err := extract.ParseMode(meta.Mode); err == nil {
			e.mode = m
		}
	}
	e.db = db
	e.store = s
	e.state = state
	e.runID = meta.RunID
	if meta.Fingerprints != nil {
		e.fingerprints = meta.Fingerprints
	}
	e.logger.Debug("loaded snapshot", "entities", s.Len(), "state", state, "run", meta.RunID)
	return nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	if e.db == nil {
		return nil
	}
	return e.db.Close()
}

// Save writes the current model to the database.
func (e *Engine) Save(ctx context.Context) error {
	if e.db == nil {
		return ErrNoDatabase
	}
	e.runMu.Lock()
	defer e.runMu.Unlock()

	if err := e.db.Save(ctx, e.store, e.meta()); err != nil {
		return fmt.Errorf("strata: save: %w", err)
	}
	return nil
}

// Export writes the model to w as a compressed snapshot that persist.Import
// reads back.
func (e *Engine) Export(w io.Writer) error {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	if err := persist.Export(w, e.store, e.meta()); err != nil {
		return fmt.Errorf("strata: export: %w", err)
	}
	return nil
}

func (e *Engine) meta() persist.Meta {
	meta := persist.Meta{
		State:        e.state.String(),
		RunID:        e.runID,
		SavedAt:      time.Now(),
		Fingerprints: e.fingerprints,
	}
	if e.mode != 0 {
		meta.Mode = e.mode.String()
	}
	return meta
}

// Store returns the underlying Store for direct access.
func (e *Engine) Store() *store.Store { return e.store }

// Rules returns the rule engine over the Store.
func (e *Engine) Rules() *rules.Engine { return e.rules }

// Root returns the absolute analysis root.
func (e *Engine) Root() string { return e.root }

// Config returns the repository configuration the Engine runs with.
func (e *Engine) Config() *config.Config { return e.cfg }

// Query returns a new QueryBuilder over the model.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{store: e.store, rules: e.rules}
}

// State returns the model state after the last run.
func (e *Engine) State() State {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	return e.state
}

// MadeChanges reports whether the last run changed the model's content.
func (e *Engine) MadeChanges() bool {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	return e.madeChanges
}

// RunID returns the id of the last run, or of the run that produced the
// loaded snapshot.
func (e *Engine) RunID() string {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	return e.runID
}

// Cancel stops the run in progress, if any. The run discards everything it
// extracted and ends in ManuallyStopped.
func (e *Engine) Cancel() {
	e.cancelMu.Lock()
	defer e.cancelMu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
}

// RunDirectory discovers every analysis unit under the root and runs them.
func (e *Engine) RunDirectory(ctx context.Context, mode extract.Mode) error {
	paths, err := discover.Files(ctx, e.root, discover.Options{
		Extensions: e.cfg.Extensions,
		Ignore:     e.cfg.Ignore,
	})
	if err != nil {
		return fmt.Errorf("strata: discover: %w", err)
	}
	return e.Run(ctx, paths, mode)
}

// Run brings the model up to date with the given units. paths is the
// complete set of units: units analyzed before but missing from paths are
// retracted. Relative paths are taken relative to the root.
//
// The run has three phases:
//
//	Phase A (serial):   read and fingerprint units, retract what is stale.
//	Phase B (parallel): extract each stale unit into its own batch.
//	Phase C (parallel): merge entities, then edges, then derived
//	                    physical dependencies.
//
// With WithAllowedDependencies the run then reconciles the Allowed
// dependencies with the .dep files.
func (e *Engine) Run(ctx context.Context, paths []string, mode extract.Mode) error {
	if mode == 0 {
		mode = extract.ModeFull
	}
	if !e.runMu.TryLock() {
		return ErrRunning
	}
	defer e.runMu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	e.cancelMu.Lock()
	e.cancel = cancel
	e.cancelMu.Unlock()
	defer func() {
		e.cancelMu.Lock()
		e.cancel = nil
		e.cancelMu.Unlock()
	}()

	r := &run{
		e:      e,
		id:     newRunID(),
		paths:  paths,
		mode:   mode,
		before: e.store.Digest(),
	}
	r.log = e.logger.With("run", r.id)
	e.runID = r.id
	e.madeChanges = false

	err := r.execute(ctx)
	e.state = r.state
	if e.store.Digest() != r.before {
		e.madeChanges = true
	}
	if err != nil {
		r.log.Warn("run failed", "state", r.state, "error", err)
		return err
	}
	e.mode = mode
	r.log.Info("run complete", "state", r.state, "units", len(r.units), "extracted", len(r.stale))
	return nil
}

// workerCount is the size of the extraction pool.
func (e *Engine) workerCount() int {
	if !e.useParallel {
		return 1
	}
	if e.workers > 0 {
		return e.workers
	}
	if e.cfg.Workers > 0 {
		return e.cfg.Workers
	}
	return runtime.NumCPU()
}

// unitPath converts a file path to the root-relative slash path that
// identifies the unit.
func (e *Engine) unitPath(p string) (rel, abs string, err error) {
	abs = p
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(e.root, p)
	}
	rel, err = filepath.Rel(e.root, abs)
	if err != nil {
		return "", "", err
	}
	return filepath.ToSlash(rel), abs, nil
}

// readUnit loads one unit for Phase A.
func (e *Engine) readUnit(p string) (facts.Unit, error) {
	rel, abs, err := e.unitPath(p)
	if err != nil {
		return facts.Unit{}, &IOError{Path: p, Err: err}
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return facts.Unit{}, &IOError{Path: rel, Err: err}
	}
	return facts.Unit{
		Path:     rel,
		AbsPath:  abs,
		Content:  content,
		IsHeader: discover.IsHeader(rel),
		Hash:     fingerprint(content),
	}, nil
}
