package strata

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jward/strata/internal/extract"
	"github.com/jward/strata/internal/facts"
	"github.com/jward/strata/internal/store"
)

// run is the state of one Engine.Run call.
type run struct {
	e      *Engine
	id     string
	paths  []string
	mode   extract.Mode
	log    *slog.Logger
	before string
	state  State

	units map[string]facts.Unit
	stale []string
}

func newRunID() string { return uuid.NewString() }

// fingerprint is the content hash stored per unit.
func fingerprint(content []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(content))
}

func (r *run) execute(ctx context.Context) error {
	start := time.Now()
	if err := r.prepare(); err != nil {
		r.state = Error
		return err
	}
	r.phaseDone("A", len(r.stale), start)

	start = time.Now()
	batches, err := r.extract(ctx)
	if err != nil {
		r.state = ManuallyStopped
		return err
	}
	r.phaseDone("B", len(batches), start)

	start = time.Now()
	if err := r.commit(batches); err != nil {
		r.state = LogicalError
		if r.mode == extract.ModePhysical {
			r.state = PhysicalError
		}
		return err
	}
	r.phaseDone("C", len(batches), start)

	if r.e.allowedDeps {
		res, err := r.e.rules.LoadAllowedDependencies(r.e.root)
		if err != nil {
			r.state = PhysicalError
			return err
		}
		r.log.Debug("allowed dependencies loaded", "added", res.Added, "removed", res.Removed)
	}

	for p, u := range r.units {
		r.e.fingerprints[p] = u.Hash
	}
	r.state = AllReady
	if r.mode == extract.ModePhysical {
		r.state = PhysicalReady
	}
	return nil
}

func (r *run) phaseDone(phase string, units int, start time.Time) {
	r.log.Info("phase complete", "phase", phase, "units", units, "duration", time.Since(start))
}

// ============================================================================
// Phase A: fingerprint and retract
// ============================================================================

// prepare reads every unit, decides which are stale and retracts them
// together with everything their retraction disturbs. Nothing is retracted
// when a unit cannot be read.
func (r *run) prepare() error {
	e := r.e
	r.units = make(map[string]facts.Unit, len(r.paths))
	var errs []error
	for _, p := range r.paths {
		u, err := e.readUnit(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		r.units[u.Path] = u
	}
	if len(errs) > 0 {
		return fmt.Errorf("analysis had %d error(s): %w", len(errs), errs[0])
	}
	e.extractor.SetKnownUnits(func(p string) bool {
		_, ok := r.units[p]
		return ok
	})

	// Unchanged units are reused only on top of a complete model built in
	// the same mode.
	reuse := e.state.Ready() && e.mode == r.mode

	stale := make(map[string]bool)
	var queue []string
	for p, u := range r.units {
		if !reuse || e.fingerprints[p] != u.Hash {
			stale[p] = true
			queue = append(queue, p)
		}
	}
	previous := make(map[string]bool)
	for p := range e.fingerprints {
		previous[p] = true
	}
	for _, p := range e.store.Units() {
		previous[p] = true
	}
	for p := range previous {
		if _, ok := r.units[p]; !ok {
			queue = append(queue, p)
		}
	}
	sort.Strings(queue)

	retracted := make(map[string]bool)
	for len(queue) > 0 {
		for len(queue) > 0 {
			p := queue[0]
			queue = queue[1:]
			if retracted[p] {
				continue
			}
			retracted[p] = true
			delete(e.fingerprints, p)
			for _, t := range e.store.RetractUnit(p) {
				if retracted[t] {
					continue
				}
				if _, ok := r.units[t]; ok {
					stale[t] = true
				}
				queue = append(queue, t)
			}
		}
		// A unit whose references or includes did not resolve may resolve
		// against what changed.
		if len(retracted) > 0 {
			for _, p := range r.unresolvedUnits() {
				if !retracted[p] {
					stale[p] = true
					queue = append(queue, p)
				}
			}
		}
	}

	r.stale = make([]string, 0, len(stale))
	for p := range stale {
		r.stale = append(r.stale, p)
	}
	sort.Strings(r.stale)
	r.log.Debug("retracted units", "units", len(retracted), "stale", len(r.stale), "reuse", reuse)
	return nil
}

// unresolvedUnits lists the present units owning an unresolved reference or
// missing include diagnostic.
func (r *run) unresolvedUnits() []string {
	s := r.e.store
	seen := make(map[string]bool)
	var out []string
	for _, uid := range s.IDs(store.KindDiagnostic) {
		ent := s.GetByID(uid)
		if ent == nil {
			continue
		}
		ent.WithRead(func(v store.View) {
			d, ok := v.Details().(store.DiagnosticDetails)
			if !ok || (d.Kind != store.DiagUnresolvedReference && d.Kind != store.DiagMissingInclude) {
				return
			}
			for _, u := range v.Units() {
				if _, present := r.units[u]; present && !seen[u] {
					seen[u] = true
					out = append(out, u)
				}
			}
		})
	}
	sort.Strings(out)
	return out
}

// ============================================================================
// Phase B: extraction
// ============================================================================

// extract runs the producer over every stale unit on a bounded pool. Each
// unit fills its own batch. A cancelled context discards all batches.
func (r *run) extract(ctx context.Context) ([]*store.Batch, error) {
	batches := make([]*store.Batch, len(r.stale))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.e.workerCount())
	for i, p := range r.stale {
		u := r.units[p]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			b, err := r.e.extractor.Extract(gctx, r.e.producer, u, r.mode)
			if err != nil {
				return err
			}
			batches[i] = b
			return nil
		})
	}
	err := g.Wait()
	if cerr := ctx.Err(); cerr != nil {
		r.log.Info("run cancelled", "extracted", countBatches(batches))
		return nil, cerr
	}
	if err != nil {
		return nil, err
	}
	return batches, nil
}

func countBatches(batches []*store.Batch) int {
	n := 0
	for _, b := range batches {
		if b != nil {
			n++
		}
	}
	return n
}

// ============================================================================
// Phase C: merge
// ============================================================================

// commit merges the batches: every batch's entities first, so that edges
// may point across units, then parent links, then edges, then the physical
// dependencies derived from includes. Phase C ignores cancellation: a unit
// is merged whole.
func (r *run) commit(batches []*store.Batch) error {
	s := r.e.store
	if err := r.each(batches, s.CommitEntities); err != nil {
		return err
	}
	if err := r.each(batches, s.LinkParents); err != nil {
		return err
	}

	var (
		mu       sync.Mutex
		includes = make(map[string][]store.EdgeKey)
	)
	err := r.each(batches, func(b *store.Batch) error {
		keys, err := s.CommitEdges(b)
		var inc []store.EdgeKey
		for _, k := range keys {
			if k.Kind == store.EdgeIncludes {
				inc = append(inc, k)
			}
		}
		if len(inc) > 0 {
			mu.Lock()
			includes[b.Unit] = inc
			mu.Unlock()
		}
		return err
	})
	if err != nil {
		return err
	}
	return r.derive(includes)
}

// each applies fn to every batch on the worker pool and aggregates errors.
func (r *run) each(batches []*store.Batch, fn func(*store.Batch) error) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(r.e.workerCount())
	for _, b := range batches {
		g.Go(func() error {
			if err := fn(b); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()
	if len(errs) > 0 {
		return fmt.Errorf("commit had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}

// derive adds the Concrete dependencies implied by includes crossing a
// component, package or group boundary, attributed to the including unit.
func (r *run) derive(includes map[string][]store.EdgeKey) error {
	s := r.e.store
	units := make([]string, 0, len(includes))
	for u := range includes {
		units = append(units, u)
	}
	sort.Strings(units)

	added := 0
	for _, unit := range units {
		for _, inc := range includes[unit] {
			from, to := physicalChain(s, inc.From), physicalChain(s, inc.To)
			for i := range from {
				a, b := from[i], to[i]
				if a.IsZero() || b.IsZero() || a == b {
					continue
				}
				k := store.EdgeKey{From: a, To: b, Kind: store.EdgeConcrete}
				if _, err := s.AddEdge(k.From, k.To, k.Kind); err != nil {
					return fmt.Errorf("derive %s: %w", k, err)
				}
				s.AttributeEdge(unit, k)
				added++
			}
		}
	}
	r.log.Debug("derived dependencies", "edges", added)
	return nil
}

// physicalChain returns the component, package and group of a file. Missing
// levels are zero.
func physicalChain(s *store.Store, file store.UniqueID) [3]store.UniqueID {
	var chain [3]store.UniqueID
	cur := file
	for i := range chain {
		ent := s.GetByID(cur)
		if ent == nil {
			break
		}
		cur = ent.Parent()
		if cur.IsZero() {
			break
		}
		chain[i] = cur
	}
	return chain
}
