package rules

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jward/strata/internal/store"
)

// AllowedResult counts the Allowed dependencies a load added and removed.
type AllowedResult struct {
	Added   int
	Removed int
}

// LoadAllowedDependencies reads the BDE dependency files under root and
// makes the Allowed edges of the model match them.
//
// A package group lists the groups or standalone packages it may use in
// groups/<grp>/group/<grp>.dep, and each of its packages lists sibling
// packages in groups/<grp>/<pkg>/package/<pkg>.dep. A standalone package
// uses standalones/<pkg>/package/<pkg>.dep. The matching .t.dep files hold
// test dependencies and are read the same way. Missing files are skipped,
// as are names that match no package.
//
// Every line goes through AddPhysicalDependency. Self dependencies and
// repeated lines are ignored; any other rejection aborts the load. Allowed
// edges that no file names any more are removed first, so the result does
// not depend on earlier loads.
func (e *Engine) LoadAllowedDependencies(root string) (AllowedResult, error) {
	const op = "load allowed dependencies"
	var res AllowedResult

	wanted, err := e.readDepFiles(root)
	if err != nil {
		return res, fmt.Errorf("rules: %s: %w", op, err)
	}

	keep := make(map[[2]store.UniqueID]bool, len(wanted))
	for _, w := range wanted {
		keep[w] = true
	}
	for _, k := range e.allowedEdges() {
		if keep[[2]store.UniqueID{k.From, k.To}] {
			continue
		}
		if err := e.RemovePhysicalDependency(k.From, k.To, store.EdgeAllowed); err != nil {
			return res, err
		}
		res.Removed++
	}

	for _, w := range wanted {
		err := e.AddPhysicalDependency(w[0], w[1], store.EdgeAllowed)
		switch {
		case err == nil:
			res.Added++
		case errors.Is(err, ErrSelfRelation), errors.Is(err, ErrAlreadyHaveDependency):
		default:
			return res, err
		}
	}
	return res, nil
}

// readDepFiles resolves every dependency file line to a source and target
// pair. Group files come before the files of their packages so that the
// package lines find their group dependency in place.
func (e *Engine) readDepFiles(root string) ([][2]store.UniqueID, error) {
	var out [][2]store.UniqueID
	for _, top := range e.topLevelPackages() {
		if top.isGroup() {
			prefix := filepath.Join(root, "groups", top.name)
			pairs, err := e.readDepFile(filepath.Join(prefix, "group"), top)
			if err != nil {
				return nil, err
			}
			out = append(out, pairs...)
			for _, uid := range top.children {
				pkg := e.load(uid)
				if !pkg.is(store.KindPackage) {
					continue
				}
				pairs, err := e.readDepFile(filepath.Join(prefix, pkg.name, "package"), pkg)
				if err != nil {
					return nil, err
				}
				out = append(out, pairs...)
			}
			continue
		}
		pairs, err := e.readDepFile(filepath.Join(root, "standalones", top.name, "package"), top)
		if err != nil {
			return nil, err
		}
		out = append(out, pairs...)
	}
	return out, nil
}

// readDepFile reads <dir>/<name>.dep and <dir>/<name>.t.dep for src.
func (e *Engine) readDepFile(dir string, src *node) ([][2]store.UniqueID, error) {
	var out [][2]store.UniqueID
	for _, name := range []string{src.name + ".dep", src.name + ".t.dep"} {
		f, err := os.Open(filepath.Join(dir, name))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			line := strings.Join(strings.Fields(sc.Text()), " ")
			if line == "" {
				continue
			}
			if dst := e.depTarget(src, line); !dst.IsZero() {
				out = append(out, [2]store.UniqueID{src.uid, dst})
			}
		}
		err = sc.Err()
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", filepath.Join(dir, name), err)
		}
	}
	return out, nil
}

// depTarget resolves one line of src's dependency file. A top-level
// package names another group or a standalone package; a grouped package
// names a sibling.
func (e *Engine) depTarget(src *node, line string) store.UniqueID {
	find := func(qn string) store.UniqueID {
		if ent := e.store.Get(store.KindPackage, qn); ent != nil {
			return ent.UID()
		}
		return store.UniqueID{}
	}
	if src.parent.IsZero() {
		if uid := find("groups/" + line); !uid.IsZero() {
			return uid
		}
		return find("standalones/" + line)
	}
	parent := e.load(src.parent)
	if parent == nil {
		return store.UniqueID{}
	}
	return find(parent.qn + "/" + line)
}

// topLevelPackages returns the packages without parent, by qualified name.
func (e *Engine) topLevelPackages() []*node {
	var out []*node
	for _, uid := range e.store.IDs(store.KindPackage) {
		if n := e.load(uid); n.isTopLevel() {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].qn < out[j].qn })
	return out
}

// allowedEdges lists the Allowed dependencies between packages.
func (e *Engine) allowedEdges() []store.EdgeKey {
	var out []store.EdgeKey
	for _, uid := range e.store.IDs(store.KindPackage) {
		n := e.load(uid)
		if n == nil {
			continue
		}
		for _, p := range n.providers {
			if p.Kind == store.EdgeAllowed && p.Other.Kind == store.KindPackage {
				out = append(out, store.EdgeKey{From: uid, To: p.Other, Kind: store.EdgeAllowed})
			}
		}
	}
	return out
}
