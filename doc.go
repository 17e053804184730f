// Package strata builds an architectural model of a C++ code base and keeps
// it consistent with Lakos' physical design rules. The model is a graph of
// package groups, packages, components and files (the physical hierarchy)
// plus namespaces, types and their members (the logical hierarchy).
//
// # Pipeline
//
// An [Engine.Run] brings the model up to date in three phases:
//
//  1. Prepare: read and fingerprint every unit, then retract the facts of
//     units that changed or disappeared, along with the units whose facts
//     pointed at them.
//
//  2. Extract: parse each stale unit with tree-sitter and classify what it
//     declares and uses into a batch of entities, edges and diagnostics.
//     Units are extracted in parallel and nothing touches the model yet.
//
//  3. Commit: merge every batch's entities, then parents, then edges, and
//     derive the concrete component and package dependencies implied by
//     includes.
//
// Running the same input twice is a no-op, and an incremental run ends in
// the same model as a fresh one.
//
// # Usage
//
//	e, err := strata.New(".strata/strata.db", strata.WithRoot("path/to/repo"))
//	if err != nil { ... }
//	defer e.Close()
//
//	ctx := context.Background()
//	err = e.RunDirectory(ctx, strata.ModeFull)
//	err = e.Save(ctx)
//
//	q := e.Query()
//	g, err := q.PackageDependencies()
//
// # Query API
//
// The [QueryBuilder] returned by [Engine.Query] reads the model:
//
//   - [QueryBuilder.Hierarchy] and [QueryBuilder.Entity] walk the
//     containment tree.
//   - [QueryBuilder.PackageDependencies] and
//     [QueryBuilder.ComponentDependencies] return the physical graphs with
//     Lakos levels.
//   - [QueryBuilder.Cycles], [QueryBuilder.Levels] and
//     [QueryBuilder.RedundantDependencies] check graph consistency.
//   - [QueryBuilder.Lakosian] and [QueryBuilder.Violations] report naming
//     and dependency rule breaches.
//   - [QueryBuilder.Types] and [QueryBuilder.Diagnostics] list logical types
//     and analysis problems with filtering and paging.
//
// Edits that must respect the design rules go through the [RuleEngine]
// returned by [Engine.Rules]; subscribe an [Observer] to hear about them.
package strata
