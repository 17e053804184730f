package main

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jward/strata"
	"github.com/jward/strata/internal/config"
)

var (
	flagLimit  int
	flagOffset int
	flagSort   string
	flagOrder  string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the architecture model",
	Long:  "Run queries against an analyzed code base. Packages and components are named by qualified name, e.g. groups/bsl/bslma.",
}

func init() {
	queryCmd.PersistentFlags().IntVar(&flagLimit, "limit", 50, "pagination limit (max 500)")
	queryCmd.PersistentFlags().IntVar(&flagOffset, "offset", 0, "pagination offset")
	queryCmd.PersistentFlags().StringVar(&flagSort, "sort", "", "sort field: name|qualified_name|kind|clients")
	queryCmd.PersistentFlags().StringVar(&flagOrder, "order", "asc", "sort order: asc|desc")

	queryCmd.AddCommand(entityCmd)
	queryCmd.AddCommand(hierarchyCmd)
	queryCmd.AddCommand(depsCmd)
	queryCmd.AddCommand(redundantCmd)
	queryCmd.AddCommand(cyclesCmd)
	queryCmd.AddCommand(levelsCmd)
	queryCmd.AddCommand(lakosianCmd)
	queryCmd.AddCommand(violationsCmd)
	queryCmd.AddCommand(typesCmd)
	queryCmd.AddCommand(diagnosticsCmd)
}

// --- Helpers ---

// openEngine opens the model stored in the --db path (or default).
func openEngine() (*strata.Engine, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting cwd: %w", err)
	}
	repoRoot := findRepoRoot(cwd)
	dbPath := resolveDBPath(repoRoot)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: %s (run 'strata index' first)", dbPath)
	}
	return strata.New(dbPath,
		strata.WithRoot(repoRoot),
		strata.WithLogger(newLogger(config.DefaultConfig())))
}

// withQuery opens the engine, runs fn and writes its result under command.
func withQuery(command string, fn func(q *strata.QueryBuilder) (CLIResult, error)) error {
	e, err := openEngine()
	if err != nil {
		return outputError(command, err)
	}
	defer e.Close()

	res, err := fn(e.Query())
	if err != nil {
		return outputError(command, err)
	}
	res.Command = command
	return outputResult(res)
}

// parseLevelArg maps "packages" or "components" to the entity kind whose
// dependency graph is queried.
func parseLevelArg(arg string) (strata.Kind, error) {
	switch strings.ToLower(arg) {
	case "package", "packages":
		return strata.KindPackage, nil
	case "component", "components":
		return strata.KindComponent, nil
	}
	return 0, fmt.Errorf("invalid level %q: must be packages or components", arg)
}

// buildPagination creates a Pagination from CLI flags.
func buildPagination() strata.Pagination {
	return strata.Pagination{
		Limit:  flagLimit,
		Offset: flagOffset,
	}
}

// buildSort creates a Sort from CLI flags.
func buildSort() strata.Sort {
	var field strata.SortField
	switch flagSort {
	case "qualified_name":
		field = strata.SortByQualifiedName
	case "kind":
		field = strata.SortByKind
	case "clients":
		field = strata.SortByClients
	default:
		field = strata.SortByName
	}

	order := strata.Asc
	if flagOrder == "desc" {
		order = strata.Desc
	}
	return strata.Sort{Field: field, Order: order}
}

func entityToCLI(e strata.EntityResult) CLIEntity {
	return CLIEntity{
		ID:            e.ID.String(),
		Kind:          e.Kind,
		Name:          e.Name,
		QualifiedName: e.QualifiedName,
		Parent:        e.Parent,
		Units:         e.Units,
		Providers:     e.Providers,
		Clients:       e.Clients,
	}
}

func hierarchyToCLI(nodes []*strata.HierarchyNode) []*CLIHierarchyNode {
	out := make([]*CLIHierarchyNode, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &CLIHierarchyNode{
			Entity:   entityToCLI(n.Entity),
			Lakosian: n.Lakosian,
			Children: hierarchyToCLI(n.Children),
		})
	}
	return out
}

func edgesToCLI(edges []strata.DependencyEdge) []CLIDependencyEdge {
	out := make([]CLIDependencyEdge, 0, len(edges))
	for _, e := range edges {
		out = append(out, CLIDependencyEdge{From: e.From, To: e.To, Kind: e.Kind})
	}
	return out
}

func intPtr(n int) *int { return &n }

// --- Structure ---

var entityCmd = &cobra.Command{
	Use:   "entity <qualified-name>",
	Short: "Show one entity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withQuery("entity", func(q *strata.QueryBuilder) (CLIResult, error) {
			e, err := q.Entity(args[0])
			if err != nil || e == nil {
				return CLIResult{}, err
			}
			return CLIResult{Results: entityToCLI(*e), TotalCount: intPtr(1)}, nil
		})
	},
}

var flagDepth int

var hierarchyCmd = &cobra.Command{
	Use:   "hierarchy [qualified-name]",
	Short: "Show the containment tree",
	Long:  "Shows the tree under a package, component or type. Without an argument every top-level package is shown.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var qn string
		if len(args) > 0 {
			qn = args[0]
		}
		return withQuery("hierarchy", func(q *strata.QueryBuilder) (CLIResult, error) {
			nodes, err := q.Hierarchy(qn, flagDepth)
			if err != nil {
				return CLIResult{}, err
			}
			return CLIResult{Results: hierarchyToCLI(nodes)}, nil
		})
	},
}

func init() {
	hierarchyCmd.Flags().IntVar(&flagDepth, "depth", 2, "levels of children to include")
}

// --- Dependencies ---

var depsCmd = &cobra.Command{
	Use:   "deps <packages|components>",
	Short: "Show the physical dependency graph with Lakos levels",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withQuery("deps", func(q *strata.QueryBuilder) (CLIResult, error) {
			k, err := parseLevelArg(args[0])
			if err != nil {
				return CLIResult{}, err
			}
			var g *strata.DependencyGraph
			if k == strata.KindPackage {
				g, err = q.PackageDependencies()
			} else {
				g, err = q.ComponentDependencies()
			}
			if err != nil {
				return CLIResult{}, err
			}
			out := CLIDependencyGraph{Nodes: make([]CLIDependencyNode, 0, len(g.Nodes)), Edges: edgesToCLI(g.Edges)}
			for _, n := range g.Nodes {
				out.Nodes = append(out.Nodes, CLIDependencyNode{
					QualifiedName: n.QualifiedName,
					Name:          n.Name,
					Level:         n.Level,
					Group:         n.Group,
				})
			}
			return CLIResult{Results: out, TotalCount: intPtr(len(out.Nodes))}, nil
		})
	},
}

var redundantCmd = &cobra.Command{
	Use:   "redundant <packages|components>",
	Short: "List dependencies implied by longer paths",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withQuery("redundant", func(q *strata.QueryBuilder) (CLIResult, error) {
			k, err := parseLevelArg(args[0])
			if err != nil {
				return CLIResult{}, err
			}
			edges, err := q.RedundantDependencies(context.Background(), k)
			if err != nil {
				return CLIResult{}, err
			}
			return CLIResult{Results: edgesToCLI(edges), TotalCount: intPtr(len(edges))}, nil
		})
	},
}

var cyclesCmd = &cobra.Command{
	Use:   "cycles <packages|components>",
	Short: "List dependency cycles",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withQuery("cycles", func(q *strata.QueryBuilder) (CLIResult, error) {
			k, err := parseLevelArg(args[0])
			if err != nil {
				return CLIResult{}, err
			}
			cycles, err := q.Cycles(k)
			if err != nil {
				return CLIResult{}, err
			}
			out := make([]CLICycle, 0, len(cycles))
			for _, c := range cycles {
				out = append(out, CLICycle{Members: c})
			}
			return CLIResult{Results: out, TotalCount: intPtr(len(out))}, nil
		})
	},
}

var levelsCmd = &cobra.Command{
	Use:   "levels <packages|components>",
	Short: "Show Lakos levels, lowest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withQuery("levels", func(q *strata.QueryBuilder) (CLIResult, error) {
			k, err := parseLevelArg(args[0])
			if err != nil {
				return CLIResult{}, err
			}
			levels, err := q.Levels(k)
			if err != nil {
				return CLIResult{}, err
			}
			return CLIResult{Results: sortedLevels(levels), TotalCount: intPtr(len(levels))}, nil
		})
	},
}

// sortedLevels orders levels by level, then name.
func sortedLevels(levels map[string]int) []CLILevel {
	out := make([]CLILevel, 0, len(levels))
	for qn, l := range levels {
		out = append(out, CLILevel{QualifiedName: qn, Level: l})
	}
	slices.SortFunc(out, func(a, b CLILevel) int {
		if a.Level != b.Level {
			return a.Level - b.Level
		}
		return strings.Compare(a.QualifiedName, b.QualifiedName)
	})
	return out
}

// --- Rules ---

var flagViolationsOnly bool

var lakosianCmd = &cobra.Command{
	Use:   "lakosian",
	Short: "Classify package and component names",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withQuery("lakosian", func(q *strata.QueryBuilder) (CLIResult, error) {
			res, err := q.Lakosian(flagViolationsOnly)
			if err != nil {
				return CLIResult{}, err
			}
			out := make([]CLILakosian, 0, len(res))
			for _, r := range res {
				out = append(out, CLILakosian{QualifiedName: r.QualifiedName, Kind: r.Kind, Lakosian: r.Lakosian, Reason: r.Reason})
			}
			return CLIResult{Results: out, TotalCount: intPtr(len(out))}, nil
		})
	},
}

func init() {
	lakosianCmd.Flags().BoolVar(&flagViolationsOnly, "violations-only", false, "only list names that break the conventions")
}

var violationsCmd = &cobra.Command{
	Use:   "violations",
	Short: "List existing edges that break the dependency rules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return outputError("violations", err)
		}
		defer e.Close()

		s := e.Store()
		name := func(uid strata.UniqueID) string {
			if ent := s.GetByID(uid); ent != nil {
				return ent.QualifiedName()
			}
			return uid.String()
		}
		vs := e.Query().Violations()
		out := make([]CLIViolation, 0, len(vs))
		for _, v := range vs {
			out = append(out, CLIViolation{
				From: name(v.Edge.From),
				To:   name(v.Edge.To),
				Kind: v.Edge.Kind.String(),
				Rule: v.Kind.Error(),
			})
		}
		return outputResult(CLIResult{Command: "violations", Results: out, TotalCount: intPtr(len(out))})
	},
}

// --- Listings ---

var (
	flagKinds      []string
	flagNamespace  string
	flagComponent  string
	flagPrefix     string
	flagUnit       string
	flagPathPrefix string
)

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List logical types",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := strata.TypeFilter{Kinds: flagKinds}
		if cmd.Flags().Changed("namespace") {
			filter.Namespace = &flagNamespace
		}
		if cmd.Flags().Changed("component") {
			filter.Component = &flagComponent
		}
		if cmd.Flags().Changed("prefix") {
			filter.NamePrefix = &flagPrefix
		}
		return withQuery("types", func(q *strata.QueryBuilder) (CLIResult, error) {
			res, err := q.Types(filter, buildSort(), buildPagination())
			if err != nil {
				return CLIResult{}, err
			}
			out := make([]CLIType, 0, len(res.Items))
			for _, t := range res.Items {
				out = append(out, CLIType{
					CLIEntity: entityToCLI(t.EntityResult),
					TypeKind:  t.TypeKind,
					Access:    t.Access,
					Namespace: t.Namespace,
					Component: t.Component,
					Location:  t.Location,
				})
			}
			return CLIResult{Results: out, TotalCount: intPtr(res.TotalCount)}, nil
		})
	},
}

func init() {
	typesCmd.Flags().StringSliceVar(&flagKinds, "kind", nil, "type kinds: class,struct,union,enum,alias")
	typesCmd.Flags().StringVar(&flagNamespace, "namespace", "", "qualified namespace name")
	typesCmd.Flags().StringVar(&flagComponent, "component", "", "qualified component name")
	typesCmd.Flags().StringVar(&flagPrefix, "prefix", "", "qualified name prefix")
}

var diagnosticsCmd = &cobra.Command{
	Use:   "diagnostics",
	Short: "List problems found during analysis",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := strata.DiagnosticFilter{Kinds: flagKinds}
		if cmd.Flags().Changed("unit") {
			filter.Unit = &flagUnit
		}
		if cmd.Flags().Changed("path-prefix") {
			filter.PathPrefix = &flagPathPrefix
		}
		return withQuery("diagnostics", func(q *strata.QueryBuilder) (CLIResult, error) {
			res, err := q.Diagnostics(filter, buildPagination())
			if err != nil {
				return CLIResult{}, err
			}
			out := make([]CLIDiagnostic, 0, len(res.Items))
			for _, d := range res.Items {
				out = append(out, CLIDiagnostic{
					Kind:     d.Kind,
					Subject:  d.Subject,
					Message:  d.Message,
					Location: d.Location,
					Units:    d.Units,
				})
			}
			return CLIResult{Results: out, TotalCount: intPtr(res.TotalCount)}, nil
		})
	},
}

func init() {
	diagnosticsCmd.Flags().StringSliceVar(&flagKinds, "kind", nil, "diagnostic kinds: parser_error,unresolved_reference,missing_include,producer_error")
	diagnosticsCmd.Flags().StringVar(&flagUnit, "unit", "", "only diagnostics raised by this unit")
	diagnosticsCmd.Flags().StringVar(&flagPathPrefix, "path-prefix", "", "only diagnostics raised under this directory")
}
