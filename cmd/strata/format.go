package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// formatEntitiesText formats CLIEntity results as aligned columns.
func formatEntitiesText(w io.Writer, ents []CLIEntity) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tQUALIFIED NAME\tPARENT\tPROVIDERS\tCLIENTS")
	for _, e := range ents {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", e.Kind, e.QualifiedName, e.Parent, e.Providers, e.Clients)
	}
	tw.Flush()
}

// formatHierarchyText prints the trees indented by depth.
func formatHierarchyText(w io.Writer, nodes []*CLIHierarchyNode, depth int) {
	for _, n := range nodes {
		line := fmt.Sprintf("%s%s %s", strings.Repeat("  ", depth), n.Entity.Kind, n.Entity.Name)
		if n.Lakosian != "" && n.Lakosian != "lakosian" {
			line += " (" + n.Lakosian + ")"
		}
		fmt.Fprintln(w, line)
		formatHierarchyText(w, n.Children, depth+1)
	}
}

// formatGraphText prints levels then edges.
func formatGraphText(w io.Writer, g CLIDependencyGraph) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LEVEL\tNODE")
	for _, n := range g.Nodes {
		fmt.Fprintf(tw, "%d\t%s\n", n.Level, n.QualifiedName)
	}
	tw.Flush()
	if len(g.Edges) > 0 {
		fmt.Fprintln(w)
		formatEdgesText(w, g.Edges)
	}
}

func formatEdgesText(w io.Writer, edges []CLIDependencyEdge) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FROM\tTO\tKIND")
	for _, e := range edges {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.From, e.To, e.Kind)
	}
	tw.Flush()
}

func formatCyclesText(w io.Writer, cycles []CLICycle) {
	for _, c := range cycles {
		fmt.Fprintln(w, strings.Join(c.Members, " -> "))
	}
}

func formatLevelsText(w io.Writer, levels []CLILevel) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LEVEL\tNODE")
	for _, l := range levels {
		fmt.Fprintf(tw, "%d\t%s\n", l.Level, l.QualifiedName)
	}
	tw.Flush()
}

func formatLakosianText(w io.Writer, res []CLILakosian) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tNODE\tRESULT")
	for _, r := range res {
		reason := "lakosian"
		if !r.Lakosian {
			reason = r.Reason
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Kind, r.QualifiedName, reason)
	}
	tw.Flush()
}

func formatViolationsText(w io.Writer, vs []CLIViolation) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FROM\tTO\tKIND\tRULE")
	for _, v := range vs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.From, v.To, v.Kind, v.Rule)
	}
	tw.Flush()
}

func formatTypesText(w io.Writer, types []CLIType) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tQUALIFIED NAME\tCOMPONENT\tCLIENTS\tLOCATION")
	for _, t := range types {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", t.TypeKind, t.QualifiedName, t.Component, t.Clients, t.Location)
	}
	tw.Flush()
}

func formatDiagnosticsText(w io.Writer, diags []CLIDiagnostic) {
	for _, d := range diags {
		loc := d.Location
		if loc == "" && len(d.Units) > 0 {
			loc = d.Units[0]
		}
		fmt.Fprintf(w, "%s: %s: %s\n", loc, d.Kind, d.Message)
	}
}

func formatRunSummaryText(w io.Writer, s CLIRunSummary) {
	fmt.Fprintf(w, "run %s: %s (changed: %t, %s)", s.RunID, s.State, s.Changed, s.Duration)
	if s.Error != "" {
		fmt.Fprintf(w, ": %s", s.Error)
	}
	fmt.Fprintln(w)
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case CLIEntity:
		formatEntitiesText(w, []CLIEntity{v})
	case []*CLIHierarchyNode:
		formatHierarchyText(w, v, 0)
	case CLIDependencyGraph:
		formatGraphText(w, v)
	case []CLIDependencyEdge:
		formatEdgesText(w, v)
	case []CLICycle:
		formatCyclesText(w, v)
	case []CLILevel:
		formatLevelsText(w, v)
	case []CLILakosian:
		formatLakosianText(w, v)
	case []CLIViolation:
		formatViolationsText(w, v)
	case []CLIType:
		formatTypesText(w, v)
	case []CLIDiagnostic:
		formatDiagnosticsText(w, v)
	case CLIRunSummary:
		formatRunSummaryText(w, v)
	case nil:
		// Nothing matched.
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}

	if result.TotalCount != nil {
		count := *result.TotalCount
		shown := resultLen(result.Results)
		if shown < count {
			fmt.Fprintf(w, "\nShowing %d of %d results\n", shown, count)
		}
	}
	return nil
}

// resultLen returns the length of a result slice, or 1 for a single value.
func resultLen(v any) int {
	switch r := v.(type) {
	case []CLIType:
		return len(r)
	case []CLIDiagnostic:
		return len(r)
	case nil:
		return 0
	default:
		return 1
	}
}

// outputResult writes a CLIResult to stdout in the selected format.
func outputResult(result CLIResult) error {
	return writeResult(os.Stdout, flagFormat, result)
}

func writeResult(w io.Writer, format string, result CLIResult) error {
	switch format {
	case "text":
		return outputResultText(w, result)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(result); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. Structured formats carry the error in the
// envelope on stdout; text mode writes it to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	_ = writeResult(os.Stdout, flagFormat, CLIResult{Command: command, Error: err.Error()})
	return err
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text", "yaml"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	if slices.Contains(validFormats, format) {
		return nil
	}
	return fmt.Errorf("invalid format %q: must be one of %s", format, strings.Join(validFormats, ", "))
}
