package main

// CLIResult is the top-level envelope for all query commands.
type CLIResult struct {
	Command    string `json:"command" yaml:"command"`
	Results    any    `json:"results" yaml:"results"`
	TotalCount *int   `json:"total_count,omitempty" yaml:"total_count,omitempty"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

// CLIEntity is a serializable entity snapshot.
type CLIEntity struct {
	ID            string   `json:"id" yaml:"id"`
	Kind          string   `json:"kind" yaml:"kind"`
	Name          string   `json:"name" yaml:"name"`
	QualifiedName string   `json:"qualified_name" yaml:"qualified_name"`
	Parent        string   `json:"parent,omitempty" yaml:"parent,omitempty"`
	Units         []string `json:"units,omitempty" yaml:"units,omitempty"`
	Providers     int      `json:"providers" yaml:"providers"`
	Clients       int      `json:"clients" yaml:"clients"`
}

// CLIHierarchyNode is one node of a containment tree.
type CLIHierarchyNode struct {
	Entity   CLIEntity           `json:"entity" yaml:"entity"`
	Lakosian string              `json:"lakosian,omitempty" yaml:"lakosian,omitempty"`
	Children []*CLIHierarchyNode `json:"children,omitempty" yaml:"children,omitempty"`
}

// CLIDependencyGraph is a package or component dependency graph.
type CLIDependencyGraph struct {
	Nodes []CLIDependencyNode `json:"nodes" yaml:"nodes"`
	Edges []CLIDependencyEdge `json:"edges" yaml:"edges"`
}

// CLIDependencyNode is a node of a dependency graph.
type CLIDependencyNode struct {
	QualifiedName string `json:"qualified_name" yaml:"qualified_name"`
	Name          string `json:"name" yaml:"name"`
	Level         int    `json:"level" yaml:"level"`
	Group         bool   `json:"group,omitempty" yaml:"group,omitempty"`
}

// CLIDependencyEdge is a dependency between two nodes.
type CLIDependencyEdge struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
	Kind string `json:"kind" yaml:"kind"`
}

// CLICycle is a dependency cycle.
type CLICycle struct {
	Members []string `json:"members" yaml:"members"`
}

// CLILevel is the Lakos level of one node.
type CLILevel struct {
	QualifiedName string `json:"qualified_name" yaml:"qualified_name"`
	Level         int    `json:"level" yaml:"level"`
}

// CLILakosian is the naming classification of a package or component.
type CLILakosian struct {
	QualifiedName string `json:"qualified_name" yaml:"qualified_name"`
	Kind          string `json:"kind" yaml:"kind"`
	Lakosian      bool   `json:"lakosian" yaml:"lakosian"`
	Reason        string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// CLIViolation is an existing edge that breaks a dependency rule.
type CLIViolation struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
	Kind string `json:"kind" yaml:"kind"`
	Rule string `json:"rule" yaml:"rule"`
}

// CLIType is a logical type.
type CLIType struct {
	CLIEntity `yaml:",inline"`
	TypeKind  string `json:"type_kind" yaml:"type_kind"`
	Access    string `json:"access,omitempty" yaml:"access,omitempty"`
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Component string `json:"component,omitempty" yaml:"component,omitempty"`
	Location  string `json:"location,omitempty" yaml:"location,omitempty"`
}

// CLIDiagnostic is a problem found during analysis.
type CLIDiagnostic struct {
	Kind     string   `json:"kind" yaml:"kind"`
	Subject  string   `json:"subject" yaml:"subject"`
	Message  string   `json:"message" yaml:"message"`
	Location string   `json:"location,omitempty" yaml:"location,omitempty"`
	Units    []string `json:"units,omitempty" yaml:"units,omitempty"`
}

// CLIRunSummary reports the outcome of a watch-triggered run.
type CLIRunSummary struct {
	RunID    string `json:"run_id" yaml:"run_id"`
	State    string `json:"state" yaml:"state"`
	Changed  bool   `json:"changed" yaml:"changed"`
	Duration string `json:"duration" yaml:"duration"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}
