package store

import "sync"

// Ref names an entity by kind and qualified name. Batches use Refs because
// the entities they mention may not exist yet, or may be created by another
// unit's batch.
type Ref struct {
	Kind          Kind
	QualifiedName string
}

// IsZero reports whether r names nothing.
func (r Ref) IsZero() bool { return r.Kind == 0 && r.QualifiedName == "" }

func (r Ref) String() string {
	if r.IsZero() {
		return "none"
	}
	return r.Kind.String() + " " + r.QualifiedName
}

// PendingEntity is an entity waiting to be committed. Namespace, when set,
// is resolved at commit time and stored in the payload of types, functions
// and variables.
type PendingEntity struct {
	Ref
	Name      string
	Parent    Ref
	Namespace Ref
	Details   Details
}

// PendingEdge is an edge waiting to be committed. To lists candidate
// targets in preference order; the first one present in the Store at
// commit time wins. Spelling and Location describe the reference for the
// diagnostic raised when no candidate resolves.
type PendingEdge struct {
	From     Ref
	To       []Ref
	Kind     EdgeKind
	Spelling string
	Location Location
}

// Batch buffers the facts extracted from one analysis unit so they can be
// merged into the Store all at once, or discarded.
//
// Thread safety: the mutex protects the slices; a Batch may be filled from
// several goroutines working on the same unit.
type Batch struct {
	Unit string

	mu          sync.Mutex
	Entities    []PendingEntity
	Edges       []PendingEdge
	Diagnostics []DiagnosticDetails
}

// NewBatch creates an empty Batch for unit.
func NewBatch(unit string) *Batch {
	return &Batch{Unit: unit}
}

// AddEntity buffers an entity. Parents must be added before children.
func (b *Batch) AddEntity(p PendingEntity) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Entities = append(b.Entities, p)
}

// AddEdge buffers an edge.
func (b *Batch) AddEdge(p PendingEdge) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Edges = append(b.Edges, p)
}

// AddDiagnostic buffers a diagnostic.
func (b *Batch) AddDiagnostic(d DiagnosticDetails) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Diagnostics = append(b.Diagnostics, d)
}

// Len returns the number of buffered facts.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Entities) + len(b.Edges) + len(b.Diagnostics)
}

// HasEntity reports whether r was already buffered.
func (b *Batch) HasEntity(r Ref) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.Entities {
		if p.Ref == r {
			return true
		}
	}
	return false
}
