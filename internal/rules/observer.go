package rules

import (
	"slices"

	"github.com/google/uuid"
	"github.com/jward/strata/internal/store"
)

// Observer receives change notifications from an Engine. Calls are
// synchronous, happen after the mutation is applied and the Engine lock is
// released, and are never made for a rejected mutation.
type Observer interface {
	NodeAdded(id store.UniqueID)
	NodeRemoved(id store.UniqueID)
	PhysicalDependencyAdded(src, dst store.UniqueID, kind store.EdgeKind)
	PhysicalDependencyRemoved(src, dst store.UniqueID, kind store.EdgeKind)
	LogicalRelationAdded(src, dst store.UniqueID, kind store.EdgeKind)
	LogicalRelationRemoved(src, dst store.UniqueID, kind store.EdgeKind)
	EntityReparent(id, oldParent, newParent store.UniqueID)
	NodeRenamed(id store.UniqueID, oldQualifiedName, newQualifiedName string)
}

// NopObserver ignores every notification. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) NodeAdded(store.UniqueID)                                        {}
func (NopObserver) NodeRemoved(store.UniqueID)                                      {}
func (NopObserver) PhysicalDependencyAdded(_, _ store.UniqueID, _ store.EdgeKind)   {}
func (NopObserver) PhysicalDependencyRemoved(_, _ store.UniqueID, _ store.EdgeKind) {}
func (NopObserver) LogicalRelationAdded(_, _ store.UniqueID, _ store.EdgeKind)      {}
func (NopObserver) LogicalRelationRemoved(_, _ store.UniqueID, _ store.EdgeKind)    {}
func (NopObserver) EntityReparent(_, _, _ store.UniqueID)                           {}
func (NopObserver) NodeRenamed(store.UniqueID, string, string)                      {}

type subscription struct {
	id  string
	obs Observer
}

// note is a pending notification, delivered once the mutation commits.
type note func(Observer)

// Subscribe registers o and returns a func that removes it. Observers are
// notified in subscription order.
func (e *Engine) Subscribe(o Observer) (unsubscribe func()) {
	id := uuid.NewString()
	e.subMu.Lock()
	e.subs = append(e.subs, subscription{id: id, obs: o})
	e.subMu.Unlock()

	return func() {
		e.subMu.Lock()
		defer e.subMu.Unlock()
		e.subs = slices.DeleteFunc(e.subs, func(s subscription) bool { return s.id == id })
	}
}

func (e *Engine) publish(notes []note) {
	if len(notes) == 0 {
		return
	}
	e.subMu.RLock()
	subs := slices.Clone(e.subs)
	e.subMu.RUnlock()
	for _, s := range subs {
		for _, n := range notes {
			n(s.obs)
		}
	}
}
