package facts

import (
	"context"
	"sync"
)

// Replay is a Producer that plays back recorded events per unit path. It
// is used by tests and by tools that obtain events from elsewhere.
type Replay struct {
	mu     sync.RWMutex
	events map[string][]Event
}

// NewReplay creates an empty Replay.
func NewReplay() *Replay {
	return &Replay{events: make(map[string][]Event)}
}

// Set replaces the events recorded for path.
func (r *Replay) Set(path string, events ...Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[path] = append([]Event(nil), events...)
}

// Produce emits the events recorded for u.Path, checking ctx before each.
func (r *Replay) Produce(ctx context.Context, u Unit, emit Emit) error {
	r.mu.RLock()
	events := r.events[u.Path]
	r.mu.RUnlock()

	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(ev); err != nil {
			return err
		}
	}
	return nil
}
