package api

import (
	"sync"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/fedtrust/internal/sim"
)

// Registry keeps the most recent results in memory. When full, the oldest
// result is evicted.
type Registry struct {
	mu       sync.RWMutex
	capacity int
	order    []uuid.UUID
	results  map[uuid.UUID]*sim.Result
}

func NewRegistry(capacity int) *Registry {
	if capacity < 1 {
		capacity = 1
	}
	return &Registry{
		capacity: capacity,
		results:  make(map[uuid.UUID]*sim.Result, capacity),
	}
}

func (r *Registry) Put(res *sim.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.results[res.RunID]; !ok {
		r.order = append(r.order, res.RunID)
	}
	r.results[res.RunID] = res
	for len(r.order) > r.capacity {
		delete(r.results, r.order[0])
		r.order = r.order[1:]
	}
}

func (r *Registry) Get(id uuid.UUID) (*sim.Result, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.results[id]
	return res, ok
}

// List returns held results, newest first.
func (r *Registry) List() []*sim.Result {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*sim.Result, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		out = append(out, r.results[r.order[i]])
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
