package client

import "sync"

// supervisionRegistry tracks which job ids currently have a poller. Add is
// add-if-absent so a job never has two supervisors.
type supervisionRegistry struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func newSupervisionRegistry() *supervisionRegistry {
	return &supervisionRegistry{active: make(map[string]struct{})}
}

// add claims a job id. Returns false if it is already supervised.
func (r *supervisionRegistry) add(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[jobID]; ok {
		return false
	}
	r.active[jobID] = struct{}{}
	return true
}

func (r *supervisionRegistry) remove(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, jobID)
}

func (r *supervisionRegistry) has(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[jobID]
	return ok
}

func (r *supervisionRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}
