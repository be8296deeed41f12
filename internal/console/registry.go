package console

import (
	"log/slog"
	"sync"

	"github.com/Sahaj33-op/msm/internal/osproc"
)

// Registry maps server ids to their live supervised processes. It is the
// in-memory truth for "which servers does this manager instance own a child
// for"; the database rows are only a persisted shadow of it.
type Registry struct {
	mu        sync.RWMutex
	processes map[int64]*Process
}

func NewRegistry() *Registry {
	return &Registry{processes: make(map[int64]*Process)}
}

// Register installs a process for a server. If a previous process is still
// registered for the same id it is forcibly terminated before the new one is
// installed, so a Get can never observe the replacement while the old child
// is alive.
func (r *Registry) Register(p *Process) {
	r.mu.Lock()
	old := r.processes[p.ServerID]
	r.mu.Unlock()

	if old != nil && old != p && old.Running() {
		slog.Warn("[Registry] replacing live process", "server", old.Name, "old_pid", old.PID())
		old.MarkStopping()
		osproc.Terminate(old.PID(), false)
	}

	r.mu.Lock()
	r.processes[p.ServerID] = p
	r.mu.Unlock()
}

// Unregister removes the process for a server id if it is still the one
// registered. Passing the process guards against removing a replacement.
func (r *Registry) Unregister(p *Process) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.processes[p.ServerID]; ok && cur == p {
		delete(r.processes, p.ServerID)
	}
}

// Get returns the live process for a server id, or nil.
func (r *Registry) Get(serverID int64) *Process {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.processes[serverID]
}

// List returns all registered processes.
func (r *Registry) List() []*Process {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Process, 0, len(r.processes))
	for _, p := range r.processes {
		out = append(out, p)
	}
	return out
}

// CleanupDead drops registry entries whose processes have exited. The exit
// path normally unregisters itself; this is the safety net for entries that
// slipped through. Returns the number removed.
func (r *Registry) CleanupDead() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, p := range r.processes {
		if !p.Running() {
			delete(r.processes, id)
			removed++
		}
	}
	if removed > 0 {
		slog.Info("[Registry] cleaned up dead processes", "count", removed)
	}
	return removed
}
