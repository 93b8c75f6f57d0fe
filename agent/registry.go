// Package agent provides the typed agent registry and a generic model-backed
// agent implementation that drives prompt construction, LLM generation,
// recovery parsing and section/artifact assembly for one framework.
package agent

import (
	"fmt"
	"sort"
	"sync"

	"github.com/threatmesh/threatmesh/core"
)

// Registry maps the closed enumeration of framework identifiers to agent
// implementations. Registering an unknown framework id or a duplicate is a
// construction-time configuration error, never a runtime nil lookup.
type Registry struct {
	mu     sync.RWMutex
	agents map[core.FrameworkID]core.Agent
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[core.FrameworkID]core.Agent)}
}

// Register adds an agent under its framework id.
func (r *Registry) Register(a core.Agent) error {
	id := a.Framework()
	if !core.KnownFramework(id) {
		return fmt.Errorf("%w: %q", core.ErrUnknownFramework, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[id]; exists {
		return fmt.Errorf("%w: %q", core.ErrAlreadyRegistered, id)
	}
	r.agents[id] = a
	return nil
}

// Agent returns the registered agent for a framework, if any.
func (r *Registry) Agent(id core.FrameworkID) (core.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	return a, ok
}

// Frameworks returns the registered framework ids in lexicographic order.
func (r *Registry) Frameworks() []core.FrameworkID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.FrameworkID, 0, len(r.agents))
	for id := range r.agents {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
