package capability

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Registry is the name→capability lookup table. Registration enforces ID
// uniqueness, dependency satisfaction, and the optional health check;
// lookups after that are cheap map reads.
type Registry struct {
	mu           sync.RWMutex
	capabilities map[string]Capability
}

func NewRegistry() *Registry {
	return &Registry{capabilities: make(map[string]Capability)}
}

// Register adds c to the registry. It fails when the ID is empty or taken,
// when a declared dependency is not yet registered, or when the capability's
// health check (if any) fails.
func (r *Registry) Register(ctx context.Context, c Capability) error {
	meta := c.Metadata()
	if meta.ID == "" {
		return fmt.Errorf("capability has empty id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.capabilities[meta.ID]; exists {
		return fmt.Errorf("capability already registered: %s", meta.ID)
	}
	for _, dep := range meta.Dependencies {
		if _, ok := r.capabilities[dep]; !ok {
			return fmt.Errorf("capability %s requires unregistered dependency %s", meta.ID, dep)
		}
	}
	if checker, ok := c.(HealthChecker); ok {
		if err := checker.HealthCheck(ctx); err != nil {
			return fmt.Errorf("capability %s failed health check: %w", meta.ID, err)
		}
	}

	r.capabilities[meta.ID] = c
	return nil
}

// Get returns the capability registered under id.
func (r *Registry) Get(id string) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.capabilities[id]
	return c, ok
}

// List returns registered metadata sorted by ID.
func (r *Registry) List() []Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	metas := make([]Metadata, 0, len(r.capabilities))
	for _, c := range r.capabilities {
		metas = append(metas, c.Metadata())
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].ID < metas[j].ID })
	return metas
}

// Unregister removes id. Removing an ID another capability depends on is
// allowed; dependency checks apply at registration time only.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.capabilities, id)
}
