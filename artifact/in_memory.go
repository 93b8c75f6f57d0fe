// Package artifact provides core.ArtifactRepository implementations: an
// in-memory store for tests and demos and a sqlite-backed store (subpackage
// sqlite) for durable persistence and index rebuild across restarts.
package artifact

import (
	"context"
	"sync"

	"github.com/threatmesh/threatmesh/core"
)

// InMemoryRepository is a process-local ArtifactRepository scoped by analysis
// id. Safe for concurrent use.
type InMemoryRepository struct {
	mu        sync.RWMutex
	artifacts map[string][]core.Artifact // analysisID -> artifacts in save order
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{artifacts: make(map[string][]core.Artifact)}
}

// Save appends an artifact for the analysis. An empty artifact id is
// assigned one.
func (r *InMemoryRepository) Save(_ context.Context, analysisID string, artifact core.Artifact) error {
	if artifact.ID == "" {
		artifact.ID = core.NewID()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.artifacts[analysisID] = append(r.artifacts[analysisID], artifact)
	return nil
}

// List returns the artifacts saved for the analysis in save order. An
// unknown analysis id yields an empty slice, not an error.
func (r *InMemoryRepository) List(_ context.Context, analysisID string) ([]core.Artifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored := r.artifacts[analysisID]
	out := make([]core.Artifact, len(stored))
	copy(out, stored)
	return out, nil
}
