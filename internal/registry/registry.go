// Package registry tracks the models a serving process can run.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bryanktliu/djl-serving/internal/models"
	"github.com/bryanktliu/djl-serving/internal/repository"
	"github.com/bryanktliu/djl-serving/pkg/wlm"
)

// Registry maps model IDs to their descriptors. Lookups happen on the
// admission path for every request, so reads take an RLock only; writes
// happen at registration time.
type Registry[I, O any] struct {
	mu     sync.RWMutex
	models map[string]*wlm.ModelInfo[I, O]
	repo   repository.Repository // optional; nil skips persistence
}

func New[I, O any](repo repository.Repository) *Registry[I, O] {
	return &Registry[I, O]{
		models: make(map[string]*wlm.ModelInfo[I, O]),
		repo:   repo,
	}
}

// Register adds a model under its full ID and under its bare name, so
// callers that omit a version get the most recently registered one.
func (r *Registry[I, O]) Register(ctx context.Context, m *wlm.ModelInfo[I, O]) error {
	if m.Name == "" {
		return fmt.Errorf("model name is required")
	}

	r.mu.Lock()
	if _, exists := r.models[m.ID()]; exists {
		r.mu.Unlock()
		return fmt.Errorf("model %q already registered", m.ID())
	}
	r.models[m.ID()] = m
	r.models[m.Name] = m
	r.mu.Unlock()

	if r.repo != nil {
		rec := &models.ModelRecord{
			Name:         m.Name,
			Version:      m.Version,
			QueueSize:    m.QueueSize,
			RegisteredAt: time.Now(),
		}
		if err := r.repo.Model().SaveModel(ctx, rec); err != nil {
			return fmt.Errorf("failed to persist model registration: %w", err)
		}
	}

	slog.Info("Model registered", "model", m.ID(), "queue_size", m.QueueSize)
	return nil
}

// Lookup resolves a model by full ID ("name:version") or bare name.
func (r *Registry[I, O]) Lookup(id string) (*wlm.ModelInfo[I, O], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[id]
	return m, ok
}

// List returns every registered model once, full IDs only.
func (r *Registry[I, O]) List() []*wlm.ModelInfo[I, O] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*wlm.ModelInfo[I, O], 0, len(r.models))
	for id, m := range r.models {
		if id == m.ID() {
			out = append(out, m)
		}
	}
	return out
}

// Size returns the number of registered models.
func (r *Registry[I, O]) Size() int {
	return len(r.List())
}
