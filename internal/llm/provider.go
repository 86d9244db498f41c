// Copyright 2026 The LifeHub Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package llm

import (
	"context"
	"sync"
)

// Provider is the uniform capability surface every backend adapter exposes,
// regardless of the underlying wire protocol.
type Provider interface {
	// Kind returns the provider kind key this adapter serves.
	Kind() ProviderKind

	// Generate produces a single synchronous response. Transport and timeout
	// failures are returned as *ProviderError, never as an empty string.
	Generate(ctx context.Context, prompt string, history []Message, opts Options) (string, error)

	// GenerateStream produces a finite, forward-only sequence of fragments.
	// Connection failures are returned synchronously; a mid-stream transport
	// failure terminates the channel without retry. Consumers may abandon the
	// channel early; the adapter must not leak the underlying connection.
	GenerateStream(ctx context.Context, prompt string, history []Message, opts Options) (<-chan StreamChunk, error)

	// ListModels enumerates models visible to this provider and credential.
	ListModels(ctx context.Context) ([]ModelInfo, error)

	// Embed returns a fixed-length numeric vector for the input text.
	Embed(ctx context.Context, text, model string) ([]float64, error)
}

// Registry maps provider kind keys to adapter instances. Provider selection
// and credential checks become data-driven lookups against this map instead
// of string branching at call sites.
type Registry struct {
	mu        sync.RWMutex
	providers map[ProviderKind]Provider
}

// NewRegistry returns an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[ProviderKind]Provider)}
}

// Register installs or replaces the adapter for its kind.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Kind()] = p
}

// Get returns the adapter for kind, or nil when none is registered.
func (r *Registry) Get(kind ProviderKind) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[kind]
}

// Kinds returns the registered kinds in priority order.
func (r *Registry) Kinds() []ProviderKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ProviderKind, 0, len(r.providers))
	for _, k := range KindPriority {
		if _, ok := r.providers[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// DefaultModelCell is the single-slot store holding the currently configured
// default model identifier. It is injected into the router and the catalog
// aggregator so the global default stays testable and swappable per test run.
type DefaultModelCell struct {
	mu    sync.RWMutex
	value string
}

// NewDefaultModelCell seeds the cell with the configured identifier.
func NewDefaultModelCell(identifier string) *DefaultModelCell {
	return &DefaultModelCell{value: identifier}
}

// Get returns the configured default identifier, possibly empty.
func (c *DefaultModelCell) Get() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Set replaces the configured default identifier.
func (c *DefaultModelCell) Set(identifier string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = identifier
}
