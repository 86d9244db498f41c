// Copyright 2026 The LifeHub Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package llm implements the AI model routing and resolution core for the
// LifeHub backend. It parses canonical model identifiers, aggregates the model
// catalogs of every configured backend into one de-duplicated view, and routes
// chat/stream/embed requests to a concrete provider with deterministic
// fallback down to a mock provider that never fails.
package llm

import (
	"errors"
	"fmt"
	"time"
)

// ProviderKind is the enumerated category of a backend.
type ProviderKind string

const (
	// KindOpenAI is the OpenAI cloud API.
	KindOpenAI ProviderKind = "openai"
	// KindGemini is the Google Gemini cloud API.
	KindGemini ProviderKind = "gemini"
	// KindOllama is a process-wide configured Ollama endpoint.
	KindOllama ProviderKind = "ollama"
	// KindLMStudio is a process-wide configured OpenAI-compatible local server.
	KindLMStudio ProviderKind = "lmstudio"
	// KindClient addresses one self-hosted node from the node pool.
	// Identifiers for this kind carry a node id: "client:<id>:<model>".
	KindClient ProviderKind = "client"
	// KindMock is the deterministic terminal fallback. It never fails.
	KindMock ProviderKind = "mock"
)

// KindPriority is the fixed order walked when selecting an effective default
// model: cloud vendors first, then global self-hosted endpoints, then the
// node pool, with mock as the guaranteed last resort.
var KindPriority = []ProviderKind{KindOpenAI, KindGemini, KindOllama, KindLMStudio, KindClient, KindMock}

// NodeScoped reports whether identifiers of this kind carry a node id segment.
func (k ProviderKind) NodeScoped() bool { return k == KindClient }

// KnownKind reports whether s names a recognized provider kind.
func KnownKind(s string) bool {
	switch ProviderKind(s) {
	case KindOpenAI, KindGemini, KindOllama, KindLMStudio, KindClient, KindMock:
		return true
	}
	return false
}

// Message is one turn of conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	// DefaultTemperature is applied when the caller leaves Temperature unset.
	DefaultTemperature = 0.7
	// DefaultMaxTokens is applied when the caller leaves MaxTokens unset.
	DefaultMaxTokens = 2000
)

// Options carries per-call generation settings. The zero value is usable;
// unset fields are filled with defaults before the adapter call.
type Options struct {
	// Model is the bare model name sent to the provider (no kind prefix).
	Model string
	// Temperature is the sampling temperature.
	Temperature float64
	// MaxTokens bounds the generated output length.
	MaxTokens int
}

func (o Options) withDefaults() Options {
	if o.Temperature == 0 {
		o.Temperature = DefaultTemperature
	}
	if o.MaxTokens == 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	return o
}

// Route is the resolved outcome of identifier resolution: the concrete
// provider and model used for one invocation. A Route is immutable once
// constructed and is attached to every usage record it produces.
type Route struct {
	Kind       ProviderKind `json:"provider"`
	Model      string       `json:"model"`
	Identifier string       `json:"identifier"`
	NodeID     int64        `json:"node_id,omitempty"`
	NodeName   string       `json:"node_name,omitempty"`
}

// CatalogEntry is one row in the aggregated model list.
type CatalogEntry struct {
	Identifier  string       `json:"identifier"`
	DisplayName string       `json:"display_name"`
	Kind        ProviderKind `json:"provider"`
	// Origin is "node", "cloud", or "mock".
	Origin   string `json:"origin"`
	NodeID   int64  `json:"node_id,omitempty"`
	NodeName string `json:"node_name,omitempty"`
	// LatencyMS is the node's last measured round-trip, when known.
	LatencyMS int64 `json:"latency_ms,omitempty"`
	SizeBytes int64 `json:"size_bytes,omitempty"`
	// Enrichment fields from the model metadata table.
	Description   string  `json:"description,omitempty"`
	ContextWindow int     `json:"context_window,omitempty"`
	CostPerMTok   float64 `json:"cost_per_mtok,omitempty"`
	SupportsTools bool    `json:"supports_tools,omitempty"`
	SupportsImage bool    `json:"supports_image,omitempty"`
}

// Catalog is the aggregated, de-duplicated model view. It is recomputed on
// each listing request and never persisted.
type Catalog struct {
	Entries []CatalogEntry `json:"entries"`
	// DefaultIdentifier is the effective default model for this aggregation.
	DefaultIdentifier string `json:"default"`
	// Credentials flags, per provider kind, whether usable credentials (or a
	// reachable endpoint) were present during aggregation. Listing callers
	// use it to explain why a model is or is not the default.
	Credentials map[ProviderKind]bool `json:"credentials"`
	GeneratedAt time.Time             `json:"generated_at"`
}

// Has reports whether the catalog contains the given identifier.
func (c *Catalog) Has(identifier string) bool {
	for i := range c.Entries {
		if c.Entries[i].Identifier == identifier {
			return true
		}
	}
	return false
}

// HasKind reports whether the catalog contains any entry of the given kind.
func (c *Catalog) HasKind(kind ProviderKind) bool {
	for i := range c.Entries {
		if c.Entries[i].Kind == kind {
			return true
		}
	}
	return false
}

// ModelInfo is one model as reported by a provider's list call.
type ModelInfo struct {
	Name       string    `json:"name"`
	SizeBytes  int64     `json:"size_bytes,omitempty"`
	ModifiedAt time.Time `json:"modified_at,omitempty"`
}

// StreamChunk is one incremental fragment of a streaming response. The
// producing adapter closes the channel exactly once; a chunk with Err set is
// always the last chunk delivered.
type StreamChunk struct {
	Content string
	Err     error
}

// ErrModelNotFound indicates the requested model is absent from the catalog.
var ErrModelNotFound = errors.New("model not found in catalog")

// ProviderError is the typed failure surfaced by adapters so the routing
// engine can decide to degrade. It is never silently converted into an empty
// result.
type ProviderError struct {
	Kind       ProviderKind
	Op         string
	StatusCode int
	Timeout    bool
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Kind, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
