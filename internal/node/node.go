// Copyright 2026 The LifeHub Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package node maintains the self-hosted inference node pool: node metadata,
// on-demand health probes, cached capability snapshots, and the
// recency-and-status-filtered view of currently available nodes.
package node

import (
	"context"
	"time"
)

// Kind is the wire protocol a node speaks.
type Kind string

const (
	// KindOllama nodes expose the Ollama HTTP API.
	KindOllama Kind = "ollama"
	// KindLMStudio nodes expose an OpenAI-compatible HTTP API.
	KindLMStudio Kind = "lmstudio"
)

// Status is the last-observed health classification of a node.
type Status string

const (
	StatusUnknown Status = "unknown"
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusError   Status = "error"
)

// FreshnessWindow is how long a node's last successful contact keeps it
// eligible for routing when its probe loop has not run recently.
const FreshnessWindow = 30 * time.Minute

// Snapshot is a node's cached capability view. It is a cache, never
// authoritative: it is refreshed by probes and may be stale. Snapshots are
// replaced wholesale on update, never mutated field by field.
type Snapshot struct {
	Models     []string  `json:"models"`
	ModelCount int       `json:"model_count"`
	LatencyMS  int64     `json:"latency_ms"`
	CapturedAt time.Time `json:"captured_at"`
}

// Node is one self-hosted inference endpoint.
type Node struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Kind    Kind   `json:"kind"`
	Address string `json:"address"`
	// Active nodes are eligible for routing; inactive nodes are never
	// considered even if previously healthy.
	Active bool `json:"active"`
	// Public nodes are visible to every user; private nodes only to the owner.
	Public     bool      `json:"public"`
	OwnerID    int64     `json:"owner_id"`
	Status     Status    `json:"status"`
	LastSeenAt time.Time `json:"last_seen_at"`
	Snapshot   *Snapshot `json:"snapshot,omitempty"`
	Meta       string    `json:"meta,omitempty"`
}

// VisibleTo reports whether userID may route through this node.
func (n *Node) VisibleTo(userID int64) bool {
	return n.Public || n.OwnerID == userID
}

// Available applies the routing recency gate at time now: the node must be
// active and either currently online or seen within the freshness window.
// The OR tolerates a node that is online but whose probe loop has not run
// recently, while dropping nodes that have been silent beyond the window.
func (n *Node) Available(now time.Time) bool {
	if !n.Active {
		return false
	}
	if n.Status == StatusOnline {
		return true
	}
	return !n.LastSeenAt.IsZero() && now.Sub(n.LastSeenAt) <= FreshnessWindow
}

// Outcome classifies a single probe attempt.
type Outcome string

const (
	OutcomeOnline  Outcome = "online"
	OutcomeOffline Outcome = "offline"
	OutcomeTimeout Outcome = "timeout"
	OutcomeError   Outcome = "error"
)

// HealthResult is the data-only result of one probe. Probes never raise;
// every failure class is represented here.
type HealthResult struct {
	Outcome   Outcome   `json:"outcome"`
	LatencyMS int64     `json:"latency_ms"`
	Models    []string  `json:"models,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Status maps the probe outcome onto the persisted node status. Timeouts are
// recorded as offline; the detail string retains the timeout cause.
func (h HealthResult) Status() Status {
	switch h.Outcome {
	case OutcomeOnline:
		return StatusOnline
	case OutcomeOffline, OutcomeTimeout:
		return StatusOffline
	default:
		return StatusError
	}
}

// Store is the persistence boundary for node records. Implementations live
// in internal/store; the registry assumes only that writes are durable
// before the next read of the same logical operation.
type Store interface {
	GetNode(ctx context.Context, id int64) (*Node, error)
	ListNodes(ctx context.Context) ([]*Node, error)
	UpsertNode(ctx context.Context, n *Node) (*Node, error)
	DeleteNode(ctx context.Context, id int64) error
	// UpdateNodeHealth persists status, last-seen, and the replacement
	// snapshot in one write. A nil snapshot leaves the stored one in place.
	UpdateNodeHealth(ctx context.Context, id int64, status Status, lastSeen time.Time, snap *Snapshot) error
}

// Prober performs the provider-appropriate lightweight call (list-models)
// against a node. Implemented by the llm package to avoid a dependency on
// adapter wiring here.
type Prober interface {
	ProbeModels(ctx context.Context, n *Node) ([]string, error)
}
