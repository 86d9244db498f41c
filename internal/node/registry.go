// Copyright 2026 The LifeHub Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package node

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultProbeTimeout bounds one health probe round trip.
const DefaultProbeTimeout = 8 * time.Second

// ErrNodeNotFound indicates the node id does not exist in the store.
var ErrNodeNotFound = errors.New("node not found")

// Registry owns node metadata and health bookkeeping. Health fields are
// mutated only here, on probe or refresh; concurrent refreshes of the same
// node are tolerated as last-write-wins snapshot replacement.
type Registry struct {
	store        Store
	prober       Prober
	probeTimeout time.Duration
	now          func() time.Time
}

// NewRegistry returns a registry over the given store and prober.
func NewRegistry(store Store, prober Prober) *Registry {
	return &Registry{
		store:        store,
		prober:       prober,
		probeTimeout: DefaultProbeTimeout,
		now:          time.Now,
	}
}

// SetProbeTimeout overrides the per-probe deadline.
func (r *Registry) SetProbeTimeout(d time.Duration) {
	if d > 0 {
		r.probeTimeout = d
	}
}

// SetClock overrides the registry clock. Tests only.
func (r *Registry) SetClock(now func() time.Time) { r.now = now }

// Get returns one node by id.
func (r *Registry) Get(ctx context.Context, id int64) (*Node, error) {
	n, err := r.store.GetNode(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, ErrNodeNotFound
	}
	return n, nil
}

// List returns every stored node.
func (r *Registry) List(ctx context.Context) ([]*Node, error) {
	return r.store.ListNodes(ctx)
}

// Upsert creates or updates a node record.
func (r *Registry) Upsert(ctx context.Context, n *Node) (*Node, error) {
	if n.Kind != KindOllama && n.Kind != KindLMStudio {
		return nil, fmt.Errorf("unsupported node kind %q", n.Kind)
	}
	if n.Status == "" {
		n.Status = StatusUnknown
	}
	return r.store.UpsertNode(ctx, n)
}

// Delete removes a node. Routes are recomputed per request, so no cached
// route can outlive the deletion.
func (r *Registry) Delete(ctx context.Context, id int64) error {
	return r.store.DeleteNode(ctx, id)
}

// Probe performs one lightweight list-models call against the node with a
// bounded timeout and classifies the outcome. It never returns an error;
// all failure classes come back as data.
func (r *Registry) Probe(ctx context.Context, n *Node) HealthResult {
	checked := r.now()
	if r.prober == nil {
		return HealthResult{Outcome: OutcomeError, Detail: "no prober configured", CheckedAt: checked}
	}

	probeCtx, cancel := context.WithTimeout(ctx, r.probeTimeout)
	defer cancel()

	start := r.now()
	models, err := r.prober.ProbeModels(probeCtx, n)
	latency := r.now().Sub(start).Milliseconds()

	if err != nil {
		res := HealthResult{LatencyMS: latency, CheckedAt: checked, Detail: err.Error()}
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			res.Outcome = OutcomeTimeout
			res.Detail = fmt.Sprintf("probe timed out after %s", r.probeTimeout)
		case errors.Is(err, context.Canceled):
			res.Outcome = OutcomeError
		case isConnectionError(err):
			res.Outcome = OutcomeOffline
		default:
			res.Outcome = OutcomeError
		}
		return res
	}

	return HealthResult{
		Outcome:   OutcomeOnline,
		LatencyMS: latency,
		Models:    models,
		CheckedAt: checked,
	}
}

// Refresh probes the node and persists the attempt. Status is always
// persisted, even on failure, so staleness stays visible; last-seen only
// advances on success. The snapshot is replaced atomically as one record.
func (r *Registry) Refresh(ctx context.Context, id int64) (HealthResult, error) {
	n, err := r.Get(ctx, id)
	if err != nil {
		return HealthResult{}, err
	}

	res := r.Probe(ctx, n)

	lastSeen := n.LastSeenAt
	var snap *Snapshot
	if res.Outcome == OutcomeOnline {
		lastSeen = res.CheckedAt
		snap = &Snapshot{
			Models:     res.Models,
			ModelCount: len(res.Models),
			LatencyMS:  res.LatencyMS,
			CapturedAt: res.CheckedAt,
		}
	}

	if err := r.store.UpdateNodeHealth(ctx, id, res.Status(), lastSeen, snap); err != nil {
		log.WithError(err).Warnf("failed to persist health for node %d", id)
		return res, err
	}

	if res.Outcome != OutcomeOnline {
		log.Debugf("node %d (%s) probe: %s %s", n.ID, n.Name, res.Outcome, res.Detail)
	}
	return res, nil
}

// AvailableNodes returns nodes eligible for routing on behalf of userID:
// active, visible to the user (owned or public), optionally filtered by
// kind, and passing the freshness gate (online, or seen within the window).
func (r *Registry) AvailableNodes(ctx context.Context, userID int64, kind Kind) ([]*Node, error) {
	all, err := r.store.ListNodes(ctx)
	if err != nil {
		return nil, err
	}
	now := r.now()
	out := make([]*Node, 0, len(all))
	for _, n := range all {
		if kind != "" && n.Kind != kind {
			continue
		}
		if !n.VisibleTo(userID) {
			continue
		}
		if !n.Available(now) {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}
