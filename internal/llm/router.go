// Copyright 2026 The LifeHub Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/lifehubhq/lifehub/internal/node"
	"github.com/lifehubhq/lifehub/internal/steering"
	"github.com/lifehubhq/lifehub/internal/usage"
)

// Operation labels for steering rules and usage records.
const (
	OpChat   = "chat"
	OpStream = "stream"
	OpEmbed  = "embed"
)

// DefaultGenerateTimeout bounds one synchronous generate or embed call.
const DefaultGenerateTimeout = 60 * time.Second

// Router is the routing and fallback engine. Every caller operation resolves
// the requested identifier to a Route, validates it against live catalog and
// credential state, and degrades along the fixed priority order until a
// provider succeeds. The mock provider terminates every walk, so callers
// always receive a response plus the Route that produced it.
type Router struct {
	resolver  *Resolver
	agg       *Aggregator
	registry  *Registry
	nodes     *node.Registry
	creds     *CredentialResolver
	cell      *DefaultModelCell
	nodeDial  NodeDialFunc
	cloudDial CloudDialFunc
	steer     *steering.Engine
	recorder  *usage.Recorder

	genTimeout time.Duration
	now        func() time.Time
}

// NewRouter wires the routing engine. steer and recorder may be nil.
func NewRouter(resolver *Resolver, agg *Aggregator, registry *Registry, nodes *node.Registry,
	creds *CredentialResolver, cell *DefaultModelCell,
	nodeDial NodeDialFunc, cloudDial CloudDialFunc,
	steer *steering.Engine, recorder *usage.Recorder) *Router {
	return &Router{
		resolver:   resolver,
		agg:        agg,
		registry:   registry,
		nodes:      nodes,
		creds:      creds,
		cell:       cell,
		nodeDial:   nodeDial,
		cloudDial:  cloudDial,
		steer:      steer,
		recorder:   recorder,
		genTimeout: DefaultGenerateTimeout,
		now:        time.Now,
	}
}

// SetGenerateTimeout overrides the per-call generation deadline.
func (r *Router) SetGenerateTimeout(d time.Duration) {
	if d > 0 {
		r.genTimeout = d
	}
}

// SetClock overrides the router clock. Tests only.
func (r *Router) SetClock(now func() time.Time) { r.now = now }

// Models returns the aggregated catalog for userID, optionally narrowed to
// one provider kind.
func (r *Router) Models(ctx context.Context, userID int64, filter ProviderKind) *Catalog {
	return r.agg.Aggregate(ctx, userID, filter)
}

// SetDefault validates and installs a new default model identifier. The
// identifier must parse to a non-mock triple present in the caller's catalog;
// malformed or unknown identifiers are rejected rather than silently degraded
// so a typo cannot become the persistent default.
func (r *Router) SetDefault(ctx context.Context, userID int64, identifier string) error {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return fmt.Errorf("default identifier must not be empty")
	}
	parsed := r.resolver.Parse(identifier)
	if parsed.Kind == KindMock && !strings.HasPrefix(identifier, string(KindMock)+":") {
		return fmt.Errorf("identifier %q is not a valid model identifier", identifier)
	}
	cat := r.agg.Aggregate(ctx, userID, "")
	if !cat.Has(parsed.Identifier()) {
		return fmt.Errorf("%w: %s", ErrModelNotFound, parsed.Identifier())
	}
	r.cell.Set(parsed.Identifier())
	return nil
}

// resolve turns the requested identifier into the initial Route: steering
// rules first, then total identifier parsing.
func (r *Router) resolve(identifier, prompt, operation string) ParsedIdentifier {
	if r.steer != nil {
		attrs := steering.RequestAttrs{
			Prompt:       prompt,
			PromptLength: len(prompt),
			Requested:    identifier,
			Operation:    operation,
		}
		if pinned, ok := r.steer.Evaluate(attrs); ok {
			identifier = pinned
		}
	}
	return r.resolver.Parse(identifier)
}

// validate checks one candidate against live state: usable credentials for
// cloud and global kinds, a reachable visible node for node-scoped kinds.
// Model-level existence is not required for cloud kinds, whose listings may
// be partial.
func (r *Router) validate(ctx context.Context, cat *Catalog, userID int64, p ParsedIdentifier) bool {
	switch {
	case p.Kind == KindMock:
		return true
	case p.Kind.NodeScoped():
		n, err := r.nodes.Get(ctx, p.NodeID)
		if err != nil || !n.VisibleTo(userID) || !n.Available(r.now()) {
			return false
		}
		return true
	default:
		return cat.Credentials[p.Kind]
	}
}

// degrade returns the next candidate after a failure: the effective default
// when it is not already burned, then the priority walk over usable kinds,
// skipping every kind in failed. The mock triple terminates the walk.
func (r *Router) degrade(cat *Catalog, failed map[ProviderKind]bool) ParsedIdentifier {
	if def := r.resolver.Parse(cat.DefaultIdentifier); !failed[def.Kind] {
		return def
	}
	for _, kind := range KindPriority {
		if failed[kind] || !cat.Credentials[kind] || !cat.HasKind(kind) {
			continue
		}
		for i := range cat.Entries {
			if cat.Entries[i].Kind == kind {
				return r.resolver.Parse(cat.Entries[i].Identifier)
			}
		}
	}
	return r.resolver.Mock()
}

// providerFor returns the adapter serving one candidate. Node-scoped
// candidates dial the node's endpoint; cloud candidates use the per-user key
// when a credential record supplies one.
func (r *Router) providerFor(ctx context.Context, userID int64, p ParsedIdentifier) (Provider, *Route, error) {
	route := &Route{Kind: p.Kind, Model: p.Model, Identifier: p.Identifier(), NodeID: p.NodeID}

	if p.Kind.NodeScoped() {
		n, err := r.nodes.Get(ctx, p.NodeID)
		if err != nil {
			return nil, nil, err
		}
		if !n.VisibleTo(userID) {
			return nil, nil, fmt.Errorf("node %d is not visible to user %d", p.NodeID, userID)
		}
		if !n.Available(r.now()) {
			return nil, nil, fmt.Errorf("node %d (%s) is not available", n.ID, n.Name)
		}
		if r.nodeDial == nil {
			return nil, nil, fmt.Errorf("no node dialer configured")
		}
		route.NodeName = n.Name
		return r.nodeDial(n), route, nil
	}

	if p.Kind == KindOpenAI || p.Kind == KindGemini {
		st := r.creds.Resolve(ctx, p.Kind, userID)
		if !st.Available {
			return nil, nil, fmt.Errorf("no usable credentials for %s", p.Kind)
		}
		if st.FromUserRecord && r.cloudDial != nil {
			return r.cloudDial(p.Kind, st.APIKey), route, nil
		}
	}

	adapter := r.registry.Get(p.Kind)
	if adapter == nil {
		return nil, nil, fmt.Errorf("no adapter registered for %s", p.Kind)
	}
	return adapter, route, nil
}

// walk runs the resolve-validate-invoke-degrade loop. invoke performs the
// actual provider call for one candidate; walk retries with the next
// candidate on failure. Termination is structural: each failed kind is
// skipped afterwards, the kind set is finite, and mock never fails.
func (r *Router) walk(ctx context.Context, userID int64, identifier, prompt, operation string,
	invoke func(Provider, *Route) error) (*Route, error) {

	cat := r.agg.Aggregate(ctx, userID, "")
	candidate := r.resolve(identifier, prompt, operation)
	failed := make(map[ProviderKind]bool, len(KindPriority))

	for attempt := 0; attempt <= len(KindPriority); attempt++ {
		if !r.validate(ctx, cat, userID, candidate) {
			log.Debugf("route %s invalid for %s, degrading", candidate.Identifier(), operation)
			failed[candidate.Kind] = true
			candidate = r.degrade(cat, failed)
			continue
		}

		p, route, err := r.providerFor(ctx, userID, candidate)
		if err == nil {
			err = invoke(p, route)
			if err == nil {
				return route, nil
			}
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if candidate.Kind == KindMock {
			// Mock is contractually infallible; reaching this means a wiring
			// defect, not a routing condition.
			return nil, fmt.Errorf("terminal mock provider failed: %w", err)
		}
		log.WithError(err).Warnf("%s via %s failed, degrading", operation, candidate.Identifier())
		failed[candidate.Kind] = true
		candidate = r.degrade(cat, failed)
	}
	return nil, fmt.Errorf("routing for %s exhausted all providers", operation)
}

// Chat produces one synchronous response, returning the text and the Route
// that produced it.
func (r *Router) Chat(ctx context.Context, userID int64, identifier, prompt string,
	history []Message, opts Options, conversationID string) (string, *Route, error) {

	var text string
	route, err := r.walk(ctx, userID, identifier, prompt, OpChat, func(p Provider, route *Route) error {
		callCtx, cancel := context.WithTimeout(ctx, r.genTimeout)
		defer cancel()

		callOpts := opts.withDefaults()
		callOpts.Model = route.Model
		start := r.now()
		out, err := p.Generate(callCtx, prompt, history, callOpts)
		if err != nil {
			return err
		}
		text = out
		r.record(route, OpChat, prompt, out, r.now().Sub(start), conversationID)
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	return text, route, nil
}

// ChatStream produces a streaming response. Degradation happens only on
// synchronous connection failure; once chunks flow, a mid-stream failure
// terminates the stream with an error chunk rather than silently rerouting.
// The returned channel is always closed by the producer.
func (r *Router) ChatStream(ctx context.Context, userID int64, identifier, prompt string,
	history []Message, opts Options, conversationID string) (<-chan StreamChunk, *Route, error) {

	var upstream <-chan StreamChunk
	route, err := r.walk(ctx, userID, identifier, prompt, OpStream, func(p Provider, route *Route) error {
		callOpts := opts.withDefaults()
		callOpts.Model = route.Model
		ch, err := p.GenerateStream(ctx, prompt, history, callOpts)
		if err != nil {
			return err
		}
		upstream = ch
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	out := make(chan StreamChunk, 16)
	start := r.now()
	go func() {
		defer close(out)
		var b strings.Builder
		for chunk := range upstream {
			if chunk.Err == nil {
				b.WriteString(chunk.Content)
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
		r.record(route, OpStream, prompt, b.String(), r.now().Sub(start), conversationID)
	}()
	return out, route, nil
}

// Embed returns the embedding vector for text, with the same fallback walk
// as generation. The mock provider guarantees a deterministic vector when no
// real backend can serve the request.
func (r *Router) Embed(ctx context.Context, userID int64, identifier, text string) ([]float64, *Route, error) {
	var vec []float64
	route, err := r.walk(ctx, userID, identifier, text, OpEmbed, func(p Provider, route *Route) error {
		callCtx, cancel := context.WithTimeout(ctx, r.genTimeout)
		defer cancel()

		start := r.now()
		out, err := p.Embed(callCtx, text, route.Model)
		if err != nil {
			return err
		}
		vec = out
		r.record(route, OpEmbed, text, "", r.now().Sub(start), "")
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return vec, route, nil
}

// record emits one usage record for a terminal route. Fire-and-forget.
func (r *Router) record(route *Route, operation, prompt, completion string, latency time.Duration, conversationID string) {
	if r.recorder == nil {
		return
	}
	r.recorder.Add(usage.Record{
		Identifier:       route.Identifier,
		Provider:         string(route.Kind),
		Operation:        operation,
		PromptTokens:     r.recorder.EstimateTokens(route.Model, prompt),
		CompletionTokens: r.recorder.EstimateTokens(route.Model, completion),
		LatencyMS:        latency.Milliseconds(),
		ConversationID:   conversationID,
	})
}
