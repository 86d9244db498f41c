// Copyright 2026 The LifeHub Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package llm

import (
	"context"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/lifehubhq/lifehub/internal/config"
	"github.com/lifehubhq/lifehub/internal/node"
)

// NodeDialFunc builds a provider adapter bound to one node's endpoint. The
// concrete constructors live in the providers packages; injecting the dialer
// keeps this package free of adapter imports.
type NodeDialFunc func(n *node.Node) Provider

// CloudDialFunc builds a cloud provider adapter with a specific API key, used
// when a per-user credential record overrides the process-wide key.
type CloudDialFunc func(kind ProviderKind, apiKey string) Provider

// defaultListTimeout bounds one provider list-models call during aggregation.
const defaultListTimeout = 5 * time.Second

// Aggregator builds the unified model catalog: every model from every
// configured backend, de-duplicated, annotated with origin and credential
// state, plus the effective default identifier. Aggregation is resilient by
// construction: a failing backend contributes nothing, and the mock entry
// guarantees the result is never empty.
type Aggregator struct {
	registry    *Registry
	nodes       *node.Registry
	creds       *CredentialResolver
	meta        *config.MetaTable
	cell        *DefaultModelCell
	mockModel   string
	nodeDial    NodeDialFunc
	cloudDial   CloudDialFunc
	listTimeout time.Duration
	now         func() time.Time
}

// NewAggregator wires the aggregator. meta may be nil to skip enrichment.
func NewAggregator(registry *Registry, nodes *node.Registry, creds *CredentialResolver,
	meta *config.MetaTable, cell *DefaultModelCell, mockModel string,
	nodeDial NodeDialFunc, cloudDial CloudDialFunc) *Aggregator {
	if mockModel == "" {
		mockModel = "mock-standard"
	}
	return &Aggregator{
		registry:    registry,
		nodes:       nodes,
		creds:       creds,
		meta:        meta,
		cell:        cell,
		mockModel:   mockModel,
		nodeDial:    nodeDial,
		cloudDial:   cloudDial,
		listTimeout: defaultListTimeout,
		now:         time.Now,
	}
}

// SetListTimeout overrides the per-provider listing deadline.
func (a *Aggregator) SetListTimeout(d time.Duration) {
	if d > 0 {
		a.listTimeout = d
	}
}

// SetClock overrides the aggregator clock. Tests only.
func (a *Aggregator) SetClock(now func() time.Time) { a.now = now }

// Aggregate builds the catalog for userID. filter, when non-empty, narrows
// the entries to one provider kind; the mock entry and the credential
// annotations are retained regardless so the fallback guarantees hold.
// Aggregate never returns an error.
func (a *Aggregator) Aggregate(ctx context.Context, userID int64, filter ProviderKind) *Catalog {
	cat := &Catalog{
		Credentials: make(map[ProviderKind]bool, len(KindPriority)),
		GeneratedAt: a.now(),
	}
	seen := make(map[string]bool)
	states := make(map[ProviderKind]CredentialState, 4)

	for _, kind := range []ProviderKind{KindOpenAI, KindGemini, KindOllama, KindLMStudio} {
		st := a.creds.Resolve(ctx, kind, userID)
		states[kind] = st
		cat.Credentials[kind] = st.Available
		if !st.Available || (filter != "" && filter != kind) {
			continue
		}
		a.appendCloud(ctx, cat, seen, kind, st)
	}

	avail := a.availableNodes(ctx, userID)
	cat.Credentials[KindClient] = len(avail) > 0
	if filter == "" || filter == KindClient {
		for _, n := range avail {
			a.appendNode(ctx, cat, seen, n)
		}
	}

	cat.Credentials[KindMock] = true
	a.appendEntry(cat, seen, CatalogEntry{
		Identifier:  BuildIdentifier(KindMock, 0, a.mockModel),
		DisplayName: "Mock (offline)",
		Kind:        KindMock,
		Origin:      "mock",
		Description: "Deterministic placeholder used when no real backend is available.",
	})

	cat.DefaultIdentifier = a.effectiveDefault(cat, states, filter)
	return cat
}

// availableNodes returns the routable node set, or nil when the pool cannot
// be listed. A store failure degrades to an empty pool, not an error.
func (a *Aggregator) availableNodes(ctx context.Context, userID int64) []*node.Node {
	if a.nodes == nil {
		return nil
	}
	avail, err := a.nodes.AvailableNodes(ctx, userID, "")
	if err != nil {
		log.WithError(err).Warn("catalog: listing nodes failed, omitting node entries")
		return nil
	}
	return avail
}

// appendCloud lists one cloud or global provider and appends its models. A
// per-user key overrides the process-wide adapter. Failures are logged and
// the provider contributes nothing.
func (a *Aggregator) appendCloud(ctx context.Context, cat *Catalog, seen map[string]bool, kind ProviderKind, st CredentialState) {
	p := a.registry.Get(kind)
	if st.FromUserRecord && a.cloudDial != nil {
		p = a.cloudDial(kind, st.APIKey)
	}
	if p == nil {
		return
	}

	listCtx, cancel := context.WithTimeout(ctx, a.listTimeout)
	defer cancel()
	models, err := p.ListModels(listCtx)
	if err != nil {
		log.WithError(err).Debugf("catalog: listing %s models failed", kind)
		return
	}

	for _, m := range models {
		entry := CatalogEntry{
			Identifier: BuildIdentifier(kind, 0, m.Name),
			Kind:       kind,
			Origin:     "cloud",
			SizeBytes:  m.SizeBytes,
		}
		a.enrich(&entry, m.Name)
		a.appendEntry(cat, seen, entry)
	}
}

// appendNode appends one node's models from its capability snapshot. Only
// when the snapshot carries no models is a live list-models call made; the
// catalog must not block on a slow pool.
func (a *Aggregator) appendNode(ctx context.Context, cat *Catalog, seen map[string]bool, n *node.Node) {
	var models []string
	var latency int64
	if n.Snapshot != nil && len(n.Snapshot.Models) > 0 {
		models = n.Snapshot.Models
		latency = n.Snapshot.LatencyMS
	} else if a.nodeDial != nil {
		listCtx, cancel := context.WithTimeout(ctx, a.listTimeout)
		defer cancel()
		infos, err := a.nodeDial(n).ListModels(listCtx)
		if err != nil {
			log.WithError(err).Debugf("catalog: listing models on node %d failed", n.ID)
			return
		}
		for _, m := range infos {
			models = append(models, m.Name)
		}
	}

	for _, name := range models {
		entry := CatalogEntry{
			Identifier: BuildIdentifier(KindClient, n.ID, name),
			Kind:       KindClient,
			Origin:     "node",
			NodeID:     n.ID,
			NodeName:   n.Name,
			LatencyMS:  latency,
		}
		a.enrich(&entry, name)
		a.appendEntry(cat, seen, entry)
	}
}

func (a *Aggregator) enrich(entry *CatalogEntry, model string) {
	if a.meta == nil {
		if entry.DisplayName == "" {
			entry.DisplayName = model
		}
		return
	}
	meta := a.meta.Lookup(model)
	entry.DisplayName = meta.DisplayName
	if entry.DisplayName == "" {
		entry.DisplayName = model
	}
	entry.Description = meta.Description
	entry.ContextWindow = meta.ContextWindow
	entry.CostPerMTok = meta.CostPerMTok
	entry.SupportsTools = meta.SupportsTools
	entry.SupportsImage = meta.SupportsImage
}

// appendEntry de-duplicates by identifier, first entry wins.
func (a *Aggregator) appendEntry(cat *Catalog, seen map[string]bool, entry CatalogEntry) {
	if seen[entry.Identifier] {
		return
	}
	seen[entry.Identifier] = true
	cat.Entries = append(cat.Entries, entry)
}

// effectiveDefault computes the default identifier for this aggregation. The
// configured default wins while its provider stays usable; otherwise the
// priority walk picks the first usable kind, preferring a credential record's
// preferred model when one is present in the catalog. The mock entry makes
// the walk total.
func (a *Aggregator) effectiveDefault(cat *Catalog, states map[ProviderKind]CredentialState, filter ProviderKind) string {
	resolver := NewResolver(a.cell, a.mockModel)
	if configured := a.cell.Get(); configured != "" {
		parsed := resolver.Parse(configured)
		// A configured value that degraded to mock was malformed; let the
		// priority walk find a real provider instead.
		degraded := parsed.Kind == KindMock && !strings.HasPrefix(configured, string(KindMock)+":")
		// The configured default holds only while its provider stays
		// credentialed and the model still appears in this aggregation.
		if !degraded && cat.Credentials[parsed.Kind] && cat.Has(parsed.Identifier()) {
			return parsed.Identifier()
		}
	}

	for _, kind := range KindPriority {
		if filter != "" && kind != filter && kind != KindMock {
			continue
		}
		if !cat.Credentials[kind] || !cat.HasKind(kind) {
			continue
		}
		if pref := states[kind].PreferredModel; pref != "" {
			id := BuildIdentifier(kind, 0, pref)
			if cat.Has(id) {
				return id
			}
		}
		for i := range cat.Entries {
			if cat.Entries[i].Kind == kind {
				return cat.Entries[i].Identifier
			}
		}
	}
	return BuildIdentifier(KindMock, 0, a.mockModel)
}
