// Copyright 2026 The LifeHub Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package llm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lifehubhq/lifehub/internal/credential"
	"github.com/lifehubhq/lifehub/internal/node"
)

// fakeProvider is a scriptable adapter for routing tests.
type fakeProvider struct {
	kind     ProviderKind
	models   []string
	genText  string
	genErr   error
	listErr  error
	embedErr error

	mu       sync.Mutex
	genCalls int
}

func (f *fakeProvider) Kind() ProviderKind { return f.kind }

func (f *fakeProvider) Generate(_ context.Context, _ string, _ []Message, _ Options) (string, error) {
	f.mu.Lock()
	f.genCalls++
	f.mu.Unlock()
	if f.genErr != nil {
		return "", f.genErr
	}
	return f.genText, nil
}

func (f *fakeProvider) GenerateStream(ctx context.Context, prompt string, history []Message, opts Options) (<-chan StreamChunk, error) {
	if f.genErr != nil {
		return nil, f.genErr
	}
	ch := make(chan StreamChunk, 2)
	ch <- StreamChunk{Content: f.genText}
	close(ch)
	return ch, nil
}

func (f *fakeProvider) ListModels(_ context.Context) ([]ModelInfo, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]ModelInfo, 0, len(f.models))
	for _, m := range f.models {
		out = append(out, ModelInfo{Name: m})
	}
	return out, nil
}

func (f *fakeProvider) Embed(_ context.Context, _, _ string) ([]float64, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return []float64{0.1, 0.2}, nil
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.genCalls
}

// fakeNodeStore is an in-memory node.Store.
type fakeNodeStore struct {
	mu     sync.Mutex
	nodes  map[int64]*node.Node
	nextID int64
}

func newFakeNodeStore(nodes ...*node.Node) *fakeNodeStore {
	s := &fakeNodeStore{nodes: make(map[int64]*node.Node), nextID: 1}
	for _, n := range nodes {
		if n.ID == 0 {
			n.ID = s.nextID
		}
		if n.ID >= s.nextID {
			s.nextID = n.ID + 1
		}
		s.nodes[n.ID] = n
	}
	return s
}

func (s *fakeNodeStore) GetNode(_ context.Context, id int64) (*node.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, nil
	}
	cp := *n
	return &cp, nil
}

func (s *fakeNodeStore) ListNodes(_ context.Context) ([]*node.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*node.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		cp := *n
		out = append(out, &cp)
	}
	return out, nil
}

func (s *fakeNodeStore) UpsertNode(_ context.Context, n *node.Node) (*node.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == 0 {
		n.ID = s.nextID
		s.nextID++
	}
	cp := *n
	s.nodes[n.ID] = &cp
	return n, nil
}

func (s *fakeNodeStore) DeleteNode(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nodes, id)
	return nil
}

func (s *fakeNodeStore) UpdateNodeHealth(_ context.Context, id int64, status node.Status, lastSeen time.Time, snap *node.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return errors.New("no such node")
	}
	n.Status = status
	n.LastSeenAt = lastSeen
	if snap != nil {
		n.Snapshot = snap
	}
	return nil
}

// fakeCredStore is an in-memory credential.Store.
type fakeCredStore struct {
	mu      sync.Mutex
	records map[int64]*credential.Credential
	nextID  int64
	err     error
}

func newFakeCredStore(records ...*credential.Credential) *fakeCredStore {
	s := &fakeCredStore{records: make(map[int64]*credential.Credential), nextID: 1}
	for _, rec := range records {
		if rec.ID == 0 {
			rec.ID = s.nextID
		}
		if rec.ID >= s.nextID {
			s.nextID = rec.ID + 1
		}
		s.records[rec.ID] = rec
	}
	return s
}

func (s *fakeCredStore) GetCredential(_ context.Context, id int64) (*credential.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.records[id], nil
}

func (s *fakeCredStore) DefaultCredential(_ context.Context, kind string, ownerID int64) (*credential.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	for _, rec := range s.records {
		if rec.Kind == kind && rec.OwnerID == ownerID && rec.IsDefault {
			return rec, nil
		}
	}
	return nil, nil
}

func (s *fakeCredStore) ListCredentials(_ context.Context, ownerID int64) ([]*credential.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*credential.Credential
	for _, rec := range s.records {
		if rec.OwnerID == ownerID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *fakeCredStore) UpsertCredential(_ context.Context, rec *credential.Credential) (*credential.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == 0 {
		rec.ID = s.nextID
		s.nextID++
	}
	s.records[rec.ID] = rec
	return rec, nil
}

func (s *fakeCredStore) DeleteCredential(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

// harness bundles a fully wired routing core over fakes.
type harness struct {
	cell      *DefaultModelCell
	resolver  *Resolver
	registry  *Registry
	nodes     *node.Registry
	nodeStore *fakeNodeStore
	agg       *Aggregator
	router    *Router
	dialed    map[int64]*fakeProvider
}

type harnessConfig struct {
	defaultModel string
	openAIKey    string
	geminiKey    string
	ollamaURL    string
	lmstudioURL  string
	nodes        []*node.Node
	creds        []*credential.Credential
	providers    []Provider
	nodeModels   map[int64][]string
	nodeGenErr   map[int64]error
}

func newHarness(cfg harnessConfig) *harness {
	h := &harness{
		cell:      NewDefaultModelCell(cfg.defaultModel),
		registry:  NewRegistry(),
		nodeStore: newFakeNodeStore(cfg.nodes...),
		dialed:    make(map[int64]*fakeProvider),
	}
	h.resolver = NewResolver(h.cell, "mock-standard")
	h.nodes = node.NewRegistry(h.nodeStore, nil)

	h.registry.Register(&fakeProvider{kind: KindMock, models: []string{"mock-standard"}, genText: "mock says hi"})
	for _, p := range cfg.providers {
		h.registry.Register(p)
	}

	creds := NewCredentialResolver(newFakeCredStore(cfg.creds...),
		cfg.openAIKey, cfg.geminiKey, cfg.ollamaURL, cfg.lmstudioURL)

	nodeDial := func(n *node.Node) Provider {
		if p, ok := h.dialed[n.ID]; ok {
			return p
		}
		p := &fakeProvider{
			kind:    KindClient,
			models:  cfg.nodeModels[n.ID],
			genText: "node " + n.Name + " says hi",
			genErr:  cfg.nodeGenErr[n.ID],
		}
		h.dialed[n.ID] = p
		return p
	}
	cloudDial := func(kind ProviderKind, _ string) Provider {
		if p := h.registry.Get(kind); p != nil {
			return p
		}
		return &fakeProvider{kind: kind}
	}

	h.agg = NewAggregator(h.registry, h.nodes, creds, nil, h.cell, "mock-standard", nodeDial, cloudDial)
	h.router = NewRouter(h.resolver, h.agg, h.registry, h.nodes, creds, h.cell, nodeDial, cloudDial, nil, nil)
	return h
}
