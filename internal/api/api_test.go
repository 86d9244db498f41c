// Copyright 2026 The LifeHub Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifehubhq/lifehub/internal/llm"
	"github.com/lifehubhq/lifehub/internal/llm/providers/mock"
	"github.com/lifehubhq/lifehub/internal/node"
	"github.com/lifehubhq/lifehub/internal/usage"
)

type memNodeStore struct {
	mu     sync.Mutex
	nodes  map[int64]*node.Node
	nextID int64
}

func newMemNodeStore() *memNodeStore {
	return &memNodeStore{nodes: make(map[int64]*node.Node), nextID: 1}
}

func (s *memNodeStore) GetNode(_ context.Context, id int64) (*node.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, nil
	}
	cp := *n
	return &cp, nil
}

func (s *memNodeStore) ListNodes(_ context.Context) ([]*node.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*node.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		cp := *n
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memNodeStore) UpsertNode(_ context.Context, n *node.Node) (*node.Node, error) {
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

func (s *memNodeStore) DeleteNode(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nodes, id)
	return nil
}

func (s *memNodeStore) UpdateNodeHealth(_ context.Context, id int64, status node.Status, lastSeen time.Time, snap *node.Snapshot) error {
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

// newTestEngine wires the HTTP surface over a mock-only routing core.
func newTestEngine(t *testing.T) (*httptest.Server, *memNodeStore) {
	t.Helper()

	store := newMemNodeStore()
	nodes := node.NewRegistry(store, nil)
	cell := llm.NewDefaultModelCell("")
	resolver := llm.NewResolver(cell, "mock-standard")
	registry := llm.NewRegistry()
	registry.Register(mock.New("mock-standard"))
	creds := llm.NewCredentialResolver(nil, "", "", "", "")

	agg := llm.NewAggregator(registry, nodes, creds, nil, cell, "mock-standard", nil, nil)
	recorder := usage.NewRecorder()
	router := llm.NewRouter(resolver, agg, registry, nodes, creds, cell, nil, nil, nil, recorder)

	handler := NewHandler(router, nodes, nil, recorder, nil)
	srv := httptest.NewServer(NewEngine(handler, false))
	t.Cleanup(srv.Close)
	return srv, store
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", strings.NewReader(string(data)))
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestChatEndpoint_AnswersViaMock(t *testing.T) {
	srv, _ := newTestEngine(t)

	resp := postJSON(t, srv.URL+"/v1/ai/chat", ChatRequest{Prompt: "hello there"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	assert.NotEmpty(t, body["content"])
	route := body["route"].(map[string]any)
	assert.Equal(t, "mock", route["provider"])
}

func TestChatEndpoint_RejectsMissingPrompt(t *testing.T) {
	srv, _ := newTestEngine(t)

	resp := postJSON(t, srv.URL+"/v1/ai/chat", map[string]string{"model": "openai:gpt-4o"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestModelsEndpoint_ContainsMockAndDefault(t *testing.T) {
	srv, _ := newTestEngine(t)

	resp, err := http.Get(srv.URL + "/v1/ai/models")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, "mock:mock-standard", body["default"])
	entries := body["entries"].([]any)
	assert.NotEmpty(t, entries)
}

func TestModelsEndpoint_RejectsUnknownFilter(t *testing.T) {
	srv, _ := newTestEngine(t)

	resp, err := http.Get(srv.URL + "/v1/ai/models?provider=azure")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDefaultModelEndpoint_ValidatesAgainstCatalog(t *testing.T) {
	srv, _ := newTestEngine(t)

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/v1/ai/default-model",
		strings.NewReader(`{"model":"openai:gpt-4o"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	// openai has no credentials here, so the identifier is not in the catalog.
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	req, _ = http.NewRequest(http.MethodPut, srv.URL+"/v1/ai/default-model",
		strings.NewReader(`{"model":"mock:mock-standard"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNodeEndpoints_CRUDAndVisibility(t *testing.T) {
	srv, store := newTestEngine(t)

	resp := postJSON(t, srv.URL+"/v1/ai/nodes", NodeRequest{
		Name: "workstation", Kind: "ollama", Address: "http://10.0.0.1:11434", Public: false,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	created := decode(t, resp)
	id := int64(created["id"].(float64))
	assert.Equal(t, "unknown", created["status"])

	// The anonymous owner sees it in the listing.
	resp, err := http.Get(srv.URL + "/v1/ai/nodes")
	require.NoError(t, err)
	body := decode(t, resp)
	assert.Len(t, body["nodes"].([]any), 1)

	// A different user does not: the node is private.
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/ai/nodes", nil)
	req.Header.Set(userIDHeader, "42")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	body = decode(t, resp)
	assert.Empty(t, body["nodes"].([]any))

	// Rejecting an unsupported node kind.
	resp = postJSON(t, srv.URL+"/v1/ai/nodes", NodeRequest{
		Name: "bad", Kind: "vllm", Address: "http://x",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Delete by the owner removes the record.
	req, _ = http.NewRequest(http.MethodDelete, srv.URL+"/v1/ai/nodes/"+strconv.FormatInt(id, 10), nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	remaining, _ := store.ListNodes(context.Background())
	assert.Empty(t, remaining)
}

func TestCredentialEndpoints_UnavailableWithoutStore(t *testing.T) {
	srv, _ := newTestEngine(t)

	resp, err := http.Get(srv.URL + "/v1/ai/credentials")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestStreamEndpoint_EmitsSSE(t *testing.T) {
	srv, _ := newTestEngine(t)

	resp := postJSON(t, srv.URL+"/v1/ai/chat/stream", ChatRequest{Prompt: "stream please"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	buf := make([]byte, 64*1024)
	n, _ := resp.Body.Read(buf)
	out := string(buf[:n])
	assert.Contains(t, out, "data: ")
}
