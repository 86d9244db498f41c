// Copyright 2026 The LifeHub Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifehubhq/lifehub/internal/node"
	"github.com/lifehubhq/lifehub/internal/steering"
)

func TestChat_RoutesToRequestedProvider(t *testing.T) {
	h := newHarness(harnessConfig{
		openAIKey: "sk-test",
		providers: []Provider{
			&fakeProvider{kind: KindOpenAI, models: []string{"gpt-4o-mini"}, genText: "openai says hi"},
		},
	})

	text, route, err := h.router.Chat(context.Background(), 0, "openai:gpt-4o-mini", "hello", nil, Options{}, "")
	require.NoError(t, err)
	assert.Equal(t, "openai says hi", text)
	assert.Equal(t, KindOpenAI, route.Kind)
	assert.Equal(t, "gpt-4o-mini", route.Model)
	assert.Equal(t, "openai:gpt-4o-mini", route.Identifier)
}

func TestChat_DegradesOnProviderFailure(t *testing.T) {
	failing := &fakeProvider{kind: KindOpenAI, models: []string{"gpt-4o"}, genErr: errors.New("upstream down")}
	working := &fakeProvider{kind: KindGemini, models: []string{"gemini-2.0-flash"}, genText: "gemini says hi"}
	h := newHarness(harnessConfig{
		openAIKey: "sk-test",
		geminiKey: "g-test",
		providers: []Provider{failing, working},
	})

	text, route, err := h.router.Chat(context.Background(), 0, "openai:gpt-4o", "hello", nil, Options{}, "")
	require.NoError(t, err)
	assert.Equal(t, "gemini says hi", text)
	assert.Equal(t, KindGemini, route.Kind)
	assert.Equal(t, 1, failing.calls())
}

func TestChat_FailedKindIsNotRetried(t *testing.T) {
	failing := &fakeProvider{kind: KindOpenAI, models: []string{"gpt-4o"}, genErr: errors.New("upstream down")}
	h := newHarness(harnessConfig{
		defaultModel: "openai:gpt-4o",
		openAIKey:    "sk-test",
		providers:    []Provider{failing},
	})

	// Requested kind and default kind are both openai; one failure must
	// burn the kind, not loop through it again via the default.
	text, route, err := h.router.Chat(context.Background(), 0, "openai:gpt-4o", "hello", nil, Options{}, "")
	require.NoError(t, err)
	assert.Equal(t, KindMock, route.Kind)
	assert.Equal(t, "mock says hi", text)
	assert.Equal(t, 1, failing.calls())
}

func TestChat_MalformedIdentifierLandsOnMock(t *testing.T) {
	h := newHarness(harnessConfig{})

	text, route, err := h.router.Chat(context.Background(), 0, "client:not-a-number:llama", "hello", nil, Options{}, "")
	require.NoError(t, err)
	assert.Equal(t, KindMock, route.Kind)
	assert.NotEmpty(t, text)
}

func TestChat_NoBackendsStillAnswers(t *testing.T) {
	h := newHarness(harnessConfig{})

	text, route, err := h.router.Chat(context.Background(), 0, "", "hello", nil, Options{}, "")
	require.NoError(t, err)
	assert.Equal(t, KindMock, route.Kind)
	assert.Equal(t, "mock:mock-standard", route.Identifier)
	assert.NotEmpty(t, text)
}

func TestChat_NodeScopedRouting(t *testing.T) {
	h := newHarness(harnessConfig{
		nodes: []*node.Node{onlineNode(4, "workstation", "llama3.1")},
	})

	text, route, err := h.router.Chat(context.Background(), 0, "client:4:llama3.1", "hello", nil, Options{}, "")
	require.NoError(t, err)
	assert.Equal(t, KindClient, route.Kind)
	assert.Equal(t, int64(4), route.NodeID)
	assert.Equal(t, "workstation", route.NodeName)
	assert.Equal(t, "node workstation says hi", text)
}

func TestChat_UnavailableNodeDegrades(t *testing.T) {
	stale := onlineNode(9, "gone", "llama3.1")
	stale.Status = node.StatusOffline
	stale.LastSeenAt = time.Now().Add(-time.Hour)
	h := newHarness(harnessConfig{nodes: []*node.Node{stale}})

	_, route, err := h.router.Chat(context.Background(), 0, "client:9:llama3.1", "hello", nil, Options{}, "")
	require.NoError(t, err)
	assert.Equal(t, KindMock, route.Kind)
}

func TestChat_PrivateNodeInvisibleToOthers(t *testing.T) {
	private := onlineNode(2, "mine", "mistral")
	private.Public = false
	private.OwnerID = 42
	h := newHarness(harnessConfig{nodes: []*node.Node{private}})

	_, route, err := h.router.Chat(context.Background(), 7, "client:2:mistral", "hello", nil, Options{}, "")
	require.NoError(t, err)
	assert.Equal(t, KindMock, route.Kind)

	_, ownerRoute, err := h.router.Chat(context.Background(), 42, "client:2:mistral", "hello", nil, Options{}, "")
	require.NoError(t, err)
	assert.Equal(t, KindClient, ownerRoute.Kind)
}

func TestChat_NodeGenerateFailureDegrades(t *testing.T) {
	h := newHarness(harnessConfig{
		nodes:      []*node.Node{onlineNode(6, "flaky", "llama3.1")},
		nodeGenErr: map[int64]error{6: errors.New("connection reset")},
	})

	text, route, err := h.router.Chat(context.Background(), 0, "client:6:llama3.1", "hello", nil, Options{}, "")
	require.NoError(t, err)
	assert.Equal(t, KindMock, route.Kind)
	assert.NotEmpty(t, text)
}

func TestChatStream_DeliversChunksAndRoute(t *testing.T) {
	h := newHarness(harnessConfig{
		openAIKey: "sk-test",
		providers: []Provider{
			&fakeProvider{kind: KindOpenAI, models: []string{"gpt-4o"}, genText: "streamed"},
		},
	})

	ch, route, err := h.router.ChatStream(context.Background(), 0, "openai:gpt-4o", "hello", nil, Options{}, "")
	require.NoError(t, err)
	assert.Equal(t, KindOpenAI, route.Kind)

	var got string
	for chunk := range ch {
		require.NoError(t, chunk.Err)
		got += chunk.Content
	}
	assert.Equal(t, "streamed", got)
}

func TestChatStream_ConnectFailureDegrades(t *testing.T) {
	h := newHarness(harnessConfig{
		openAIKey: "sk-test",
		providers: []Provider{
			&fakeProvider{kind: KindOpenAI, models: []string{"gpt-4o"}, genErr: errors.New("dial failed")},
		},
	})

	ch, route, err := h.router.ChatStream(context.Background(), 0, "openai:gpt-4o", "hello", nil, Options{}, "")
	require.NoError(t, err)
	assert.Equal(t, KindMock, route.Kind)

	var got string
	for chunk := range ch {
		require.NoError(t, chunk.Err)
		got += chunk.Content
	}
	assert.NotEmpty(t, got)
}

func TestEmbed_FallsBackToDeterministicMock(t *testing.T) {
	h := newHarness(harnessConfig{})

	vec, route, err := h.router.Embed(context.Background(), 0, "", "some text")
	require.NoError(t, err)
	assert.Equal(t, KindMock, route.Kind)
	assert.NotEmpty(t, vec)
}

func TestSetDefault_RejectsUnknownModel(t *testing.T) {
	h := newHarness(harnessConfig{
		openAIKey: "sk-test",
		providers: []Provider{&fakeProvider{kind: KindOpenAI, models: []string{"gpt-4o"}}},
	})

	err := h.router.SetDefault(context.Background(), 0, "openai:no-such-model")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelNotFound)

	require.NoError(t, h.router.SetDefault(context.Background(), 0, "openai:gpt-4o"))
	assert.Equal(t, "openai:gpt-4o", h.cell.Get())
}

func TestSetDefault_RejectsMalformedIdentifier(t *testing.T) {
	h := newHarness(harnessConfig{})
	assert.Error(t, h.router.SetDefault(context.Background(), 0, "azure:gpt-4o"))
	assert.Error(t, h.router.SetDefault(context.Background(), 0, ""))
}

func TestChat_SteeringPinOverridesRequest(t *testing.T) {
	h := newHarness(harnessConfig{
		openAIKey: "sk-test",
		geminiKey: "g-test",
		providers: []Provider{
			&fakeProvider{kind: KindOpenAI, models: []string{"gpt-4o"}, genText: "openai says hi"},
			&fakeProvider{kind: KindGemini, models: []string{"gemini-2.0-flash"}, genText: "gemini says hi"},
		},
	})
	engine := steering.NewEngine([]steering.Rule{{
		Name:  "long prompts to gemini",
		When:  "prompt_length > 10",
		Model: "gemini:gemini-2.0-flash",
	}})
	h.router.steer = engine

	text, route, err := h.router.Chat(context.Background(), 0, "openai:gpt-4o",
		"this prompt is longer than ten characters", nil, Options{}, "")
	require.NoError(t, err)
	assert.Equal(t, KindGemini, route.Kind)
	assert.Equal(t, "gemini says hi", text)

	// Short prompts keep the requested route.
	_, route, err = h.router.Chat(context.Background(), 0, "openai:gpt-4o", "short", nil, Options{}, "")
	require.NoError(t, err)
	assert.Equal(t, KindOpenAI, route.Kind)
}
