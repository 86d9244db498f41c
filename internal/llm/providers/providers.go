// Copyright 2026 The LifeHub Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package providers wires concrete adapter constructors to the routing core:
// dialing node-bound adapters, building cloud adapters for per-user keys, and
// the list-models health prober used by the node registry.
package providers

import (
	"context"
	"fmt"

	"github.com/lifehubhq/lifehub/internal/llm"
	"github.com/lifehubhq/lifehub/internal/llm/providers/gemini"
	"github.com/lifehubhq/lifehub/internal/llm/providers/lmstudio"
	"github.com/lifehubhq/lifehub/internal/llm/providers/mock"
	"github.com/lifehubhq/lifehub/internal/llm/providers/ollama"
	"github.com/lifehubhq/lifehub/internal/llm/providers/openai"
	"github.com/lifehubhq/lifehub/internal/node"
)

// DialNode returns an adapter bound to one node's endpoint. Unknown node
// kinds fall back to the mock adapter so a corrupt record cannot break a
// routing walk.
func DialNode(n *node.Node) llm.Provider {
	switch n.Kind {
	case node.KindOllama:
		return ollama.New(llm.KindClient, n.Address)
	case node.KindLMStudio:
		return lmstudio.New(llm.KindClient, n.Address)
	default:
		return mock.New("")
	}
}

// DialCloud returns a cloud adapter carrying the given API key, used when a
// per-user credential record overrides the process-wide configuration.
func DialCloud(kind llm.ProviderKind, apiKey string) llm.Provider {
	switch kind {
	case llm.KindOpenAI:
		return openai.New(apiKey, "")
	case llm.KindGemini:
		return gemini.New(apiKey)
	default:
		return mock.New("")
	}
}

// Prober implements node.Prober with a list-models call through the node's
// protocol adapter.
type Prober struct{}

// ProbeModels lists the models served by n. The caller bounds ctx.
func (Prober) ProbeModels(ctx context.Context, n *node.Node) ([]string, error) {
	if n.Address == "" {
		return nil, fmt.Errorf("node %d has no address", n.ID)
	}
	infos, err := DialNode(n).ListModels(ctx)
	if err != nil {
		return nil, err
	}
	models := make([]string, 0, len(infos))
	for _, m := range infos {
		models = append(models, m.Name)
	}
	return models, nil
}
