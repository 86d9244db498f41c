// Copyright 2026 The LifeHub Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package llm

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func newTestResolver(defaultIdentifier string) *Resolver {
	return NewResolver(NewDefaultModelCell(defaultIdentifier), "mock-standard")
}

func TestParse_Shapes(t *testing.T) {
	r := newTestResolver("openai:gpt-4o-mini")

	tests := []struct {
		name  string
		input string
		want  ParsedIdentifier
	}{
		{"cloud pair", "openai:gpt-4o", ParsedIdentifier{Kind: KindOpenAI, Model: "gpt-4o"}},
		{"gemini pair", "gemini:gemini-2.0-flash", ParsedIdentifier{Kind: KindGemini, Model: "gemini-2.0-flash"}},
		{"global ollama", "ollama:llama3.1", ParsedIdentifier{Kind: KindOllama, Model: "llama3.1"}},
		{"node scoped", "client:7:llama3.1", ParsedIdentifier{Kind: KindClient, NodeID: 7, Model: "llama3.1"}},
		{"empty uses default", "", ParsedIdentifier{Kind: KindOpenAI, Model: "gpt-4o-mini"}},
		{"whitespace uses default", "   ", ParsedIdentifier{Kind: KindOpenAI, Model: "gpt-4o-mini"}},
		{"bare name inherits default kind", "gpt-4.1", ParsedIdentifier{Kind: KindOpenAI, Model: "gpt-4.1"}},
		{"mock pair", "mock:anything", ParsedIdentifier{Kind: KindMock, Model: "anything"}},

		{"unknown kind", "azure:gpt-4o", ParsedIdentifier{Kind: KindMock, Model: "mock-standard"}},
		{"client without node id", "client:llama3.1", ParsedIdentifier{Kind: KindMock, Model: "mock-standard"}},
		{"node id zero", "client:0:llama3.1", ParsedIdentifier{Kind: KindMock, Model: "mock-standard"}},
		{"node id negative", "client:-3:llama3.1", ParsedIdentifier{Kind: KindMock, Model: "mock-standard"}},
		{"node id non-numeric", "client:abc:llama3.1", ParsedIdentifier{Kind: KindMock, Model: "mock-standard"}},
		{"three segments non node kind", "openai:7:gpt-4o", ParsedIdentifier{Kind: KindMock, Model: "mock-standard"}},
		{"too many segments", "client:7:llama:extra", ParsedIdentifier{Kind: KindMock, Model: "mock-standard"}},
		{"empty model", "openai:", ParsedIdentifier{Kind: KindMock, Model: "mock-standard"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Parse(tt.input))
		})
	}
}

func TestParse_NodeScopedDefault(t *testing.T) {
	r := newTestResolver("client:3:llama3.1")

	assert.Equal(t, ParsedIdentifier{Kind: KindClient, NodeID: 3, Model: "llama3.1"}, r.Parse(""))
	// Bare names inherit the default's node target.
	assert.Equal(t, ParsedIdentifier{Kind: KindClient, NodeID: 3, Model: "mistral"}, r.Parse("mistral"))
}

func TestParse_EmptyDefaultDegradesToMock(t *testing.T) {
	r := newTestResolver("")
	assert.Equal(t, r.Mock(), r.Parse(""))
	assert.Equal(t, r.Mock(), r.Parse("bare-name"))
}

func TestParse_BareDefaultCannotRecurse(t *testing.T) {
	// A default that is itself a bare name must not loop through the
	// bare-name rule again.
	r := newTestResolver("just-a-name")
	assert.Equal(t, r.Mock(), r.Parse(""))
	assert.Equal(t, r.Mock(), r.Parse("other-name"))
}

// TestProperty_ParseIsTotal checks that arbitrary input never panics and
// always yields a triple with a recognized kind and non-empty model.
func TestProperty_ParseIsTotal(t *testing.T) {
	properties := gopter.NewProperties(nil)
	r := newTestResolver("openai:gpt-4o-mini")

	properties.Property("parse always yields a usable triple", prop.ForAll(
		func(input string) bool {
			p := r.Parse(input)
			return KnownKind(string(p.Kind)) && p.Model != ""
		},
		gen.AnyString(),
	))

	properties.Property("non-node kinds never carry a node id", prop.ForAll(
		func(input string) bool {
			p := r.Parse(input)
			return p.Kind.NodeScoped() || p.NodeID == 0
		},
		gen.AnyString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// TestProperty_ParseRoundTrip checks that well-formed identifiers survive a
// parse/rebuild cycle unchanged.
func TestProperty_ParseRoundTrip(t *testing.T) {
	properties := gopter.NewProperties(nil)
	r := newTestResolver("")

	model := gen.RegexMatch(`[a-z][a-z0-9.-]{0,20}`)
	kinds := gen.OneConstOf(KindOpenAI, KindGemini, KindOllama, KindLMStudio)

	properties.Property("cloud identifiers round-trip", prop.ForAll(
		func(kind ProviderKind, m string) bool {
			id := BuildIdentifier(kind, 0, m)
			p := r.Parse(id)
			return p.Identifier() == id && p.Kind == kind && p.Model == m
		},
		kinds, model,
	))

	properties.Property("node identifiers round-trip", prop.ForAll(
		func(nodeID int64, m string) bool {
			id := BuildIdentifier(KindClient, nodeID, m)
			p := r.Parse(id)
			return p.Identifier() == id && p.NodeID == nodeID && p.Model == m
		},
		gen.Int64Range(1, 1<<40), model,
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
