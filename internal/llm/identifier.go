// Copyright 2026 The LifeHub Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package llm

import (
	"strconv"
	"strings"
)

// ParsedIdentifier is the (provider kind, node target, model name) triple a
// canonical identifier decodes to. NodeID is zero unless Kind is node-scoped.
type ParsedIdentifier struct {
	Kind   ProviderKind
	NodeID int64
	Model  string
}

// Identifier rebuilds the canonical string form of the triple.
func (p ParsedIdentifier) Identifier() string {
	return BuildIdentifier(p.Kind, p.NodeID, p.Model)
}

// BuildIdentifier constructs a canonical identifier string. The inverse of
// Resolver.Parse for well-formed triples.
//
//	openai:gpt-4o-mini      cloud or globally configured provider
//	client:7:llama3.1       node-scoped provider
func BuildIdentifier(kind ProviderKind, nodeID int64, model string) string {
	if kind == "" {
		return model
	}
	if kind.NodeScoped() && nodeID > 0 {
		return string(kind) + ":" + strconv.FormatInt(nodeID, 10) + ":" + model
	}
	return string(kind) + ":" + model
}

// Resolver performs total, side-effect-free parsing of model identifiers.
// Identifiers come from end users and stored conversation defaults, so
// parsing never fails outward: every input degrades to a usable triple, with
// the mock provider as the catch-all.
type Resolver struct {
	cell      *DefaultModelCell
	mockModel string
}

// NewResolver returns a resolver bound to the default-model cell. mockModel
// is the model name used for the mock catch-all triple.
func NewResolver(cell *DefaultModelCell, mockModel string) *Resolver {
	return &Resolver{cell: cell, mockModel: mockModel}
}

// MockModel returns the configured mock catch-all model name.
func (r *Resolver) MockModel() string { return r.mockModel }

// Mock returns the catch-all triple every malformed input degrades to.
func (r *Resolver) Mock() ParsedIdentifier {
	return ParsedIdentifier{Kind: KindMock, Model: r.mockModel}
}

// Parse decodes identifier into a provider triple. Rules, in order:
//
//  1. Empty input resolves to the currently configured default identifier.
//  2. "A:B" with A a recognized non-node-scoped kind -> (A, 0, B).
//  3. "A:B:C" with A node-scoped and B a positive integer -> (A, B, C).
//  4. A bare name with no separator targets the default provider.
//  5. Anything else degrades to the mock triple. Parse never returns an
//     error: malformed input is routing data, not an error condition.
func (r *Resolver) Parse(identifier string) ParsedIdentifier {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		def := strings.TrimSpace(r.cell.Get())
		if def == "" {
			return r.Mock()
		}
		return r.parseShape(def, false)
	}
	return r.parseShape(identifier, true)
}

// parseShape handles one identifier string. bareAllowed guards the default
// lookup so a bare-name default cannot recurse into itself.
func (r *Resolver) parseShape(identifier string, bareAllowed bool) ParsedIdentifier {
	segments := strings.Split(identifier, ":")
	switch len(segments) {
	case 1:
		if !bareAllowed {
			return r.Mock()
		}
		return r.bareName(segments[0])
	case 2:
		kind := ProviderKind(segments[0])
		if !KnownKind(segments[0]) || kind.NodeScoped() || segments[1] == "" {
			return r.Mock()
		}
		return ParsedIdentifier{Kind: kind, Model: segments[1]}
	case 3:
		kind := ProviderKind(segments[0])
		if !KnownKind(segments[0]) || !kind.NodeScoped() || segments[2] == "" {
			return r.Mock()
		}
		nodeID, err := strconv.ParseInt(segments[1], 10, 64)
		if err != nil || nodeID <= 0 {
			return r.Mock()
		}
		return ParsedIdentifier{Kind: kind, NodeID: nodeID, Model: segments[2]}
	default:
		return r.Mock()
	}
}

// bareName treats a separator-free name as shorthand for the currently
// active default provider: the default's kind (and node target, when
// node-scoped) with the given model name.
func (r *Resolver) bareName(model string) ParsedIdentifier {
	def := strings.TrimSpace(r.cell.Get())
	if def == "" {
		return r.Mock()
	}
	base := r.parseShape(def, false)
	if base.Kind == KindMock {
		return r.Mock()
	}
	return ParsedIdentifier{Kind: base.Kind, NodeID: base.NodeID, Model: model}
}
