// Copyright 2026 The LifeHub Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package mock is the deterministic terminal fallback provider. Every
// operation succeeds, and output depends only on the input: the same prompt
// or text always produces the same response or vector. It is a stand-in, not
// a real model.
package mock

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/lifehubhq/lifehub/internal/llm"
)

// EmbeddingDim is the fixed length of mock embedding vectors.
const EmbeddingDim = 256

// Adapter is the mock provider. The zero value is not usable; construct
// with New.
type Adapter struct {
	model string
}

// New returns the mock adapter reporting the given model name.
func New(model string) *Adapter {
	if model == "" {
		model = "mock-standard"
	}
	return &Adapter{model: model}
}

func (a *Adapter) Kind() llm.ProviderKind { return llm.KindMock }

// Model returns the mock model name.
func (a *Adapter) Model() string { return a.model }

// Generate returns a canned response. It never fails.
func (a *Adapter) Generate(_ context.Context, prompt string, history []llm.Message, _ llm.Options) (string, error) {
	return a.respond(prompt, len(history)), nil
}

// GenerateStream splits the canned response into word chunks.
func (a *Adapter) GenerateStream(ctx context.Context, prompt string, history []llm.Message, _ llm.Options) (<-chan llm.StreamChunk, error) {
	text := a.respond(prompt, len(history))
	ch := make(chan llm.StreamChunk, 8)
	go func() {
		defer close(ch)
		words := strings.SplitAfter(text, " ")
		for _, w := range words {
			select {
			case ch <- llm.StreamChunk{Content: w}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// ListModels reports the single mock model.
func (a *Adapter) ListModels(_ context.Context) ([]llm.ModelInfo, error) {
	return []llm.ModelInfo{{Name: a.model}}, nil
}

// Embed derives a fixed-length vector from a SHAKE-256 digest of the input,
// so identical text always yields an identical vector. Values lie in
// [-1, 1). This is a placeholder, not a meaningful embedding space.
func (a *Adapter) Embed(_ context.Context, text, _ string) ([]float64, error) {
	shake := sha3.NewShake256()
	shake.Write([]byte(text))

	buf := make([]byte, 8)
	vec := make([]float64, EmbeddingDim)
	for i := range vec {
		shake.Read(buf)
		v := binary.LittleEndian.Uint64(buf)
		vec[i] = float64(int64(v)) / float64(1<<63)
	}
	return vec, nil
}

func (a *Adapter) respond(prompt string, historyLen int) string {
	trimmed := strings.TrimSpace(prompt)
	if len(trimmed) > 48 {
		// Truncate on a rune boundary so multi-byte input stays valid UTF-8.
		runes := []rune(trimmed)
		if len(runes) > 48 {
			runes = runes[:48]
		}
		trimmed = string(runes) + "..."
	}
	if trimmed == "" {
		trimmed = "(empty prompt)"
	}
	return fmt.Sprintf("I'm a placeholder assistant running without a configured AI backend. "+
		"You asked: %q. Configure an API key or an inference node to get real answers. "+
		"(history length: %d)", trimmed, historyLen)
}
