// Copyright 2026 The LifeHub Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package usage emits one usage record per terminal route. Recording is
// fire-and-forget: failures are logged for operator visibility and never
// affect the caller-visible routing result.
package usage

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/tiktoken-go/tokenizer"
)

// Record is one usage entry attached to a terminal route.
type Record struct {
	ID               string    `json:"id"`
	Identifier       string    `json:"identifier"`
	Provider         string    `json:"provider"`
	Operation        string    `json:"operation"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	LatencyMS        int64     `json:"latency_ms"`
	ConversationID   string    `json:"conversation_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// maxRecent bounds the in-memory record ring.
const maxRecent = 256

// Recorder estimates token counts and keeps a bounded ring of recent
// records. Token estimation uses the cl100k tokenizer for OpenAI-family
// model names and a word-count heuristic for everything else.
type Recorder struct {
	mu     sync.Mutex
	recent []Record
	codec  tokenizer.Codec
}

// NewRecorder builds a recorder. Tokenizer initialization failure downgrades
// estimation to the heuristic; it never fails construction.
func NewRecorder() *Recorder {
	r := &Recorder{}
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		log.WithError(err).Warn("usage: tokenizer unavailable, falling back to heuristic estimates")
		return r
	}
	r.codec = codec
	return r
}

// EstimateTokens returns a token-count estimate for text under model.
func (r *Recorder) EstimateTokens(model, text string) int {
	if text == "" {
		return 0
	}
	if r.codec != nil && isOpenAIFamily(model) {
		if ids, _, err := r.codec.Encode(text); err == nil {
			return len(ids)
		}
	}
	// Subword tokenizers average about 1.3 tokens per word.
	words := len(strings.Fields(text))
	return int(float64(words) * 1.3)
}

// Add records one usage entry. Never returns an error; the record is logged
// and kept in the ring.
func (r *Recorder) Add(rec Record) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	r.mu.Lock()
	r.recent = append(r.recent, rec)
	if len(r.recent) > maxRecent {
		r.recent = r.recent[len(r.recent)-maxRecent:]
	}
	r.mu.Unlock()

	log.WithFields(log.Fields{
		"provider":          rec.Provider,
		"identifier":        rec.Identifier,
		"operation":         rec.Operation,
		"prompt_tokens":     rec.PromptTokens,
		"completion_tokens": rec.CompletionTokens,
		"latency_ms":        rec.LatencyMS,
	}).Info("usage recorded")
}

// Recent returns a copy of the retained records, newest last.
func (r *Recorder) Recent() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.recent))
	copy(out, r.recent)
	return out
}

func isOpenAIFamily(model string) bool {
	return strings.HasPrefix(model, "gpt-") ||
		strings.HasPrefix(model, "o1") ||
		strings.HasPrefix(model, "o3") ||
		strings.HasPrefix(model, "text-embedding-")
}
