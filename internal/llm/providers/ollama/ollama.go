// Copyright 2026 The LifeHub Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ollama adapts the Ollama HTTP API (default http://localhost:11434)
// to the uniform provider surface. The same adapter serves the process-wide
// configured endpoint and node-bound instances from the node pool.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"

	"github.com/lifehubhq/lifehub/internal/llm"
)

// Adapter speaks the Ollama wire protocol.
type Adapter struct {
	kind    llm.ProviderKind
	baseURL string
	client  *http.Client
}

// New returns an adapter for the endpoint. kind is llm.KindOllama for the
// global endpoint or llm.KindClient for node-bound instances.
func New(kind llm.ProviderKind, baseURL string) *Adapter {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &Adapter{
		kind:    kind,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		// Per-operation deadlines come from the caller's context; the
		// client timeout is only a backstop for runaway pulls.
		client: &http.Client{Timeout: 5 * time.Minute},
	}
}

func (a *Adapter) Kind() llm.ProviderKind { return a.kind }

func (a *Adapter) failure(op string, status int, err error) *llm.ProviderError {
	return &llm.ProviderError{
		Kind:       a.kind,
		Op:         op,
		StatusCode: status,
		Timeout:    isTimeout(err),
		Err:        err,
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

func buildChatRequest(prompt string, history []llm.Message, opts llm.Options, stream bool) chatRequest {
	messages := make([]chatMessage, 0, len(history)+1)
	for _, m := range history {
		messages = append(messages, chatMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	req := chatRequest{Model: opts.Model, Messages: messages, Stream: stream}
	options := map[string]any{}
	if opts.Temperature > 0 {
		options["temperature"] = opts.Temperature
	}
	if opts.MaxTokens > 0 {
		options["num_predict"] = opts.MaxTokens
	}
	if len(options) > 0 {
		req.Options = options
	}
	return req
}

func (a *Adapter) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return a.client.Do(req)
}

// Generate produces one synchronous chat completion.
func (a *Adapter) Generate(ctx context.Context, prompt string, history []llm.Message, opts llm.Options) (string, error) {
	resp, err := a.post(ctx, "/api/chat", buildChatRequest(prompt, history, opts, false))
	if err != nil {
		return "", a.failure("generate", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", a.failure("generate", resp.StatusCode, fmt.Errorf("%s", strings.TrimSpace(string(body))))
	}

	var out struct {
		Message chatMessage `json:"message"`
		Done    bool        `json:"done"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", a.failure("generate", 0, fmt.Errorf("decoding response: %w", err))
	}
	return out.Message.Content, nil
}

// GenerateStream produces chunks from Ollama's NDJSON streaming response.
func (a *Adapter) GenerateStream(ctx context.Context, prompt string, history []llm.Message, opts llm.Options) (<-chan llm.StreamChunk, error) {
	resp, err := a.post(ctx, "/api/chat", buildChatRequest(prompt, history, opts, true))
	if err != nil {
		return nil, a.failure("stream", 0, err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, a.failure("stream", resp.StatusCode, fmt.Errorf("%s", strings.TrimSpace(string(body))))
	}

	ch := make(chan llm.StreamChunk, 16)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var chunk struct {
				Message chatMessage `json:"message"`
				Done    bool        `json:"done"`
			}
			if err := json.Unmarshal(line, &chunk); err != nil {
				log.WithError(err).Debug("ollama: skipping malformed stream line")
				continue
			}
			if chunk.Message.Content != "" {
				select {
				case ch <- llm.StreamChunk{Content: chunk.Message.Content}:
				case <-ctx.Done():
					return
				}
			}
			if chunk.Done {
				return
			}
		}
		// Transport failure mid-stream terminates the sequence, no retry.
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			select {
			case ch <- llm.StreamChunk{Err: a.failure("stream", 0, err)}:
			case <-ctx.Done():
			}
		}
	}()
	return ch, nil
}

// ListModels enumerates locally installed models via /api/tags.
func (a *Adapter) ListModels(ctx context.Context) ([]llm.ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, a.failure("list", 0, err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, a.failure("list", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, a.failure("list", resp.StatusCode, fmt.Errorf("unexpected status"))
	}

	var out struct {
		Models []struct {
			Name       string    `json:"name"`
			Size       int64     `json:"size"`
			ModifiedAt time.Time `json:"modified_at"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, a.failure("list", 0, fmt.Errorf("decoding response: %w", err))
	}

	models := make([]llm.ModelInfo, 0, len(out.Models))
	for _, m := range out.Models {
		models = append(models, llm.ModelInfo{Name: m.Name, SizeBytes: m.Size, ModifiedAt: m.ModifiedAt})
	}
	return models, nil
}

// Embed requests an embedding vector via /api/embeddings.
func (a *Adapter) Embed(ctx context.Context, text, model string) ([]float64, error) {
	resp, err := a.post(ctx, "/api/embeddings", map[string]string{"model": model, "prompt": text})
	if err != nil {
		return nil, a.failure("embed", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, a.failure("embed", resp.StatusCode, fmt.Errorf("%s", strings.TrimSpace(string(body))))
	}

	var out struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, a.failure("embed", 0, fmt.Errorf("decoding response: %w", err))
	}
	return out.Embedding, nil
}
