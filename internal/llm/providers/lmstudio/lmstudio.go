// Copyright 2026 The LifeHub Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package lmstudio adapts OpenAI-compatible local servers (LM Studio,
// llama.cpp server, vLLM) to the uniform provider surface. No credential is
// required; the endpoint address is the only configuration. The same adapter
// serves the process-wide endpoint and node-bound instances.
package lmstudio

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

	"github.com/lifehubhq/lifehub/internal/llm"
)

// Adapter speaks the OpenAI-compatible wire protocol against a local server.
type Adapter struct {
	kind    llm.ProviderKind
	baseURL string
	client  *http.Client
}

// New returns an adapter for the endpoint. kind is llm.KindLMStudio for the
// global endpoint or llm.KindClient for node-bound instances. baseURL should
// include the /v1 path segment.
func New(kind llm.ProviderKind, baseURL string) *Adapter {
	if baseURL == "" {
		baseURL = "http://localhost:1234/v1"
	}
	return &Adapter{
		kind:    kind,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

func (a *Adapter) Kind() llm.ProviderKind { return a.kind }

func (a *Adapter) failure(op string, status int, err error) *llm.ProviderError {
	return &llm.ProviderError{Kind: a.kind, Op: op, StatusCode: status, Timeout: isTimeout(err), Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func (a *Adapter) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return a.client.Do(req)
}

func buildPayload(prompt string, history []llm.Message, opts llm.Options, stream bool) map[string]any {
	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: "user", Content: prompt})
	payload := map[string]any{
		"model":    opts.Model,
		"messages": messages,
		"stream":   stream,
	}
	if opts.Temperature > 0 {
		payload["temperature"] = opts.Temperature
	}
	if opts.MaxTokens > 0 {
		payload["max_tokens"] = opts.MaxTokens
	}
	return payload
}

// Generate produces one synchronous chat completion.
func (a *Adapter) Generate(ctx context.Context, prompt string, history []llm.Message, opts llm.Options) (string, error) {
	resp, err := a.post(ctx, "/chat/completions", buildPayload(prompt, history, opts, false))
	if err != nil {
		return "", a.failure("generate", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", a.failure("generate", resp.StatusCode, fmt.Errorf("%s", strings.TrimSpace(string(body))))
	}

	var out struct {
		Choices []struct {
			Message llm.Message `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", a.failure("generate", 0, fmt.Errorf("decoding response: %w", err))
	}
	if len(out.Choices) == 0 {
		return "", a.failure("generate", 0, errors.New("response contained no choices"))
	}
	return out.Choices[0].Message.Content, nil
}

// GenerateStream produces chunks from the SSE stream.
func (a *Adapter) GenerateStream(ctx context.Context, prompt string, history []llm.Message, opts llm.Options) (<-chan llm.StreamChunk, error) {
	resp, err := a.post(ctx, "/chat/completions", buildPayload(prompt, history, opts, true))
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
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")
			if data == "[DONE]" {
				return
			}
			var chunk struct {
				Choices []struct {
					Delta struct {
						Content string `json:"content"`
					} `json:"delta"`
				} `json:"choices"`
			}
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}
			select {
			case ch <- llm.StreamChunk{Content: chunk.Choices[0].Delta.Content}:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			select {
			case ch <- llm.StreamChunk{Err: a.failure("stream", 0, err)}:
			case <-ctx.Done():
			}
		}
	}()
	return ch, nil
}

// ListModels enumerates loaded models via /models.
func (a *Adapter) ListModels(ctx context.Context) ([]llm.ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/models", nil)
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
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, a.failure("list", 0, fmt.Errorf("decoding response: %w", err))
	}

	models := make([]llm.ModelInfo, 0, len(out.Data))
	for _, m := range out.Data {
		models = append(models, llm.ModelInfo{Name: m.ID})
	}
	return models, nil
}

// Embed returns the embedding vector via /embeddings.
func (a *Adapter) Embed(ctx context.Context, text, model string) ([]float64, error) {
	resp, err := a.post(ctx, "/embeddings", map[string]string{"model": model, "input": text})
	if err != nil {
		return nil, a.failure("embed", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, a.failure("embed", resp.StatusCode, fmt.Errorf("%s", strings.TrimSpace(string(body))))
	}

	var out struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, a.failure("embed", 0, fmt.Errorf("decoding response: %w", err))
	}
	if len(out.Data) == 0 {
		return nil, a.failure("embed", 0, errors.New("response contained no embedding"))
	}
	return out.Data[0].Embedding, nil
}
