// Copyright 2026 The LifeHub Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package openai adapts the OpenAI chat completions, models, and embeddings
// APIs to the uniform provider surface.
package openai

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

const defaultBaseURL = "https://api.openai.com/v1"

// defaultEmbedModel is used when the caller does not name an embedding model.
const defaultEmbedModel = "text-embedding-3-small"

// Adapter speaks the OpenAI HTTP API.
type Adapter struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// New returns an adapter using the given API key. baseURL is overridable for
// OpenAI-compatible gateways; empty uses the public endpoint.
func New(apiKey, baseURL string) *Adapter {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Adapter{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

func (a *Adapter) Kind() llm.ProviderKind { return llm.KindOpenAI }

func (a *Adapter) failure(op string, status int, err error) *llm.ProviderError {
	return &llm.ProviderError{Kind: llm.KindOpenAI, Op: op, StatusCode: status, Timeout: isTimeout(err), Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func (a *Adapter) do(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return a.client.Do(req)
}

type chatPayload struct {
	Model       string        `json:"model"`
	Messages    []llm.Message `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

func buildPayload(prompt string, history []llm.Message, opts llm.Options, stream bool) chatPayload {
	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: "user", Content: prompt})
	return chatPayload{
		Model:       opts.Model,
		Messages:    messages,
		Stream:      stream,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
}

// Generate produces one synchronous chat completion.
func (a *Adapter) Generate(ctx context.Context, prompt string, history []llm.Message, opts llm.Options) (string, error) {
	resp, err := a.do(ctx, http.MethodPost, "/chat/completions", buildPayload(prompt, history, opts, false))
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
	resp, err := a.do(ctx, http.MethodPost, "/chat/completions", buildPayload(prompt, history, opts, true))
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
					FinishReason *string `json:"finish_reason"`
				} `json:"choices"`
			}
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			if content := chunk.Choices[0].Delta.Content; content != "" {
				select {
				case ch <- llm.StreamChunk{Content: content}:
				case <-ctx.Done():
					return
				}
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

// ListModels enumerates models visible to the credential via /models.
func (a *Adapter) ListModels(ctx context.Context) ([]llm.ModelInfo, error) {
	resp, err := a.do(ctx, http.MethodGet, "/models", nil)
	if err != nil {
		return nil, a.failure("list", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, a.failure("list", resp.StatusCode, fmt.Errorf("unexpected status"))
	}

	var out struct {
		Data []struct {
			ID      string `json:"id"`
			Created int64  `json:"created"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, a.failure("list", 0, fmt.Errorf("decoding response: %w", err))
	}

	models := make([]llm.ModelInfo, 0, len(out.Data))
	for _, m := range out.Data {
		info := llm.ModelInfo{Name: m.ID}
		if m.Created > 0 {
			info.ModifiedAt = time.Unix(m.Created, 0)
		}
		models = append(models, info)
	}
	return models, nil
}

// Embed returns the embedding vector for text.
func (a *Adapter) Embed(ctx context.Context, text, model string) ([]float64, error) {
	if model == "" || strings.HasPrefix(model, "gpt-") {
		model = defaultEmbedModel
	}
	resp, err := a.do(ctx, http.MethodPost, "/embeddings", map[string]string{"model": model, "input": text})
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
