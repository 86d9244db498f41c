// Copyright 2026 The LifeHub Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package gemini adapts the Google Generative Language API to the uniform
// provider surface. Payloads are assembled with sjson and picked apart with
// gjson, keeping the vendor wire shape out of the rest of the core.
package gemini

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

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/lifehubhq/lifehub/internal/llm"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// defaultEmbedModel is used when the caller does not name an embedding model.
const defaultEmbedModel = "text-embedding-004"

// Adapter speaks the Gemini HTTP API.
type Adapter struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// New returns an adapter using the given API key.
func New(apiKey string) *Adapter {
	return &Adapter{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

func (a *Adapter) Kind() llm.ProviderKind { return llm.KindGemini }

func (a *Adapter) failure(op string, status int, err error) *llm.ProviderError {
	return &llm.ProviderError{Kind: llm.KindGemini, Op: op, StatusCode: status, Timeout: isTimeout(err), Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// buildPayload assembles the generateContent body. Gemini uses "model" for
// the assistant role and keeps generation settings under generationConfig.
func buildPayload(prompt string, history []llm.Message, opts llm.Options) []byte {
	payload := []byte(`{}`)
	idx := 0
	for _, m := range history {
		role := m.Role
		if role == "assistant" {
			role = "model"
		}
		payload, _ = sjson.SetBytes(payload, fmt.Sprintf("contents.%d.role", idx), role)
		payload, _ = sjson.SetBytes(payload, fmt.Sprintf("contents.%d.parts.0.text", idx), m.Content)
		idx++
	}
	payload, _ = sjson.SetBytes(payload, fmt.Sprintf("contents.%d.role", idx), "user")
	payload, _ = sjson.SetBytes(payload, fmt.Sprintf("contents.%d.parts.0.text", idx), prompt)
	if opts.Temperature > 0 {
		payload, _ = sjson.SetBytes(payload, "generationConfig.temperature", opts.Temperature)
	}
	if opts.MaxTokens > 0 {
		payload, _ = sjson.SetBytes(payload, "generationConfig.maxOutputTokens", opts.MaxTokens)
	}
	return payload
}

func (a *Adapter) post(ctx context.Context, path string, payload []byte) (*http.Response, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	url := a.baseURL + path + sep + "key=" + a.apiKey
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return a.client.Do(req)
}

// Generate produces one synchronous completion via :generateContent.
func (a *Adapter) Generate(ctx context.Context, prompt string, history []llm.Message, opts llm.Options) (string, error) {
	path := "/models/" + opts.Model + ":generateContent"
	resp, err := a.post(ctx, path, buildPayload(prompt, history, opts))
	if err != nil {
		return "", a.failure("generate", 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", a.failure("generate", 0, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(body, "error.message").String()
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return "", a.failure("generate", resp.StatusCode, fmt.Errorf("%s", msg))
	}

	text := gjson.GetBytes(body, "candidates.0.content.parts.0.text").String()
	if text == "" {
		return "", a.failure("generate", 0, errors.New("response contained no candidates"))
	}
	return text, nil
}

// GenerateStream produces chunks from :streamGenerateContent with alt=sse.
func (a *Adapter) GenerateStream(ctx context.Context, prompt string, history []llm.Message, opts llm.Options) (<-chan llm.StreamChunk, error) {
	path := "/models/" + opts.Model + ":streamGenerateContent?alt=sse"
	resp, err := a.post(ctx, path, buildPayload(prompt, history, opts))
	if err != nil {
		return nil, a.failure("stream", 0, err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		msg := gjson.GetBytes(body, "error.message").String()
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return nil, a.failure("stream", resp.StatusCode, fmt.Errorf("%s", msg))
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
			text := gjson.Get(data, "candidates.0.content.parts.0.text").String()
			if text == "" {
				continue
			}
			select {
			case ch <- llm.StreamChunk{Content: text}:
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

// ListModels enumerates the credential's visible models. Gemini reports
// names as "models/<name>"; the prefix is stripped for catalog use.
func (a *Adapter) ListModels(ctx context.Context) ([]llm.ModelInfo, error) {
	url := a.baseURL + "/models?key=" + a.apiKey
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, a.failure("list", 0, err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, a.failure("list", 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, a.failure("list", 0, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, a.failure("list", resp.StatusCode, fmt.Errorf("unexpected status"))
	}

	var models []llm.ModelInfo
	gjson.GetBytes(body, "models").ForEach(func(_, m gjson.Result) bool {
		name := strings.TrimPrefix(m.Get("name").String(), "models/")
		if name == "" {
			return true
		}
		// Only generation-capable models belong in the chat catalog.
		supported := m.Get("supportedGenerationMethods")
		if supported.Exists() && !strings.Contains(supported.Raw, "generateContent") {
			return true
		}
		models = append(models, llm.ModelInfo{Name: name})
		return true
	})
	return models, nil
}

// Embed returns the embedding vector via :embedContent.
func (a *Adapter) Embed(ctx context.Context, text, model string) ([]float64, error) {
	if model == "" || strings.HasPrefix(model, "gemini-") {
		model = defaultEmbedModel
	}
	payload, _ := sjson.SetBytes([]byte(`{}`), "content.parts.0.text", text)
	resp, err := a.post(ctx, "/models/"+model+":embedContent", payload)
	if err != nil {
		return nil, a.failure("embed", 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, a.failure("embed", 0, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(body, "error.message").String()
		return nil, a.failure("embed", resp.StatusCode, fmt.Errorf("%s", msg))
	}

	values := gjson.GetBytes(body, "embedding.values")
	if !values.Exists() {
		return nil, a.failure("embed", 0, errors.New("response contained no embedding"))
	}
	var vec []float64
	values.ForEach(func(_, v gjson.Result) bool {
		vec = append(vec, v.Float())
		return true
	})
	return vec, nil
}
