// Copyright 2026 The LifeHub Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"github.com/lifehubhq/lifehub/internal/llm"
)

// ChatRequest is the body shared by the chat and stream endpoints.
type ChatRequest struct {
	// Model is a canonical identifier, a bare name, or empty for the default.
	Model          string        `json:"model"`
	Prompt         string        `json:"prompt" binding:"required"`
	History        []llm.Message `json:"history"`
	Temperature    float64       `json:"temperature"`
	MaxTokens      int           `json:"max_tokens"`
	ConversationID string        `json:"conversation_id"`
}

func (r ChatRequest) options() llm.Options {
	return llm.Options{Temperature: r.Temperature, MaxTokens: r.MaxTokens}
}

// Chat serves one synchronous completion. The response carries the text and
// the route that produced it, so clients can show which backend answered.
func (h *Handler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	text, route, err := h.router.Chat(c.Request.Context(), userID(c), req.Model,
		req.Prompt, req.History, req.options(), req.ConversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "routing_failed", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"content": text, "route": route})
}

// ChatStream serves a completion as server-sent events. The first event is
// the resolved route; each subsequent event carries one content fragment. A
// mid-stream provider failure surfaces as an error event, then the stream
// ends with [DONE].
func (h *Handler) ChatStream(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	ch, route, err := h.router.ChatStream(c.Request.Context(), userID(c), req.Model,
		req.Prompt, req.History, req.options(), req.ConversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "routing_failed", "message": err.Error()})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	writeEvent(c.Writer, gin.H{"route": route})
	for chunk := range ch {
		if chunk.Err != nil {
			writeEvent(c.Writer, gin.H{"error": chunk.Err.Error()})
			break
		}
		writeEvent(c.Writer, gin.H{"content": chunk.Content})
	}
	io.WriteString(c.Writer, "data: [DONE]\n\n")
	c.Writer.Flush()
}

func writeEvent(w gin.ResponseWriter, payload gin.H) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	io.WriteString(w, "data: ")
	w.Write(data)
	io.WriteString(w, "\n\n")
	w.Flush()
}

// EmbedRequest is the body for the embeddings endpoint.
type EmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input" binding:"required"`
}

// Embed returns the embedding vector for the input text.
func (h *Handler) Embed(c *gin.Context) {
	var req EmbedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	vec, route, err := h.router.Embed(c.Request.Context(), userID(c), req.Model, req.Input)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "routing_failed", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"embedding": vec, "dimensions": len(vec), "route": route})
}

// ListModels returns the aggregated catalog. ?provider= narrows to one kind.
func (h *Handler) ListModels(c *gin.Context) {
	filter := llm.ProviderKind(c.Query("provider"))
	if filter != "" && !llm.KnownKind(string(filter)) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "unknown provider kind"})
		return
	}
	c.JSON(http.StatusOK, h.router.Models(c.Request.Context(), userID(c), filter))
}

// SetDefaultModel installs a new default model identifier.
func (h *Handler) SetDefaultModel(c *gin.Context) {
	var req struct {
		Model string `json:"model" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	if err := h.router.SetDefault(c.Request.Context(), userID(c), req.Model); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, llm.ErrModelNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "invalid_default", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"default": req.Model})
}

// RecentUsage returns the retained usage records, newest last.
func (h *Handler) RecentUsage(c *gin.Context) {
	if h.recorder == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "usage_unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": h.recorder.Recent()})
}
