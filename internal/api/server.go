// Copyright 2026 The LifeHub Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// NewEngine builds the gin engine with the AI routes mounted. debug controls
// gin's mode; request logging goes through the shared logrus setup.
func NewEngine(h *Handler, debug bool) *gin.Engine {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := engine.Group("/v1/ai")
	{
		v1.POST("/chat", h.Chat)
		v1.POST("/chat/stream", h.ChatStream)
		v1.POST("/embeddings", h.Embed)
		v1.GET("/models", h.ListModels)
		v1.PUT("/default-model", h.SetDefaultModel)
		v1.GET("/usage", h.RecentUsage)

		v1.GET("/nodes", h.ListNodes)
		v1.POST("/nodes", h.UpsertNode)
		v1.GET("/nodes/:id", h.GetNode)
		v1.PUT("/nodes/:id", h.UpsertNode)
		v1.DELETE("/nodes/:id", h.DeleteNode)
		v1.POST("/nodes/:id/refresh", h.RefreshNode)
		v1.POST("/nodes/refresh", h.RefreshAllNodes)

		v1.GET("/credentials", h.ListCredentials)
		v1.POST("/credentials", h.UpsertCredential)
		v1.DELETE("/credentials/:id", h.DeleteCredential)
	}

	return engine
}

// requestLogger tags each request with an id and logs the outcome line.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.New().String()[:8]
		}
		c.Set("request_id", reqID)
		c.Header("X-Request-ID", reqID)

		start := time.Now()
		c.Next()

		entry := log.WithFields(log.Fields{
			"request_id": reqID,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Errorf("%s %s", c.Request.Method, c.Request.URL.Path)
		} else {
			entry.Infof("%s %s", c.Request.Method, c.Request.URL.Path)
		}
	}
}
