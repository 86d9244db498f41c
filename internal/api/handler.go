// Copyright 2026 The LifeHub Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package api exposes the AI routing core over HTTP. Handlers are a thin
// translation layer: they bind requests, call the router or registry, and
// shape responses. All routing decisions live in internal/llm.
package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lifehubhq/lifehub/internal/credential"
	"github.com/lifehubhq/lifehub/internal/llm"
	"github.com/lifehubhq/lifehub/internal/node"
	"github.com/lifehubhq/lifehub/internal/usage"
)

// userIDHeader carries the authenticated user id set by the front proxy.
const userIDHeader = "X-LifeHub-User"

// Handler bundles the service dependencies behind the HTTP surface.
type Handler struct {
	router   *llm.Router
	nodes    *node.Registry
	creds    credential.Store
	recorder *usage.Recorder
	monitor  *node.Monitor
}

// NewHandler wires the handler. creds, recorder, and monitor may be nil;
// the corresponding endpoints then report service unavailable.
func NewHandler(router *llm.Router, nodes *node.Registry, creds credential.Store,
	recorder *usage.Recorder, monitor *node.Monitor) *Handler {
	return &Handler{
		router:   router,
		nodes:    nodes,
		creds:    creds,
		recorder: recorder,
		monitor:  monitor,
	}
}

// timeNow is swappable in tests that pin the availability clock.
var timeNow = time.Now

// userID extracts the acting user from the request. Absent or malformed
// headers resolve to user 0, the anonymous single-user deployment case.
func userID(c *gin.Context) int64 {
	raw := c.GetHeader(userIDHeader)
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}
