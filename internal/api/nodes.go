// Copyright 2026 The LifeHub Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lifehubhq/lifehub/internal/node"
)

func nodeID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "node id must be a positive integer"})
		return 0, false
	}
	return id, true
}

// ListNodes returns every node visible to the caller, with availability
// computed against the freshness gate.
func (h *Handler) ListNodes(c *gin.Context) {
	all, err := h.nodes.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store_failed", "message": err.Error()})
		return
	}

	uid := userID(c)
	out := make([]gin.H, 0, len(all))
	for _, n := range all {
		if !n.VisibleTo(uid) {
			continue
		}
		out = append(out, nodeView(n))
	}
	c.JSON(http.StatusOK, gin.H{"nodes": out})
}

// GetNode returns one node by id.
func (h *Handler) GetNode(c *gin.Context) {
	id, ok := nodeID(c)
	if !ok {
		return
	}
	n, err := h.nodes.Get(c.Request.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, node.ErrNodeNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "node_not_found", "message": err.Error()})
		return
	}
	if !n.VisibleTo(userID(c)) {
		c.JSON(http.StatusNotFound, gin.H{"error": "node_not_found"})
		return
	}
	c.JSON(http.StatusOK, nodeView(n))
}

// NodeRequest is the create/update body for a node record.
type NodeRequest struct {
	Name    string `json:"name" binding:"required"`
	Kind    string `json:"kind" binding:"required"`
	Address string `json:"address" binding:"required"`
	Active  *bool  `json:"active"`
	Public  bool   `json:"public"`
	Meta    string `json:"meta"`
}

// UpsertNode creates a node (POST) or updates one (PUT with :id). New nodes
// are owned by the caller and start with unknown status until first probe.
func (h *Handler) UpsertNode(c *gin.Context) {
	var req NodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	n := &node.Node{
		Name:    req.Name,
		Kind:    node.Kind(req.Kind),
		Address: req.Address,
		Active:  true,
		Public:  req.Public,
		OwnerID: userID(c),
		Meta:    req.Meta,
	}
	if req.Active != nil {
		n.Active = *req.Active
	}

	if idParam := c.Param("id"); idParam != "" {
		id, ok := nodeID(c)
		if !ok {
			return
		}
		existing, err := h.nodes.Get(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "node_not_found", "message": err.Error()})
			return
		}
		if existing.OwnerID != userID(c) {
			c.JSON(http.StatusForbidden, gin.H{"error": "not_owner"})
			return
		}
		n.ID = id
		n.OwnerID = existing.OwnerID
		n.Status = existing.Status
		n.LastSeenAt = existing.LastSeenAt
		n.Snapshot = existing.Snapshot
	}

	saved, err := h.nodes.Upsert(c.Request.Context(), n)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_node", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, nodeView(saved))
}

// DeleteNode removes a node. Routes are computed per request, so deletion
// takes effect immediately with no cache to invalidate.
func (h *Handler) DeleteNode(c *gin.Context) {
	id, ok := nodeID(c)
	if !ok {
		return
	}
	existing, err := h.nodes.Get(c.Request.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, node.ErrNodeNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "node_not_found", "message": err.Error()})
		return
	}
	if existing.OwnerID != userID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not_owner"})
		return
	}
	if err := h.nodes.Delete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store_failed", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// RefreshNode probes one node on demand and returns the classified result.
func (h *Handler) RefreshNode(c *gin.Context) {
	id, ok := nodeID(c)
	if !ok {
		return
	}
	res, err := h.nodes.Refresh(c.Request.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, node.ErrNodeNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "refresh_failed", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": res, "status": res.Status()})
}

// RefreshAllNodes runs one monitor cycle across the whole pool.
func (h *Handler) RefreshAllNodes(c *gin.Context) {
	if h.monitor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "monitor_unavailable"})
		return
	}
	h.monitor.RefreshAll(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"refreshed": true})
}

// nodeView shapes one node for API responses, adding the computed
// availability flag alongside the stored record.
func nodeView(n *node.Node) gin.H {
	return gin.H{
		"id":           n.ID,
		"name":         n.Name,
		"kind":         n.Kind,
		"address":      n.Address,
		"active":       n.Active,
		"public":       n.Public,
		"owner_id":     n.OwnerID,
		"status":       n.Status,
		"last_seen_at": n.LastSeenAt,
		"snapshot":     n.Snapshot,
		"available":    n.Available(timeNow()),
	}
}
