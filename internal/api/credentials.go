// Copyright 2026 The LifeHub Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lifehubhq/lifehub/internal/credential"
	"github.com/lifehubhq/lifehub/internal/llm"
)

// ListCredentials returns the caller's credential records with keys masked.
func (h *Handler) ListCredentials(c *gin.Context) {
	if h.creds == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "credentials_unavailable"})
		return
	}
	records, err := h.creds.ListCredentials(c.Request.Context(), userID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store_failed", "message": err.Error()})
		return
	}
	out := make([]gin.H, 0, len(records))
	for _, rec := range records {
		out = append(out, credentialView(rec))
	}
	c.JSON(http.StatusOK, gin.H{"credentials": out})
}

// CredentialRequest is the create/update body for a credential record.
type CredentialRequest struct {
	ID             int64  `json:"id"`
	Kind           string `json:"kind" binding:"required"`
	APIKey         string `json:"api_key" binding:"required"`
	PreferredModel string `json:"preferred_model"`
	IsDefault      bool   `json:"is_default"`
}

// UpsertCredential stores an API key for the caller. Marking a record
// default demotes the caller's other defaults for the same provider kind.
func (h *Handler) UpsertCredential(c *gin.Context) {
	if h.creds == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "credentials_unavailable"})
		return
	}
	var req CredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	if !llm.KnownKind(req.Kind) || llm.ProviderKind(req.Kind).NodeScoped() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "unsupported provider kind for credentials"})
		return
	}

	rec := &credential.Credential{
		ID:             req.ID,
		OwnerID:        userID(c),
		Kind:           req.Kind,
		APIKey:         req.APIKey,
		PreferredModel: req.PreferredModel,
		IsDefault:      req.IsDefault,
	}
	saved, err := h.creds.UpsertCredential(c.Request.Context(), rec)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store_failed", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, credentialView(saved))
}

// credentialView shapes one record for responses, with the key masked.
func credentialView(rec *credential.Credential) gin.H {
	return gin.H{
		"id":              rec.ID,
		"provider":        rec.Kind,
		"api_key":         rec.Masked(),
		"preferred_model": rec.PreferredModel,
		"is_default":      rec.IsDefault,
		"created_at":      rec.CreatedAt,
	}
}

// DeleteCredential removes one of the caller's credential records.
func (h *Handler) DeleteCredential(c *gin.Context) {
	if h.creds == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "credentials_unavailable"})
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "credential id must be a positive integer"})
		return
	}
	rec, err := h.creds.GetCredential(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store_failed", "message": err.Error()})
		return
	}
	if rec == nil || rec.OwnerID != userID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "credential_not_found"})
		return
	}
	if err := h.creds.DeleteCredential(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store_failed", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}
