// Copyright 2026 The LifeHub Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package credential holds provider-scoped API key records owned by users.
// At most one record per (provider kind, owner) pair is the designated
// default; the store layer enforces that invariant on write.
package credential

import (
	"context"
	"time"

	"github.com/lifehubhq/lifehub/internal/util"
)

// Credential is one provider-scoped secret plus an optional preferred model.
type Credential struct {
	ID      int64  `json:"id"`
	OwnerID int64  `json:"owner_id"`
	// Kind is the provider kind key this credential applies to.
	Kind string `json:"provider"`
	// APIKey is the secret value. It is exposed unmasked only to the
	// provider adapter performing a call; everything else sees Masked().
	APIKey         string    `json:"-"`
	PreferredModel string    `json:"preferred_model,omitempty"`
	IsDefault      bool      `json:"is_default"`
	CreatedAt      time.Time `json:"created_at"`
}

// Masked renders the key for logs and listing responses.
func (c *Credential) Masked() string { return util.MaskAPIKey(c.APIKey) }

// Store is the persistence boundary for credential records.
type Store interface {
	GetCredential(ctx context.Context, id int64) (*Credential, error)
	// DefaultCredential returns the designated default for (kind, owner),
	// or nil when none is configured.
	DefaultCredential(ctx context.Context, kind string, ownerID int64) (*Credential, error)
	ListCredentials(ctx context.Context, ownerID int64) ([]*Credential, error)
	// UpsertCredential writes the record. When IsDefault is set, any other
	// default for the same (kind, owner) pair is demoted in the same
	// logical operation.
	UpsertCredential(ctx context.Context, c *Credential) (*Credential, error)
	DeleteCredential(ctx context.Context, id int64) error
}
