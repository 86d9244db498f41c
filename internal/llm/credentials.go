// Copyright 2026 The LifeHub Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package llm

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/lifehubhq/lifehub/internal/credential"
)

// CredentialState is one provider's credential resolution for a user: the
// effective API key (per-user record first, process-wide key second) and the
// user's preferred model, when a record names one.
type CredentialState struct {
	APIKey         string
	PreferredModel string
	Available      bool
	// FromUserRecord is true when a per-user credential record supplied the
	// key rather than process-wide configuration.
	FromUserRecord bool
}

// CredentialResolver decides, per provider kind and user, whether usable
// credentials exist and which key applies. Missing credentials are data
// here, never an error: an unavailable provider is simply excluded from the
// candidate set.
type CredentialResolver struct {
	store       credential.Store
	openAIKey   string
	geminiKey   string
	ollamaURL   string
	lmstudioURL string
}

// NewCredentialResolver builds a resolver over the optional credential store
// and the process-wide provider configuration.
func NewCredentialResolver(store credential.Store, openAIKey, geminiKey, ollamaURL, lmstudioURL string) *CredentialResolver {
	return &CredentialResolver{
		store:       store,
		openAIKey:   openAIKey,
		geminiKey:   geminiKey,
		ollamaURL:   ollamaURL,
		lmstudioURL: lmstudioURL,
	}
}

// Resolve returns the credential state for (kind, user). Store failures are
// logged and degrade to process-wide configuration.
func (r *CredentialResolver) Resolve(ctx context.Context, kind ProviderKind, userID int64) CredentialState {
	switch kind {
	case KindMock:
		return CredentialState{Available: true}
	case KindOllama:
		return CredentialState{Available: r.ollamaURL != ""}
	case KindLMStudio:
		return CredentialState{Available: r.lmstudioURL != ""}
	case KindClient:
		// Node availability is the registry's call, not a credential.
		return CredentialState{Available: true}
	}

	if r.store != nil {
		rec, err := r.store.DefaultCredential(ctx, string(kind), userID)
		if err != nil {
			log.WithError(err).Debugf("credential lookup for %s failed, using process config", kind)
		} else if rec != nil && rec.APIKey != "" {
			return CredentialState{
				APIKey:         rec.APIKey,
				PreferredModel: rec.PreferredModel,
				Available:      true,
				FromUserRecord: true,
			}
		}
	}

	switch kind {
	case KindOpenAI:
		return CredentialState{APIKey: r.openAIKey, Available: r.openAIKey != ""}
	case KindGemini:
		return CredentialState{APIKey: r.geminiKey, Available: r.geminiKey != ""}
	}
	return CredentialState{}
}
