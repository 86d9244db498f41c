// Copyright 2026 The LifeHub Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

// builtinModelMeta is the shipped metadata table. Operators extend or
// override rows via the model-metadata-file; unrecognized names get the
// fallback row.
func builtinModelMeta() map[string]ModelMeta {
	return map[string]ModelMeta{
		"gpt-4o": {
			DisplayName:   "GPT-4o",
			Description:   "OpenAI multimodal flagship",
			ContextWindow: 128000,
			CostPerMTok:   2.50,
			SupportsTools: true,
			SupportsImage: true,
		},
		"gpt-4o-mini": {
			DisplayName:   "GPT-4o mini",
			Description:   "OpenAI small multimodal model",
			ContextWindow: 128000,
			CostPerMTok:   0.15,
			SupportsTools: true,
			SupportsImage: true,
		},
		"gpt-4.1": {
			DisplayName:   "GPT-4.1",
			Description:   "OpenAI long-context model",
			ContextWindow: 1047576,
			CostPerMTok:   2.00,
			SupportsTools: true,
			SupportsImage: true,
		},
		"o3-mini": {
			DisplayName:   "o3-mini",
			Description:   "OpenAI small reasoning model",
			ContextWindow: 200000,
			CostPerMTok:   1.10,
			SupportsTools: true,
		},
		"gemini-2.0-flash": {
			DisplayName:   "Gemini 2.0 Flash",
			Description:   "Google fast multimodal model",
			ContextWindow: 1048576,
			CostPerMTok:   0.10,
			SupportsTools: true,
			SupportsImage: true,
		},
		"gemini-2.5-pro": {
			DisplayName:   "Gemini 2.5 Pro",
			Description:   "Google reasoning flagship",
			ContextWindow: 1048576,
			CostPerMTok:   1.25,
			SupportsTools: true,
			SupportsImage: true,
		},
		"text-embedding-3-small": {
			DisplayName:   "text-embedding-3-small",
			Description:   "OpenAI embedding model",
			ContextWindow: 8191,
			CostPerMTok:   0.02,
		},
		"llama3.1": {
			DisplayName:   "Llama 3.1",
			Description:   "Meta open-weights model",
			ContextWindow: 131072,
			SupportsTools: true,
		},
		"mistral": {
			DisplayName:   "Mistral 7B",
			Description:   "Mistral open-weights model",
			ContextWindow: 32768,
		},
		"qwen2.5": {
			DisplayName:   "Qwen 2.5",
			Description:   "Alibaba open-weights model",
			ContextWindow: 131072,
			SupportsTools: true,
		},
	}
}

func builtinFallbackMeta() ModelMeta {
	return ModelMeta{
		Description:   "No published metadata for this model",
		ContextWindow: 8192,
	}
}
