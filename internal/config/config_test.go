// Copyright 2026 The LifeHub Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8317, cfg.Port)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "mock-standard", cfg.MockModel)
	assert.Equal(t, 60*time.Second, cfg.GenerateTimeout)
	assert.Equal(t, 5*time.Second, cfg.ListTimeout)
	assert.Equal(t, "http://localhost:11434", cfg.Ollama.BaseURL)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
port: 9000
debug: true
default-model: "openai:gpt-4o-mini"
store:
  driver: postgres
  dsn: "postgres://localhost/lifehub"
ollama:
  base-url: "http://10.0.0.5:11434/"
generate-timeout: 30s
heartbeat:
  enabled: true
  interval: 2m
  max-concurrent: 8
steering:
  - name: "embeds local"
    when: 'operation == "embed"'
    model: "ollama:llama3.1"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "openai:gpt-4o-mini", cfg.DefaultModel)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 30*time.Second, cfg.GenerateTimeout)
	// Trailing slash is trimmed so identifier building stays uniform.
	assert.Equal(t, "http://10.0.0.5:11434", cfg.Ollama.BaseURL)
	assert.Equal(t, 2*time.Minute, cfg.Heartbeat.Interval)
	require.Len(t, cfg.Steering, 1)
	assert.Equal(t, "ollama:llama3.1", cfg.Steering[0].Model)
}

func TestLoad_EnvOverridesSecrets(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("GEMINI_API_KEY", "g-env")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-env", cfg.OpenAI.APIKey)
	assert.Equal(t, "g-env", cfg.Gemini.APIKey)
}

func TestMetaTable_LookupFallsBack(t *testing.T) {
	table, err := LoadMetaTable("")
	require.NoError(t, err)

	known := table.Lookup("gpt-4o")
	assert.NotEmpty(t, known.Description)
	assert.Greater(t, known.ContextWindow, 0)

	unknown := table.Lookup("totally-new-model")
	assert.Equal(t, "totally-new-model", unknown.DisplayName)
}

func TestMetaTable_FileOverridesBuiltin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	content := `
models:
  custom-model:
    display-name: "Custom Model"
    description: "locally tuned"
    context-window: 8192
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	table, err := LoadMetaTable(path)
	require.NoError(t, err)

	custom := table.Lookup("custom-model")
	assert.Equal(t, "Custom Model", custom.DisplayName)
	assert.Equal(t, 8192, custom.ContextWindow)

	// Built-in rows survive alongside the file's additions.
	builtin := table.Lookup("gpt-4o")
	assert.NotEmpty(t, builtin.Description)
}
