// Copyright 2026 The LifeHub Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config provides configuration management for the LifeHub server.
// It loads the YAML configuration file, applies environment overrides for
// secrets, and exposes the model metadata table used to enrich catalog
// listings.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/lifehubhq/lifehub/internal/node"
	"github.com/lifehubhq/lifehub/internal/steering"
	"gopkg.in/yaml.v3"
)

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `yaml:"driver"`
	// DSN is the driver-specific connection string. For sqlite this is the
	// database file path; empty means <writable-path>/lifehub.db.
	DSN string `yaml:"dsn"`
}

// ProviderConfig holds the process-wide settings for one backend family.
type ProviderConfig struct {
	// APIKey is the cloud credential. Per-user credential records take
	// precedence over this process-wide key.
	APIKey string `yaml:"api-key"`
	// BaseURL overrides the provider endpoint (self-hosted kinds).
	BaseURL string `yaml:"base-url"`
}

// Config represents the application's configuration, loaded from YAML.
type Config struct {
	// Host is the interface the API server binds. Empty binds all.
	Host string `yaml:"host"`
	// Port is the API server port.
	Port int `yaml:"port"`

	// Debug enables debug-level logging.
	Debug bool `yaml:"debug"`
	// LoggingToFile writes logs to rotating files instead of stdout.
	LoggingToFile bool `yaml:"logging-to-file"`
	// LogsMaxTotalSizeMB caps total log directory size; 0 disables cleanup.
	LogsMaxTotalSizeMB int `yaml:"logs-max-total-size-mb"`

	Store StoreConfig `yaml:"store"`

	OpenAI   ProviderConfig `yaml:"openai"`
	Gemini   ProviderConfig `yaml:"gemini"`
	Ollama   ProviderConfig `yaml:"ollama"`
	LMStudio ProviderConfig `yaml:"lmstudio"`

	// DefaultModel seeds the default-model cell with a canonical identifier.
	// Admin actions may replace it at runtime.
	DefaultModel string `yaml:"default-model"`
	// MockModel is the model name the mock provider reports and the name
	// malformed identifiers degrade to.
	MockModel string `yaml:"mock-model"`

	// ModelMetadataFile points at the YAML metadata table used to enrich
	// cloud catalog entries. Empty uses the built-in table.
	ModelMetadataFile string `yaml:"model-metadata-file"`

	// GenerateTimeout bounds single-shot generation calls.
	GenerateTimeout time.Duration `yaml:"generate-timeout"`
	// ListTimeout bounds model listing calls.
	ListTimeout time.Duration `yaml:"list-timeout"`

	Heartbeat node.MonitorConfig `yaml:"heartbeat"`

	// Steering is the ordered routing rule set evaluated before default
	// model selection.
	Steering []steering.Rule `yaml:"steering"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Port:            8317,
		Store:           StoreConfig{Driver: "sqlite"},
		Ollama:          ProviderConfig{BaseURL: "http://localhost:11434"},
		LMStudio:        ProviderConfig{BaseURL: "http://localhost:1234/v1"},
		MockModel:       "mock-standard",
		GenerateTimeout: 60 * time.Second,
		ListTimeout:     5 * time.Second,
		Heartbeat:       node.DefaultMonitorConfig(),
	}
}

// Load reads the YAML file at path and applies environment overrides.
// A missing file yields the defaults rather than an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: reading %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

// applyEnv lets environment variables override file-borne secrets, so keys
// can stay out of the config file entirely.
func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.OpenAI.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Gemini.APIKey = v
	}
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		c.Ollama.BaseURL = v
	}
	if v := os.Getenv("LMSTUDIO_BASE_URL"); v != "" {
		c.LMStudio.BaseURL = v
	}
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8317
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "sqlite"
	}
	if c.MockModel == "" {
		c.MockModel = "mock-standard"
	}
	if c.GenerateTimeout <= 0 {
		c.GenerateTimeout = 60 * time.Second
	}
	if c.ListTimeout <= 0 {
		c.ListTimeout = 5 * time.Second
	}
	c.Ollama.BaseURL = strings.TrimSuffix(c.Ollama.BaseURL, "/")
	c.LMStudio.BaseURL = strings.TrimSuffix(c.LMStudio.BaseURL, "/")
}
