// Copyright 2026 The LifeHub Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/goccy/go-yaml"
	log "github.com/sirupsen/logrus"
)

// ModelMeta is the static descriptive metadata attached to cloud catalog
// entries: context window, cost, capability flags.
type ModelMeta struct {
	DisplayName   string  `yaml:"display-name"`
	Description   string  `yaml:"description"`
	ContextWindow int     `yaml:"context-window"`
	CostPerMTok   float64 `yaml:"cost-per-mtok"`
	SupportsTools bool    `yaml:"supports-tools"`
	SupportsImage bool    `yaml:"supports-image"`
}

// MetaTable is the model metadata lookup table, keyed by model name with a
// generic fallback row for unrecognized names. It is configuration data, not
// logic: loaded at startup and hot-reloaded when the backing file changes.
type MetaTable struct {
	mu       sync.RWMutex
	path     string
	entries  map[string]ModelMeta
	fallback ModelMeta
}

type metaFile struct {
	Fallback ModelMeta            `yaml:"fallback"`
	Models   map[string]ModelMeta `yaml:"models"`
}

// LoadMetaTable builds the table from the YAML file at path. An empty path
// or a missing file yields the built-in table.
func LoadMetaTable(path string) (*MetaTable, error) {
	t := &MetaTable{
		path:     path,
		entries:  builtinModelMeta(),
		fallback: builtinFallbackMeta(),
	}
	if path == "" {
		return t, nil
	}
	if err := t.reload(); err != nil {
		if os.IsNotExist(err) {
			log.Warnf("model metadata file %s not found, using built-in table", path)
			return t, nil
		}
		return nil, err
	}
	return t, nil
}

func (t *MetaTable) reload() error {
	data, err := os.ReadFile(t.path)
	if err != nil {
		return err
	}
	var mf metaFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return fmt.Errorf("model metadata: parsing %s: %w", t.path, err)
	}

	entries := builtinModelMeta()
	for name, meta := range mf.Models {
		entries[name] = meta
	}
	fallback := builtinFallbackMeta()
	if mf.Fallback.Description != "" {
		fallback = mf.Fallback
	}

	t.mu.Lock()
	t.entries = entries
	t.fallback = fallback
	t.mu.Unlock()
	return nil
}

// Lookup returns the metadata row for model, or the fallback row for
// unrecognized names.
func (t *MetaTable) Lookup(model string) ModelMeta {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if meta, ok := t.entries[model]; ok {
		return meta
	}
	fb := t.fallback
	if fb.DisplayName == "" {
		fb.DisplayName = model
	}
	return fb
}

// Watch reloads the table whenever the backing file changes, until ctx is
// done. It returns immediately when no file is configured.
func (t *MetaTable) Watch(ctx context.Context) error {
	if t.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("model metadata: watcher: %w", err)
	}
	// Watch the directory, not the file: editors replace files on save.
	if err := watcher.Add(filepath.Dir(t.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("model metadata: watch %s: %w", t.path, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name != t.path {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				if err := t.reload(); err != nil {
					log.WithError(err).Warn("model metadata reload failed, keeping previous table")
					continue
				}
				log.Infof("model metadata reloaded from %s", t.path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.WithError(err).Debug("model metadata watcher error")
			}
		}
	}()
	return nil
}
