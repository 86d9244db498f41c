// Copyright 2026 The LifeHub Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package node

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// MonitorConfig controls the background refresh loop.
type MonitorConfig struct {
	// Enabled controls whether the loop runs at all. The routing core works
	// without it; probes then happen only on explicit refresh calls.
	Enabled bool `yaml:"enabled"`
	// Interval is the time between full refresh cycles.
	Interval time.Duration `yaml:"interval"`
	// MaxConcurrent limits simultaneous probes within one cycle.
	MaxConcurrent int `yaml:"max-concurrent"`
}

// DefaultMonitorConfig returns the monitor defaults.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Enabled:       true,
		Interval:      5 * time.Minute,
		MaxConcurrent: 4,
	}
}

// Monitor periodically refreshes every stored node so the availability view
// stays warm without a probe on each catalog aggregation. Refreshes of
// different nodes are independent; a hung node cannot block the cycle beyond
// its own probe timeout.
type Monitor struct {
	registry *Registry
	cfg      MonitorConfig

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	cycles  int64
	lastRun time.Time
}

// NewMonitor returns a monitor over the registry.
func NewMonitor(registry *Registry, cfg MonitorConfig) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultMonitorConfig().Interval
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMonitorConfig().MaxConcurrent
	}
	return &Monitor{registry: registry, cfg: cfg}
}

// Start launches the refresh loop. It is a no-op when disabled or already
// running.
func (m *Monitor) Start(ctx context.Context) {
	if !m.cfg.Enabled {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(runCtx)
	log.Infof("node monitor started, interval %s", m.cfg.Interval)
}

// Stop terminates the loop and waits for the current cycle to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel = nil
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	log.Info("node monitor stopped")
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.RefreshAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.RefreshAll(ctx)
		}
	}
}

// RefreshAll probes every stored node, bounded by MaxConcurrent. Individual
// failures are recorded by the registry and never abort the cycle.
func (m *Monitor) RefreshAll(ctx context.Context) {
	nodes, err := m.registry.List(ctx)
	if err != nil {
		log.WithError(err).Warn("node monitor: listing nodes failed")
		return
	}

	sem := make(chan struct{}, m.cfg.MaxConcurrent)
	var wg sync.WaitGroup
	for _, n := range nodes {
		if !n.Active {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(id int64) {
			defer wg.Done()
			defer func() { <-sem }()
			if _, err := m.registry.Refresh(ctx, id); err != nil {
				log.WithError(err).Debugf("node monitor: refresh of node %d failed", id)
			}
		}(n.ID)
	}
	wg.Wait()

	m.mu.Lock()
	m.cycles++
	m.lastRun = time.Now()
	m.mu.Unlock()
}

// Cycles returns the number of completed refresh cycles.
func (m *Monitor) Cycles() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cycles
}

// LastRun returns when the most recent cycle finished, zero before the first.
func (m *Monitor) LastRun() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRun
}
