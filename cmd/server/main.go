// Copyright 2026 The LifeHub Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package main is the LifeHub AI routing server entry point. It wires the
// persistence layer, provider adapters, node registry, and routing engine,
// then serves the HTTP API until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/lifehubhq/lifehub/internal/api"
	"github.com/lifehubhq/lifehub/internal/config"
	"github.com/lifehubhq/lifehub/internal/llm"
	"github.com/lifehubhq/lifehub/internal/llm/providers"
	"github.com/lifehubhq/lifehub/internal/llm/providers/gemini"
	"github.com/lifehubhq/lifehub/internal/llm/providers/lmstudio"
	"github.com/lifehubhq/lifehub/internal/llm/providers/mock"
	"github.com/lifehubhq/lifehub/internal/llm/providers/ollama"
	"github.com/lifehubhq/lifehub/internal/llm/providers/openai"
	"github.com/lifehubhq/lifehub/internal/logging"
	"github.com/lifehubhq/lifehub/internal/node"
	"github.com/lifehubhq/lifehub/internal/steering"
	"github.com/lifehubhq/lifehub/internal/store"
	"github.com/lifehubhq/lifehub/internal/usage"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func init() {
	logging.SetupBaseLogger()
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("lifehub %s (%s, built %s)\n", Version, Commit, BuildDate)
		return
	}

	// .env is optional; environment overrides still apply without it.
	if err := godotenv.Load(); err == nil {
		log.Debug("loaded environment from .env")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("loading configuration failed")
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	if err := logging.ConfigureLogOutput(cfg.LoggingToFile, cfg.LogsMaxTotalSizeMB); err != nil {
		log.WithError(err).Fatal("configuring log output failed")
	}

	if err := run(cfg); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer db.Close()

	meta, err := config.LoadMetaTable(cfg.ModelMetadataFile)
	if err != nil {
		return fmt.Errorf("loading model metadata: %w", err)
	}
	if err := meta.Watch(ctx); err != nil {
		log.WithError(err).Warn("model metadata hot reload unavailable")
	}

	registry := llm.NewRegistry()
	registry.Register(mock.New(cfg.MockModel))
	registry.Register(ollama.New(llm.KindOllama, cfg.Ollama.BaseURL))
	registry.Register(lmstudio.New(llm.KindLMStudio, cfg.LMStudio.BaseURL))
	if cfg.OpenAI.APIKey != "" {
		registry.Register(openai.New(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL))
	}
	if cfg.Gemini.APIKey != "" {
		registry.Register(gemini.New(cfg.Gemini.APIKey))
	}

	nodes := node.NewRegistry(db, providers.Prober{})
	monitor := node.NewMonitor(nodes, cfg.Heartbeat)
	monitor.Start(ctx)
	defer monitor.Stop()

	cell := llm.NewDefaultModelCell(cfg.DefaultModel)
	resolver := llm.NewResolver(cell, cfg.MockModel)
	creds := llm.NewCredentialResolver(db, cfg.OpenAI.APIKey, cfg.Gemini.APIKey,
		cfg.Ollama.BaseURL, cfg.LMStudio.BaseURL)

	agg := llm.NewAggregator(registry, nodes, creds, meta, cell, cfg.MockModel,
		providers.DialNode, providers.DialCloud)
	agg.SetListTimeout(cfg.ListTimeout)

	recorder := usage.NewRecorder()
	router := llm.NewRouter(resolver, agg, registry, nodes, creds, cell,
		providers.DialNode, providers.DialCloud,
		steering.NewEngine(cfg.Steering), recorder)
	router.SetGenerateTimeout(cfg.GenerateTimeout)

	handler := api.NewHandler(router, nodes, db, recorder, monitor)
	engine := api.NewEngine(handler, cfg.Debug)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("lifehub ai server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
