// Package main provides the HTTP chat server for minne.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/josefus/minne/internal/chat"
	"github.com/josefus/minne/internal/config"
	"github.com/josefus/minne/internal/llm"
	"github.com/josefus/minne/internal/memory"
	"github.com/josefus/minne/internal/metrics"
	"github.com/josefus/minne/internal/server"
	"github.com/josefus/minne/internal/store"
	"github.com/josefus/minne/internal/token"
)

func main() {
	wipeDB := flag.Bool("wipe", false, "wipe all data from database on startup (testing only)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer func() { _ = cleanup() }()
	slog.SetDefault(logger)

	logger.Info("starting minne-server", "port", cfg.HTTPPort)

	collector := metrics.NewCollector()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	storeClient, err := store.NewClient(ctx, store.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}, logger, collector)
	if err != nil {
		cancel()
		logger.Error("failed to connect to store", "error", err)
		os.Exit(1)
	}
	if err := storeClient.InitSchema(ctx, cfg.EmbedDimension); err != nil {
		cancel()
		logger.Error("failed to initialize schema", "error", err)
		os.Exit(1)
	}
	if *wipeDB || os.Getenv("MINNE_WIPE_DB") == "true" {
		if err := storeClient.Wipe(ctx); err != nil {
			cancel()
			logger.Error("failed to wipe database", "error", err)
			os.Exit(1)
		}
	}
	cancel()
	defer func() {
		if err := storeClient.Close(context.Background()); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	rawEmbedder, err := llm.NewEmbedder(cfg, collector)
	if err != nil {
		logger.Error("failed to create embedder", "error", err)
		os.Exit(1)
	}
	embedder, err := llm.NewCachedEmbedder(rawEmbedder)
	if err != nil {
		logger.Error("failed to create embedding cache", "error", err)
		os.Exit(1)
	}

	mem, err := memory.NewStore(storeClient, embedder, logger)
	if err != nil {
		logger.Error("failed to create memory store", "error", err)
		os.Exit(1)
	}

	model, err := llm.NewModel(cfg)
	if err != nil {
		logger.Error("failed to create chat model", "error", err)
		os.Exit(1)
	}

	tok := token.ForModel(cfg.LLMModel, logger)

	services := make(map[string]server.Chatter, len(llm.Personas))
	for key, persona := range llm.Personas {
		assistant := llm.NewPersonaAssistant(model, persona, logger, collector)
		services[key] = chat.NewService(assistant, mem, tok, cfg.ContextTokenBudget, collector, logger)
	}

	srv := server.New(services, collector, logger)

	httpServer := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      srv.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second, // Long for LLM responses
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("chat endpoints available", "url", fmt.Sprintf("http://localhost:%s/api/chat/send", cfg.HTTPPort))
		logger.Info("stats available", "url", fmt.Sprintf("http://localhost:%s/api/stats", cfg.HTTPPort))

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
