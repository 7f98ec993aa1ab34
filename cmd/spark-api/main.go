// Command spark-api serves the transcription API: audio uploads, session
// status polling, speaker swapping and transcript questions.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sparklabs/spark/internal/api"
	"github.com/sparklabs/spark/internal/config"
	"github.com/sparklabs/spark/internal/llm"
	"github.com/sparklabs/spark/internal/logger"
	"github.com/sparklabs/spark/internal/server"
	"github.com/sparklabs/spark/internal/session"
	"github.com/sparklabs/spark/internal/storage"
	"github.com/sparklabs/spark/internal/tokens"
	"github.com/sparklabs/spark/internal/transcription"
	"github.com/sparklabs/spark/internal/transcription/assemblyai"
	"github.com/sparklabs/spark/internal/util"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "spark-api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var cfg config.Config
	if err := config.Load(&cfg); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.Init(cfg.Logging)
	log := logger.New(&cfg.Logging, cfg.Name)
	log.Info("Configuration loaded", map[string]interface{}{
		"environment": cfg.Environment,
		"provider":    cfg.Transcription.Provider,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := storage.Open(ctx, cfg.Database, log.WithComponent("storage"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Database close failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	registry := transcription.NewRegistry()
	registry.Register(assemblyai.ProviderName, assemblyai.Factory())

	provider, err := registry.Create(cfg.Transcription.Provider, cfg.Transcription.Settings)
	if err != nil {
		return fmt.Errorf("create transcription provider: %w", err)
	}
	if !provider.IsAvailable(ctx) {
		log.Warn("Transcription provider is not reachable, uploads will fail", map[string]interface{}{
			"provider": provider.Name(),
		})
	}

	svc := session.NewService(
		storage.NewRepository(db),
		provider,
		llm.NewPlaceholder(),
		tokens.NewCounter(cfg.Tokens.Model),
		log.WithComponent("session"),
	)

	srv := server.New(cfg.Server, log)
	srv.ApplyMiddleware()

	maxBytes := util.ParseSize(cfg.Uploads.MaxSize, 100*1024*1024)
	handler := api.NewHandler(svc, cfg.Uploads, maxBytes, log.WithComponent("api"))
	api.RegisterRoutes(srv.GinEngine(), handler)

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("Shutdown signal received", map[string]interface{}{
		"signal": sig.String(),
	})

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("stop server: %w", err)
	}
	return nil
}
