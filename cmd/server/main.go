package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/bryanktliu/djl-serving/internal/config"
	"github.com/bryanktliu/djl-serving/internal/dispatch"
	"github.com/bryanktliu/djl-serving/internal/models"
	"github.com/bryanktliu/djl-serving/internal/registry"
	"github.com/bryanktliu/djl-serving/internal/repository"
	"github.com/bryanktliu/djl-serving/internal/services"
	"github.com/bryanktliu/djl-serving/internal/store"
	"github.com/bryanktliu/djl-serving/pkg/server"
	"github.com/bryanktliu/djl-serving/pkg/wlm"
)

func main() {
	var envFile = flag.String("env", "", "Optional .env file to load")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*envFile)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize database
	_ = os.MkdirAll(filepath.Dir(cfg.DBPath), 0755)
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	db.Event("info", "startup", "Server starting", map[string]interface{}{
		"model_name": cfg.ModelName,
		"http_addr":  cfg.HTTPAddr,
		"db_path":    cfg.DBPath,
	})

	repo := repository.NewSQLiteRepository(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Model registry with the built-in echo model. Deployments embed
	// this runtime and register their own predictors here.
	reg := registry.New[*models.InferenceRequest, string](repo)
	echo := &wlm.ModelInfo[*models.InferenceRequest, string]{
		Name:      cfg.ModelName,
		Version:   cfg.ModelVersion,
		QueueSize: cfg.QueueSize,
		Predictor: func(ctx context.Context, req *models.InferenceRequest) (string, error) {
			return strings.TrimSpace(req.Input), nil
		},
	}
	if err := reg.Register(ctx, echo); err != nil {
		db.Event("error", "model.failed", "Model registration failed", map[string]interface{}{
			"model_name": cfg.ModelName,
			"error":      err.Error(),
		})
		slog.Error("Failed to register model", "error", err)
		os.Exit(1)
	}

	db.Event("info", "model.registered", "Model registered", map[string]interface{}{
		"model_name": cfg.ModelName,
		"queue_size": cfg.QueueSize,
	})

	// Dispatcher: the in-process queue between admission and workers
	dispatcher := dispatch.New[*models.InferenceRequest, string](cfg.QueueSize, cfg.Concurrency)

	// Initialize services
	inferenceService := services.NewInferenceService(reg, dispatcher, repo, cfg.ModelName)

	db.Event("info", "services.init", "Initializing services", map[string]interface{}{
		"http_addr": cfg.HTTPAddr,
		"nats_url":  cfg.NatsURL,
	})

	natsService, err := services.NewNATSService(cfg, inferenceService)
	if err != nil {
		db.Event("error", "nats.failed", "NATS service initialization failed", map[string]interface{}{
			"nats_url": cfg.NatsURL,
			"error":    err.Error(),
		})
		slog.Error("Failed to create NATS service", "error", err)
		os.Exit(1)
	}

	healthService := services.NewHealthService(natsService.GetConnection(), cfg, inferenceService)

	httpServer := server.NewServer(cfg.HTTPAddr, inferenceService)

	db.Event("info", "server.ready", "Server ready to accept requests", map[string]interface{}{
		"http_addr":  cfg.HTTPAddr,
		"model_name": cfg.ModelName,
		"nats_url":   cfg.NatsURL,
	})

	// Start all services
	go func() {
		if err := dispatcher.Start(ctx); err != nil {
			slog.Error("Dispatcher failed", "error", err)
		}
	}()

	go func() {
		if err := httpServer.Start(ctx); err != nil {
			db.Event("error", "http.failed", "HTTP server failed", map[string]interface{}{
				"error": err.Error(),
			})
			slog.Error("HTTP server failed", "error", err)
		}
	}()

	go func() {
		if err := natsService.Start(ctx); err != nil {
			db.Event("error", "nats.failed", "NATS service failed", map[string]interface{}{
				"error": err.Error(),
			})
			slog.Error("NATS service failed", "error", err)
		}
	}()

	go func() {
		if err := healthService.Start(ctx); err != nil {
			slog.Error("Health service failed", "error", err)
		}
	}()

	// Graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	slog.Info("Shutting down server")
}
