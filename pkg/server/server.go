package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bryanktliu/djl-serving/internal/handlers"
	"github.com/bryanktliu/djl-serving/internal/services"
)

type Server struct {
	httpAddr         string
	inferenceService *services.InferenceService
}

func NewServer(httpAddr string, inferenceService *services.InferenceService) *Server {
	return &Server{
		httpAddr:         httpAddr,
		inferenceService: inferenceService,
	}
}

func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()

	inferenceHandler := handlers.NewInferenceHandler(s.inferenceService)
	inferenceHandler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	slog.Info("HTTP server starting",
		"addr", s.httpAddr,
		"endpoints", []string{"/v1/completions", "/healthz", "/models", "/logs", "/metrics"})

	srv := &http.Server{Addr: s.httpAddr, Handler: mux}

	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
