package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/bryanktliu/djl-serving/internal/config"
)

// Heartbeat is the periodic status report a serving process publishes
// so monitors can watch queue pressure without scraping every node.
type Heartbeat struct {
	Service   string          `json:"service"`
	Models    []HeartbeatInfo `json:"models"`
	Pending   int64           `json:"pending"`
	Active    int64           `json:"active"`
	Timestamp time.Time       `json:"timestamp"`
}

type HeartbeatInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version,omitempty"`
	QueueSize int    `json:"queue_size"`
}

// HealthService publishes heartbeats over NATS at a fixed interval.
type HealthService struct {
	conn             *nats.Conn
	cfg              *config.Config
	inferenceService *InferenceService
}

func NewHealthService(conn *nats.Conn, cfg *config.Config, inferenceService *InferenceService) *HealthService {
	return &HealthService{
		conn:             conn,
		cfg:              cfg,
		inferenceService: inferenceService,
	}
}

func (s *HealthService) Start(ctx context.Context) error {
	slog.Info("Health service starting",
		"subject", s.cfg.HeartbeatSubject,
		"interval", s.cfg.HeartbeatInterval)

	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Health service shutting down")
			return nil
		case <-ticker.C:
			s.publishHeartbeat()
		}
	}
}

func (s *HealthService) publishHeartbeat() {
	stats := s.inferenceService.DispatcherStats()

	hb := Heartbeat{
		Service:   s.cfg.ModelName,
		Pending:   stats.Pending,
		Active:    stats.Active,
		Timestamp: time.Now(),
	}
	for _, m := range s.inferenceService.Registry().List() {
		hb.Models = append(hb.Models, HeartbeatInfo{
			Name:      m.Name,
			Version:   m.Version,
			QueueSize: m.QueueSize,
		})
	}

	data, err := json.Marshal(hb)
	if err != nil {
		slog.Error("Failed to marshal heartbeat", "error", err)
		return
	}

	if err := s.conn.Publish(s.cfg.HeartbeatSubject, data); err != nil {
		slog.Error("Failed to publish heartbeat", "subject", s.cfg.HeartbeatSubject, "error", err)
	}
}
