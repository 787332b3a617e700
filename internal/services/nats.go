package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/bryanktliu/djl-serving/internal/config"
	"github.com/bryanktliu/djl-serving/internal/models"
)

// NATSService consumes inference requests from a JetStream work queue
// and replies on the subject named in each request. Only plain request
// and response DTOs cross the wire; job envelopes exist solely between
// admission and the worker pool inside this process.
type NATSService struct {
	conn             *nats.Conn
	js               nats.JetStreamContext
	inferenceService *InferenceService
	cfg              *config.Config
}

func NewNATSService(cfg *config.Config, inferenceService *InferenceService) (*NATSService, error) {
	conn, err := nats.Connect(cfg.NatsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &NATSService{
		conn:             conn,
		js:               js,
		inferenceService: inferenceService,
		cfg:              cfg,
	}, nil
}

func (s *NATSService) GetConnection() *nats.Conn {
	return s.conn
}

func (s *NATSService) Start(ctx context.Context) error {
	if err := s.ensureStream(); err != nil {
		return fmt.Errorf("failed to ensure stream: %w", err)
	}

	consumer, err := s.createConsumer()
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	slog.Info("NATS service starting",
		"stream", s.cfg.Stream,
		"subject", s.cfg.Subject,
		"consumer", s.cfg.Durable,
		"concurrency", s.cfg.Concurrency)

	for i := 0; i < s.cfg.Concurrency; i++ {
		consumerID := fmt.Sprintf("nats-consumer-%d", i)
		go s.consume(ctx, consumer, consumerID)
	}

	<-ctx.Done()
	slog.Info("NATS service shutting down")

	s.conn.Close()
	return nil
}

func (s *NATSService) ensureStream() error {
	streamInfo, err := s.js.StreamInfo(s.cfg.Stream)
	if err != nil {
		if err == nats.ErrStreamNotFound {
			_, err = s.js.AddStream(&nats.StreamConfig{
				Name:      s.cfg.Stream,
				Subjects:  []string{s.cfg.Subject},
				MaxMsgs:   int64(s.cfg.MaxMsgs),
				MaxAge:    s.cfg.MaxAge,
				Storage:   nats.FileStorage,
				Retention: nats.WorkQueuePolicy,
			})
			if err != nil {
				return fmt.Errorf("failed to create stream: %w", err)
			}
			slog.Info("Created NATS stream", "name", s.cfg.Stream)
			return nil
		}
		return fmt.Errorf("failed to get stream info: %w", err)
	}

	for _, subject := range streamInfo.Config.Subjects {
		if subject == s.cfg.Subject {
			slog.Info("NATS stream already exists", "name", s.cfg.Stream, "messages", streamInfo.State.Msgs)
			return nil
		}
	}

	newConfig := streamInfo.Config
	newConfig.Subjects = append(newConfig.Subjects, s.cfg.Subject)
	if _, err = s.js.UpdateStream(&newConfig); err != nil {
		return fmt.Errorf("failed to update stream with new subject: %w", err)
	}
	slog.Info("Updated NATS stream with new subject", "name", s.cfg.Stream, "subject", s.cfg.Subject)
	return nil
}

func (s *NATSService) createConsumer() (*nats.Subscription, error) {
	sub, err := s.js.PullSubscribe(s.cfg.Subject, s.cfg.Durable, nats.ManualAck())
	if err != nil {
		return nil, fmt.Errorf("failed to create pull consumer: %w", err)
	}

	slog.Info("Created NATS consumer", "durable", s.cfg.Durable)
	return sub, nil
}

func (s *NATSService) consume(ctx context.Context, consumer *nats.Subscription, consumerID string) {
	slog.Info("NATS consumer starting", "consumer_id", consumerID)

	for {
		select {
		case <-ctx.Done():
			slog.Info("NATS consumer shutting down", "consumer_id", consumerID)
			return
		default:
			msgs, err := consumer.Fetch(1, nats.MaxWait(time.Second))
			if err != nil {
				if err == nats.ErrTimeout {
					continue
				}
				slog.Error("Failed to fetch messages", "consumer_id", consumerID, "error", err)
				time.Sleep(time.Second)
				continue
			}

			for _, msg := range msgs {
				s.processMessage(ctx, msg, consumerID)
			}
		}
	}
}

func (s *NATSService) processMessage(ctx context.Context, msg *nats.Msg, consumerID string) {
	var req models.InferenceRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		slog.Error("Failed to parse inference request",
			"consumer_id", consumerID,
			"error", err,
			"data", string(msg.Data))
		msg.Nak()
		return
	}

	slog.Debug("Processing NATS inference request",
		"consumer_id", consumerID,
		"req_id", req.ReqID,
		"trace_id", req.TraceID,
		"subject", msg.Subject)

	response, err := s.inferenceService.Process(ctx, req, fmt.Sprintf("nats.%s", msg.Subject), consumerID)

	responseData, marshalErr := json.Marshal(response)
	if marshalErr != nil {
		slog.Error("Failed to marshal response",
			"consumer_id", consumerID,
			"req_id", req.ReqID,
			"error", marshalErr)
		msg.Nak()
		return
	}

	// Reply subject comes from the message payload, not msg.Reply:
	// JetStream redelivery would otherwise point replies at the stream.
	if req.ReplyTo != "" {
		if publishErr := s.conn.Publish(req.ReplyTo, responseData); publishErr != nil {
			slog.Error("Failed to publish response",
				"consumer_id", consumerID,
				"req_id", req.ReqID,
				"reply_subject", req.ReplyTo,
				"error", publishErr)
		}
	}

	if ackErr := msg.Ack(); ackErr != nil {
		slog.Error("Failed to acknowledge message",
			"consumer_id", consumerID,
			"req_id", req.ReqID,
			"error", ackErr)
	}

	if err != nil {
		slog.Error("NATS inference failed",
			"consumer_id", consumerID,
			"req_id", req.ReqID,
			"error", err)
	}
}
