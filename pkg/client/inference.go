package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/oklog/ulid/v2"
)

// InferenceClient provides a client interface for the serving runtime.
type InferenceClient interface {
	Infer(ctx context.Context, model, input string, params map[string]interface{}) (*InferenceResponse, error)
	Close() error
}

// NATSInferenceClient implements InferenceClient over NATS request/reply.
type NATSInferenceClient struct {
	conn     *nats.Conn
	subject  string
	clientID string
	timeout  time.Duration
}

// NewNATSClient creates a new NATS-based inference client. Requests go
// to subject; replies come back on a per-request subject derived from
// clientID and a fresh ULID.
func NewNATSClient(natsURL, subject, clientID string) (InferenceClient, error) {
	conn, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	if clientID == "" {
		clientID = "inference-client"
	}

	return &NATSInferenceClient{
		conn:     conn,
		subject:  subject,
		clientID: clientID,
		timeout:  30 * time.Second,
	}, nil
}

func (c *NATSInferenceClient) Infer(ctx context.Context, model, input string, params map[string]interface{}) (*InferenceResponse, error) {
	reqID := ulid.Make().String()
	replySubject := fmt.Sprintf("inference.response.%s.%s", c.clientID, reqID)

	request := InferenceRequest{
		ReqID:   reqID,
		Model:   model,
		Input:   input,
		Params:  params,
		ReplyTo: replySubject,
	}

	slog.Debug("Sending inference request",
		"subject", c.subject,
		"req_id", reqID,
		"reply_subject", replySubject)

	requestBytes, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	// Subscribe to the reply subject before publishing so the response
	// cannot race past us.
	replyChan := make(chan *nats.Msg, 1)
	sub, err := c.conn.Subscribe(replySubject, func(msg *nats.Msg) {
		replyChan <- msg
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to reply: %w", err)
	}
	defer sub.Unsubscribe()

	if err := c.conn.Publish(c.subject, requestBytes); err != nil {
		return nil, fmt.Errorf("failed to publish request: %w", err)
	}

	select {
	case msg := <-replyChan:
		var response InferenceResponse
		if err := json.Unmarshal(msg.Data, &response); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		return &response, nil
	case <-time.After(c.timeout):
		return nil, fmt.Errorf("request timeout after %v", c.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *NATSInferenceClient) Close() error {
	c.conn.Close()
	return nil
}
