package models

import "time"

// InferenceRequest is the payload a front end hands to admission. It is
// the envelope's input type for this runtime: generation parameters stay
// opaque to everything except the model's predictor.
type InferenceRequest struct {
	TraceID string                 `json:"trace_id,omitempty"`
	ReqID   string                 `json:"req_id"`
	Model   string                 `json:"model,omitempty"`
	Input   string                 `json:"input"`
	Params  map[string]interface{} `json:"params,omitempty"`
	ReplyTo string                 `json:"reply_to,omitempty"`
}

// InferenceResponse is what goes back to the caller.
type InferenceResponse struct {
	ReqID      string `json:"req_id"`
	Model      string `json:"model"`
	Text       string `json:"text"`
	WaitingUs  int64  `json:"waiting_us"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// RequestLog represents a logged inference request
type RequestLog struct {
	Timestamp  time.Time `json:"ts"`
	TraceID    string    `json:"trace_id"`
	ReqID      string    `json:"req_id"`
	WorkerID   string    `json:"worker_id"`
	Source     string    `json:"source"`
	ReplyTo    string    `json:"reply_to"`
	Model      string    `json:"model"`
	Input      string    `json:"input"`
	InputLen   int       `json:"input_len"`
	ParamsJSON string    `json:"params_json"`
	Response   string    `json:"response"`
	WaitingUs  int64     `json:"waiting_us"`
	DurationMs float64   `json:"dur_ms"`
	Status     string    `json:"status"`
	Error      string    `json:"error"`
}

// ModelRecord is the persisted registration of a servable model.
type ModelRecord struct {
	Name         string    `json:"name"`
	Version      string    `json:"version"`
	QueueSize    int       `json:"queue_size"`
	RegisteredAt time.Time `json:"registered_at"`
}
