package client

// InferenceRequest is the payload published to a serving process.
type InferenceRequest struct {
	TraceID string                 `json:"trace_id,omitempty"`
	ReqID   string                 `json:"req_id"`
	Model   string                 `json:"model,omitempty"`
	Input   string                 `json:"input"`
	Params  map[string]interface{} `json:"params,omitempty"`
	ReplyTo string                 `json:"reply_to,omitempty"`
}

// InferenceResponse is what the serving process replies with.
type InferenceResponse struct {
	ReqID      string `json:"req_id"`
	Model      string `json:"model"`
	Text       string `json:"text"`
	WaitingUs  int64  `json:"waiting_us"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}
