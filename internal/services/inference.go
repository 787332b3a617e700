package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/bryanktliu/djl-serving/internal/dispatch"
	"github.com/bryanktliu/djl-serving/internal/metrics"
	"github.com/bryanktliu/djl-serving/internal/models"
	"github.com/bryanktliu/djl-serving/internal/registry"
	"github.com/bryanktliu/djl-serving/internal/repository"
	"github.com/bryanktliu/djl-serving/pkg/wlm"
)

// InferenceService is the admission path: it resolves the target model,
// wraps the request in a job envelope at the instant it is accepted,
// hands the envelope to the dispatcher, and waits for the out-of-band
// result.
type InferenceService struct {
	registry     *registry.Registry[*models.InferenceRequest, string]
	dispatcher   *dispatch.Dispatcher[*models.InferenceRequest, string]
	repo         repository.Repository
	defaultModel string
}

func NewInferenceService(
	reg *registry.Registry[*models.InferenceRequest, string],
	disp *dispatch.Dispatcher[*models.InferenceRequest, string],
	repo repository.Repository,
	defaultModel string,
) *InferenceService {
	return &InferenceService{
		registry:     reg,
		dispatcher:   disp,
		repo:         repo,
		defaultModel: defaultModel,
	}
}

func (s *InferenceService) GetRepository() repository.Repository {
	return s.repo
}

func (s *InferenceService) Registry() *registry.Registry[*models.InferenceRequest, string] {
	return s.registry
}

func (s *InferenceService) DispatcherStats() dispatch.Stats {
	return s.dispatcher.Stats()
}

func (s *InferenceService) GetRequestLogs(ctx context.Context, limit int) ([]*models.RequestLog, error) {
	return s.repo.Request().GetRequestLogs(ctx, limit)
}

// Process runs one request end to end. The returned response always has
// ReqID and Model filled; on failure Error is set and the error is also
// returned so front ends can pick their own signalling.
func (s *InferenceService) Process(ctx context.Context, req models.InferenceRequest, source, workerID string) (*models.InferenceResponse, error) {
	start := time.Now()

	if req.TraceID == "" {
		req.TraceID = req.ReqID
	}
	if req.Model == "" {
		req.Model = s.defaultModel
	}

	model, ok := s.registry.Lookup(req.Model)
	if !ok {
		metrics.JobsRejectedTotal.WithLabelValues("unknown_model").Inc()
		err := fmt.Errorf("unknown model %q", req.Model)
		s.logRequest(ctx, &req, start, workerID, source, "", 0, 0, "rejected", err.Error())
		return &models.InferenceResponse{
			ReqID: req.ReqID,
			Model: req.Model,
			Error: err.Error(),
		}, err
	}

	// The envelope is built here, at admission, so its waiting time
	// covers the entire stay in the dispatch queue.
	job := wlm.New(model, &req)

	out, err := s.dispatcher.Submit(ctx, job)
	if err != nil {
		metrics.JobsRejectedTotal.WithLabelValues("cancelled").Inc()
		s.logRequest(ctx, &req, start, workerID, source, "", 0, time.Since(start), "cancelled", err.Error())
		return &models.InferenceResponse{
			ReqID: req.ReqID,
			Model: model.ID(),
			Error: err.Error(),
		}, err
	}

	var res dispatch.Result[string]
	select {
	case res = <-out:
	case <-ctx.Done():
		s.logRequest(ctx, &req, start, workerID, source, "", 0, time.Since(start), "cancelled", ctx.Err().Error())
		return &models.InferenceResponse{
			ReqID: req.ReqID,
			Model: model.ID(),
			Error: ctx.Err().Error(),
		}, ctx.Err()
	}

	duration := time.Since(start)
	response := &models.InferenceResponse{
		ReqID:      req.ReqID,
		Model:      model.ID(),
		Text:       res.Output,
		WaitingUs:  res.WaitingUs,
		DurationMs: duration.Milliseconds(),
	}

	status := "ok"
	if res.Err != nil {
		status = "error"
		response.Error = res.Err.Error()
	}
	s.logRequest(ctx, &req, start, workerID, source, res.Output, res.WaitingUs, duration, status, response.Error)

	slog.Info("Inference completed",
		"req_id", req.ReqID,
		"model", model.ID(),
		"source", source,
		"waiting_us", res.WaitingUs,
		"duration_ms", duration.Milliseconds(),
		"status", status)

	return response, res.Err
}

func (s *InferenceService) logRequest(ctx context.Context, req *models.InferenceRequest, start time.Time,
	workerID, source, responseText string, waitingUs int64, dur time.Duration, status, errStr string) {
	entry := &models.RequestLog{
		Timestamp:  start,
		TraceID:    req.TraceID,
		ReqID:      req.ReqID,
		WorkerID:   workerID,
		Source:     source,
		ReplyTo:    req.ReplyTo,
		Model:      req.Model,
		Input:      req.Input,
		ParamsJSON: toJSON(req.Params),
		Response:   responseText,
		WaitingUs:  waitingUs,
		DurationMs: float64(dur.Milliseconds()),
		Status:     status,
		Error:      errStr,
	}
	if err := s.repo.Request().LogRequest(ctx, entry); err != nil {
		slog.Error("Failed to log request", "req_id", req.ReqID, "error", err)
	}
}

func toJSON(v interface{}) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
