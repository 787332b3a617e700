package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/bryanktliu/djl-serving/internal/dispatch"
	"github.com/bryanktliu/djl-serving/internal/models"
	"github.com/bryanktliu/djl-serving/internal/registry"
	"github.com/bryanktliu/djl-serving/internal/repository"
	"github.com/bryanktliu/djl-serving/pkg/wlm"
)

// memoryRepository keeps logs in memory so service tests need no SQLite file.
type memoryRepository struct {
	mu       sync.Mutex
	requests []*models.RequestLog
	records  []*models.ModelRecord
}

func (r *memoryRepository) Request() repository.RequestRepositoryInterface { return r }
func (r *memoryRepository) Event() repository.EventRepositoryInterface     { return r }
func (r *memoryRepository) Model() repository.ModelRepositoryInterface     { return r }

func (r *memoryRepository) LogRequest(ctx context.Context, req *models.RequestLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	return nil
}

func (r *memoryRepository) GetRequestLogs(ctx context.Context, limit int) ([]*models.RequestLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit > len(r.requests) {
		limit = len(r.requests)
	}
	return r.requests[:limit], nil
}

func (r *memoryRepository) LogEvent(ctx context.Context, level, code, msg string, meta map[string]interface{}) error {
	return nil
}

func (r *memoryRepository) SaveModel(ctx context.Context, rec *models.ModelRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *memoryRepository) ListModels(ctx context.Context) ([]*models.ModelRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records, nil
}

func newTestService(t *testing.T) (*InferenceService, *memoryRepository, context.CancelFunc) {
	t.Helper()

	repo := &memoryRepository{}
	reg := registry.New[*models.InferenceRequest, string](repo)
	disp := dispatch.New[*models.InferenceRequest, string](16, 2)

	ctx, cancel := context.WithCancel(context.Background())
	go disp.Start(ctx)

	upper := &wlm.ModelInfo[*models.InferenceRequest, string]{
		Name:      "upper",
		Version:   "1",
		QueueSize: 16,
		Predictor: func(ctx context.Context, req *models.InferenceRequest) (string, error) {
			return strings.ToUpper(req.Input), nil
		},
	}
	if err := reg.Register(ctx, upper); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	return NewInferenceService(reg, disp, repo, "upper"), repo, cancel
}

func TestProcessRunsRequestEndToEnd(t *testing.T) {
	svc, repo, cancel := newTestService(t)
	defer cancel()

	resp, err := svc.Process(context.Background(), models.InferenceRequest{
		ReqID: "r1",
		Input: "hello",
	}, "test", "test-worker")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if resp.Text != "HELLO" {
		t.Errorf("Text = %q, want %q", resp.Text, "HELLO")
	}
	if resp.Model != "upper:1" {
		t.Errorf("Model = %q, want %q", resp.Model, "upper:1")
	}
	if resp.WaitingUs < 0 {
		t.Errorf("WaitingUs = %d, want >= 0", resp.WaitingUs)
	}

	logs, err := repo.GetRequestLogs(context.Background(), 10)
	if err != nil {
		t.Fatalf("GetRequestLogs failed: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("logged %d requests, want 1", len(logs))
	}
	if logs[0].Status != "ok" || logs[0].ReqID != "r1" {
		t.Errorf("unexpected log entry: %+v", logs[0])
	}
}

func TestProcessDefaultsModel(t *testing.T) {
	svc, _, cancel := newTestService(t)
	defer cancel()

	resp, err := svc.Process(context.Background(), models.InferenceRequest{
		ReqID: "r2",
		Input: "hi",
	}, "test", "test-worker")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if resp.Model != "upper:1" {
		t.Errorf("Model = %q, want default model", resp.Model)
	}
}

func TestProcessRejectsUnknownModel(t *testing.T) {
	svc, repo, cancel := newTestService(t)
	defer cancel()

	resp, err := svc.Process(context.Background(), models.InferenceRequest{
		ReqID: "r3",
		Model: "missing",
		Input: "hello",
	}, "test", "test-worker")
	if err == nil {
		t.Fatal("expected error for unknown model")
	}
	if resp.Error == "" {
		t.Error("response should carry the rejection reason")
	}

	logs, _ := repo.GetRequestLogs(context.Background(), 10)
	if len(logs) != 1 || logs[0].Status != "rejected" {
		t.Errorf("expected one rejected log entry, got %+v", logs)
	}
}

func TestProcessRecordsQueueWaitForSlowQueue(t *testing.T) {
	svc, _, cancel := newTestService(t)
	defer cancel()

	// Saturate both workers with slow jobs so a later request queues.
	block := make(chan struct{})
	slow := &wlm.ModelInfo[*models.InferenceRequest, string]{
		Name:      "slow",
		QueueSize: 16,
		Predictor: func(ctx context.Context, req *models.InferenceRequest) (string, error) {
			<-block
			return req.Input, nil
		},
	}
	if err := svc.Registry().Register(context.Background(), slow); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	done := make(chan *models.InferenceResponse, 3)
	for i := 0; i < 3; i++ {
		go func(i int) {
			resp, _ := svc.Process(context.Background(), models.InferenceRequest{
				ReqID: "slow",
				Model: "slow",
				Input: "x",
			}, "test", "test-worker")
			done <- resp
		}(i)
	}

	close(block)
	for i := 0; i < 3; i++ {
		resp := <-done
		if resp.WaitingUs < 0 {
			t.Errorf("WaitingUs = %d, want >= 0", resp.WaitingUs)
		}
	}
}
