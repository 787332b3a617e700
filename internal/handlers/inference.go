package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/oklog/ulid/v2"

	"github.com/bryanktliu/djl-serving/internal/models"
	"github.com/bryanktliu/djl-serving/internal/services"
)

type InferenceHandler struct {
	inferenceService *services.InferenceService
}

func NewInferenceHandler(inferenceService *services.InferenceService) *InferenceHandler {
	return &InferenceHandler{
		inferenceService: inferenceService,
	}
}

func (h *InferenceHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/completions", h.handleCompletions)
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/models", h.handleModels)
	mux.HandleFunc("/logs", h.handleLogs)
}

func (h *InferenceHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := h.inferenceService.DispatcherStats()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"models":  len(h.inferenceService.Registry().List()),
		"pending": stats.Pending,
		"active":  stats.Active,
	})
}

func (h *InferenceHandler) handleCompletions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}

	var req models.InferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if req.ReqID == "" {
		req.ReqID = ulid.Make().String()
	}
	if traceID := r.Header.Get("X-Trace-ID"); traceID != "" {
		req.TraceID = traceID
	}

	response, err := h.inferenceService.Process(r.Context(), req, "http.completions", "http")

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusBadGateway)
	}
	_ = json.NewEncoder(w).Encode(response)
}

func (h *InferenceHandler) handleModels(w http.ResponseWriter, r *http.Request) {
	type modelEntry struct {
		Name      string `json:"name"`
		Version   string `json:"version,omitempty"`
		QueueSize int    `json:"queue_size"`
	}

	var entries []modelEntry
	for _, m := range h.inferenceService.Registry().List() {
		entries = append(entries, modelEntry{
			Name:      m.Name,
			Version:   m.Version,
			QueueSize: m.QueueSize,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(entries)
}

func (h *InferenceHandler) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			limit = n
		}
	}

	logs, err := h.inferenceService.GetRequestLogs(r.Context(), limit)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to get logs: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(logs)
}
