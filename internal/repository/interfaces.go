package repository

import (
	"context"

	"github.com/bryanktliu/djl-serving/internal/models"
)

// Repository aggregates all repository interfaces
type Repository interface {
	Request() RequestRepositoryInterface
	Event() EventRepositoryInterface
	Model() ModelRepositoryInterface
}

// RequestRepositoryInterface defines request logging operations
type RequestRepositoryInterface interface {
	LogRequest(ctx context.Context, req *models.RequestLog) error
	GetRequestLogs(ctx context.Context, limit int) ([]*models.RequestLog, error)
}

// EventRepositoryInterface defines event logging operations
type EventRepositoryInterface interface {
	LogEvent(ctx context.Context, level, code, msg string, meta map[string]interface{}) error
}

// ModelRepositoryInterface defines model registration records
type ModelRepositoryInterface interface {
	SaveModel(ctx context.Context, rec *models.ModelRecord) error
	ListModels(ctx context.Context) ([]*models.ModelRecord, error)
}
