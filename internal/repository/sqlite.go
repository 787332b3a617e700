package repository

import (
	"context"
	"time"

	"github.com/bryanktliu/djl-serving/internal/models"
	"github.com/bryanktliu/djl-serving/internal/store"
)

// SQLiteRepository implements Repository interface using SQLite
type SQLiteRepository struct {
	db          *store.DB
	requestRepo RequestRepositoryInterface
	eventRepo   EventRepositoryInterface
	modelRepo   ModelRepositoryInterface
}

func NewSQLiteRepository(db *store.DB) Repository {
	return &SQLiteRepository{
		db:          db,
		requestRepo: &SQLiteRequestRepository{db: db},
		eventRepo:   &SQLiteEventRepository{db: db},
		modelRepo:   &SQLiteModelRepository{db: db},
	}
}

func (r *SQLiteRepository) Request() RequestRepositoryInterface {
	return r.requestRepo
}

func (r *SQLiteRepository) Event() EventRepositoryInterface {
	return r.eventRepo
}

func (r *SQLiteRepository) Model() ModelRepositoryInterface {
	return r.modelRepo
}

// SQLiteRequestRepository handles request logging
type SQLiteRequestRepository struct {
	db *store.DB
}

func (r *SQLiteRequestRepository) LogRequest(ctx context.Context, req *models.RequestLog) error {
	r.db.Req(
		req.Timestamp,
		req.TraceID,
		req.ReqID,
		req.WorkerID,
		req.Source,
		req.ReplyTo,
		req.Model,
		req.Input,
		req.Response,
		req.ParamsJSON,
		req.WaitingUs,
		time.Duration(req.DurationMs)*time.Millisecond,
		req.Status,
		req.Error,
	)
	return nil
}

func (r *SQLiteRequestRepository) GetRequestLogs(ctx context.Context, limit int) ([]*models.RequestLog, error) {
	rows, err := r.db.Query(`SELECT ts,trace_id,req_id,worker_id,source,reply_to,model,input,input_len,params_json,response,waiting_us,dur_ms,status,error FROM requests ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*models.RequestLog
	for rows.Next() {
		var log models.RequestLog
		var tsFloat float64

		if err := rows.Scan(
			&tsFloat, &log.TraceID, &log.ReqID, &log.WorkerID, &log.Source, &log.ReplyTo,
			&log.Model, &log.Input, &log.InputLen, &log.ParamsJSON, &log.Response,
			&log.WaitingUs, &log.DurationMs, &log.Status, &log.Error,
		); err == nil {
			log.Timestamp = time.Unix(0, int64(tsFloat*1e9))
			logs = append(logs, &log)
		}
	}

	return logs, nil
}

// SQLiteEventRepository handles event logging
type SQLiteEventRepository struct {
	db *store.DB
}

func (r *SQLiteEventRepository) LogEvent(ctx context.Context, level, code, msg string, meta map[string]interface{}) error {
	r.db.Event(level, code, msg, meta)
	return nil
}

// SQLiteModelRepository handles model registration records
type SQLiteModelRepository struct {
	db *store.DB
}

func (r *SQLiteModelRepository) SaveModel(ctx context.Context, rec *models.ModelRecord) error {
	return r.db.UpsertModel(rec.Name, rec.Version, rec.QueueSize, rec.RegisteredAt)
}

func (r *SQLiteModelRepository) ListModels(ctx context.Context) ([]*models.ModelRecord, error) {
	rows, err := r.db.Query(`SELECT name,version,queue_size,registered_at FROM models ORDER BY name,version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*models.ModelRecord
	for rows.Next() {
		var rec models.ModelRecord
		var tsFloat float64

		if err := rows.Scan(&rec.Name, &rec.Version, &rec.QueueSize, &tsFloat); err == nil {
			rec.RegisteredAt = time.Unix(0, int64(tsFloat*1e9))
			recs = append(recs, &rec)
		}
	}

	return recs, nil
}
