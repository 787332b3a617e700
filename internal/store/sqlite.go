package store

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type DB struct {
	*sql.DB
}

func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	// Create events table
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS events(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts REAL,
		level TEXT,
		code TEXT,
		msg TEXT,
		meta TEXT
	)`); err != nil {
		return nil, err
	}

	// Create requests table with queue-wait accounting
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS requests(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts REAL,
		trace_id TEXT,
		req_id TEXT,
		worker_id TEXT,
		source TEXT,
		reply_to TEXT,
		model TEXT,
		input TEXT,
		input_len INTEGER,
		params_json TEXT,
		response TEXT,
		waiting_us INTEGER,
		dur_ms REAL,
		status TEXT,
		error TEXT
	)`); err != nil {
		return nil, err
	}

	// Create models table for registration records
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS models(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT,
		version TEXT,
		queue_size INTEGER,
		registered_at REAL,
		UNIQUE(name, version)
	)`); err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

func (db *DB) Event(level, code, msg string, meta map[string]interface{}) {
	m := ""
	if meta != nil {
		b, _ := json.Marshal(meta)
		m = string(b)
	}
	_, _ = db.Exec(`INSERT INTO events(ts,level,code,msg,meta) VALUES(?,?,?,?,?)`,
		float64(time.Now().UnixNano())/1e9, level, code, msg, m)
}

func (db *DB) Req(start time.Time, traceID, reqID, workerID, source, replyTo, model, input, response, params string,
	waitingUs int64, dur time.Duration, status, errStr string) {
	_, _ = db.Exec(`INSERT INTO requests(
		ts, trace_id, req_id, worker_id, source, reply_to, model, input, input_len, params_json, response, waiting_us, dur_ms, status, error)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		float64(start.UnixNano())/1e9, traceID, reqID, workerID, source, replyTo, model, input, len(input), params, response, waitingUs, float64(dur.Milliseconds()), status, errStr)
}

func (db *DB) UpsertModel(name, version string, queueSize int, registeredAt time.Time) error {
	_, err := db.Exec(`INSERT INTO models(name, version, queue_size, registered_at) VALUES(?,?,?,?)
		ON CONFLICT(name, version) DO UPDATE SET queue_size=excluded.queue_size, registered_at=excluded.registered_at`,
		name, version, queueSize, float64(registeredAt.UnixNano())/1e9)
	return err
}
