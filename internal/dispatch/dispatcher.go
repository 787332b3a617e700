// Package dispatch moves job envelopes from admission to a worker pool
// over a channel, so producer and consumer never share mutable state.
package dispatch

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bryanktliu/djl-serving/internal/metrics"
	"github.com/bryanktliu/djl-serving/pkg/wlm"
)

// generateWorkerID creates a unique worker ID using timestamp and random bytes
func generateWorkerID() string {
	timestamp := time.Now().UnixNano()
	randomBytes := make([]byte, 4)
	rand.Read(randomBytes)
	randomHex := hex.EncodeToString(randomBytes)
	return fmt.Sprintf("worker-%d-%s", timestamp, randomHex)
}

// Result carries a finished job's output back to the submitter. The
// envelope never stores it; each submission gets its own reply channel.
type Result[O any] struct {
	Output    O
	WaitingUs int64
	Err       error
}

type submission[I, O any] struct {
	job *wlm.Job[I, O]
	out chan Result[O]
}

// Stats is a point-in-time snapshot of dispatcher load.
type Stats struct {
	Pending int64 `json:"pending"`
	Active  int64 `json:"active"`
}

// Dispatcher owns the handoff channel and the worker pool. Each worker
// reads a job's waiting time exactly once, immediately before running
// the model, so the recorded queue wait covers the full time in queue.
type Dispatcher[I, O any] struct {
	jobs        chan submission[I, O]
	concurrency int
	pending     atomic.Int64
	active      atomic.Int64
}

func New[I, O any](queueSize, concurrency int) *Dispatcher[I, O] {
	if queueSize < 1 {
		queueSize = 1
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Dispatcher[I, O]{
		jobs:        make(chan submission[I, O], queueSize),
		concurrency: concurrency,
	}
}

// Start launches the worker pool and blocks until ctx is cancelled.
func (d *Dispatcher[I, O]) Start(ctx context.Context) error {
	slog.Info("Dispatcher starting", "concurrency", d.concurrency, "queue_size", cap(d.jobs))

	for i := 0; i < d.concurrency; i++ {
		workerID := generateWorkerID()
		go d.worker(ctx, workerID)
	}

	<-ctx.Done()
	slog.Info("Dispatcher shutting down")
	return nil
}

// Submit hands a job to the worker pool and returns the channel its
// result will arrive on. It blocks while the queue is full; ctx bounds
// the wait.
func (d *Dispatcher[I, O]) Submit(ctx context.Context, job *wlm.Job[I, O]) (<-chan Result[O], error) {
	sub := submission[I, O]{
		job: job,
		out: make(chan Result[O], 1),
	}

	select {
	case d.jobs <- sub:
		d.pending.Add(1)
		metrics.JobsPending.Inc()
		metrics.JobsAdmittedTotal.WithLabelValues(job.Model().ID()).Inc()
		return sub.out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stats reports current queue and execution load.
func (d *Dispatcher[I, O]) Stats() Stats {
	return Stats{
		Pending: d.pending.Load(),
		Active:  d.active.Load(),
	}
}

func (d *Dispatcher[I, O]) worker(ctx context.Context, workerID string) {
	slog.Info("Worker starting", "worker_id", workerID)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Worker shutting down", "worker_id", workerID)
			return
		case sub := <-d.jobs:
			d.pending.Add(-1)
			metrics.JobsPending.Dec()
			d.run(ctx, sub, workerID)
		}
	}
}

func (d *Dispatcher[I, O]) run(ctx context.Context, sub submission[I, O], workerID string) {
	d.active.Add(1)
	metrics.JobsInflight.Inc()
	defer func() {
		d.active.Add(-1)
		metrics.JobsInflight.Dec()
	}()

	job := sub.job
	model := job.Model()

	// Final queue-wait reading, taken once, right before execution.
	waitingUs := job.WaitingMicroseconds()
	metrics.QueueWaitSeconds.WithLabelValues(model.ID()).Observe(float64(waitingUs) / 1e6)

	start := time.Now()
	output, err := d.predict(ctx, model, job.Input(), workerID)
	duration := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.JobsCompletedTotal.WithLabelValues(model.ID(), status).Inc()
	metrics.JobDurationSeconds.WithLabelValues(model.ID()).Observe(duration.Seconds())

	slog.Debug("Job executed",
		"worker_id", workerID,
		"model", model.ID(),
		"waiting_us", waitingUs,
		"duration_ms", duration.Milliseconds(),
		"status", status)

	sub.out <- Result[O]{Output: output, WaitingUs: waitingUs, Err: err}
}

func (d *Dispatcher[I, O]) predict(ctx context.Context, model *wlm.ModelInfo[I, O], input I, workerID string) (output O, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Predictor panicked", "worker_id", workerID, "model", model.ID(), "panic", r)
			err = fmt.Errorf("predictor panic: %v", r)
		}
	}()
	return model.Predictor(ctx, input)
}
