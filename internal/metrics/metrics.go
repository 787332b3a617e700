// Package metrics defines prometheus metrics to expose
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsAdmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serving_jobs_admitted_total",
			Help: "Total number of jobs admitted into the dispatch queue",
		},
		[]string{"model"},
	)

	JobsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serving_jobs_completed_total",
			Help: "Total number of jobs completed by workers",
		},
		[]string{"model", "status"}, // status: "ok" or "error"
	)

	JobsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serving_jobs_rejected_total",
			Help: "Total number of requests rejected at admission",
		},
		[]string{"reason"}, // unknown_model, cancelled
	)

	JobsInflight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "serving_jobs_inflight",
			Help: "Current number of jobs being executed by workers",
		},
	)

	JobsPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "serving_jobs_pending",
			Help: "Current number of jobs waiting in the dispatch queue",
		},
	)

	// Queue wait is typically microseconds to low seconds; buckets run
	// 10us to ~40s.
	QueueWaitSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "serving_queue_wait_seconds",
			Help:    "Time a job waited between admission and dispatch in seconds",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 12),
		},
		[]string{"model"},
	)

	JobDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "serving_job_duration_seconds",
			Help:    "Job execution duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		},
		[]string{"model"},
	)
)
