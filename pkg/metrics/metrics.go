package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Mining job metrics
	JobsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mining_jobs_started_total",
		Help: "Total number of mining jobs started",
	}, []string{"flow"})

	JobsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mining_jobs_completed_total",
		Help: "Total number of mining jobs finished, by terminal status",
	}, []string{"status"})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mining_job_duration_seconds",
		Help:    "Wall-clock duration of a mining job",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	}, []string{"flow"})

	ContactsExtracted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mining_contacts_extracted_total",
		Help: "Total number of contacts produced by extractors",
	}, []string{"miner"})

	ContactsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mining_contacts_rejected_total",
		Help: "Total number of contact candidates rejected during validation",
	}, []string{"reason"})

	PagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mining_pages_fetched_total",
		Help: "Total number of pages fetched during crawling",
	}, []string{"cache"})

	// Cost metrics
	CostRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mining_cost_recorded_dollars_total",
		Help: "Total recorded extraction cost in dollars",
	}, []string{"operation"})

	CostLimitHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mining_cost_limit_hits_total",
		Help: "Total number of operations denied by a cost or retry limit",
	}, []string{"reason"})

	// Circuit breaker metrics
	CircuitOpened = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mining_circuit_opened_total",
		Help: "Total number of times a domain circuit opened",
	}, []string{"domain"})

	CircuitRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mining_circuit_rejections_total",
		Help: "Total number of fetches rejected by an open circuit",
	})

	// Import pipeline metrics
	ImportRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prospect_import_rows_total",
		Help: "Total number of prospect rows processed by the importer",
	}, []string{"outcome"})

	ImportBatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prospect_import_batches_total",
		Help: "Total number of importer batches committed",
	})
)
