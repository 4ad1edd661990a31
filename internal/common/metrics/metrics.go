package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QuestionsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insights_questions_processed_total",
			Help: "Total number of questions processed by the pipeline",
		},
		[]string{"status"},
	)

	LLMRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insights_llm_requests_total",
			Help: "Total number of chat-completion attempts",
		},
		[]string{"outcome"},
	)

	LLMRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "insights_llm_retries_total",
			Help: "Total number of retried chat-completion attempts",
		},
	)

	SQLValidationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "insights_sql_validation_failures_total",
			Help: "Total number of generated statements rejected by the validator",
		},
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "insights_query_duration_seconds",
			Help: "Duration of generated-query execution in seconds",
		},
		[]string{"status"},
	)

	QueryRowsReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "insights_query_rows_returned",
			Help:    "Rows returned per executed query, after truncation",
			Buckets: prometheus.ExponentialBuckets(1, 4, 6),
		},
	)
)
