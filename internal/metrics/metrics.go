// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table", "error_type"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Number of API requests currently being processed",
		},
	)

	// Prediction Metrics
	PredictionsServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basketwise_predictions_served_total",
			Help: "Total number of predictions returned, by reason",
		},
		[]string{"reason"},
	)

	PredictionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "basketwise_prediction_duration_seconds",
			Help:    "Duration of GetPredictions calls in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	PredictionStageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basketwise_prediction_stage_errors_total",
			Help: "Repository errors that caused a prediction stage to be skipped",
		},
		[]string{"stage"}, // households, basket, rules, regenerate, frequency
	)

	OnDemandRegenerations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basketwise_on_demand_regenerations_total",
			Help: "Synchronous rule regenerations triggered by prediction requests",
		},
		[]string{"result"}, // success, error, timeout
	)

	// Rule Generation Metrics
	RuleGenerationRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basketwise_rule_generation_runs_total",
			Help: "Total number of batch rule generation runs",
		},
		[]string{"status"}, // success, error
	)

	RuleGenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "basketwise_rule_generation_duration_seconds",
			Help:    "Duration of batch rule generation runs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	RulesGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basketwise_rules_generated_total",
			Help: "Total number of association rules stored, by scope type",
		},
		[]string{"scope"}, // household, global
	)

	HouseholdGenerationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "basketwise_household_generation_failures_total",
			Help: "Households whose rule regeneration failed",
		},
	)

	RuleGenerationLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "basketwise_rule_generation_last_success_timestamp",
			Help: "Unix timestamp of the last successful batch generation",
		},
	)

	RulesPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "basketwise_rules_pruned_total",
			Help: "Total number of expired association rules deleted",
		},
	)

	// Mining Metrics
	MiningDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "basketwise_mining_duration_seconds",
			Help:    "Duration of one mining run in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		},
		[]string{"miner"},
	)

	MiningErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basketwise_mining_errors_total",
			Help: "Mining runs that failed and produced zero rules",
		},
		[]string{"miner", "error_type"}, // candidate_limit, canceled, other
	)

	MiningTransactions = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "basketwise_mining_transactions",
			Help:    "Number of transactions fed to one mining run",
			Buckets: prometheus.ExponentialBuckets(1, 4, 9),
		},
	)

	// Extractor Metrics
	ExtractorRecordsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basketwise_extractor_records_skipped_total",
			Help: "History records skipped during transaction extraction",
		},
		[]string{"reason"}, // malformed, invalid_item, too_small
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basketwise_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"}, // rules, catalog
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basketwise_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache"},
	)

	CacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basketwise_cache_invalidations_total",
			Help: "Cache entries dropped after rule replacement events",
		},
		[]string{"cache"},
	)

	// Event Bus Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basketwise_events_published_total",
			Help: "Total number of events published to the in-process bus",
		},
		[]string{"topic", "result"},
	)

	EventsHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basketwise_events_handled_total",
			Help: "Total number of events handled by subscribers",
		},
		[]string{"topic", "result"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		errorType := err.Error()
		// Truncate long error messages
		if len(errorType) > 50 {
			errorType = errorType[:50]
		}
		DBQueryErrors.WithLabelValues(operation, table, errorType).Inc()
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordPredictions counts served predictions by reason and observes the call duration.
func RecordPredictions(reasons []string, duration time.Duration) {
	for _, reason := range reasons {
		PredictionsServed.WithLabelValues(reason).Inc()
	}
	PredictionDuration.Observe(duration.Seconds())
}

// RecordRuleGeneration records one batch generation run.
func RecordRuleGeneration(duration time.Duration, failedHouseholds int, err error) {
	RuleGenerationDuration.Observe(duration.Seconds())
	HouseholdGenerationFailures.Add(float64(failedHouseholds))
	if err != nil {
		RuleGenerationRuns.WithLabelValues("error").Inc()
		return
	}
	RuleGenerationRuns.WithLabelValues("success").Inc()
	RuleGenerationLastSuccess.Set(float64(time.Now().Unix()))
}

// RecordMining records one mining run. errorType is empty on success.
func RecordMining(miner string, transactions int, duration time.Duration, errorType string) {
	MiningDuration.WithLabelValues(miner).Observe(duration.Seconds())
	MiningTransactions.Observe(float64(transactions))
	if errorType != "" {
		MiningErrors.WithLabelValues(miner, errorType).Inc()
	}
}

// RecordCacheLookup records a hit or miss for the named cache.
func RecordCacheLookup(cache string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(cache).Inc()
	} else {
		CacheMisses.WithLabelValues(cache).Inc()
	}
}

// RecordEventPublish records a publish attempt.
func RecordEventPublish(topic string, err error) {
	EventsPublished.WithLabelValues(topic, resultLabel(err)).Inc()
}

// RecordEventHandled records a subscriber handling an event.
func RecordEventHandled(topic string, err error) {
	EventsHandled.WithLabelValues(topic, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
