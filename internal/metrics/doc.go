// Basketwise - Household Shopping List Predictions
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketwise

/*
Package metrics provides Prometheus metrics collection and export for observability.

Metrics are registered on the default registry through promauto and exposed
at /metrics in Prometheus text format:

	curl http://localhost:8080/metrics

# Metric Families

  - duckdb_query_*: query latency and errors per operation and table
  - api_*: HTTP request counts, latency and in-flight requests
  - basketwise_prediction*: predictions served by reason, call latency, skipped stages
  - basketwise_rule_generation_*: batch runs, duration and last success
  - basketwise_mining_*: miner latency, input size and failures
  - basketwise_cache_*: rule and catalog cache efficiency
  - circuit_breaker_*: price lookup breaker state and transitions

# Usage

	start := time.Now()
	rows, err := db.QueryContext(ctx, query, args...)
	metrics.RecordDBQuery("select", "association_rules", time.Since(start), err)
*/
package metrics
