/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package ai

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

// Completion call results.
const (
	resultSuccess     = "success"
	resultError       = "error"
	resultRateLimited = "rate_limited"
	resultRejected    = "rejected"
)

var (
	completionCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubedebug_ai_completion_calls_total",
			Help: "Total number of completion calls by provider and result",
		},
		[]string{"provider", "result"},
	)

	completionTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubedebug_ai_tokens_used_total",
			Help: "Total tokens consumed by completion calls",
		},
		[]string{"provider"},
	)

	completionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kubedebug_ai_completion_duration_seconds",
			Help:    "Duration of completion calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	toolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubedebug_ai_tool_calls_total",
			Help: "Total tool calls requested by the model",
		},
		[]string{"provider"},
	)

	queryIterations = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kubedebug_ai_query_iterations",
			Help:    "Completion calls needed to answer one query",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
		},
	)

	budgetExceededTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kubedebug_ai_budget_exceeded_total",
			Help: "Total queries rejected because the session token budget was spent",
		},
	)

	circuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kubedebug_ai_circuit_breaker_state",
			Help: "Circuit breaker state per provider (0=closed, 1=open, 2=half-open)",
		},
		[]string{"provider"},
	)
)

func init() {
	metrics.Registry.MustRegister(
		completionCallsTotal,
		completionTokensTotal,
		completionDuration,
		toolCallsTotal,
		queryIterations,
		budgetExceededTotal,
		circuitBreakerState,
	)
}

// RecordCompletion records metrics for one completion call.
func RecordCompletion(provider, result string, tokens int, duration time.Duration) {
	completionCallsTotal.WithLabelValues(provider, result).Inc()
	if tokens > 0 {
		completionTokensTotal.WithLabelValues(provider).Add(float64(tokens))
	}
	completionDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordToolCalls records tool calls requested in one completion.
func RecordToolCalls(provider string, count int) {
	if count > 0 {
		toolCallsTotal.WithLabelValues(provider).Add(float64(count))
	}
}

// RecordQueryIterations records how many completions a query took.
func RecordQueryIterations(n int) {
	queryIterations.Observe(float64(n))
}

// RecordBudgetExceeded records a query rejected by the token budget.
func RecordBudgetExceeded() {
	budgetExceededTotal.Inc()
}

// RecordCircuitState publishes the breaker state for provider.
func RecordCircuitState(provider string, state CircuitState) {
	circuitBreakerState.WithLabelValues(provider).Set(float64(state))
}
