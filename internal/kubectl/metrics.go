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

package kubectl

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

// Outcome labels for executed commands.
const (
	OutcomeSuccess  = "success"
	OutcomeFailed   = "failed"
	OutcomeTimeout  = "timeout"
	OutcomeCanceled = "canceled"
	OutcomeDenied   = "denied"
	OutcomeSpawn    = "spawn_error"
)

var (
	executionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubedebug_kubectl_executions_total",
			Help: "Total number of kubectl commands executed, by outcome",
		},
		[]string{"outcome"},
	)

	executionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kubedebug_kubectl_execution_duration_seconds",
			Help:    "Duration of kubectl command executions",
			Buckets: prometheus.DefBuckets,
		},
	)

	truncationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kubedebug_kubectl_log_truncations_total",
			Help: "Total log outputs shortened before being returned",
		},
	)
)

func init() {
	metrics.Registry.MustRegister(
		executionsTotal,
		executionDuration,
		truncationsTotal,
	)
}

// recordExecution records metrics for one command execution.
func recordExecution(outcome string, duration time.Duration) {
	executionsTotal.WithLabelValues(outcome).Inc()
	if outcome != OutcomeDenied {
		executionDuration.Observe(duration.Seconds())
	}
}

func recordTruncation() {
	truncationsTotal.Inc()
}
