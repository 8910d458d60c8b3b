// Copyright 2025 The Dagflow Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package telemetry exposes the Prometheus instrumentation for the
// scheduler: node run/fail/wait counts by node type, scheduler passes by
// phase, and resume latency. All exported functions are safe to call
// whether or not anything ever scrapes /metrics; they only ever touch
// global, low-cardinality collectors (labeled by node type and phase, not
// by node name or transaction id).
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	nodeRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dagflow_node_runs_total",
		Help: "Total Run invocations, by node type.",
	}, []string{"node_type"})

	nodeFailsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dagflow_node_fails_total",
		Help: "Total times a node's Run or Resume returned Fail, by node type.",
	}, []string{"node_type"})

	nodeWaitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dagflow_node_waits_total",
		Help: "Total times a node's Run returned Waiting, by node type.",
	}, []string{"node_type"})

	schedulerPassesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dagflow_scheduler_passes_total",
		Help: "Total scheduler loop passes, by HTTP lifecycle phase.",
	}, []string{"phase"})

	resumeLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dagflow_resume_latency_seconds",
		Help:    "Time between a node returning Waiting and its matching Resume.",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(nodeRunsTotal, nodeFailsTotal, nodeWaitsTotal, schedulerPassesTotal, resumeLatencySeconds)
}

// NodeRun records one Run invocation for nodeType.
func NodeRun(nodeType string) { nodeRunsTotal.WithLabelValues(nodeType).Inc() }

// NodeFail records a node transitioning to Fail.
func NodeFail(nodeType string) { nodeFailsTotal.WithLabelValues(nodeType).Inc() }

// NodeWait records a node transitioning to Waiting.
func NodeWait(nodeType string) { nodeWaitsTotal.WithLabelValues(nodeType).Inc() }

// SchedulerPass records one pass of the run-to-quiescence loop for phase.
func SchedulerPass(phase string) { schedulerPassesTotal.WithLabelValues(phase).Inc() }

// ObserveResumeLatency records the time elapsed between a node returning
// Waiting and the matching Resume call.
func ObserveResumeLatency(d time.Duration) { resumeLatencySeconds.Observe(d.Seconds()) }
