// Copyright 2025 TradeFlow
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

package orchestrator

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"tradeflow/platform/orchestrator/regulatory"
)

// Prometheus collectors for the pipeline. Registered once at package load;
// the /prometheus endpoint serves them.
var (
	promPipelinesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradeflow_pipelines_total",
		Help: "Pipeline executions by terminal status.",
	}, []string{"status"})

	promPipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tradeflow_pipeline_duration_seconds",
		Help:    "End-to-end pipeline execution time.",
		Buckets: prometheus.DefBuckets,
	})

	promAgentDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tradeflow_agent_duration_seconds",
		Help:    "Per-agent execution time.",
		Buckets: prometheus.DefBuckets,
	}, []string{"agent"})

	promAgentFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradeflow_agent_failures_total",
		Help: "Agent execution failures.",
	}, []string{"agent"})

	promReportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradeflow_regulatory_reports_total",
		Help: "Regulatory reports generated, by regime and validation outcome.",
	}, []string{"regime", "outcome"})

	promNotionalTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradeflow_notional_processed_total",
		Help: "Total notional processed through completed pipelines.",
	})
)

// MetricsCollector aggregates pipeline metrics for the JSON /metrics
// endpoint and mirrors them to the Prometheus collectors.
type MetricsCollector struct {
	metrics *PipelineMetrics
	mu      sync.RWMutex
}

// PipelineMetrics is the JSON snapshot served by the metrics endpoint.
type PipelineMetrics struct {
	AgentMetrics      map[string]*AgentMetrics  `json:"agent_metrics"`
	RegimeMetrics     map[string]*RegimeMetrics `json:"regime_metrics"`
	PipelineCounts    map[string]int64          `json:"pipeline_counts"`
	NotionalProcessed float64                   `json:"notional_processed"`
	UptimeSeconds     int64                     `json:"uptime_seconds"`
	LastResetTime     time.Time                 `json:"last_reset_time"`
	CollectionStarted time.Time                 `json:"collection_started"`
}

// AgentMetrics tracks per-agent execution statistics. Process times are
// reported in milliseconds.
type AgentMetrics struct {
	Executions       int64   `json:"executions"`
	Failures         int64   `json:"failures"`
	AvgProcessTime   float64 `json:"avg_process_time_ms"`
	P95ProcessTime   float64 `json:"p95_process_time_ms"`
	processDurations []time.Duration
}

// RegimeMetrics tracks reporting volume per regulatory regime.
type RegimeMetrics struct {
	ReportsGenerated int64 `json:"reports_generated"`
	ReportsValidated int64 `json:"reports_validated"`
	ReportsRejected  int64 `json:"reports_rejected"`
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		metrics: &PipelineMetrics{
			AgentMetrics:      make(map[string]*AgentMetrics),
			RegimeMetrics:     make(map[string]*RegimeMetrics),
			PipelineCounts:    make(map[string]int64),
			CollectionStarted: time.Now(),
			LastResetTime:     time.Now(),
		},
	}
}

// RecordPipeline records a finished pipeline execution, including its
// per-agent timings.
func (c *MetricsCollector) RecordPipeline(execution *PipelineExecution) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.metrics.PipelineCounts[execution.Status]++
	promPipelinesTotal.WithLabelValues(execution.Status).Inc()

	if execution.EndTime != nil {
		duration := execution.EndTime.Sub(execution.StartTime)
		promPipelineDuration.Observe(duration.Seconds())
	}

	if execution.Status == PipelineCompleted {
		c.metrics.NotionalProcessed += execution.Trade.Notional
		promNotionalTotal.Add(execution.Trade.Notional)
	}

	for _, agent := range execution.Agents {
		c.recordAgentLocked(agent)
	}
}

func (c *MetricsCollector) recordAgentLocked(agent AgentExecution) {
	am, exists := c.metrics.AgentMetrics[agent.Name]
	if !exists {
		am = &AgentMetrics{processDurations: make([]time.Duration, 0, 1000)}
		c.metrics.AgentMetrics[agent.Name] = am
	}

	am.Executions++
	if agent.Status == AgentFailed {
		am.Failures++
		promAgentFailures.WithLabelValues(agent.Name).Inc()
	}

	if agent.EndTime != nil {
		duration := agent.EndTime.Sub(agent.StartTime)
		am.processDurations = append(am.processDurations, duration)
		// Keep only last 1000 durations for percentile calculation
		if len(am.processDurations) > 1000 {
			am.processDurations = am.processDurations[len(am.processDurations)-1000:]
		}
		promAgentDuration.WithLabelValues(agent.Name).Observe(duration.Seconds())
	}
}

// RecordRegulatoryReports records reporting volume for every report in a
// regulatory result.
func (c *MetricsCollector) RecordRegulatoryReports(result *regulatory.ReportingResult) {
	if result == nil {
		return
	}
	validByRegime := make(map[regulatory.Regime]bool, len(result.Validations))
	for _, v := range result.Validations {
		validByRegime[v.Regime] = v.Valid
	}
	for _, report := range result.Reports {
		c.RecordReport(string(report.Regime), validByRegime[report.Regime])
	}
}

// RecordReport records a single regime report outcome.
func (c *MetricsCollector) RecordReport(regime string, valid bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rm, exists := c.metrics.RegimeMetrics[regime]
	if !exists {
		rm = &RegimeMetrics{}
		c.metrics.RegimeMetrics[regime] = rm
	}
	rm.ReportsGenerated++
	outcome := "validated"
	if valid {
		rm.ReportsValidated++
	} else {
		rm.ReportsRejected++
		outcome = "rejected"
	}
	promReportsTotal.WithLabelValues(regime, outcome).Inc()
}

// GetMetrics returns a deep copy of the current metrics snapshot.
func (c *MetricsCollector) GetMetrics() *PipelineMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calculateDerivedMetricsLocked()

	snapshot := &PipelineMetrics{
		AgentMetrics:      make(map[string]*AgentMetrics),
		RegimeMetrics:     make(map[string]*RegimeMetrics),
		PipelineCounts:    make(map[string]int64),
		NotionalProcessed: c.metrics.NotionalProcessed,
		UptimeSeconds:     c.metrics.UptimeSeconds,
		LastResetTime:     c.metrics.LastResetTime,
		CollectionStarted: c.metrics.CollectionStarted,
	}

	for k, v := range c.metrics.AgentMetrics {
		snapshot.AgentMetrics[k] = &AgentMetrics{
			Executions:     v.Executions,
			Failures:       v.Failures,
			AvgProcessTime: v.AvgProcessTime,
			P95ProcessTime: v.P95ProcessTime,
		}
	}
	for k, v := range c.metrics.RegimeMetrics {
		snapshot.RegimeMetrics[k] = &RegimeMetrics{
			ReportsGenerated: v.ReportsGenerated,
			ReportsValidated: v.ReportsValidated,
			ReportsRejected:  v.ReportsRejected,
		}
	}
	for k, v := range c.metrics.PipelineCounts {
		snapshot.PipelineCounts[k] = v
	}

	return snapshot
}

// ResetMetrics resets the JSON snapshot. Prometheus counters are
// monotonic and are not reset.
func (c *MetricsCollector) ResetMetrics() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.metrics = &PipelineMetrics{
		AgentMetrics:      make(map[string]*AgentMetrics),
		RegimeMetrics:     make(map[string]*RegimeMetrics),
		PipelineCounts:    make(map[string]int64),
		CollectionStarted: c.metrics.CollectionStarted,
		LastResetTime:     time.Now(),
	}
}

func (c *MetricsCollector) calculateDerivedMetricsLocked() {
	for _, am := range c.metrics.AgentMetrics {
		if len(am.processDurations) > 0 {
			var total time.Duration
			for _, d := range am.processDurations {
				total += d
			}
			avg := total / time.Duration(len(am.processDurations))
			am.AvgProcessTime = avg.Seconds() * 1000
			am.P95ProcessTime = percentile(am.processDurations, 95).Seconds() * 1000
		}
	}
	c.metrics.UptimeSeconds = int64(time.Since(c.metrics.CollectionStarted).Seconds())
}

func percentile(times []time.Duration, p int) time.Duration {
	if len(times) == 0 {
		return 0
	}
	index := (len(times) * p) / 100
	if index >= len(times) {
		index = len(times) - 1
	}
	return times[index]
}
