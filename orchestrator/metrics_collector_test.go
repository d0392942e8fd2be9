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
	"testing"
	"time"

	"tradeflow/platform/orchestrator/regulatory"
)

func finishedExecution(status string, agentStatus string) *PipelineExecution {
	start := time.Now().Add(-100 * time.Millisecond)
	end := time.Now()
	return &PipelineExecution{
		ID:        "exec-1",
		TradeID:   "TRD-001",
		Status:    status,
		Trade:     testTrade(),
		StartTime: start,
		EndTime:   &end,
		Agents: []AgentExecution{
			{Name: AgentTrading, Status: AgentCompleted, StartTime: start, EndTime: &end},
			{Name: AgentRegulatory, Status: agentStatus, StartTime: start, EndTime: &end},
		},
	}
}

func TestRecordPipeline(t *testing.T) {
	collector := NewMetricsCollector()

	collector.RecordPipeline(finishedExecution(PipelineCompleted, AgentCompleted))
	collector.RecordPipeline(finishedExecution(PipelineRejected, AgentCompleted))
	collector.RecordPipeline(finishedExecution(PipelineFailed, AgentFailed))

	metrics := collector.GetMetrics()

	if metrics.PipelineCounts[PipelineCompleted] != 1 ||
		metrics.PipelineCounts[PipelineRejected] != 1 ||
		metrics.PipelineCounts[PipelineFailed] != 1 {
		t.Errorf("PipelineCounts = %v", metrics.PipelineCounts)
	}

	// Only the completed pipeline contributes notional.
	if metrics.NotionalProcessed != testTrade().Notional {
		t.Errorf("NotionalProcessed = %.2f", metrics.NotionalProcessed)
	}

	reg := metrics.AgentMetrics[AgentRegulatory]
	if reg == nil || reg.Executions != 3 || reg.Failures != 1 {
		t.Errorf("Regulatory agent metrics = %+v", reg)
	}
	// Agent runs span ~100ms; the reported values are milliseconds, not
	// nanoseconds.
	if reg.AvgProcessTime < 50 || reg.AvgProcessTime > 5000 {
		t.Errorf("AvgProcessTime = %.2f ms", reg.AvgProcessTime)
	}
	if reg.P95ProcessTime < 50 || reg.P95ProcessTime > 5000 {
		t.Errorf("P95ProcessTime = %.2f ms", reg.P95ProcessTime)
	}
}

func TestRecordRegulatoryReports(t *testing.T) {
	collector := NewMetricsCollector()

	collector.RecordRegulatoryReports(&regulatory.ReportingResult{
		Reports: []regulatory.Report{
			{Regime: regulatory.RegimeEMIR, ReportID: "RPT-EMIR-1"},
			{Regime: regulatory.RegimeCFTCPart43, ReportID: "RPT-CFTC_PART_43-1"},
		},
		Validations: []regulatory.ValidationResult{
			{Regime: regulatory.RegimeEMIR, Valid: true},
			{Regime: regulatory.RegimeCFTCPart43, Valid: false},
		},
	})
	collector.RecordRegulatoryReports(nil)

	metrics := collector.GetMetrics()

	emir := metrics.RegimeMetrics["EMIR"]
	if emir == nil || emir.ReportsGenerated != 1 || emir.ReportsValidated != 1 {
		t.Errorf("EMIR metrics = %+v", emir)
	}
	cftc := metrics.RegimeMetrics["CFTC_PART_43"]
	if cftc == nil || cftc.ReportsRejected != 1 {
		t.Errorf("CFTC metrics = %+v", cftc)
	}
}

func TestResetMetrics(t *testing.T) {
	collector := NewMetricsCollector()
	collector.RecordPipeline(finishedExecution(PipelineCompleted, AgentCompleted))

	collector.ResetMetrics()
	metrics := collector.GetMetrics()

	if len(metrics.PipelineCounts) != 0 || len(metrics.AgentMetrics) != 0 {
		t.Errorf("Metrics not reset: %+v", metrics)
	}
	if metrics.NotionalProcessed != 0 {
		t.Errorf("NotionalProcessed = %.2f after reset", metrics.NotionalProcessed)
	}
}

func TestGetMetricsReturnsCopy(t *testing.T) {
	collector := NewMetricsCollector()
	collector.RecordPipeline(finishedExecution(PipelineCompleted, AgentCompleted))

	first := collector.GetMetrics()
	first.PipelineCounts[PipelineCompleted] = 999
	first.AgentMetrics[AgentTrading].Executions = 999

	second := collector.GetMetrics()
	if second.PipelineCounts[PipelineCompleted] != 1 {
		t.Error("Snapshot mutation leaked into collector")
	}
	if second.AgentMetrics[AgentTrading].Executions != 1 {
		t.Error("Agent snapshot mutation leaked into collector")
	}
}

func TestPercentile(t *testing.T) {
	times := []time.Duration{
		1 * time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond,
		4 * time.Millisecond, 5 * time.Millisecond,
	}
	if p := percentile(times, 95); p != 4*time.Millisecond {
		t.Errorf("p95 = %v", p)
	}
	if p := percentile(nil, 95); p != 0 {
		t.Errorf("empty p95 = %v", p)
	}
}
