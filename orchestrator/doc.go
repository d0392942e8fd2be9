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

/*
Package orchestrator implements the TradeFlow post-trade pipeline service.

# Overview

The orchestrator takes a booked trade through the full post-trade
lifecycle. A pipeline execution runs seven agents:

 1. Trading - validates the trade against credit and market risk limits
    and books it
 2. Processing - assigns a UTI, computes the netting set, and books
    intercompany mirror trades
 3. Regulatory - determines reporting obligations per jurisdiction and
    generates CFTC, EMIR, MiFIR, ASIC, and MAS reports
 4. Confirmation - generates FpML confirmations and matches them against
    counterparty versions
 5. Settlement - computes cashflows, generates SWIFT MT103 messages, and
    nets payments per counterparty, currency, and value date
 6. Ledger - posts double-entry journal lines for the trade
 7. Margin - computes SIMM initial margin, variation margin, and issues
    margin calls

Trading and processing run sequentially. The five downstream agents run
in parallel once processing has produced the UTI and netting set.

The regulatory agent is LLM-driven when a Gemini API key is configured:
the model orchestrates jurisdiction checks, report generation, and
schema validation through tool calls. Without a key, or when the
provider fails, the agent falls back to deterministic rule-based
reporting with identical outputs.

# Components

  - PipelineEngine: runs executions and records per-agent timing
  - ExecutionStore: Redis-backed (or in-memory) execution persistence
  - WSHub: streams per-agent progress events over WebSocket
  - AuditLogger: batched PostgreSQL audit trail of executions, reports,
    and margin calls
  - MetricsCollector: per-agent and per-regime metrics, exported both as
    JSON and Prometheus

# API

	POST /api/v1/pipeline/execute         - run the pipeline for a trade
	GET  /api/v1/pipeline/executions      - list recent executions
	GET  /api/v1/pipeline/executions/{id} - fetch one execution
	GET  /api/v1/audit/trades/{trade_id}  - audit trail for a trade
	GET  /api/v1/pipeline/stream          - WebSocket progress stream
	GET  /health, /metrics, /prometheus   - operational endpoints

All /api/v1 routes except the stream require a bearer token when
JWT_SECRET is set.
*/
package orchestrator
