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
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"tradeflow/platform/orchestrator/regulatory"
	"tradeflow/platform/shared/logger"
	"tradeflow/platform/shared/types"
)

func init() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
}

// Pipeline execution statuses.
const (
	PipelinePending   = "pending"
	PipelineRunning   = "running"
	PipelineCompleted = "completed"
	PipelineRejected  = "rejected"
	PipelineFailed    = "failed"
)

// Agent execution statuses.
const (
	AgentPending   = "pending"
	AgentRunning   = "running"
	AgentCompleted = "completed"
	AgentFailed    = "failed"
	AgentSkipped   = "skipped"
)

// Pipeline agent names, in topology order. The first two are sequential;
// the rest fan out in parallel after the trade is booked and processed.
const (
	AgentTrading      = "trading"
	AgentProcessing   = "processing"
	AgentRegulatory   = "regulatory"
	AgentConfirmation = "confirmation"
	AgentSettlement   = "settlement"
	AgentLedger       = "ledger"
	AgentMargin       = "margin"
)

// AgentExecution records one agent's run within a pipeline execution.
type AgentExecution struct {
	Name        string                 `json:"name"`
	Status      string                 `json:"status"`
	Output      map[string]interface{} `json:"output,omitempty"`
	StartTime   time.Time              `json:"start_time"`
	EndTime     *time.Time             `json:"end_time,omitempty"`
	Error       string                 `json:"error,omitempty"`
	ProcessTime string                 `json:"process_time,omitempty"`
}

// PipelineExecution represents one run of the trade pipeline.
type PipelineExecution struct {
	ID         string           `json:"id"`
	TradeID    string           `json:"trade_id"`
	Status     string           `json:"status"`
	Trade      types.Trade      `json:"trade"`
	UTI        string           `json:"uti,omitempty"`
	NettingSet string           `json:"netting_set,omitempty"`
	Agents     []AgentExecution `json:"agents"`
	StartTime  time.Time        `json:"start_time"`
	EndTime    *time.Time       `json:"end_time,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// ExecutionStore persists pipeline executions.
type ExecutionStore interface {
	SaveExecution(execution *PipelineExecution) error
	GetExecution(id string) (*PipelineExecution, error)
	UpdateExecution(execution *PipelineExecution) error
	ListExecutions() ([]*PipelineExecution, error)
}

// InMemoryExecutionStore is a thread-safe map-backed store.
type InMemoryExecutionStore struct {
	mu         sync.RWMutex
	executions map[string]*PipelineExecution
}

// NewInMemoryExecutionStore creates an empty in-memory store.
func NewInMemoryExecutionStore() *InMemoryExecutionStore {
	return &InMemoryExecutionStore{executions: make(map[string]*PipelineExecution)}
}

func (s *InMemoryExecutionStore) SaveExecution(execution *PipelineExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions[execution.ID] = execution
	return nil
}

func (s *InMemoryExecutionStore) GetExecution(id string) (*PipelineExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	execution, exists := s.executions[id]
	if !exists {
		return nil, fmt.Errorf("execution not found: %s", id)
	}
	return execution, nil
}

func (s *InMemoryExecutionStore) UpdateExecution(execution *PipelineExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions[execution.ID] = execution
	return nil
}

func (s *InMemoryExecutionStore) ListExecutions() ([]*PipelineExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*PipelineExecution, 0, len(s.executions))
	for _, execution := range s.executions {
		out = append(out, execution)
	}
	return out, nil
}

// ProgressEvent is pushed to subscribers as agents start and finish.
type ProgressEvent struct {
	ExecutionID string    `json:"execution_id"`
	TradeID     string    `json:"trade_id"`
	Agent       string    `json:"agent,omitempty"`
	Status      string    `json:"status"`
	Message     string    `json:"message,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// ProgressPublisher receives per-agent progress events. The WebSocket hub
// implements this; a nil publisher disables progress streaming.
type ProgressPublisher interface {
	PublishProgress(event ProgressEvent)
}

// PipelineEngine executes the fixed trade-processing topology:
// trading -> processing -> [regulatory, confirmation, settlement, ledger,
// margin] in parallel. A trade that fails pre-trade validation
// short-circuits to the rejected status without fanning out.
type PipelineEngine struct {
	trading      *TradingAgent
	processing   *ProcessingAgent
	regulatory   *regulatory.Agent
	confirmation *ConfirmationAgent
	settlement   *SettlementAgent
	ledger       *LedgerAgent
	margin       *MarginAgent

	storage   ExecutionStore
	publisher ProgressPublisher
	audit     *AuditLogger
	metrics   *MetricsCollector
	log       *logger.Logger
}

// EngineOption configures a PipelineEngine.
type EngineOption func(*PipelineEngine)

// WithProgressPublisher enables progress streaming.
func WithProgressPublisher(p ProgressPublisher) EngineOption {
	return func(e *PipelineEngine) { e.publisher = p }
}

// WithEngineLogger sets a custom structured logger.
func WithEngineLogger(l *logger.Logger) EngineOption {
	return func(e *PipelineEngine) { e.log = l }
}

// WithAuditLogger records execution outcomes on the audit trail.
func WithAuditLogger(a *AuditLogger) EngineOption {
	return func(e *PipelineEngine) { e.audit = a }
}

// WithMetricsCollector records execution metrics.
func WithMetricsCollector(m *MetricsCollector) EngineOption {
	return func(e *PipelineEngine) { e.metrics = m }
}

// NewPipelineEngine creates an engine with fresh agent instances. regAgent
// may be nil, in which case a rule-based regulatory agent is created.
func NewPipelineEngine(storage ExecutionStore, regAgent *regulatory.Agent, opts ...EngineOption) *PipelineEngine {
	if storage == nil {
		storage = NewInMemoryExecutionStore()
	}
	e := &PipelineEngine{
		trading:      NewTradingAgent(),
		processing:   NewProcessingAgent(),
		regulatory:   regAgent,
		confirmation: NewConfirmationAgent(),
		settlement:   NewSettlementAgent(),
		ledger:       NewLedgerAgent(),
		margin:       NewMarginAgent(),
		storage:      storage,
		log:          logger.New("pipeline-engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.regulatory == nil {
		e.regulatory = regulatory.NewAgent(nil, e.log)
	}
	return e
}

// Storage exposes the execution store for the API layer.
func (e *PipelineEngine) Storage() ExecutionStore {
	return e.storage
}

// ExecutePipeline runs the full pipeline for one trade. The returned
// execution carries per-agent outputs; a rejected trade is a normal
// outcome, not an error. The input trade is never mutated; each step works
// on its own copy of the pipeline state.
func (e *PipelineEngine) ExecutePipeline(ctx context.Context, trade types.Trade) (*PipelineExecution, error) {
	execution := &PipelineExecution{
		ID:        uuid.NewString(),
		TradeID:   trade.ID,
		Status:    PipelineRunning,
		Trade:     trade,
		StartTime: time.Now(),
	}
	if err := e.storage.SaveExecution(execution); err != nil {
		return nil, fmt.Errorf("save execution: %w", err)
	}

	e.publish(execution, "", PipelineRunning, "pipeline started")
	e.log.Info(execution.ID, trade.ID, "pipeline started", map[string]interface{}{
		"product_type": trade.ProductType,
	})

	var mu sync.Mutex // guards execution.Agents across the fan-out

	// Step 1: trading (book or reject).
	_, err := e.runAgent(execution, &mu, AgentTrading, func() (interface{}, error) {
		return e.trading.BookTrade(trade)
	})
	if err != nil {
		e.reject(execution, err)
		e.account(execution, nil, nil)
		return execution, nil
	}

	// Step 2: processing (UTI, netting set, mirrors).
	var processed ProcessingResult
	_, err = e.runAgent(execution, &mu, AgentProcessing, func() (interface{}, error) {
		processed = e.processing.Process(trade)
		return processed, nil
	})
	if err != nil {
		e.fail(execution, err)
		e.account(execution, nil, nil)
		return execution, nil
	}

	execution.UTI = processed.UTI
	execution.NettingSet = processed.NettingSet
	pipelineTrade := processed.Trades[0]

	// Fan out the five downstream agents in parallel.
	var (
		wg           sync.WaitGroup
		regResult    *regulatory.ReportingResult
		marginResult MarginResult
	)
	fanOut := []struct {
		name string
		run  func() (interface{}, error)
	}{
		{AgentRegulatory, func() (interface{}, error) {
			result, regErr := e.regulatory.ProcessTrade(ctx, execution.ID, pipelineTrade)
			regResult = result
			return result, regErr
		}},
		{AgentConfirmation, func() (interface{}, error) {
			return e.confirmation.GenerateConfirmation(pipelineTrade, processed.UTI), nil
		}},
		{AgentSettlement, func() (interface{}, error) {
			return e.settlement.Settle(pipelineTrade), nil
		}},
		{AgentLedger, func() (interface{}, error) {
			return e.ledger.RecordTransaction(pipelineTrade), nil
		}},
		{AgentMargin, func() (interface{}, error) {
			marginResult = e.margin.MarginTrade(processed.NettingSet, pipelineTrade)
			return marginResult, nil
		}},
	}

	for _, step := range fanOut {
		wg.Add(1)
		go func(name string, run func() (interface{}, error)) {
			defer wg.Done()
			_, _ = e.runAgent(execution, &mu, name, run)
		}(step.name, step.run)
	}
	wg.Wait()

	// Join: any failed downstream agent fails the pipeline.
	mu.Lock()
	failed := ""
	for _, agent := range execution.Agents {
		if agent.Status == AgentFailed {
			failed = agent.Name
			break
		}
	}
	mu.Unlock()

	if failed != "" {
		e.fail(execution, fmt.Errorf("agent %s failed", failed))
		e.account(execution, regResult, marginResult.MarginCall)
		return execution, nil
	}

	now := time.Now()
	execution.Status = PipelineCompleted
	execution.EndTime = &now
	if err := e.storage.UpdateExecution(execution); err != nil {
		e.log.Error(execution.ID, trade.ID, "failed to persist completed execution",
			map[string]interface{}{"error": err.Error()})
	}

	e.publish(execution, "", PipelineCompleted, "pipeline completed")
	e.log.InfoWithDuration(execution.ID, trade.ID, "pipeline completed",
		float64(now.Sub(execution.StartTime).Milliseconds()), nil)
	e.account(execution, regResult, marginResult.MarginCall)
	return execution, nil
}

// account mirrors a finished execution to the audit trail and metrics.
func (e *PipelineEngine) account(execution *PipelineExecution, regResult *regulatory.ReportingResult, call *MarginCall) {
	if e.metrics != nil {
		e.metrics.RecordPipeline(execution)
		e.metrics.RecordRegulatoryReports(regResult)
	}
	if e.audit != nil {
		e.audit.LogExecution(execution)
		if regResult != nil {
			e.audit.LogRegulatoryReports(execution.ID, execution.TradeID, execution.UTI, regResult)
		}
		e.audit.LogMarginCall(execution.ID, execution.TradeID, call)
	}
}

// runAgent executes one agent step, recording timing, status, and output on
// the execution.
func (e *PipelineEngine) runAgent(execution *PipelineExecution, mu *sync.Mutex, name string, run func() (interface{}, error)) (interface{}, error) {
	start := time.Now()
	e.publish(execution, name, AgentRunning, "")

	result, err := run()
	end := time.Now()

	agentExec := AgentExecution{
		Name:        name,
		StartTime:   start,
		EndTime:     &end,
		ProcessTime: end.Sub(start).String(),
	}

	if err != nil {
		agentExec.Status = AgentFailed
		agentExec.Error = err.Error()
		e.log.ErrorWithAgent(execution.ID, execution.TradeID, name, err, nil)
	} else {
		agentExec.Status = AgentCompleted
		agentExec.Output = toOutputMap(result)
	}

	// The store serializes the execution outside the lock, so hand it a
	// copy; other fan-out goroutines keep appending to Agents.
	mu.Lock()
	execution.Agents = append(execution.Agents, agentExec)
	snapshot := *execution
	snapshot.Agents = append([]AgentExecution(nil), execution.Agents...)
	mu.Unlock()

	if storeErr := e.storage.UpdateExecution(&snapshot); storeErr != nil {
		log.Printf("[PipelineEngine] Failed to persist execution %s: %v", execution.ID, storeErr)
	}

	e.publish(execution, name, agentExec.Status, agentExec.Error)
	return result, err
}

func (e *PipelineEngine) reject(execution *PipelineExecution, cause error) {
	now := time.Now()
	execution.Status = PipelineRejected
	execution.EndTime = &now
	execution.Error = cause.Error()
	if err := e.storage.UpdateExecution(execution); err != nil {
		log.Printf("[PipelineEngine] Failed to persist rejected execution %s: %v", execution.ID, err)
	}
	e.publish(execution, "", PipelineRejected, cause.Error())
	e.log.Warn(execution.ID, execution.TradeID, "trade rejected",
		map[string]interface{}{"reason": cause.Error()})
}

func (e *PipelineEngine) fail(execution *PipelineExecution, cause error) {
	now := time.Now()
	execution.Status = PipelineFailed
	execution.EndTime = &now
	execution.Error = cause.Error()
	if err := e.storage.UpdateExecution(execution); err != nil {
		log.Printf("[PipelineEngine] Failed to persist failed execution %s: %v", execution.ID, err)
	}
	e.publish(execution, "", PipelineFailed, cause.Error())
	e.log.Error(execution.ID, execution.TradeID, "pipeline failed",
		map[string]interface{}{"reason": cause.Error()})
}

func (e *PipelineEngine) publish(execution *PipelineExecution, agent, status, message string) {
	if e.publisher == nil {
		return
	}
	e.publisher.PublishProgress(ProgressEvent{
		ExecutionID: execution.ID,
		TradeID:     execution.TradeID,
		Agent:       agent,
		Status:      status,
		Message:     message,
		Timestamp:   time.Now(),
	})
}

// toOutputMap converts an agent result struct to a generic map for storage
// on the execution record. A nil result (confirmation-exempt trades) yields
// nil.
func toOutputMap(v interface{}) map[string]interface{} {
	if v == nil {
		return nil
	}
	if doc, ok := v.(*ConfirmationDocument); ok && doc == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return map[string]interface{}{"value": fmt.Sprintf("%v", v)}
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]interface{}{"value": string(data)}
	}
	return out
}
