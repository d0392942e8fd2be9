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
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"tradeflow/platform/orchestrator/regulatory"
)

// Audit event types.
const (
	AuditPipelineCompleted = "pipeline_completed"
	AuditTradeRejected     = "trade_rejected"
	AuditPipelineFailed    = "pipeline_failed"
	AuditReportGenerated   = "report_generated"
	AuditMarginCall        = "margin_call"
)

// AuditLogger persists an immutable trail of pipeline outcomes and
// regulatory reports to Postgres. When no database is available it
// degrades to a no-op so the pipeline keeps running.
type AuditLogger struct {
	db           *sql.DB
	batchWriter  *BatchWriter
	auditQueue   chan *AuditEntry
	wg           sync.WaitGroup
	shutdownChan chan struct{}
	shutdownOnce sync.Once
}

// AuditEntry is a single audit trail record.
type AuditEntry struct {
	ID           string                 `json:"id"`
	ExecutionID  string                 `json:"execution_id"`
	Timestamp    time.Time              `json:"timestamp"`
	TradeID      string                 `json:"trade_id"`
	UTI          string                 `json:"uti,omitempty"`
	EventType    string                 `json:"event_type"`
	Agent        string                 `json:"agent,omitempty"`
	Regime       string                 `json:"regime,omitempty"`
	Outcome      string                 `json:"outcome"`
	Details      map[string]interface{} `json:"details,omitempty"`
	DurationMS   int64                  `json:"duration_ms,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
}

// BatchWriter handles batch writing of audit entries.
type BatchWriter struct {
	db          *sql.DB
	batchSize   int
	flushTicker *time.Ticker
	entries     []*AuditEntry
	mu          sync.Mutex
	stop        chan struct{}
	stopOnce    sync.Once
}

// NewAuditLogger creates an audit logger backed by the given Postgres URL.
// An empty URL or a connection failure yields a no-op logger.
func NewAuditLogger(databaseURL string) *AuditLogger {
	if databaseURL == "" {
		return &AuditLogger{
			auditQueue:   make(chan *AuditEntry, 10000),
			shutdownChan: make(chan struct{}),
		}
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		log.Printf("[AuditLogger] Failed to connect to audit database: %v", err)
		return &AuditLogger{
			auditQueue:   make(chan *AuditEntry, 10000),
			shutdownChan: make(chan struct{}),
		}
	}

	if err := createAuditTables(db); err != nil {
		log.Printf("[AuditLogger] Failed to create audit tables: %v", err)
	}

	logger := &AuditLogger{
		db:           db,
		batchWriter:  NewBatchWriter(db, 100),
		auditQueue:   make(chan *AuditEntry, 10000),
		shutdownChan: make(chan struct{}),
	}

	logger.wg.Add(1)
	go logger.processAuditQueue()

	return logger
}

// NewAuditLoggerWithDB wraps an existing database handle. Used by tests.
func NewAuditLoggerWithDB(db *sql.DB) *AuditLogger {
	logger := &AuditLogger{
		db:           db,
		batchWriter:  NewBatchWriter(db, 100),
		auditQueue:   make(chan *AuditEntry, 10000),
		shutdownChan: make(chan struct{}),
	}
	logger.wg.Add(1)
	go logger.processAuditQueue()
	return logger
}

// LogExecution records the terminal state of a pipeline execution.
func (l *AuditLogger) LogExecution(execution *PipelineExecution) *AuditEntry {
	eventType := AuditPipelineCompleted
	switch execution.Status {
	case PipelineRejected:
		eventType = AuditTradeRejected
	case PipelineFailed:
		eventType = AuditPipelineFailed
	}

	var durationMS int64
	if execution.EndTime != nil {
		durationMS = execution.EndTime.Sub(execution.StartTime).Milliseconds()
	}

	details := map[string]interface{}{
		"netting_set": execution.NettingSet,
		"agent_count": len(execution.Agents),
	}
	for _, agent := range execution.Agents {
		if agent.Status == AgentFailed {
			details["failed_agent"] = agent.Name
		}
	}

	entry := &AuditEntry{
		ID:           generateAuditID(),
		ExecutionID:  execution.ID,
		Timestamp:    time.Now().UTC(),
		TradeID:      execution.TradeID,
		UTI:          execution.UTI,
		EventType:    eventType,
		Outcome:      execution.Status,
		Details:      details,
		DurationMS:   durationMS,
		ErrorMessage: execution.Error,
	}

	l.enqueueEntry(entry)
	return entry
}

// LogRegulatoryReports records one entry per generated report so the trail
// can answer "what was reported to which regime for this trade".
func (l *AuditLogger) LogRegulatoryReports(executionID, tradeID, uti string, result *regulatory.ReportingResult) {
	if result == nil {
		return
	}

	validByRegime := make(map[regulatory.Regime]bool, len(result.Validations))
	for _, v := range result.Validations {
		validByRegime[v.Regime] = v.Valid
	}

	for _, report := range result.Reports {
		outcome := "validated"
		if !validByRegime[report.Regime] {
			outcome = "rejected"
		}
		l.enqueueEntry(&AuditEntry{
			ID:          generateAuditID(),
			ExecutionID: executionID,
			Timestamp:   time.Now().UTC(),
			TradeID:     tradeID,
			UTI:         uti,
			EventType:   AuditReportGenerated,
			Agent:       AgentRegulatory,
			Regime:      string(report.Regime),
			Outcome:     outcome,
			Details: map[string]interface{}{
				"report_id": report.ReportID,
				"source":    string(result.Source),
			},
		})
	}
}

// LogMarginCall records an issued margin call.
func (l *AuditLogger) LogMarginCall(executionID, tradeID string, call *MarginCall) {
	if call == nil {
		return
	}
	l.enqueueEntry(&AuditEntry{
		ID:          generateAuditID(),
		ExecutionID: executionID,
		Timestamp:   time.Now().UTC(),
		TradeID:     tradeID,
		EventType:   AuditMarginCall,
		Agent:       AgentMargin,
		Outcome:     "issued",
		Details: map[string]interface{}{
			"call_id":      call.CallID,
			"counterparty": call.Counterparty,
			"netting_set":  call.PortfolioID,
			"amount":       call.Amount,
			"currency":     call.Currency,
		},
	})
}

// SearchAuditLogs returns entries for a trade, newest first.
func (l *AuditLogger) SearchAuditLogs(tradeID string, limit int) ([]*AuditEntry, error) {
	if l.db == nil {
		return []*AuditEntry{}, nil
	}
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, execution_id, timestamp, trade_id, uti, event_type,
			   agent, regime, outcome, details, duration_ms, error_message
		FROM trade_audit_logs
		WHERE trade_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`

	rows, err := l.db.Query(query, tradeID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []*AuditEntry
	for rows.Next() {
		entry := &AuditEntry{}
		var detailsJSON []byte
		err := rows.Scan(
			&entry.ID,
			&entry.ExecutionID,
			&entry.Timestamp,
			&entry.TradeID,
			&entry.UTI,
			&entry.EventType,
			&entry.Agent,
			&entry.Regime,
			&entry.Outcome,
			&detailsJSON,
			&entry.DurationMS,
			&entry.ErrorMessage,
		)
		if err != nil {
			log.Printf("[AuditLogger] Error scanning audit log: %v", err)
			continue
		}
		_ = json.Unmarshal(detailsJSON, &entry.Details)
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// IsHealthy checks if the audit logger can reach its database. A no-op
// logger is always healthy.
func (l *AuditLogger) IsHealthy() bool {
	if l.db == nil {
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	return l.db.PingContext(ctx) == nil
}

// Shutdown flushes pending entries and stops the background worker.
func (l *AuditLogger) Shutdown() {
	l.shutdownOnce.Do(func() {
		close(l.shutdownChan)
	})
	l.wg.Wait()
	if l.batchWriter != nil {
		l.batchWriter.Stop()
	}
}

func (l *AuditLogger) enqueueEntry(entry *AuditEntry) {
	select {
	case l.auditQueue <- entry:
	default:
		// Queue is full, write directly
		log.Printf("[AuditLogger] Audit queue full, writing directly")
		if l.batchWriter != nil {
			_ = l.batchWriter.Write([]*AuditEntry{entry})
		}
	}
}

func (l *AuditLogger) processAuditQueue() {
	defer l.wg.Done()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case entry := <-l.auditQueue:
			if l.batchWriter != nil {
				l.batchWriter.Add(entry)
			}
		case <-ticker.C:
			if l.batchWriter != nil {
				l.batchWriter.Flush()
			}
		case <-l.shutdownChan:
			// Drain whatever is queued, then flush
			for {
				select {
				case entry := <-l.auditQueue:
					if l.batchWriter != nil {
						l.batchWriter.Add(entry)
					}
					continue
				default:
				}
				break
			}
			if l.batchWriter != nil {
				l.batchWriter.Flush()
			}
			return
		}
	}
}

func generateAuditID() string {
	return fmt.Sprintf("audit_%d_%s", time.Now().Unix(), uuid.NewString()[:8])
}

// BatchWriter implementation

func NewBatchWriter(db *sql.DB, batchSize int) *BatchWriter {
	writer := &BatchWriter{
		db:          db,
		batchSize:   batchSize,
		entries:     make([]*AuditEntry, 0, batchSize),
		flushTicker: time.NewTicker(10 * time.Second),
		stop:        make(chan struct{}),
	}

	go writer.periodicFlush()

	return writer
}

// Stop halts the periodic flush goroutine. Safe to call more than once.
func (b *BatchWriter) Stop() {
	b.stopOnce.Do(func() {
		b.flushTicker.Stop()
		if b.stop != nil {
			close(b.stop)
		}
	})
}

func (b *BatchWriter) Add(entry *AuditEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries = append(b.entries, entry)

	if len(b.entries) >= b.batchSize {
		b.flush()
	}
}

func (b *BatchWriter) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flush()
}

func (b *BatchWriter) flush() {
	if len(b.entries) == 0 {
		return
	}

	if err := b.Write(b.entries); err != nil {
		log.Printf("[AuditLogger] Failed to write audit batch: %v", err)
	}

	b.entries = b.entries[:0]
}

func (b *BatchWriter) Write(entries []*AuditEntry) error {
	if b.db == nil {
		return nil
	}

	tx, err := b.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO trade_audit_logs (
			id, execution_id, timestamp, trade_id, uti, event_type,
			agent, regime, outcome, details, duration_ms, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, entry := range entries {
		detailsJSON, _ := json.Marshal(entry.Details)

		_, err = stmt.Exec(
			entry.ID,
			entry.ExecutionID,
			entry.Timestamp,
			entry.TradeID,
			entry.UTI,
			entry.EventType,
			entry.Agent,
			entry.Regime,
			entry.Outcome,
			detailsJSON,
			entry.DurationMS,
			entry.ErrorMessage,
		)
		if err != nil {
			log.Printf("[AuditLogger] Failed to insert audit entry: %v", err)
		}
	}

	return tx.Commit()
}

func (b *BatchWriter) periodicFlush() {
	for {
		select {
		case <-b.flushTicker.C:
			b.Flush()
		case <-b.stop:
			return
		}
	}
}

// createAuditTables creates the audit tables if they don't exist.
func createAuditTables(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS trade_audit_logs (
		id VARCHAR(255) PRIMARY KEY,
		execution_id VARCHAR(255) NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		trade_id VARCHAR(255) NOT NULL,
		uti VARCHAR(255),
		event_type VARCHAR(50) NOT NULL,
		agent VARCHAR(50),
		regime VARCHAR(50),
		outcome VARCHAR(50) NOT NULL,
		details JSONB,
		duration_ms BIGINT,
		error_message TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_trade_audit_logs_timestamp ON trade_audit_logs(timestamp);
	CREATE INDEX IF NOT EXISTS idx_trade_audit_logs_trade_id ON trade_audit_logs(trade_id);
	CREATE INDEX IF NOT EXISTS idx_trade_audit_logs_execution_id ON trade_audit_logs(execution_id);
	CREATE INDEX IF NOT EXISTS idx_trade_audit_logs_event_type ON trade_audit_logs(event_type);
	`

	_, err := db.Exec(query)
	return err
}
