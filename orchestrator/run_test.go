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
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
)

// setupTestComponents wires the package-level service components the
// handlers use, mirroring initializeComponents without external services.
func setupTestComponents(t *testing.T) {
	t.Helper()

	var err error
	platformConfig, err = LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	metricsCollector = NewMetricsCollector()
	auditLogger = NewAuditLogger("")
	wsHub = NewWSHub()
	go wsHub.Run()
	authenticator = NewAuthenticator("", time.Hour)
	pipelineEngine = NewPipelineEngine(NewInMemoryExecutionStore(), nil,
		WithAuditLogger(auditLogger),
		WithMetricsCollector(metricsCollector),
	)
}

func executeBody(t *testing.T) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(ExecuteRequest{Trade: testTrade()})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	return bytes.NewBuffer(body)
}

func TestExecutePipelineHandler(t *testing.T) {
	setupTestComponents(t)

	req := httptest.NewRequest("POST", "/api/v1/pipeline/execute", executeBody(t))
	rec := httptest.NewRecorder()
	executePipelineHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, body: %s", rec.Code, rec.Body.String())
	}

	var resp ExecuteResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !resp.Success || resp.Execution == nil {
		t.Fatalf("Response = %+v", resp)
	}
	if resp.Execution.Status != PipelineCompleted {
		t.Errorf("Execution status = %s", resp.Execution.Status)
	}
	if len(resp.Execution.Agents) != 7 {
		t.Errorf("Agents = %d, want 7", len(resp.Execution.Agents))
	}
}

func TestExecutePipelineHandlerRejectedTrade(t *testing.T) {
	setupTestComponents(t)

	trade := testTrade()
	trade.Notional = 6_000_000_000
	body, _ := json.Marshal(ExecuteRequest{Trade: trade})

	req := httptest.NewRequest("POST", "/api/v1/pipeline/execute", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()
	executePipelineHandler(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Status = %d, want 422", rec.Code)
	}

	var resp ExecuteResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if resp.Success || resp.Error == "" {
		t.Errorf("Response = %+v", resp)
	}
}

func TestExecutePipelineHandlerValidation(t *testing.T) {
	setupTestComponents(t)

	tests := []struct {
		name   string
		mutate func(*ExecuteRequest)
	}{
		{"missing trade id", func(r *ExecuteRequest) { r.Trade.ID = "" }},
		{"missing product type", func(r *ExecuteRequest) { r.Trade.ProductType = "" }},
		{"missing counterparty", func(r *ExecuteRequest) { r.Trade.Seller.ID = "" }},
		{"zero notional", func(r *ExecuteRequest) { r.Trade.Notional = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			execReq := ExecuteRequest{Trade: testTrade()}
			tt.mutate(&execReq)
			body, _ := json.Marshal(execReq)

			rec := httptest.NewRecorder()
			executePipelineHandler(rec, httptest.NewRequest("POST", "/api/v1/pipeline/execute", bytes.NewBuffer(body)))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestExecutePipelineHandlerBadBody(t *testing.T) {
	setupTestComponents(t)

	rec := httptest.NewRecorder()
	executePipelineHandler(rec, httptest.NewRequest("POST", "/api/v1/pipeline/execute", bytes.NewBufferString("{not json")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400", rec.Code)
	}
}

func TestGetExecutionHandler(t *testing.T) {
	setupTestComponents(t)

	// Seed one execution through the engine.
	rec := httptest.NewRecorder()
	executePipelineHandler(rec, httptest.NewRequest("POST", "/api/v1/pipeline/execute", executeBody(t)))
	var resp ExecuteResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	req := mux.SetURLVars(
		httptest.NewRequest("GET", "/api/v1/pipeline/executions/"+resp.Execution.ID, nil),
		map[string]string{"id": resp.Execution.ID},
	)
	rec = httptest.NewRecorder()
	getExecutionHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d", rec.Code)
	}
	var execution PipelineExecution
	if err := json.Unmarshal(rec.Body.Bytes(), &execution); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if execution.ID != resp.Execution.ID {
		t.Errorf("ID = %s", execution.ID)
	}
}

func TestGetExecutionHandlerNotFound(t *testing.T) {
	setupTestComponents(t)

	req := mux.SetURLVars(
		httptest.NewRequest("GET", "/api/v1/pipeline/executions/nope", nil),
		map[string]string{"id": "nope"},
	)
	rec := httptest.NewRecorder()
	getExecutionHandler(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", rec.Code)
	}
}

func TestListExecutionsHandler(t *testing.T) {
	setupTestComponents(t)

	rec := httptest.NewRecorder()
	executePipelineHandler(rec, httptest.NewRequest("POST", "/api/v1/pipeline/execute", executeBody(t)))

	rec = httptest.NewRecorder()
	listExecutionsHandler(rec, httptest.NewRequest("GET", "/api/v1/pipeline/executions", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d", rec.Code)
	}

	var listing struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if listing.Count != 1 {
		t.Errorf("Count = %d, want 1", listing.Count)
	}
}

func TestHealthHandler(t *testing.T) {
	setupTestComponents(t)

	rec := httptest.NewRecorder()
	healthHandler(rec, httptest.NewRequest("GET", "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d", rec.Code)
	}

	var health map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if health["status"] != "healthy" || health["service"] != "tradeflow-orchestrator" {
		t.Errorf("Health = %v", health)
	}
}

func TestMetricsHandler(t *testing.T) {
	setupTestComponents(t)

	rec := httptest.NewRecorder()
	executePipelineHandler(rec, httptest.NewRequest("POST", "/api/v1/pipeline/execute", executeBody(t)))

	rec = httptest.NewRecorder()
	metricsHandler(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d", rec.Code)
	}

	var metrics PipelineMetrics
	if err := json.Unmarshal(rec.Body.Bytes(), &metrics); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if metrics.PipelineCounts[PipelineCompleted] != 1 {
		t.Errorf("PipelineCounts = %v", metrics.PipelineCounts)
	}
}
