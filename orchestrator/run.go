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
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"tradeflow/platform/orchestrator/llm"
	"tradeflow/platform/orchestrator/llm/gemini"
	"tradeflow/platform/orchestrator/regulatory"
	"tradeflow/platform/shared/types"
)

// TradeFlow Orchestrator - post-trade pipeline with LLM-driven regulatory
// reporting. One POST runs a trade through booking, enrichment, and the
// parallel downstream agents.

// Service components, wired by initializeComponents.
var (
	platformConfig   *ConfigFile
	pipelineEngine   *PipelineEngine
	auditLogger      *AuditLogger
	metricsCollector *MetricsCollector
	wsHub            *WSHub
	authenticator    *Authenticator
)

// ExecuteRequest is the body of POST /api/v1/pipeline/execute.
type ExecuteRequest struct {
	RequestID string      `json:"request_id,omitempty"`
	Trade     types.Trade `json:"trade"`
}

// ExecuteResponse wraps a pipeline execution for the API.
type ExecuteResponse struct {
	RequestID      string             `json:"request_id"`
	Success        bool               `json:"success"`
	Execution      *PipelineExecution `json:"execution,omitempty"`
	Error          string             `json:"error,omitempty"`
	ProcessingTime string             `json:"processing_time"`
}

// Run is the exported entry point for the orchestrator service.
//
// It initializes all components (stores, LLM provider, audit trail),
// sets up HTTP routes, and starts the server. The function blocks until
// the server is shut down.
//
// Environment variables used:
//   - PORT: HTTP server port (default: 8081)
//   - CONFIG_FILE: platform config YAML path (optional)
//   - REDIS_URL: shared execution store (optional, in-memory fallback)
//   - DATABASE_URL: PostgreSQL audit trail (optional, no-op fallback)
//   - GEMINI_API_KEY: enables the LLM reporting path (optional)
//   - JWT_SECRET: enables bearer-token auth (optional)
func Run() {
	log.Println("Starting TradeFlow Orchestrator...")

	initializeComponents()
	defer auditLogger.Shutdown()

	r := mux.NewRouter()

	// CORS middleware
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // Configure for production
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	// Health check
	r.HandleFunc("/health", healthHandler).Methods("GET")

	// Metrics endpoints
	r.HandleFunc("/metrics", metricsHandler).Methods("GET")           // JSON metrics
	r.Handle("/prometheus", promhttp.Handler()).Methods("GET")        // Prometheus native format

	// Pipeline endpoints
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(mux.MiddlewareFunc(authenticator.Middleware))
	api.HandleFunc("/pipeline/execute", executePipelineHandler).Methods("POST")
	api.HandleFunc("/pipeline/executions/{id}", getExecutionHandler).Methods("GET")
	api.HandleFunc("/pipeline/executions", listExecutionsHandler).Methods("GET")
	api.HandleFunc("/audit/trades/{trade_id}", tradeAuditLogsHandler).Methods("GET")

	// Progress streaming (token auth happens over the subscribe message in
	// production deployments; the stream carries no trade economics).
	r.HandleFunc("/api/v1/pipeline/stream", wsHub.handleStream)

	port := fmt.Sprintf("%d", platformConfig.Spec.Server.Port)
	if env := getEnv("PORT", ""); env != "" {
		port = env
	}

	server := &http.Server{
		Addr:        ":" + port,
		Handler:     c.Handler(r),
		ReadTimeout: time.Duration(platformConfig.Spec.Server.ReadTimeoutSec) * time.Second,
		IdleTimeout: time.Duration(platformConfig.Spec.Server.IdleTimeoutSec) * time.Second,
	}

	log.Printf("TradeFlow Orchestrator listening on port %s", port)
	log.Fatal(server.ListenAndServe())
}

func initializeComponents() {
	var err error
	platformConfig, err = LoadConfig(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Execution store: Redis when configured, in-memory otherwise.
	var store ExecutionStore
	if redisURL := platformConfig.Spec.Storage.RedisURL; redisURL != "" {
		redisStore, err := NewRedisExecutionStore(redisURL)
		if err != nil {
			log.Printf("Warning: Redis execution store unavailable: %v", err)
			log.Println("Falling back to in-memory execution store")
			store = NewInMemoryExecutionStore()
		} else {
			store = redisStore
			log.Println("Redis execution store connected")
		}
	} else {
		store = NewInMemoryExecutionStore()
		log.Println("Using in-memory execution store (REDIS_URL not set)")
	}

	// Audit trail: Postgres when configured, no-op otherwise.
	auditLogger = NewAuditLogger(platformConfig.Spec.Storage.DatabaseURL)
	if platformConfig.Spec.Storage.DatabaseURL == "" {
		log.Println("Audit trail disabled (DATABASE_URL not set)")
	} else {
		log.Println("Audit Logger initialized")
	}

	metricsCollector = NewMetricsCollector()
	log.Println("Metrics Collector initialized")

	wsHub = NewWSHub()
	go wsHub.Run()
	log.Println("WebSocket hub started")

	authenticator = NewAuthenticator(platformConfig.Spec.Auth.JWTSecret,
		time.Duration(platformConfig.Spec.Auth.TokenTTLHours)*time.Hour)
	if authenticator.Enabled() {
		log.Println("Bearer-token authentication enabled")
	} else {
		log.Println("Authentication disabled (JWT_SECRET not set)")
	}

	// Regulatory agent: LLM-driven when a key is configured, rule-based
	// fallback otherwise.
	regAgent := regulatory.NewAgent(buildLLMProvider(), nil)

	pipelineEngine = NewPipelineEngine(store, regAgent,
		WithProgressPublisher(wsHub),
		WithAuditLogger(auditLogger),
		WithMetricsCollector(metricsCollector),
	)
	log.Println("Pipeline Engine initialized")
}

// buildLLMProvider returns a failover router over the configured
// providers, or nil for the rule-based path.
func buildLLMProvider() llm.Provider {
	if !platformConfig.LLMEnabled() {
		log.Println("Regulatory agent running rule-based (GEMINI_API_KEY not set)")
		return nil
	}

	model := platformConfig.Spec.LLM.Model
	if model == "" {
		model = gemini.DefaultModel
	}
	provider, err := gemini.NewProvider(gemini.Config{
		APIKey:  platformConfig.Spec.LLM.APIKey,
		BaseURL: platformConfig.Spec.LLM.BaseURL,
		Model:   model,
		Timeout: time.Duration(platformConfig.Spec.LLM.TimeoutSec) * time.Second,
	})
	if err != nil {
		log.Printf("Warning: Gemini provider unavailable: %v (running rule-based)", err)
		return nil
	}

	router := llm.NewRouter()
	router.Register(provider)
	log.Printf("Regulatory agent using Gemini model %s via LLM router", model)
	return router
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	components := map[string]bool{
		"pipeline_engine": pipelineEngine != nil,
		"audit_logger":    auditLogger.IsHealthy(),
		"websocket_hub":   wsHub != nil,
	}

	status := "healthy"
	for _, ok := range components {
		if !ok {
			status = "degraded"
			break
		}
	}

	health := map[string]interface{}{
		"status":     status,
		"service":    "tradeflow-orchestrator",
		"version":    "1.0.0",
		"timestamp":  time.Now().UTC(),
		"components": components,
		"features": map[string]bool{
			"llm_reporting": platformConfig.LLMEnabled(),
			"auth":          authenticator.Enabled(),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(health); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func executePipelineHandler(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.RequestID == "" {
		req.RequestID = generateRequestID()
	}

	if err := validateTradeRequest(req.Trade); err != nil {
		sendErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), platformConfig.Spec.Pipeline.ExecutionTimeout())
	defer cancel()

	execution, err := pipelineEngine.ExecutePipeline(ctx, req.Trade)
	if err != nil {
		sendErrorResponse(w, "Pipeline execution failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	response := ExecuteResponse{
		RequestID:      req.RequestID,
		Success:        execution.Status == PipelineCompleted,
		Execution:      execution,
		ProcessingTime: time.Since(startTime).String(),
	}
	if execution.Status != PipelineCompleted {
		response.Error = execution.Error
	}

	w.Header().Set("Content-Type", "application/json")
	if execution.Status == PipelineRejected {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// validateTradeRequest checks the fields nothing downstream can default.
func validateTradeRequest(trade types.Trade) error {
	if trade.ID == "" {
		return fmt.Errorf("trade.id is required")
	}
	if trade.ProductType == "" {
		return fmt.Errorf("trade.product_type is required")
	}
	if trade.Buyer.ID == "" || trade.Seller.ID == "" {
		return fmt.Errorf("trade.buyer and trade.seller are required")
	}
	if trade.Notional <= 0 {
		return fmt.Errorf("trade.notional must be positive")
	}
	return nil
}

func getExecutionHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	execution, err := pipelineEngine.Storage().GetExecution(vars["id"])
	if err != nil {
		sendErrorResponse(w, err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(execution); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func listExecutionsHandler(w http.ResponseWriter, r *http.Request) {
	executions, err := pipelineEngine.Storage().ListExecutions()
	if err != nil {
		sendErrorResponse(w, "Failed to list executions: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"executions": executions,
		"count":      len(executions),
	}); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func tradeAuditLogsHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	tradeID := vars["trade_id"]
	if tradeID == "" {
		sendErrorResponse(w, "Trade ID is required", http.StatusBadRequest)
		return
	}

	entries, err := auditLogger.SearchAuditLogs(tradeID, 100)
	if err != nil {
		sendErrorResponse(w, "Audit search failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(entries); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func metricsHandler(w http.ResponseWriter, r *http.Request) {
	metrics := metricsCollector.GetMetrics()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(metrics); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func sendErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   message,
	}); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func generateRequestID() string {
	return "req_" + uuid.NewString()
}
