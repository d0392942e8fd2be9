// Copyright 2025 TradeFlow
// SPDX-License-Identifier: Apache-2.0

package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"

	"tradeflow/platform/orchestrator/llm"
)

// mockHTTPClient captures the outgoing request and returns a canned response.
type mockHTTPClient struct {
	response *http.Response
	err      error
	lastReq  *http.Request
	lastBody []byte
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	m.lastReq = req
	if req.Body != nil {
		m.lastBody, _ = io.ReadAll(req.Body)
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func newTestProvider(t *testing.T, client HTTPClient) *Provider {
	t.Helper()
	p, err := NewProvider(Config{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	p.SetHTTPClient(client)
	return p
}

func TestNewProviderValidation(t *testing.T) {
	if _, err := NewProvider(Config{}); err == nil {
		t.Fatal("Expected error for missing API key")
	}

	p, err := NewProvider(Config{APIKey: "key"})
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	if p.Name() != "gemini" {
		t.Errorf("Expected default name 'gemini', got %q", p.Name())
	}
	if p.model != DefaultModel {
		t.Errorf("Expected default model %s, got %s", DefaultModel, p.model)
	}
	if p.Type() != llm.ProviderTypeGemini {
		t.Errorf("Expected provider type gemini, got %s", p.Type())
	}
}

func TestCompleteTextResponse(t *testing.T) {
	client := &mockHTTPClient{
		response: jsonResponse(http.StatusOK, `{
			"candidates": [{
				"content": {"parts": [{"text": "EU trades report under EMIR."}], "role": "model"},
				"finishReason": "STOP"
			}],
			"usageMetadata": {"promptTokenCount": 10, "candidatesTokenCount": 8, "totalTokenCount": 18}
		}`),
	}
	p := newTestProvider(t, client)

	resp, err := p.Complete(context.Background(), llm.CompletionRequest{Prompt: "which regimes apply?"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Content != "EU trades report under EMIR." {
		t.Errorf("Unexpected content: %q", resp.Content)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("Expected finish reason 'stop', got %q", resp.FinishReason)
	}
	if resp.Usage.TotalTokens != 18 {
		t.Errorf("Expected 18 total tokens, got %d", resp.Usage.TotalTokens)
	}
}

func TestCompleteToolCall(t *testing.T) {
	client := &mockHTTPClient{
		response: jsonResponse(http.StatusOK, `{
			"candidates": [{
				"content": {
					"parts": [{
						"functionCall": {
							"name": "check_jurisdiction",
							"args": {"buyer_jurisdiction": "US", "seller_jurisdiction": "EU"}
						}
					}],
					"role": "model"
				},
				"finishReason": "STOP"
			}]
		}`),
	}
	p := newTestProvider(t, client)

	resp, err := p.Complete(context.Background(), llm.CompletionRequest{
		Prompt: "determine regimes",
		Tools: []llm.ToolDeclaration{
			{
				Name:        "check_jurisdiction",
				Description: "Determine applicable reporting regimes",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"buyer_jurisdiction":  map[string]any{"type": "string"},
						"seller_jurisdiction": map[string]any{"type": "string"},
					},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if len(resp.ToolCalls) != 1 {
		t.Fatalf("Expected 1 tool call, got %d", len(resp.ToolCalls))
	}
	call := resp.ToolCalls[0]
	if call.Name != "check_jurisdiction" {
		t.Errorf("Expected tool 'check_jurisdiction', got %q", call.Name)
	}
	if call.Args["buyer_jurisdiction"] != "US" {
		t.Errorf("Expected buyer_jurisdiction 'US', got %v", call.Args["buyer_jurisdiction"])
	}
	if resp.FinishReason != "tool_use" {
		t.Errorf("Expected finish reason 'tool_use', got %q", resp.FinishReason)
	}

	// The request body must carry the function declarations.
	var sent map[string]any
	if err := json.Unmarshal(client.lastBody, &sent); err != nil {
		t.Fatalf("request body is not valid JSON: %v", err)
	}
	tools, ok := sent["tools"].([]any)
	if !ok || len(tools) != 1 {
		t.Fatalf("Expected tools array in request body, got %v", sent["tools"])
	}
	wrapper := tools[0].(map[string]any)
	if _, ok := wrapper["functionDeclarations"]; !ok {
		t.Error("Expected functionDeclarations in tools wrapper")
	}
}

func TestCompleteAPIError(t *testing.T) {
	client := &mockHTTPClient{
		response: jsonResponse(http.StatusTooManyRequests, `{
			"error": {"code": 429, "message": "Quota exceeded", "status": "RESOURCE_EXHAUSTED"}
		}`),
	}
	p := newTestProvider(t, client)

	_, err := p.Complete(context.Background(), llm.CompletionRequest{Prompt: "hello"})
	if err == nil {
		t.Fatal("Expected error for 429 response")
	}

	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("Expected *APIError, got %T", err)
	}
	if !apiErr.IsRateLimitError() {
		t.Error("Expected rate limit error")
	}
	if apiErr.IsAuthError() {
		t.Error("429 should not be an auth error")
	}
}

func TestCompleteNetworkError(t *testing.T) {
	client := &mockHTTPClient{err: fmt.Errorf("connection refused")}
	p := newTestProvider(t, client)

	_, err := p.Complete(context.Background(), llm.CompletionRequest{Prompt: "hello"})
	if err == nil {
		t.Fatal("Expected error for network failure")
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name     string
		client   *mockHTTPClient
		expected llm.HealthStatus
	}{
		{
			name: "healthy",
			client: &mockHTTPClient{
				response: jsonResponse(http.StatusOK, `{
					"candidates": [{"content": {"parts": [{"text": "pong"}]}, "finishReason": "STOP"}]
				}`),
			},
			expected: llm.HealthStatusHealthy,
		},
		{
			name:     "unhealthy",
			client:   &mockHTTPClient{err: fmt.Errorf("connection refused")},
			expected: llm.HealthStatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, tt.client)
			result, err := p.HealthCheck(context.Background())
			if err != nil {
				t.Fatalf("HealthCheck returned error: %v", err)
			}
			if result.Status != tt.expected {
				t.Errorf("Expected status %s, got %s", tt.expected, result.Status)
			}
		})
	}
}

func TestMapFinishReason(t *testing.T) {
	tests := []struct {
		in  string
		out string
	}{
		{"STOP", "stop"},
		{"MAX_TOKENS", "max_tokens"},
		{"SAFETY", "content_filter"},
		{"RECITATION", "content_filter"},
		{"OTHER", "other"},
		{"", "unknown"},
		{"WEIRD", "WEIRD"},
	}
	for _, tt := range tests {
		if got := mapFinishReason(tt.in); got != tt.out {
			t.Errorf("mapFinishReason(%q) = %q, want %q", tt.in, got, tt.out)
		}
	}
}

func TestIsValidModel(t *testing.T) {
	if !IsValidModel(ModelGemini2Flash) {
		t.Error("gemini-2.0-flash should be valid")
	}
	if !IsValidModel("gemini-3.0-experimental") {
		t.Error("gemini-prefixed models should be valid")
	}
	if IsValidModel("gpt-4") {
		t.Error("non-gemini model should be invalid")
	}
}
