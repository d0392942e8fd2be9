// Copyright 2025 TradeFlow
// SPDX-License-Identifier: Apache-2.0

// Package llm provides a unified interface and types for LLM (Large Language Model)
// providers. This package defines the common abstractions used by the regulatory
// agent's tool-calling integration, enabling pluggable provider implementations.
package llm

import (
	"time"
)

// ProviderType identifies the type of LLM provider.
// Standard types are defined as constants, but custom types can be used
// for third-party or self-hosted providers.
type ProviderType string

// Standard provider types supported out of the box.
const (
	// ProviderTypeGemini represents Google's Gemini models.
	ProviderTypeGemini ProviderType = "gemini"

	// ProviderTypeCustom represents a custom/third-party provider.
	ProviderTypeCustom ProviderType = "custom"
)

// ToolDeclaration describes a function the model may call.
// Parameters follows the JSON Schema object convention used by the
// Gemini function-calling API.
type ToolDeclaration struct {
	// Name is the function identifier the model uses to request an invocation.
	Name string `json:"name"`

	// Description tells the model when the function is appropriate.
	Description string `json:"description"`

	// Parameters is a JSON Schema object describing the function arguments.
	Parameters map[string]any `json:"parameters"`
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	// Name is the declared function name.
	Name string `json:"name"`

	// Args holds the arguments the model supplied.
	Args map[string]any `json:"args"`
}

// CompletionRequest encapsulates all parameters for an LLM completion request.
// This is the unified request type used across all providers.
type CompletionRequest struct {
	// Prompt is the user's input text/question.
	Prompt string `json:"prompt"`

	// SystemPrompt is an optional system message that sets context/behavior.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// MaxTokens limits the maximum number of tokens in the response.
	// If 0, provider defaults are used.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64 `json:"temperature,omitempty"`

	// TopP is nucleus sampling parameter (alternative to temperature).
	TopP float64 `json:"top_p,omitempty"`

	// TopK limits sampling to top K tokens.
	TopK int `json:"top_k,omitempty"`

	// Model overrides the provider's default model.
	Model string `json:"model,omitempty"`

	// StopSequences are strings that cause generation to stop.
	StopSequences []string `json:"stop_sequences,omitempty"`

	// Tools declares functions the model may call. Providers without
	// tool support ignore this field.
	Tools []ToolDeclaration `json:"tools,omitempty"`

	// Metadata contains provider-specific options.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// CompletionResponse contains the result of an LLM completion.
type CompletionResponse struct {
	// Content is the generated text response.
	Content string `json:"content"`

	// ToolCalls lists function invocations the model requested, in order.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// Model is the actual model used (may differ from requested).
	Model string `json:"model"`

	// Usage contains token usage statistics.
	Usage UsageStats `json:"usage"`

	// Latency is the time taken to generate the response.
	Latency time.Duration `json:"latency"`

	// FinishReason indicates why generation stopped.
	// Common values: "stop", "max_tokens", "content_filter", "tool_use".
	FinishReason string `json:"finish_reason,omitempty"`
}

// UsageStats tracks token usage for billing and monitoring.
type UsageStats struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// HealthStatus represents the health state of a provider.
type HealthStatus string

const (
	// HealthStatusHealthy indicates the provider is operational.
	HealthStatusHealthy HealthStatus = "healthy"

	// HealthStatusUnhealthy indicates the provider is not operational.
	HealthStatusUnhealthy HealthStatus = "unhealthy"

	// HealthStatusUnknown indicates health status hasn't been checked.
	HealthStatusUnknown HealthStatus = "unknown"
)

// HealthCheckResult contains detailed health check information.
type HealthCheckResult struct {
	// Status is the overall health status.
	Status HealthStatus `json:"status"`

	// Latency is the time taken for the health check.
	Latency time.Duration `json:"latency"`

	// Message provides additional context about the status.
	Message string `json:"message,omitempty"`

	// LastChecked is when the health check was performed.
	LastChecked time.Time `json:"last_checked"`

	// ConsecutiveFailures tracks recent failures for failover logic.
	ConsecutiveFailures int `json:"consecutive_failures,omitempty"`
}

// Capability represents a specific feature supported by a provider.
type Capability string

// Standard capabilities that providers may support.
const (
	// CapabilityCompletion indicates support for text completion.
	CapabilityCompletion Capability = "completion"

	// CapabilityToolUse indicates support for function calling.
	CapabilityToolUse Capability = "tool_use"

	// CapabilityStreaming indicates support for streaming responses.
	CapabilityStreaming Capability = "streaming"
)
