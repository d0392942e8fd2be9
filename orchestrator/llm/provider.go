// Copyright 2025 TradeFlow
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
)

// Provider is the unified interface for all LLM providers.
// Implementations must be safe for concurrent use.
//
// Minimal implementation requires: Name(), Type(), Complete(), and HealthCheck().
type Provider interface {
	// Name returns the unique identifier for this provider instance.
	// This is used for routing, logging, and metrics.
	// Example: "gemini-primary", "gemini-backup"
	Name() string

	// Type returns the provider type (e.g., "gemini").
	// This identifies the underlying implementation.
	Type() ProviderType

	// Complete generates a completion for the given request.
	// The context should be used for cancellation and timeout.
	// When req.Tools is non-empty and the provider supports tool use,
	// the response may carry ToolCalls instead of (or alongside) Content.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// HealthCheck verifies the provider is operational.
	// Implementations should check API connectivity and authentication
	// and complete within a reasonable timeout.
	HealthCheck(ctx context.Context) (*HealthCheckResult, error)

	// Capabilities returns the list of features this provider supports.
	// Used by the router to determine if a provider can handle a request.
	Capabilities() []Capability
}

// SupportsToolUse reports whether the provider declares the tool_use capability.
func SupportsToolUse(p Provider) bool {
	for _, c := range p.Capabilities() {
		if c == CapabilityToolUse {
			return true
		}
	}
	return false
}
