// Copyright 2025 TradeFlow
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Router routes completion requests across registered providers with
// failover. Providers are tried in registration order; a provider that
// fails repeatedly is skipped until a health check clears it.
//
// Router itself implements Provider, so it can stand in anywhere a single
// provider is expected.
type Router struct {
	mu        sync.RWMutex
	order     []string
	providers map[string]Provider
	metrics   map[string]*RouteMetrics
	logger    *log.Logger

	// maxConsecutiveFailures is the failure count at which a provider is
	// skipped during routing until a successful health check.
	maxConsecutiveFailures int
}

// RouteInfo describes which provider served a request.
type RouteInfo struct {
	Provider       string        `json:"provider"`
	Model          string        `json:"model"`
	TokensUsed     int           `json:"tokens_used"`
	ResponseTimeMs int64         `json:"response_time_ms"`
	Failovers      int           `json:"failovers"`
	Latency        time.Duration `json:"-"`
}

// RouteMetrics tracks per-provider request outcomes.
type RouteMetrics struct {
	RequestCount        int64         `json:"request_count"`
	ErrorCount          int64         `json:"error_count"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	TotalLatency        time.Duration `json:"-"`
	LastUsed            time.Time     `json:"last_used"`
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithRouterLogger sets a custom logger for the router.
func WithRouterLogger(l *log.Logger) RouterOption {
	return func(r *Router) {
		r.logger = l
	}
}

// WithMaxConsecutiveFailures overrides the failover threshold.
func WithMaxConsecutiveFailures(n int) RouterOption {
	return func(r *Router) {
		if n > 0 {
			r.maxConsecutiveFailures = n
		}
	}
}

// NewRouter creates a router with no providers registered.
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{
		providers:              make(map[string]Provider),
		metrics:                make(map[string]*RouteMetrics),
		logger:                 log.Default(),
		maxConsecutiveFailures: 3,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a provider to the failover order. Registering a name twice
// replaces the provider but keeps its position and metrics.
func (r *Router) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if _, exists := r.providers[name]; !exists {
		r.order = append(r.order, name)
		r.metrics[name] = &RouteMetrics{}
	}
	r.providers[name] = p
}

// Providers returns the registered provider names in failover order.
func (r *Router) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// IsHealthy reports whether at least one provider is registered and below
// the failover threshold.
func (r *Router) IsHealthy() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range r.order {
		if r.metrics[name].ConsecutiveFailures < r.maxConsecutiveFailures {
			return true
		}
	}
	return false
}

// RouteRequest sends the request to the first available provider, failing
// over in order when a provider errors. Providers above the consecutive
// failure threshold are skipped.
func (r *Router) RouteRequest(ctx context.Context, req CompletionRequest) (*CompletionResponse, *RouteInfo, error) {
	r.mu.RLock()
	order := make([]string, len(r.order))
	copy(order, r.order)
	r.mu.RUnlock()

	if len(order) == 0 {
		return nil, nil, fmt.Errorf("no LLM providers registered")
	}

	var lastErr error
	failovers := 0

	for _, name := range order {
		r.mu.RLock()
		provider := r.providers[name]
		skipped := r.metrics[name].ConsecutiveFailures >= r.maxConsecutiveFailures
		r.mu.RUnlock()

		if skipped {
			r.logger.Printf("[LLMRouter] Skipping provider %s (consecutive failures above threshold)", name)
			continue
		}

		start := time.Now()
		resp, err := provider.Complete(ctx, req)
		latency := time.Since(start)

		if err != nil {
			r.recordError(name)
			r.logger.Printf("[LLMRouter] Provider %s failed: %v", name, err)
			lastErr = err
			failovers++
			continue
		}

		r.recordSuccess(name, latency)
		info := &RouteInfo{
			Provider:       name,
			Model:          resp.Model,
			TokensUsed:     resp.Usage.TotalTokens,
			ResponseTimeMs: latency.Milliseconds(),
			Failovers:      failovers,
			Latency:        latency,
		}
		return resp, info, nil
	}

	if lastErr != nil {
		return nil, nil, fmt.Errorf("all LLM providers failed: %w", lastErr)
	}
	return nil, nil, fmt.Errorf("no available LLM providers (all above failure threshold)")
}

// Name implements Provider.
func (r *Router) Name() string {
	return "router"
}

// Type implements Provider.
func (r *Router) Type() ProviderType {
	return ProviderTypeCustom
}

// Complete implements Provider by routing the request with failover.
func (r *Router) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	resp, _, err := r.RouteRequest(ctx, req)
	return resp, err
}

// Capabilities implements Provider as the union of the registered
// providers' capabilities.
func (r *Router) Capabilities() []Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[Capability]bool)
	var out []Capability
	for _, name := range r.order {
		for _, c := range r.providers[name].Capabilities() {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out
}

// HealthCheck implements Provider: healthy as long as any registered
// provider passes its check.
func (r *Router) HealthCheck(ctx context.Context) (*HealthCheckResult, error) {
	start := time.Now()
	results := r.CheckProviders(ctx)

	result := &HealthCheckResult{
		Status:      HealthStatusUnhealthy,
		Message:     "no providers registered",
		LastChecked: time.Now(),
	}
	for _, pr := range results {
		if pr.Status == HealthStatusHealthy {
			result.Status = HealthStatusHealthy
			result.Message = ""
			break
		}
		result.Message = pr.Message
	}
	result.Latency = time.Since(start)
	return result, nil
}

// CheckProviders runs health checks on all providers and resets the
// failure count of providers that pass.
func (r *Router) CheckProviders(ctx context.Context) map[string]*HealthCheckResult {
	r.mu.RLock()
	order := make([]string, len(r.order))
	copy(order, r.order)
	providers := make(map[string]Provider, len(r.providers))
	for name, p := range r.providers {
		providers[name] = p
	}
	r.mu.RUnlock()

	results := make(map[string]*HealthCheckResult, len(order))
	for _, name := range order {
		result, err := providers[name].HealthCheck(ctx)
		if err != nil {
			results[name] = &HealthCheckResult{
				Status:      HealthStatusUnhealthy,
				Message:     err.Error(),
				LastChecked: time.Now(),
			}
			continue
		}
		results[name] = result

		if result.Status == HealthStatusHealthy {
			r.mu.Lock()
			r.metrics[name].ConsecutiveFailures = 0
			r.mu.Unlock()
		}
	}
	return results
}

// Metrics returns a snapshot of per-provider route metrics.
func (r *Router) Metrics() map[string]RouteMetrics {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]RouteMetrics, len(r.metrics))
	for name, m := range r.metrics {
		out[name] = *m
	}
	return out
}

func (r *Router) recordSuccess(name string, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.metrics[name]
	m.RequestCount++
	m.ConsecutiveFailures = 0
	m.TotalLatency += latency
	m.LastUsed = time.Now()
}

func (r *Router) recordError(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.metrics[name]
	m.RequestCount++
	m.ErrorCount++
	m.ConsecutiveFailures++
	m.LastUsed = time.Now()
}
