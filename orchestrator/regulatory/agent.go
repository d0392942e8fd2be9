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

package regulatory

import (
	"context"
	"fmt"
	"time"

	"tradeflow/platform/orchestrator/llm"
	"tradeflow/platform/shared/logger"
	"tradeflow/platform/shared/types"
)

// ReportingSource identifies which path produced a reporting result.
type ReportingSource string

const (
	// SourceLLM means the tool-calling path drove the reporting workflow.
	SourceLLM ReportingSource = "llm"

	// SourceRuleBased means the deterministic fallback produced the result.
	SourceRuleBased ReportingSource = "rule_based"
)

// ReportingResult is the outcome of running the reporting workflow for one trade.
type ReportingResult struct {
	Reasoning   string             `json:"reasoning"`
	Regimes     []Regime           `json:"regimes"`
	Reports     []Report           `json:"reports"`
	Validations []ValidationResult `json:"validations"`
	Source      ReportingSource    `json:"source"`
	Timestamp   time.Time          `json:"timestamp"`
}

// AllValid reports whether every synthesized report passed validation.
func (r *ReportingResult) AllValid() bool {
	for _, v := range r.Validations {
		if !v.Valid {
			return false
		}
	}
	return true
}

// Agent runs the regulatory reporting workflow. When an LLM provider with
// tool support is configured it drives the workflow through tool calls;
// any provider failure degrades to the deterministic rule-based path.
type Agent struct {
	provider llm.Provider
	log      *logger.Logger
}

// NewAgent creates a regulatory agent. provider may be nil, in which case
// every trade takes the rule-based path.
func NewAgent(provider llm.Provider, log *logger.Logger) *Agent {
	if log == nil {
		log = logger.New("regulatory-agent")
	}
	return &Agent{provider: provider, log: log}
}

// ProcessTrade determines applicable regimes, synthesizes a report per
// regime, and validates each report. workflowID is used for log correlation
// only.
func (a *Agent) ProcessTrade(ctx context.Context, workflowID string, trade types.Trade) (*ReportingResult, error) {
	uti := trade.UTI
	if uti == "" {
		uti = "UTI-UNKNOWN"
	}

	if a.provider == nil || !llm.SupportsToolUse(a.provider) {
		return a.ruleBasedReporting(workflowID, trade, uti, "Rule-based reporting (no LLM provider configured)")
	}

	resp, err := a.provider.Complete(ctx, llm.CompletionRequest{
		Prompt:       reportingPrompt(trade, uti),
		SystemPrompt: reportingSystemPrompt,
		Temperature:  0.1,
		Tools:        ToolDeclarations(),
	})
	if err != nil {
		a.log.Warn(workflowID, trade.ID, "LLM reasoning failed, using rule-based fallback",
			map[string]interface{}{"error": err.Error()})
		return a.ruleBasedReporting(workflowID, trade, uti, "Rule-based fallback (LLM unavailable)")
	}

	if len(resp.ToolCalls) == 0 {
		a.log.Warn(workflowID, trade.ID, "LLM returned no tool calls, using rule-based fallback", nil)
		return a.ruleBasedReporting(workflowID, trade, uti, resp.Content)
	}

	result := &ReportingResult{
		Reasoning: resp.Content,
		Source:    SourceLLM,
		Timestamp: time.Now(),
	}
	a.executeToolCalls(workflowID, trade, resp.ToolCalls, result)

	// A model that only checked jurisdictions still owes us reports.
	if len(result.Reports) == 0 {
		if len(result.Regimes) == 0 {
			result.Regimes = DetermineTradeRegimes(trade)
		}
		a.synthesizeAndValidate(workflowID, trade, uti, result)
	}

	a.log.Info(workflowID, trade.ID, "regulatory reporting complete", map[string]interface{}{
		"source":  string(result.Source),
		"regimes": len(result.Regimes),
		"reports": len(result.Reports),
	})
	return result, nil
}

// executeToolCalls runs each requested tool locally and folds the outputs
// into the result.
func (a *Agent) executeToolCalls(workflowID string, trade types.Trade, calls []llm.ToolCall, result *ReportingResult) {
	for _, call := range calls {
		switch call.Name {
		case ToolCheckJurisdiction:
			answer := checkJurisdiction(call.Args, trade)
			result.Regimes = append(result.Regimes, answer.ApplicableRegimes...)

		case ToolGenerateReport:
			report, err := generateReport(call.Args, trade)
			if err != nil {
				a.log.Warn(workflowID, trade.ID, "report generation tool call failed",
					map[string]interface{}{"error": err.Error()})
				continue
			}
			result.Reports = append(result.Reports, report)
			result.Validations = append(result.Validations, ValidateReport(report.Regime, report))

		case ToolValidateSchema:
			result.Validations = append(result.Validations, validateSchema(call.Args))

		default:
			a.log.Warn(workflowID, trade.ID, "LLM requested unknown tool",
				map[string]interface{}{"tool": call.Name})
		}
	}
}

// ruleBasedReporting is the deterministic path: resolve, synthesize, validate.
func (a *Agent) ruleBasedReporting(workflowID string, trade types.Trade, uti, reasoning string) (*ReportingResult, error) {
	result := &ReportingResult{
		Reasoning: reasoning,
		Regimes:   DetermineTradeRegimes(trade),
		Source:    SourceRuleBased,
		Timestamp: time.Now(),
	}
	if err := a.synthesizeAndValidate(workflowID, trade, uti, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (a *Agent) synthesizeAndValidate(workflowID string, trade types.Trade, uti string, result *ReportingResult) error {
	for _, regime := range result.Regimes {
		report, err := SynthesizeReport(regime, trade, uti)
		if err != nil {
			return fmt.Errorf("synthesize %s report: %w", regime, err)
		}
		result.Reports = append(result.Reports, report)
		result.Validations = append(result.Validations, ValidateReport(regime, report))
	}
	return nil
}

const reportingSystemPrompt = "You are a regulatory reporting agent with deep knowledge " +
	"of global derivatives regulations. Use the provided tools to execute the reporting " +
	"workflow step by step."

// reportingPrompt renders the per-trade task prompt.
func reportingPrompt(trade types.Trade, uti string) string {
	return fmt.Sprintf(`Analyze this trade and determine the complete regulatory reporting strategy:

Trade Details:
- Product: %s
- Asset Class: %s
- Buyer: %s (Jurisdiction: %s)
- Seller: %s (Jurisdiction: %s)
- Notional: %.2f %s
- UTI: %s

Tasks:
1. Determine ALL applicable regulatory regimes using the check_jurisdiction tool
2. Generate a report for each regime using the generate_regulatory_report tool
3. Validate each report using the validate_against_schema tool`,
		trade.ProductType, trade.AssetClass,
		trade.Buyer.Name, trade.Buyer.Jurisdiction,
		trade.Seller.Name, trade.Seller.Jurisdiction,
		trade.Notional, trade.Currency, uti)
}
