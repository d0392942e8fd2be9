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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeflow/platform/orchestrator/llm"
)

type stubProvider struct {
	response *llm.CompletionResponse
	err      error
	lastReq  llm.CompletionRequest
}

func (s *stubProvider) Name() string           { return "stub" }
func (s *stubProvider) Type() llm.ProviderType { return llm.ProviderTypeCustom }

func (s *stubProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.response, nil
}

func (s *stubProvider) HealthCheck(ctx context.Context) (*llm.HealthCheckResult, error) {
	return &llm.HealthCheckResult{Status: llm.HealthStatusHealthy, LastChecked: time.Now()}, nil
}

func (s *stubProvider) Capabilities() []llm.Capability {
	return []llm.Capability{llm.CapabilityCompletion, llm.CapabilityToolUse}
}

func TestProcessTradeRuleBasedWithoutProvider(t *testing.T) {
	agent := NewAgent(nil, nil)
	trade := sampleTrade()
	trade.UTI = "UTI-123456789"

	result, err := agent.ProcessTrade(context.Background(), "wf-1", trade)
	require.NoError(t, err)

	assert.Equal(t, SourceRuleBased, result.Source)
	assert.Equal(t, []Regime{RegimeCFTCPart43, RegimeCFTCPart45, RegimeEMIR}, result.Regimes)
	assert.Len(t, result.Reports, 3)
	assert.Len(t, result.Validations, 3)
	assert.True(t, result.AllValid())

	for _, report := range result.Reports {
		assert.Equal(t, "UTI-123456789", report.Fields["UTI"])
	}
}

func TestProcessTradeLLMToolCalls(t *testing.T) {
	provider := &stubProvider{
		response: &llm.CompletionResponse{
			Content: "Determined regimes and generated reports.",
			ToolCalls: []llm.ToolCall{
				{
					Name: ToolCheckJurisdiction,
					Args: map[string]any{
						"buyer_jurisdiction":  "US",
						"seller_jurisdiction": "EU_GB",
						"product_type":        "InterestRateSwap",
					},
				},
				{
					Name: ToolGenerateReport,
					Args: map[string]any{
						"regime": "EMIR",
						"uti":    "UTI-123456789",
					},
				},
				{
					Name: ToolValidateSchema,
					Args: map[string]any{
						"regime": "EMIR",
						"report_data": map[string]any{
							"fields": map[string]any{"UTI": "UTI-123456789", "LEI_1": "A", "LEI_2": "B"},
						},
					},
				},
			},
		},
	}
	agent := NewAgent(provider, nil)
	trade := sampleTrade()
	trade.UTI = "UTI-123456789"

	result, err := agent.ProcessTrade(context.Background(), "wf-1", trade)
	require.NoError(t, err)

	assert.Equal(t, SourceLLM, result.Source)
	assert.Equal(t, "Determined regimes and generated reports.", result.Reasoning)
	assert.Equal(t, []Regime{RegimeCFTCPart43, RegimeCFTCPart45, RegimeEMIR}, result.Regimes)
	require.Len(t, result.Reports, 1)
	assert.Equal(t, RegimeEMIR, result.Reports[0].Regime)
	assert.Equal(t, "RPT-EMIR-UTI-1234", result.Reports[0].ReportID)
	assert.True(t, result.AllValid())

	// The provider must have been offered all three tools.
	require.Len(t, provider.lastReq.Tools, 3)
	assert.Equal(t, ToolCheckJurisdiction, provider.lastReq.Tools[0].Name)
}

func TestProcessTradeFallsBackOnLLMError(t *testing.T) {
	provider := &stubProvider{err: fmt.Errorf("RESOURCE_EXHAUSTED")}
	agent := NewAgent(provider, nil)
	trade := sampleTrade()
	trade.UTI = "UTI-123456789"

	result, err := agent.ProcessTrade(context.Background(), "wf-1", trade)
	require.NoError(t, err)

	assert.Equal(t, SourceRuleBased, result.Source)
	assert.Len(t, result.Reports, 3)
	assert.True(t, result.AllValid())
}

func TestProcessTradeFallsBackWhenNoToolCalls(t *testing.T) {
	provider := &stubProvider{
		response: &llm.CompletionResponse{Content: "I believe EMIR applies."},
	}
	agent := NewAgent(provider, nil)
	trade := sampleTrade()
	trade.UTI = "UTI-123456789"

	result, err := agent.ProcessTrade(context.Background(), "wf-1", trade)
	require.NoError(t, err)

	assert.Equal(t, SourceRuleBased, result.Source)
	assert.Equal(t, "I believe EMIR applies.", result.Reasoning)
	assert.Len(t, result.Reports, 3)
}

func TestProcessTradeSynthesizesWhenModelOnlyChecksJurisdiction(t *testing.T) {
	provider := &stubProvider{
		response: &llm.CompletionResponse{
			Content: "Checked jurisdictions.",
			ToolCalls: []llm.ToolCall{
				{
					Name: ToolCheckJurisdiction,
					Args: map[string]any{
						"buyer_jurisdiction":  "AU",
						"seller_jurisdiction": "SG",
						"product_type":        "InterestRateSwap",
					},
				},
			},
		},
	}
	agent := NewAgent(provider, nil)
	trade := sampleTrade()
	trade.UTI = "UTI-123456789"

	result, err := agent.ProcessTrade(context.Background(), "wf-1", trade)
	require.NoError(t, err)

	assert.Equal(t, SourceLLM, result.Source)
	assert.Equal(t, []Regime{RegimeASIC, RegimeMAS}, result.Regimes)
	assert.Len(t, result.Reports, 2)
	assert.True(t, result.AllValid())
}

func TestProcessTradeDefaultsUnknownUTI(t *testing.T) {
	agent := NewAgent(nil, nil)
	trade := sampleTrade()
	trade.UTI = ""

	result, err := agent.ProcessTrade(context.Background(), "wf-1", trade)
	require.NoError(t, err)
	require.NotEmpty(t, result.Reports)
	assert.Equal(t, "UTI-UNKNOWN", result.Reports[0].Fields["UTI"])
}
