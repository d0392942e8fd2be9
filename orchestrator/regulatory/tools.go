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
	"fmt"

	"tradeflow/platform/orchestrator/llm"
	"tradeflow/platform/shared/types"
)

// Tool names the model may invoke.
const (
	ToolCheckJurisdiction = "check_jurisdiction"
	ToolGenerateReport    = "generate_regulatory_report"
	ToolValidateSchema    = "validate_against_schema"
)

// ToolDeclarations returns the function declarations exposed to the model.
func ToolDeclarations() []llm.ToolDeclaration {
	return []llm.ToolDeclaration{
		{
			Name:        ToolCheckJurisdiction,
			Description: "Determine which regulatory regimes apply to a trade",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"buyer_jurisdiction":  map[string]any{"type": "string"},
					"seller_jurisdiction": map[string]any{"type": "string"},
					"product_type":        map[string]any{"type": "string"},
					"trade_currency":      map[string]any{"type": "string"},
				},
				"required": []string{"buyer_jurisdiction", "seller_jurisdiction", "product_type"},
			},
		},
		{
			Name:        ToolGenerateReport,
			Description: "Generate a regulatory report for a specific regime",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"regime":     map[string]any{"type": "string"},
					"trade_data": map[string]any{"type": "object"},
					"uti":        map[string]any{"type": "string"},
				},
				"required": []string{"regime", "trade_data", "uti"},
			},
		},
		{
			Name:        ToolValidateSchema,
			Description: "Validate a regulatory report against schema requirements",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"regime":      map[string]any{"type": "string"},
					"report_data": map[string]any{"type": "object"},
				},
				"required": []string{"regime", "report_data"},
			},
		},
	}
}

// JurisdictionAnswer is the structured result of a check_jurisdiction call.
type JurisdictionAnswer struct {
	ApplicableRegimes []Regime `json:"applicable_regimes"`
	Confidence        string   `json:"confidence"`
	Reasoning         string   `json:"reasoning"`
}

// checkJurisdiction runs the resolver over tool-call arguments, falling back
// to the trade's own attributes for any argument the model omitted.
func checkJurisdiction(args map[string]any, trade types.Trade) JurisdictionAnswer {
	buyer := argString(args, "buyer_jurisdiction", trade.Buyer.Jurisdiction)
	seller := argString(args, "seller_jurisdiction", trade.Seller.Jurisdiction)
	product := argString(args, "product_type", trade.ProductType)
	currency := argString(args, "trade_currency", trade.Currency)

	return JurisdictionAnswer{
		ApplicableRegimes: DetermineRegimes(buyer, seller, product, currency),
		Confidence:        "high",
		Reasoning:         fmt.Sprintf("Based on jurisdictions %s/%s", buyer, seller),
	}
}

// generateReport synthesizes a report from tool-call arguments. trade_data
// overrides the pipeline trade field by field where provided.
func generateReport(args map[string]any, trade types.Trade) (Report, error) {
	regime := Regime(argString(args, "regime", ""))
	uti := argString(args, "uti", trade.UTI)

	if data, ok := args["trade_data"].(map[string]any); ok {
		trade = tradeFromArgs(data, trade)
	}
	return SynthesizeReport(regime, trade, uti)
}

// validateSchema validates report fields supplied by the model.
func validateSchema(args map[string]any) ValidationResult {
	regime := Regime(argString(args, "regime", ""))

	report := Report{Regime: regime}
	if data, ok := args["report_data"].(map[string]any); ok {
		if fields, ok := data["fields"].(map[string]any); ok {
			report.Fields = fields
		} else {
			report.Fields = data
		}
	}
	return ValidateReport(regime, report)
}

// tradeFromArgs overlays tool-call trade_data onto a base trade.
func tradeFromArgs(data map[string]any, base types.Trade) types.Trade {
	trade := base
	trade.ProductType = argString(data, "product_type", base.ProductType)
	trade.AssetClass = argString(data, "asset_class", base.AssetClass)
	trade.Currency = argString(data, "currency", base.Currency)
	trade.Buyer.LEI = argString(data, "buyer_lei", base.Buyer.LEI)
	trade.Seller.LEI = argString(data, "seller_lei", base.Seller.LEI)
	trade.Buyer.Jurisdiction = argString(data, "buyer_jurisdiction", base.Buyer.Jurisdiction)
	trade.Seller.Jurisdiction = argString(data, "seller_jurisdiction", base.Seller.Jurisdiction)
	if notional, ok := argFloat(data, "notional"); ok {
		trade.Notional = notional
	}
	if price, ok := argFloat(data, "price"); ok {
		trade.Price = price
	}
	return trade
}

func argString(args map[string]any, key, fallback string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func argFloat(args map[string]any, key string) (float64, bool) {
	switch v := args[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}
