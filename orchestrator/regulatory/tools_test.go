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
	"testing"
)

func TestToolDeclarations(t *testing.T) {
	decls := ToolDeclarations()
	if len(decls) != 3 {
		t.Fatalf("Expected 3 tool declarations, got %d", len(decls))
	}

	names := map[string]bool{}
	for _, d := range decls {
		names[d.Name] = true
		if d.Parameters["type"] != "object" {
			t.Errorf("Tool %s parameters must be an object schema", d.Name)
		}
	}
	for _, want := range []string{ToolCheckJurisdiction, ToolGenerateReport, ToolValidateSchema} {
		if !names[want] {
			t.Errorf("Missing tool declaration %q", want)
		}
	}
}

func TestCheckJurisdictionFallsBackToTrade(t *testing.T) {
	trade := sampleTrade()

	// Model omitted every argument; resolver should still see the trade.
	answer := checkJurisdiction(map[string]any{}, trade)
	if len(answer.ApplicableRegimes) != 3 {
		t.Errorf("Expected 3 regimes from trade attributes, got %v", answer.ApplicableRegimes)
	}
	if answer.Confidence != "high" {
		t.Errorf("Expected confidence 'high', got %q", answer.Confidence)
	}
}

func TestGenerateReportWithTradeDataOverride(t *testing.T) {
	trade := sampleTrade()
	report, err := generateReport(map[string]any{
		"regime": "CFTC_PART_45",
		"uti":    "UTI-ABCDEFGH",
		"trade_data": map[string]any{
			"product_type": "CreditDefaultSwap",
			"buyer_lei":    "OVERRIDE_LEI",
		},
	}, trade)
	if err != nil {
		t.Fatalf("generateReport failed: %v", err)
	}
	if report.Fields["UPI"] != "UPI-CreditDefaultSwap" {
		t.Errorf("Expected overridden product type in UPI, got %v", report.Fields["UPI"])
	}
	if report.Fields["ReportingCounterpartyLEI"] != "OVERRIDE_LEI" {
		t.Errorf("Expected overridden buyer LEI, got %v", report.Fields["ReportingCounterpartyLEI"])
	}
	if report.Fields["OtherCounterpartyLEI"] != trade.Seller.LEI {
		t.Errorf("Expected trade seller LEI preserved, got %v", report.Fields["OtherCounterpartyLEI"])
	}
}

func TestGenerateReportUnknownRegime(t *testing.T) {
	if _, err := generateReport(map[string]any{"regime": "NOPE", "uti": "UTI-1"}, sampleTrade()); err == nil {
		t.Fatal("Expected error for unknown regime")
	}
}

func TestValidateSchemaAcceptsFlatFields(t *testing.T) {
	// Models sometimes pass the field map directly instead of wrapping it
	// under "fields".
	result := validateSchema(map[string]any{
		"regime": "EMIR",
		"report_data": map[string]any{
			"UTI": "UTI-1", "LEI_1": "A", "LEI_2": "B",
		},
	})
	if !result.Valid {
		t.Errorf("Expected valid, missing %v", result.MissingFields)
	}
}

func TestArgFloat(t *testing.T) {
	args := map[string]any{"notional": 5000000.0, "count": 3, "name": "x"}
	if v, ok := argFloat(args, "notional"); !ok || v != 5000000.0 {
		t.Errorf("argFloat(notional) = %v, %v", v, ok)
	}
	if v, ok := argFloat(args, "count"); !ok || v != 3 {
		t.Errorf("argFloat(count) = %v, %v", v, ok)
	}
	if _, ok := argFloat(args, "name"); ok {
		t.Error("argFloat should reject non-numeric")
	}
	if _, ok := argFloat(args, "absent"); ok {
		t.Error("argFloat should reject missing key")
	}
}
