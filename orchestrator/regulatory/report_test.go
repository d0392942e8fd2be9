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
	"errors"
	"testing"

	"tradeflow/platform/shared/types"
)

func sampleTrade() types.Trade {
	return types.Trade{
		ID:          "TRD-001",
		ProductType: types.ProductInterestRateSwap,
		AssetClass:  types.AssetClassInterestRate,
		Buyer:       types.Party{ID: "BANK_A", LEI: "1234567890ABCDEF1234", Jurisdiction: "US"},
		Seller:      types.Party{ID: "BANK_B_EU", LEI: "FEDCBA0987654321FEDC", Jurisdiction: "EU_GB"},
		Notional:    10000000,
		Currency:    "USD",
	}
}

func TestSynthesizeReportCarriesUTI(t *testing.T) {
	trade := sampleTrade()
	for _, regime := range AllRegimes() {
		report, err := SynthesizeReport(regime, trade, "UTI-123456789")
		if err != nil {
			t.Fatalf("SynthesizeReport(%s) failed: %v", regime, err)
		}
		if report.Fields["UTI"] != "UTI-123456789" {
			t.Errorf("%s report UTI = %v, want UTI-123456789", regime, report.Fields["UTI"])
		}
		if report.Status != ReportStatusGenerated {
			t.Errorf("%s report status = %s, want generated", regime, report.Status)
		}
	}
}

func TestSynthesizeReportFieldTemplates(t *testing.T) {
	trade := sampleTrade()

	tests := []struct {
		regime Regime
		fields []string
	}{
		{RegimeCFTCPart43, []string{"UTI", "ExecutionTimestamp", "AssetClass", "Price", "Notional", "ClearedIndicator", "BlockTradeIndicator"}},
		{RegimeCFTCPart45, []string{"UTI", "UPI", "ReportingCounterpartyLEI", "OtherCounterpartyLEI", "EffectiveDate", "CollateralizationType"}},
		{RegimeEMIR, []string{"UTI", "LEI_1", "LEI_2", "TradeDate", "Notional", "Valuation", "CollateralPosted"}},
		{RegimeMIFIR, []string{"ISIN", "Quantity", "Price", "Venue", "BuyerLEI", "SellerLEI", "UTI"}},
		{RegimeASIC, []string{"UTI", "ReportingEntityLEI", "CounterpartyLEI", "TradeDate", "Notional", "Currency"}},
		{RegimeMAS, []string{"UTI", "ReportingEntityLEI", "CounterpartyLEI", "TradeDate", "Notional", "Currency"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.regime), func(t *testing.T) {
			report, err := SynthesizeReport(tt.regime, trade, "UTI-123456789")
			if err != nil {
				t.Fatalf("SynthesizeReport failed: %v", err)
			}
			if len(report.Fields) != len(tt.fields) {
				t.Errorf("Expected %d fields, got %d: %v", len(tt.fields), len(report.Fields), report.Fields)
			}
			for _, field := range tt.fields {
				if _, ok := report.Fields[field]; !ok {
					t.Errorf("Missing field %q", field)
				}
			}
		})
	}
}

func TestSynthesizeReportDerivedValues(t *testing.T) {
	trade := sampleTrade()

	part43, err := SynthesizeReport(RegimeCFTCPart43, trade, "UTI-123456789")
	if err != nil {
		t.Fatalf("SynthesizeReport failed: %v", err)
	}
	if part43.Fields["Price"] != "N/A" {
		t.Errorf("Expected Price 'N/A' for unset price, got %v", part43.Fields["Price"])
	}
	if part43.Fields["ClearedIndicator"] != false {
		t.Errorf("Expected ClearedIndicator false, got %v", part43.Fields["ClearedIndicator"])
	}
	if part43.Fields["Notional"] != 10000000.0 {
		t.Errorf("Expected Notional 10000000, got %v", part43.Fields["Notional"])
	}

	part45, err := SynthesizeReport(RegimeCFTCPart45, trade, "UTI-123456789")
	if err != nil {
		t.Fatalf("SynthesizeReport failed: %v", err)
	}
	if part45.Fields["UPI"] != "UPI-InterestRateSwap" {
		t.Errorf("Expected derived UPI, got %v", part45.Fields["UPI"])
	}
	if part45.Fields["ReportingCounterpartyLEI"] != trade.Buyer.LEI {
		t.Errorf("Expected buyer LEI, got %v", part45.Fields["ReportingCounterpartyLEI"])
	}

	emir, err := SynthesizeReport(RegimeEMIR, trade, "UTI-123456789")
	if err != nil {
		t.Fatalf("SynthesizeReport failed: %v", err)
	}
	if emir.Fields["LEI_1"] != trade.Buyer.LEI || emir.Fields["LEI_2"] != trade.Seller.LEI {
		t.Errorf("Expected counterparty LEIs, got %v / %v", emir.Fields["LEI_1"], emir.Fields["LEI_2"])
	}
	if emir.Fields["Valuation"] != 0.0 {
		t.Errorf("Expected Valuation 0.0, got %v", emir.Fields["Valuation"])
	}

	tradeWithPrice := trade
	tradeWithPrice.Price = 101.25
	priced, err := SynthesizeReport(RegimeCFTCPart43, tradeWithPrice, "UTI-123456789")
	if err != nil {
		t.Fatalf("SynthesizeReport failed: %v", err)
	}
	if priced.Fields["Price"] != 101.25 {
		t.Errorf("Expected Price 101.25, got %v", priced.Fields["Price"])
	}
}

func TestSynthesizeReportUnknownRegime(t *testing.T) {
	_, err := SynthesizeReport(Regime("DODD_FRANK_2"), sampleTrade(), "UTI-123456789")
	if !errors.Is(err, ErrUnknownRegime) {
		t.Fatalf("Expected ErrUnknownRegime, got %v", err)
	}
}

func TestReportID(t *testing.T) {
	tests := []struct {
		regime   Regime
		uti      string
		expected string
	}{
		{RegimeEMIR, "UTI-123456789", "RPT-EMIR-UTI-1234"},
		{RegimeCFTCPart43, "UTI-123456789", "RPT-CFTC_PART_43-UTI-1234"},
		{RegimeMAS, "SHORT", "RPT-MAS-SHORT"},
	}
	for _, tt := range tests {
		if got := ReportID(tt.regime, tt.uti); got != tt.expected {
			t.Errorf("ReportID(%s, %s) = %s, want %s", tt.regime, tt.uti, got, tt.expected)
		}
	}
}
