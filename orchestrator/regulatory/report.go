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
	"fmt"
	"time"

	"tradeflow/platform/shared/types"
)

// ErrUnknownRegime is returned when report synthesis is requested for a
// regime outside the enumerated set.
var ErrUnknownRegime = errors.New("unknown regulatory regime")

// ReportStatus marks where a report is in its lifecycle.
type ReportStatus string

const (
	ReportStatusGenerated ReportStatus = "generated"
	ReportStatusValidated ReportStatus = "validated"
	ReportStatusRejected  ReportStatus = "rejected"
)

// Report is a synthesized regulatory report for one regime. It is never
// mutated after creation; validation produces a separate result.
type Report struct {
	Regime   Regime         `json:"regime"`
	ReportID string         `json:"report_id"`
	Fields   map[string]any `json:"fields"`
	Status   ReportStatus   `json:"status"`
}

// ReportID derives the report identifier from regime and UTI. The UTI prefix
// is truncated to 8 characters; shorter UTIs are used whole.
func ReportID(regime Regime, uti string) string {
	prefix := uti
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return fmt.Sprintf("RPT-%s-%s", regime, prefix)
}

// SynthesizeReport builds the field-value mapping mandated by a regime for
// the given trade. The field set is fully determined by (regime, trade, uti)
// apart from embedded current-time fields. An unknown regime returns
// ErrUnknownRegime rather than an empty mapping.
func SynthesizeReport(regime Regime, trade types.Trade, uti string) (Report, error) {
	now := time.Now()
	var fields map[string]any

	switch regime {
	case RegimeCFTCPart43:
		price := any("N/A")
		if trade.Price != 0 {
			price = trade.Price
		}
		fields = map[string]any{
			"UTI":                 uti,
			"ExecutionTimestamp":  now.Format(time.RFC3339),
			"AssetClass":          trade.AssetClass,
			"Price":               price,
			"Notional":            trade.Notional,
			"ClearedIndicator":    false,
			"BlockTradeIndicator": false,
		}

	case RegimeCFTCPart45:
		fields = map[string]any{
			"UTI":                     uti,
			"UPI":                     "UPI-" + trade.ProductType,
			"ReportingCounterpartyLEI": trade.Buyer.LEI,
			"OtherCounterpartyLEI":    trade.Seller.LEI,
			"EffectiveDate":           now.Format("2006-01-02"),
			"CollateralizationType":   "Uncollateralized",
		}

	case RegimeEMIR:
		fields = map[string]any{
			"UTI":              uti,
			"LEI_1":            trade.Buyer.LEI,
			"LEI_2":            trade.Seller.LEI,
			"TradeDate":        now.Format("2006-01-02"),
			"Notional":         trade.Notional,
			"Valuation":        0.0,
			"CollateralPosted": 0.0,
		}

	case RegimeMIFIR:
		price := any("N/A")
		if trade.Price != 0 {
			price = trade.Price
		}
		fields = map[string]any{
			"ISIN":      "N/A",
			"Quantity":  trade.Notional,
			"Price":     price,
			"Venue":     "XOFF",
			"BuyerLEI":  trade.Buyer.LEI,
			"SellerLEI": trade.Seller.LEI,
			"UTI":       uti,
		}

	case RegimeASIC, RegimeMAS:
		fields = map[string]any{
			"UTI":                uti,
			"ReportingEntityLEI": trade.Buyer.LEI,
			"CounterpartyLEI":    trade.Seller.LEI,
			"TradeDate":          now.Format("2006-01-02"),
			"Notional":           trade.Notional,
			"Currency":           trade.Currency,
		}

	default:
		return Report{}, fmt.Errorf("%w: %q", ErrUnknownRegime, regime)
	}

	return Report{
		Regime:   regime,
		ReportID: ReportID(regime, uti),
		Fields:   fields,
		Status:   ReportStatusGenerated,
	}, nil
}
