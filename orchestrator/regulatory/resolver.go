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
	"strings"

	"tradeflow/platform/shared/types"
)

// mifirProductTypes are the derivative types that trigger MIFIR transaction
// reporting on top of EMIR for EU-facing trades.
var mifirProductTypes = map[string]bool{
	types.ProductEquityOption:      true,
	types.ProductCreditDefaultSwap: true,
}

// DetermineRegimes resolves the reporting regimes applicable to a trade from
// the counterparty jurisdictions and product type. Each rule is evaluated
// independently and results are concatenated in a fixed order. Unmatched
// jurisdictions yield an empty slice, never an error. tradeCurrency is
// accepted for API completeness but does not affect the result.
func DetermineRegimes(buyerJurisdiction, sellerJurisdiction, productType, tradeCurrency string) []Regime {
	var regimes []Regime

	if buyerJurisdiction == "US" || sellerJurisdiction == "US" {
		regimes = append(regimes, RegimeCFTCPart43, RegimeCFTCPart45)
	}

	// EU jurisdictions appear as country-qualified codes ("EU_GB", "EU_DE"),
	// so substring match rather than equality.
	if strings.Contains(buyerJurisdiction, "EU") || strings.Contains(sellerJurisdiction, "EU") {
		regimes = append(regimes, RegimeEMIR)
		if mifirProductTypes[productType] {
			regimes = append(regimes, RegimeMIFIR)
		}
	}

	if buyerJurisdiction == "AU" || sellerJurisdiction == "AU" {
		regimes = append(regimes, RegimeASIC)
	}

	if buyerJurisdiction == "SG" || sellerJurisdiction == "SG" {
		regimes = append(regimes, RegimeMAS)
	}

	return regimes
}

// DetermineTradeRegimes resolves regimes directly from a trade.
func DetermineTradeRegimes(trade types.Trade) []Regime {
	return DetermineRegimes(trade.Buyer.Jurisdiction, trade.Seller.Jurisdiction, trade.ProductType, trade.Currency)
}
