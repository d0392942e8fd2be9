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

// Package regulatory implements multi-jurisdiction trade reporting: regime
// determination from counterparty jurisdictions, per-regime report synthesis,
// and schema validation. The three core operations are pure functions; the
// Agent wraps them with optional LLM tool-calling and a rule-based fallback.
package regulatory

// Regime identifies a regulatory reporting rule set.
type Regime string

// Reporting regimes recognized by the resolver.
const (
	// RegimeCFTCPart43 is US CFTC real-time public reporting.
	RegimeCFTCPart43 Regime = "CFTC_PART_43"

	// RegimeCFTCPart45 is US CFTC swap data recordkeeping and reporting.
	RegimeCFTCPart45 Regime = "CFTC_PART_45"

	// RegimeEMIR is the EU derivatives trade-reporting regulation.
	RegimeEMIR Regime = "EMIR"

	// RegimeMIFIR is EU transaction reporting for in-scope instruments.
	RegimeMIFIR Regime = "MIFIR"

	// RegimeASIC is the Australian derivative transaction reporting rules.
	RegimeASIC Regime = "ASIC"

	// RegimeMAS is the Singapore reporting of derivatives contracts regulations.
	RegimeMAS Regime = "MAS"
)

// AllRegimes lists every regime the synthesizer can produce reports for,
// in resolver output order.
func AllRegimes() []Regime {
	return []Regime{
		RegimeCFTCPart43,
		RegimeCFTCPart45,
		RegimeEMIR,
		RegimeMIFIR,
		RegimeASIC,
		RegimeMAS,
	}
}

// IsKnown reports whether r is one of the enumerated regimes.
func (r Regime) IsKnown() bool {
	switch r {
	case RegimeCFTCPart43, RegimeCFTCPart45, RegimeEMIR, RegimeMIFIR, RegimeASIC, RegimeMAS:
		return true
	}
	return false
}

func (r Regime) String() string {
	return string(r)
}

// requiredFields maps each regime with a configured schema to its mandatory
// field names. Regimes absent from the table are vacuously valid.
var requiredFields = map[Regime][]string{
	RegimeCFTCPart43: {"UTI", "ExecutionTimestamp", "AssetClass", "Notional"},
	RegimeCFTCPart45: {"UTI", "UPI", "ReportingCounterpartyLEI"},
	RegimeEMIR:       {"UTI", "LEI_1", "LEI_2"},
}

// RequiredFields returns the mandatory field names for a regime, or nil when
// the regime has no configured schema.
func RequiredFields(regime Regime) []string {
	fields, ok := requiredFields[regime]
	if !ok {
		return nil
	}
	out := make([]string, len(fields))
	copy(out, fields)
	return out
}
