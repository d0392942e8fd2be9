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

// ValidationResult is the outcome of checking a report against a regime schema.
type ValidationResult struct {
	Regime        Regime   `json:"regime"`
	Valid         bool     `json:"valid"`
	MissingFields []string `json:"missing_fields,omitempty"`
}

// ValidateReport checks a report's field set against the regime's required
// field list. The result is the set difference; regimes without a configured
// schema are vacuously valid. Never errors.
func ValidateReport(regime Regime, report Report) ValidationResult {
	var missing []string
	for _, field := range requiredFields[regime] {
		if _, ok := report.Fields[field]; !ok {
			missing = append(missing, field)
		}
	}
	return ValidationResult{
		Regime:        regime,
		Valid:         len(missing) == 0,
		MissingFields: missing,
	}
}
