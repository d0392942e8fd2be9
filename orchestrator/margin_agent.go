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

package orchestrator

import (
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"tradeflow/platform/shared/types"
)

// Sensitivity rates per unit notional. Real desks would price these;
// the pipeline uses fixed fractions so margins are reproducible.
const (
	deltaRate     = 0.005
	vegaRate      = 0.002
	curvatureRate = 0.001

	// simmCorrelation is the single correlation factor applied per risk type.
	simmCorrelation = 0.85

	defaultSIMMWeight = 2.0
)

// Risk sensitivity types.
const (
	RiskDelta     = "DELTA"
	RiskVega      = "VEGA"
	RiskCurvature = "CURVATURE"
)

// simmWeights maps SIMM risk buckets to risk weights.
var simmWeights = map[string]float64{
	"InterestRate-Bucket1":    2.0,
	"ForeignExchange-Bucket1": 1.5,
	"Credit-Bucket1":          3.0,
	"Equity-Bucket1":          2.5,
	"Commodity-Bucket1":       3.5,
}

// Sensitivity is one risk sensitivity of a trade.
type Sensitivity struct {
	Type   string  `json:"type"`
	Bucket string  `json:"bucket"`
	Value  float64 `json:"value"`
}

// SIMMResult is the initial-margin breakdown for a portfolio.
type SIMMResult struct {
	DeltaMargin     float64 `json:"delta_margin"`
	VegaMargin      float64 `json:"vega_margin"`
	CurvatureMargin float64 `json:"curvature_margin"`
	TotalIM         float64 `json:"total_im"`
}

// MarginCall is issued when required margin exceeds posted collateral.
type MarginCall struct {
	CallID       string    `json:"call_id"`
	PortfolioID  string    `json:"portfolio_id"`
	Counterparty string    `json:"counterparty"`
	Amount       float64   `json:"amount"`
	Currency     string    `json:"currency"`
	IssuedAt     time.Time `json:"issued_at"`
}

// MarginResult is the margin agent's per-trade output.
type MarginResult struct {
	PortfolioID     string      `json:"portfolio_id"`
	SIMM            SIMMResult  `json:"simm"`
	VariationMargin float64     `json:"variation_margin"`
	MarginCall      *MarginCall `json:"margin_call,omitempty"`
}

// MarginAgent computes ISDA SIMM style initial margin, variation margin, and
// issues margin calls on collateral shortfalls.
type MarginAgent struct {
	mu            sync.RWMutex
	sensitivities map[string][]Sensitivity
	activeCalls   map[string]MarginCall
}

// NewMarginAgent creates a margin agent.
func NewMarginAgent() *MarginAgent {
	return &MarginAgent{
		sensitivities: make(map[string][]Sensitivity),
		activeCalls:   make(map[string]MarginCall),
	}
}

// ComputeSensitivities derives delta, vega, and curvature sensitivities for
// each trade. Vega applies to option products only.
func (a *MarginAgent) ComputeSensitivities(trades []types.Trade) []Sensitivity {
	var sensitivities []Sensitivity
	for _, trade := range trades {
		bucket := riskBucket(trade)
		sensitivities = append(sensitivities, Sensitivity{Type: RiskDelta, Bucket: bucket, Value: trade.Notional * deltaRate})
		if trade.IsOption() {
			sensitivities = append(sensitivities, Sensitivity{Type: RiskVega, Bucket: bucket, Value: trade.Notional * vegaRate})
		}
		sensitivities = append(sensitivities, Sensitivity{Type: RiskCurvature, Bucket: bucket, Value: trade.Notional * curvatureRate})
	}
	log.Printf("[MarginAgent] Computed %d sensitivities for %d trades", len(sensitivities), len(trades))
	return sensitivities
}

// CalculatePortfolioMargin runs the SIMM aggregation: weight sensitivities
// per risk bucket, apply the correlation factor per risk type, then combine
// across risk types by square-root-of-sum-of-squares.
func (a *MarginAgent) CalculatePortfolioMargin(portfolioID string, trades []types.Trade) SIMMResult {
	sensitivities := a.ComputeSensitivities(trades)

	a.mu.Lock()
	a.sensitivities[portfolioID] = sensitivities
	a.mu.Unlock()

	deltaMargin := applyCorrelation(weightedSum(sensitivities, RiskDelta))
	vegaMargin := applyCorrelation(weightedSum(sensitivities, RiskVega))
	curvatureMargin := applyCorrelation(weightedSum(sensitivities, RiskCurvature))

	totalIM := math.Sqrt(deltaMargin*deltaMargin + vegaMargin*vegaMargin + curvatureMargin*curvatureMargin)

	log.Printf("[MarginAgent] SIMM for %s: delta=%.2f vega=%.2f curvature=%.2f total=%.2f",
		portfolioID, deltaMargin, vegaMargin, curvatureMargin, totalIM)

	return SIMMResult{
		DeltaMargin:     deltaMargin,
		VegaMargin:      vegaMargin,
		CurvatureMargin: curvatureMargin,
		TotalIM:         totalIM,
	}
}

// CalculateVariationMargin is mark-to-market value less collateral held.
func (a *MarginAgent) CalculateVariationMargin(mtmValue, collateralBalance float64) float64 {
	return mtmValue - collateralBalance
}

// GenerateMarginCall issues a margin call when IM+VM exceeds current
// collateral. Returns nil when collateral is sufficient.
func (a *MarginAgent) GenerateMarginCall(portfolioID, counterparty, currency string, imRequired, vmRequired, currentCollateral float64) *MarginCall {
	shortfall := imRequired + vmRequired - currentCollateral
	if shortfall <= 0 {
		log.Printf("[MarginAgent] Collateral sufficient for %s - no margin call required", portfolioID)
		return nil
	}

	call := MarginCall{
		CallID:       "MC-" + uuid.NewString()[:8],
		PortfolioID:  portfolioID,
		Counterparty: counterparty,
		Amount:       shortfall,
		Currency:     currency,
		IssuedAt:     time.Now(),
	}

	a.mu.Lock()
	a.activeCalls[call.CallID] = call
	a.mu.Unlock()

	log.Printf("[MarginAgent] MARGIN CALL %s issued to %s (shortfall %.2f)", call.CallID, counterparty, shortfall)
	return &call
}

// ActiveCalls returns the currently open margin calls.
func (a *MarginAgent) ActiveCalls() []MarginCall {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]MarginCall, 0, len(a.activeCalls))
	for _, call := range a.activeCalls {
		out = append(out, call)
	}
	return out
}

// MarginTrade runs the full margin step for one trade, treating the netting
// set as the portfolio.
func (a *MarginAgent) MarginTrade(nettingSet string, trade types.Trade) MarginResult {
	simm := a.CalculatePortfolioMargin(nettingSet, []types.Trade{trade})

	// No market moves inside a single pipeline run, so MTM equals zero and
	// variation margin is flat.
	vm := a.CalculateVariationMargin(0, 0)
	call := a.GenerateMarginCall(nettingSet, trade.Seller.ID, trade.Currency, simm.TotalIM, vm, 0)

	return MarginResult{
		PortfolioID:     nettingSet,
		SIMM:            simm,
		VariationMargin: vm,
		MarginCall:      call,
	}
}

func riskBucket(trade types.Trade) string {
	return trade.AssetClass + "-Bucket1"
}

func weightedSum(sensitivities []Sensitivity, riskType string) float64 {
	var sum float64
	for _, s := range sensitivities {
		if s.Type != riskType {
			continue
		}
		weight, ok := simmWeights[s.Bucket]
		if !ok {
			weight = defaultSIMMWeight
		}
		sum += s.Value * weight
	}
	return sum
}

func applyCorrelation(weighted float64) float64 {
	return weighted * math.Sqrt(simmCorrelation)
}
