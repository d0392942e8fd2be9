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

package types

import (
	"strings"
	"time"
)

// Product types recognized by the pipeline. Other values are accepted and
// treated as generic OTC products.
const (
	ProductInterestRateSwap  = "InterestRateSwap"
	ProductCreditDefaultSwap = "CreditDefaultSwap"
	ProductEquityOption      = "EquityOption"
	ProductFxForward         = "FxForward"
	ProductFxOption          = "FxOption"
)

// Asset classes used for netting-set assignment and SIMM risk bucketing.
const (
	AssetClassInterestRate = "InterestRate"
	AssetClassCredit       = "Credit"
	AssetClassEquity       = "Equity"
	AssetClassFX           = "ForeignExchange"
	AssetClassCommodity    = "Commodity"
)

// TradeState represents the booking lifecycle state of a trade.
type TradeState string

const (
	TradeStateDraft      TradeState = "DRAFT"
	TradeStatePending    TradeState = "PENDING"
	TradeStateBooked     TradeState = "BOOKED"
	TradeStateConfirmed  TradeState = "CONFIRMED"
	TradeStateTerminated TradeState = "TERMINATED"
)

// Party identifies a trade counterparty.
type Party struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	LEI          string `json:"lei"`
	Jurisdiction string `json:"jurisdiction"`
}

// Trade is the immutable trade input processed by the pipeline.
// Derived values (UTI, netting set) are assigned by the processing agent and
// carried on the pipeline state, never written back into the request trade.
type Trade struct {
	ID          string  `json:"id"`
	ProductType string  `json:"product_type"`
	AssetClass  string  `json:"asset_class"`
	Buyer       Party   `json:"buyer"`
	Seller      Party   `json:"seller"`
	Notional    float64 `json:"notional"`
	Currency    string  `json:"currency"`
	Price       float64 `json:"price,omitempty"`
	UTI         string  `json:"uti,omitempty"`
}

// IsOption reports whether the trade is an option product, which determines
// whether vega sensitivities are computed during margining.
func (t Trade) IsOption() bool {
	return strings.Contains(t.ProductType, "Option")
}

// IsCashProduct reports whether the trade is a cash product, which is exempt
// from confirmation.
func (t Trade) IsCashProduct() bool {
	return strings.Contains(t.ProductType, "Cash")
}

// LifecycleEventType identifies a post-trade lifecycle event.
type LifecycleEventType string

const (
	EventExecution    LifecycleEventType = "EXECUTION"
	EventConfirmation LifecycleEventType = "CONFIRMATION"
	EventTermination  LifecycleEventType = "TERMINATION"
)

// LifecycleEvent records a state-changing event applied to a trade.
type LifecycleEvent struct {
	EventID   string             `json:"event_id"`
	TradeID   string             `json:"trade_id"`
	Type      LifecycleEventType `json:"type"`
	Timestamp time.Time          `json:"timestamp"`
	Venue     string             `json:"venue,omitempty"`
}
