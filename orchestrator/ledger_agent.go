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
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"tradeflow/platform/shared/types"
)

// Ledger names.
const (
	LedgerTrade    = "TRADE"
	LedgerPosition = "POSITION"
	LedgerCash     = "CASH"
)

// LedgerEntry is one row in a ledger. Cash entries carry a debit or a
// credit; trade entries carry neither.
type LedgerEntry struct {
	EntryID   string    `json:"entry_id"`
	Ledger    string    `json:"ledger"`
	TradeID   string    `json:"trade_id"`
	Debit     float64   `json:"debit"`
	Credit    float64   `json:"credit"`
	Currency  string    `json:"currency"`
	Timestamp time.Time `json:"timestamp"`
}

// Position is an aggregated holding keyed by partyID-assetClass.
type Position struct {
	PartyID     string    `json:"party_id"`
	AssetClass  string    `json:"asset_class"`
	Quantity    int       `json:"quantity"`
	AvgPrice    float64   `json:"avg_price"`
	LastUpdated time.Time `json:"last_updated"`
}

// PnLReport summarizes portfolio profit and loss.
type PnLReport struct {
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	RealizedPnL   float64 `json:"realized_pnl"`
	TotalPnL      float64 `json:"total_pnl"`
}

// ReconciliationResult reports position breaks against external statements.
type ReconciliationResult struct {
	Clean  bool     `json:"clean"`
	Breaks []string `json:"breaks,omitempty"`
}

// LedgerResult is the ledger agent's per-trade output.
type LedgerResult struct {
	TradeID     string  `json:"trade_id"`
	Entries     int     `json:"entries"`
	Premium     float64 `json:"premium"`
	BuyerPosKey string  `json:"buyer_position_key"`
}

// LedgerAgent books trades across trade, position, and cash ledgers using
// double-entry accounting, and computes P&L and reconciliation.
type LedgerAgent struct {
	mu          sync.RWMutex
	tradeLedger []LedgerEntry
	cashLedger  []LedgerEntry
	positions   map[string]*Position
}

// NewLedgerAgent creates a ledger agent.
func NewLedgerAgent() *LedgerAgent {
	return &LedgerAgent{positions: make(map[string]*Position)}
}

// RecordTransaction books a trade: one trade-ledger entry, long/short
// position updates for buyer and seller, and a balanced debit/credit pair in
// the cash ledger for the premium.
func (a *LedgerAgent) RecordTransaction(trade types.Trade) LedgerResult {
	now := time.Now()
	premium := trade.Notional * premiumRate

	a.mu.Lock()
	defer a.mu.Unlock()

	a.tradeLedger = append(a.tradeLedger, LedgerEntry{
		EntryID:   "TL-" + uuid.NewString()[:8],
		Ledger:    LedgerTrade,
		TradeID:   trade.ID,
		Currency:  trade.Currency,
		Timestamp: now,
	})

	a.updatePosition(trade.Buyer, trade.AssetClass, 1, trade.Price)
	a.updatePosition(trade.Seller, trade.AssetClass, -1, trade.Price)

	a.cashLedger = append(a.cashLedger,
		LedgerEntry{
			EntryID:   "CL-" + uuid.NewString()[:8],
			Ledger:    LedgerCash,
			TradeID:   trade.ID,
			Debit:     premium,
			Currency:  trade.Currency,
			Timestamp: now,
		},
		LedgerEntry{
			EntryID:   "CL-" + uuid.NewString()[:8],
			Ledger:    LedgerCash,
			TradeID:   trade.ID,
			Credit:    premium,
			Currency:  trade.Currency,
			Timestamp: now,
		},
	)

	log.Printf("[LedgerAgent] Transaction %s recorded across all ledgers (premium: %.2f)", trade.ID, premium)

	return LedgerResult{
		TradeID:     trade.ID,
		Entries:     3,
		Premium:     premium,
		BuyerPosKey: positionKey(trade.Buyer.ID, trade.AssetClass),
	}
}

func (a *LedgerAgent) updatePosition(party types.Party, assetClass string, direction int, price float64) {
	key := positionKey(party.ID, assetClass)
	pos, ok := a.positions[key]
	if !ok {
		pos = &Position{PartyID: party.ID, AssetClass: assetClass, AvgPrice: price}
		a.positions[key] = pos
	}
	pos.Quantity += direction
	pos.LastUpdated = time.Now()
}

// Position returns the current position for a partyID-assetClass key.
func (a *LedgerAgent) Position(key string) (Position, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	pos, ok := a.positions[key]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// CalculatePnL computes unrealized P&L from open positions against the
// supplied market prices (keyed by asset class). Missing prices are treated
// as zero-value marks.
func (a *LedgerAgent) CalculatePnL(marketPrices map[string]float64) PnLReport {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var unrealized float64
	for _, pos := range a.positions {
		marketValue := float64(pos.Quantity) * marketPrices[pos.AssetClass]
		costBasis := float64(pos.Quantity) * pos.AvgPrice
		unrealized += marketValue - costBasis
	}

	// Realized P&L would come from terminated trades in the trade ledger;
	// no terminations flow through the pipeline yet.
	report := PnLReport{UnrealizedPnL: unrealized, RealizedPnL: 0, TotalPnL: unrealized}
	log.Printf("[LedgerAgent] P&L: unrealized=%.2f realized=%.2f total=%.2f",
		report.UnrealizedPnL, report.RealizedPnL, report.TotalPnL)
	return report
}

// ReconcilePositions compares internal positions against an external
// statement keyed the same way, reporting every break.
func (a *LedgerAgent) ReconcilePositions(external map[string]float64) ReconciliationResult {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var breaks []string
	for key, externalQty := range external {
		var internalQty float64
		if pos, ok := a.positions[key]; ok {
			internalQty = float64(pos.Quantity)
		}
		if internalQty != externalQty {
			breaks = append(breaks, fmt.Sprintf("BREAK: %s - Internal: %.0f, External: %.0f", key, internalQty, externalQty))
		}
	}

	if len(breaks) == 0 {
		log.Printf("[LedgerAgent] Reconciliation CLEAN - no breaks found")
	} else {
		log.Printf("[LedgerAgent] Reconciliation BREAKS - %d discrepancies", len(breaks))
	}
	return ReconciliationResult{Clean: len(breaks) == 0, Breaks: breaks}
}

// CashBalance verifies the double-entry invariant: total debits minus total
// credits across the cash ledger.
func (a *LedgerAgent) CashBalance() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var balance float64
	for _, entry := range a.cashLedger {
		balance += entry.Debit - entry.Credit
	}
	return balance
}

// LedgerEntries returns a copy of a ledger's entries.
func (a *LedgerAgent) LedgerEntries(ledger string) []LedgerEntry {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var source []LedgerEntry
	switch ledger {
	case LedgerTrade:
		source = a.tradeLedger
	case LedgerCash:
		source = a.cashLedger
	}
	out := make([]LedgerEntry, len(source))
	copy(out, source)
	return out
}

func positionKey(partyID, assetClass string) string {
	return partyID + "-" + assetClass
}
