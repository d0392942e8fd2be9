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
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tradeflow/platform/shared/types"
)

// ProcessingResult is the processing agent's output: identifiers and derived
// structure for a trade, plus the mirror trade when intercompany.
type ProcessingResult struct {
	TradeID      string        `json:"trade_id"`
	UTI          string        `json:"uti"`
	NettingSet   string        `json:"netting_set"`
	Intercompany bool          `json:"intercompany"`
	Trades       []types.Trade `json:"trades"`
}

// ProcessingAgent handles post-booking trade processing: UTI generation,
// intercompany mirror detection, and netting-set assignment.
type ProcessingAgent struct {
	mu          sync.RWMutex
	nettingSets map[string]string
	mirrors     map[string][]types.Trade
}

// NewProcessingAgent creates a processing agent.
func NewProcessingAgent() *ProcessingAgent {
	return &ProcessingAgent{
		nettingSets: make(map[string]string),
		mirrors:     make(map[string][]types.Trade),
	}
}

// Process runs the full processing step for one trade. The input trade is
// not mutated; the UTI-bearing copy is returned in Trades[0].
func (a *ProcessingAgent) Process(trade types.Trade) ProcessingResult {
	uti := trade.UTI
	if uti == "" {
		uti = a.GenerateUTI(trade)
	}

	processed := trade
	processed.UTI = uti

	trades := []types.Trade{processed}
	intercompany := a.isIntercompany(trade.Buyer, trade.Seller)
	if intercompany {
		log.Printf("[ProcessingAgent] Detected INTERCOMPANY trade %s - generating mirror", trade.ID)
		trades = append(trades, a.createMirrorTrade(processed))

		a.mu.Lock()
		a.mirrors[trade.ID] = trades
		a.mu.Unlock()
	}

	nettingSet := a.AssignNettingSet(processed)

	return ProcessingResult{
		TradeID:      trade.ID,
		UTI:          uti,
		NettingSet:   nettingSet,
		Intercompany: intercompany,
		Trades:       trades,
	}
}

// GenerateUTI derives a Unique Transaction Identifier in the form
// LEI:YYYYMMDD-RANDOM8.
func (a *ProcessingAgent) GenerateUTI(trade types.Trade) string {
	random := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	uti := fmt.Sprintf("%s:%s-%s", trade.Buyer.LEI, time.Now().Format("20060102"), random)
	log.Printf("[ProcessingAgent] Generated UTI: %s", uti)
	return uti
}

// AssignNettingSet assigns the trade to a netting set keyed by counterparty
// pair and asset class.
func (a *ProcessingAgent) AssignNettingSet(trade types.Trade) string {
	nettingSet := fmt.Sprintf("NS-%s-%s-%s", trade.Buyer.ID, trade.Seller.ID, trade.AssetClass)

	a.mu.Lock()
	a.nettingSets[trade.ID] = nettingSet
	a.mu.Unlock()

	log.Printf("[ProcessingAgent] Assigned trade %s to netting set: %s", trade.ID, nettingSet)
	return nettingSet
}

// NettingSet returns the netting set previously assigned to a trade.
func (a *ProcessingAgent) NettingSet(tradeID string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ns, ok := a.nettingSets[tradeID]
	return ns, ok
}

// MirrorTrades returns the trade group recorded for an intercompany trade.
func (a *ProcessingAgent) MirrorTrades(tradeID string) ([]types.Trade, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	trades, ok := a.mirrors[tradeID]
	return trades, ok
}

// isIntercompany reports whether both parties belong to the same legal
// entity group, indicated by the ENTITY_ prefix convention.
func (a *ProcessingAgent) isIntercompany(buyer, seller types.Party) bool {
	return strings.HasPrefix(buyer.ID, "ENTITY_") && strings.HasPrefix(seller.ID, "ENTITY_")
}

// createMirrorTrade builds the reciprocal internal-accounting trade with
// reversed party roles.
func (a *ProcessingAgent) createMirrorTrade(original types.Trade) types.Trade {
	mirror := original
	mirror.ID = original.ID + "-MIRROR"
	mirror.Buyer, mirror.Seller = original.Seller, original.Buyer
	return mirror
}
