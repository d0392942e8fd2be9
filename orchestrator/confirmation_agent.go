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

// ConfirmationStatus tracks a confirmation document's matching state.
type ConfirmationStatus string

const (
	ConfirmationPending  ConfirmationStatus = "PENDING"
	ConfirmationMatched  ConfirmationStatus = "MATCHED"
	ConfirmationDisputed ConfirmationStatus = "DISPUTED"
)

// ConfirmationDocument is an FpML-style trade confirmation.
type ConfirmationDocument struct {
	ConfirmID string             `json:"confirm_id"`
	TradeID   string             `json:"trade_id"`
	UTI       string             `json:"uti"`
	Format    string             `json:"format"`
	Content   string             `json:"content"`
	Status    ConfirmationStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
}

// ConfirmationAgent generates outbound confirmations, matches them against
// inbound counterparty confirmations, and tracks disputes.
type ConfirmationAgent struct {
	mu       sync.RWMutex
	outbound map[string]*ConfirmationDocument
	inbound  map[string]*ConfirmationDocument
	disputes []string
}

// NewConfirmationAgent creates a confirmation agent.
func NewConfirmationAgent() *ConfirmationAgent {
	return &ConfirmationAgent{
		outbound: make(map[string]*ConfirmationDocument),
		inbound:  make(map[string]*ConfirmationDocument),
	}
}

// IsConfirmable reports whether a trade requires confirmation. Cash products
// are exempt; everything else confirms.
func (a *ConfirmationAgent) IsConfirmable(trade types.Trade) bool {
	if trade.IsCashProduct() {
		log.Printf("[ConfirmationAgent] Cash product - confirmation not required for %s", trade.ID)
		return false
	}
	return true
}

// GenerateConfirmation builds and records the outbound FpML confirmation for
// a trade. Returns nil for trades exempt from confirmation.
func (a *ConfirmationAgent) GenerateConfirmation(trade types.Trade, uti string) *ConfirmationDocument {
	if !a.IsConfirmable(trade) {
		return nil
	}

	confirm := &ConfirmationDocument{
		ConfirmID: "CONF-" + uuid.NewString()[:8],
		TradeID:   trade.ID,
		UTI:       uti,
		Format:    "FPML",
		Content:   renderFpML(trade, uti),
		Status:    ConfirmationPending,
		CreatedAt: time.Now(),
	}

	a.mu.Lock()
	a.outbound[trade.ID] = confirm
	a.mu.Unlock()

	log.Printf("[ConfirmationAgent] Generated confirmation %s for trade %s", confirm.ConfirmID, trade.ID)
	return confirm
}

// ProcessInboundConfirmation matches an inbound counterparty confirmation
// against the stored outbound one. A UTI mismatch opens a dispute.
func (a *ConfirmationAgent) ProcessInboundConfirmation(tradeID string, inbound *ConfirmationDocument) ConfirmationStatus {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.inbound[tradeID] = inbound

	outbound, ok := a.outbound[tradeID]
	if !ok {
		log.Printf("[ConfirmationAgent] No outbound confirmation for trade %s, holding inbound", tradeID)
		return ConfirmationPending
	}

	if outbound.UTI == inbound.UTI {
		outbound.Status = ConfirmationMatched
		inbound.Status = ConfirmationMatched
		log.Printf("[ConfirmationAgent] MATCHED - trade %s confirmed", tradeID)
		return ConfirmationMatched
	}

	outbound.Status = ConfirmationDisputed
	inbound.Status = ConfirmationDisputed
	a.disputes = append(a.disputes, tradeID)
	log.Printf("[ConfirmationAgent] MISMATCH on trade %s (outbound UTI %s, inbound UTI %s) - dispute opened",
		tradeID, outbound.UTI, inbound.UTI)
	return ConfirmationDisputed
}

// DisputedTrades returns the trade IDs with open disputes.
func (a *ConfirmationAgent) DisputedTrades() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, len(a.disputes))
	copy(out, a.disputes)
	return out
}

// OutboundConfirmation returns the outbound document for a trade.
func (a *ConfirmationAgent) OutboundConfirmation(tradeID string) (*ConfirmationDocument, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	doc, ok := a.outbound[tradeID]
	return doc, ok
}

// renderFpML produces the simplified FpML confirmation body.
func renderFpML(trade types.Trade, uti string) string {
	var b strings.Builder
	b.WriteString("<FpmlMessage>")
	b.WriteString("<trade>")
	b.WriteString("<tradeHeader>")
	fmt.Fprintf(&b, "<uniqueTransactionIdentifier>%s</uniqueTransactionIdentifier>", uti)
	fmt.Fprintf(&b, "<tradeDate>%s</tradeDate>", time.Now().Format("2006-01-02"))
	b.WriteString("</tradeHeader>")
	fmt.Fprintf(&b, "<product>%s</product>", trade.ProductType)
	fmt.Fprintf(&b, "<notional currency=%q>%.2f</notional>", trade.Currency, trade.Notional)
	b.WriteString("</trade>")
	b.WriteString("</FpmlMessage>")
	return b.String()
}
