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
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tradeflow/platform/shared/types"
)

// Cashflow rates applied when projecting from trade economics. The upfront
// premium and the coupon are fractions of notional.
const (
	premiumRate        = 0.01
	couponRate         = 0.0025
	projectedCoupons   = 4
	couponPeriodMonths = 6
)

// Settlement instruction statuses.
const (
	SettlementPending = "PENDING"
	SettlementSettled = "SETTLED"
	SettlementFailed  = "FAILED"
)

// CashFlow is a single projected payment.
type CashFlow struct {
	PaymentDate time.Time `json:"payment_date"`
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currency"`
	Type        string    `json:"type"`
}

// SettlementInstruction is a payment to be made against a counterparty.
type SettlementInstruction struct {
	InstructionID string    `json:"instruction_id"`
	TradeID       string    `json:"trade_id"`
	Counterparty  string    `json:"counterparty"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	ValueDate     time.Time `json:"value_date"`
	Status        string    `json:"status"`
}

// SettlementSummary aggregates instruction statuses for reporting.
type SettlementSummary struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Settled int `json:"settled"`
	Failed  int `json:"failed"`
}

// SettlementResult is the settlement agent's per-trade output.
type SettlementResult struct {
	TradeID      string                  `json:"trade_id"`
	Cashflows    []CashFlow              `json:"cashflows"`
	Instructions []SettlementInstruction `json:"instructions"`
	SwiftMessage string                  `json:"swift_message,omitempty"`
}

// SettlementAgent projects cashflows, nets payments, renders SWIFT messages,
// and tracks settlement status including fails.
type SettlementAgent struct {
	mu     sync.RWMutex
	queue  []SettlementInstruction
	status map[string]string
}

// NewSettlementAgent creates a settlement agent.
func NewSettlementAgent() *SettlementAgent {
	return &SettlementAgent{status: make(map[string]string)}
}

// ProjectCashflows derives the payment schedule from trade economics: an
// upfront premium at T+2 and semiannual coupons.
func (a *SettlementAgent) ProjectCashflows(trade types.Trade) []CashFlow {
	now := time.Now()
	cashflows := []CashFlow{
		{
			PaymentDate: now.AddDate(0, 0, 2),
			Amount:      trade.Notional * premiumRate,
			Currency:    trade.Currency,
			Type:        "PREMIUM",
		},
	}

	paymentDate := now.AddDate(0, couponPeriodMonths, 0)
	for i := 0; i < projectedCoupons; i++ {
		cashflows = append(cashflows, CashFlow{
			PaymentDate: paymentDate,
			Amount:      trade.Notional * couponRate,
			Currency:    trade.Currency,
			Type:        "COUPON",
		})
		paymentDate = paymentDate.AddDate(0, couponPeriodMonths, 0)
	}

	log.Printf("[SettlementAgent] Projected %d cashflows for trade %s", len(cashflows), trade.ID)
	return cashflows
}

// Settle runs the full settlement step for one trade: project cashflows,
// build the first payment instruction, and propose it for settlement.
func (a *SettlementAgent) Settle(trade types.Trade) SettlementResult {
	cashflows := a.ProjectCashflows(trade)

	instruction := SettlementInstruction{
		InstructionID: "SI-" + uuid.NewString()[:8],
		TradeID:       trade.ID,
		Counterparty:  trade.Seller.ID,
		Amount:        cashflows[0].Amount,
		Currency:      cashflows[0].Currency,
		ValueDate:     cashflows[0].PaymentDate,
		Status:        SettlementPending,
	}
	swift := a.ProposeSettlement(instruction)

	return SettlementResult{
		TradeID:      trade.ID,
		Cashflows:    cashflows,
		Instructions: []SettlementInstruction{instruction},
		SwiftMessage: swift,
	}
}

// CalculateNetting collapses instructions into one net payment per
// (counterparty, currency, value date) group. Output order is deterministic
// by group key.
func (a *SettlementAgent) CalculateNetting(instructions []SettlementInstruction) []SettlementInstruction {
	groups := make(map[string][]SettlementInstruction)
	for _, inst := range instructions {
		key := fmt.Sprintf("%s-%s-%s", inst.Counterparty, inst.Currency, inst.ValueDate.Format("2006-01-02"))
		groups[key] = append(groups[key], inst)
	}

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	netted := make([]SettlementInstruction, 0, len(groups))
	for _, key := range keys {
		group := groups[key]
		net := 0.0
		for _, inst := range group {
			net += inst.Amount
		}

		sample := group[0]
		netted = append(netted, SettlementInstruction{
			InstructionID: "SI-NET-" + uuid.NewString()[:8],
			TradeID:       sample.TradeID,
			Counterparty:  sample.Counterparty,
			Amount:        net,
			Currency:      sample.Currency,
			ValueDate:     sample.ValueDate,
			Status:        SettlementPending,
		})
		log.Printf("[SettlementAgent] Netted %d payments into net amount: %.2f %s", len(group), net, sample.Currency)
	}

	return netted
}

// GenerateSWIFTMessage renders the MT103 payment message for an instruction.
func (a *SettlementAgent) GenerateSWIFTMessage(instruction SettlementInstruction) string {
	var b strings.Builder
	b.WriteString("{1:F01BANKAUS33XXX0000000000}")
	b.WriteString("{2:O1031234567890BANKGB2LXXX}")
	b.WriteString("{4:\n")
	fmt.Fprintf(&b, ":20:%s\n", instruction.InstructionID)
	fmt.Fprintf(&b, ":32A:%s%s%.2f\n", instruction.ValueDate.Format("060102"), instruction.Currency, instruction.Amount)
	fmt.Fprintf(&b, ":50K:/%s\n", "ORDERING_CUSTOMER")
	fmt.Fprintf(&b, ":59:/%s\n", instruction.Counterparty)
	b.WriteString("-}")
	return b.String()
}

// ProposeSettlement queues an instruction, marks it pending, and returns the
// generated SWIFT message.
func (a *SettlementAgent) ProposeSettlement(instruction SettlementInstruction) string {
	a.mu.Lock()
	a.queue = append(a.queue, instruction)
	a.status[instruction.InstructionID] = SettlementPending
	a.mu.Unlock()

	swift := a.GenerateSWIFTMessage(instruction)
	log.Printf("[SettlementAgent] Settlement initiated for %s - awaiting confirmation", instruction.InstructionID)
	return swift
}

// ProcessSettlementStatus records a status update from the payment system.
// Failures are logged with a fail ticket note for operations.
func (a *SettlementAgent) ProcessSettlementStatus(instructionID, status string) {
	a.mu.Lock()
	a.status[instructionID] = status
	a.mu.Unlock()

	log.Printf("[SettlementAgent] Settlement %s status updated: %s", instructionID, status)
	if status == SettlementFailed {
		log.Printf("[SettlementAgent] SETTLEMENT FAILED - creating fail ticket, retry scheduled for next value date")
	}
}

// Status returns an instruction's current status.
func (a *SettlementAgent) Status(instructionID string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s, ok := a.status[instructionID]
	return s, ok
}

// Summary aggregates instruction counts by status.
func (a *SettlementAgent) Summary() SettlementSummary {
	a.mu.RLock()
	defer a.mu.RUnlock()

	summary := SettlementSummary{Total: len(a.status)}
	for _, status := range a.status {
		switch status {
		case SettlementPending:
			summary.Pending++
		case SettlementSettled:
			summary.Settled++
		case SettlementFailed:
			summary.Failed++
		}
	}
	return summary
}
