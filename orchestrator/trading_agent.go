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

// Pre-trade limits. Values are per-trade; portfolio-level limits live in the
// margin agent.
const (
	defaultCreditLimit     = 1_000_000_000
	defaultMarketRiskLimit = 5_000_000_000
	maxOpenTrades          = 10_000
)

// TradeValidation is the outcome of pre-trade validation.
type TradeValidation struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// TradingResult is the trading agent's output for one booked trade.
type TradingResult struct {
	TradeID    string           `json:"trade_id"`
	State      types.TradeState `json:"state"`
	Validation TradeValidation  `json:"validation"`
	EventID    string           `json:"event_id,omitempty"`
	BookedAt   time.Time        `json:"booked_at"`
}

// TradingAgent runs pre-trade validation and manages the trade booking state
// machine (DRAFT -> PENDING -> BOOKED -> CONFIRMED -> TERMINATED).
type TradingAgent struct {
	mu       sync.RWMutex
	states   map[string]types.TradeState
	eventLog []types.LifecycleEvent

	creditLimit     float64
	marketRiskLimit float64
}

// NewTradingAgent creates a trading agent with default limits.
func NewTradingAgent() *TradingAgent {
	return &TradingAgent{
		states:          make(map[string]types.TradeState),
		creditLimit:     defaultCreditLimit,
		marketRiskLimit: defaultMarketRiskLimit,
	}
}

// ValidateTrade runs the layered pre-trade checks: credit limit, market
// risk, and operational capacity. All failures are collected rather than
// short-circuiting.
func (a *TradingAgent) ValidateTrade(trade types.Trade) TradeValidation {
	var errs []string

	if !a.checkCreditLimit(trade) {
		errs = append(errs, "Credit limit exceeded for counterparty")
	}
	if !a.checkMarketRisk(trade) {
		errs = append(errs, "Market risk limits breached")
	}
	if !a.checkOperationalCapacity() {
		errs = append(errs, "Operational capacity at maximum")
	}

	valid := len(errs) == 0
	if valid {
		log.Printf("[TradingAgent] Validation PASSED for trade %s", trade.ID)
	} else {
		log.Printf("[TradingAgent] Validation FAILED for trade %s: %v", trade.ID, errs)
	}
	return TradeValidation{Valid: valid, Errors: errs}
}

func (a *TradingAgent) checkCreditLimit(trade types.Trade) bool {
	return trade.Notional <= a.creditLimit
}

func (a *TradingAgent) checkMarketRisk(trade types.Trade) bool {
	return trade.Notional > 0 && trade.Notional <= a.marketRiskLimit && trade.Currency != ""
}

func (a *TradingAgent) checkOperationalCapacity() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.states) < maxOpenTrades
}

// BookTrade validates and books a trade, transitioning it to BOOKED and
// recording an execution event. Returns an error when validation fails; the
// trade stays in PENDING in that case.
func (a *TradingAgent) BookTrade(trade types.Trade) (TradingResult, error) {
	a.setState(trade.ID, types.TradeStatePending)

	validation := a.ValidateTrade(trade)
	if !validation.Valid {
		return TradingResult{
			TradeID:    trade.ID,
			State:      types.TradeStatePending,
			Validation: validation,
		}, fmt.Errorf("trade validation failed: %v", validation.Errors)
	}

	event := types.LifecycleEvent{
		EventID:   "EVT-" + uuid.NewString()[:8],
		TradeID:   trade.ID,
		Type:      types.EventExecution,
		Timestamp: time.Now(),
		Venue:     "ELECTRONIC",
	}

	a.mu.Lock()
	a.states[trade.ID] = types.TradeStateBooked
	a.eventLog = append(a.eventLog, event)
	a.mu.Unlock()

	log.Printf("[TradingAgent] Trade %s state: %s", trade.ID, types.TradeStateBooked)

	return TradingResult{
		TradeID:    trade.ID,
		State:      types.TradeStateBooked,
		Validation: validation,
		EventID:    event.EventID,
		BookedAt:   event.Timestamp,
	}, nil
}

// ApplyLifecycleEvent applies a post-trade event. Confirmation only advances
// BOOKED trades; termination is valid from any state.
func (a *TradingAgent) ApplyLifecycleEvent(tradeID string, event types.LifecycleEvent) types.TradeState {
	a.mu.Lock()
	defer a.mu.Unlock()

	current, ok := a.states[tradeID]
	if !ok {
		current = types.TradeStateDraft
	}

	next := current
	switch event.Type {
	case types.EventConfirmation:
		if current == types.TradeStateBooked {
			next = types.TradeStateConfirmed
			a.states[tradeID] = next
			log.Printf("[TradingAgent] State transition: %s -> %s", current, next)
		}
	case types.EventTermination:
		next = types.TradeStateTerminated
		a.states[tradeID] = next
		log.Printf("[TradingAgent] State transition: %s -> %s", current, next)
	}

	a.eventLog = append(a.eventLog, event)
	return next
}

// State returns the current booking state of a trade, defaulting to DRAFT.
func (a *TradingAgent) State(tradeID string) types.TradeState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if state, ok := a.states[tradeID]; ok {
		return state
	}
	return types.TradeStateDraft
}

// EventLog returns a copy of the recorded lifecycle events.
func (a *TradingAgent) EventLog() []types.LifecycleEvent {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]types.LifecycleEvent, len(a.eventLog))
	copy(out, a.eventLog)
	return out
}

func (a *TradingAgent) setState(tradeID string, state types.TradeState) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.states[tradeID] = state
}
