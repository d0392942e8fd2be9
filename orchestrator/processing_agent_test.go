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
	"strings"
	"testing"
	"time"
)

func TestGenerateUTI(t *testing.T) {
	agent := NewProcessingAgent()
	trade := testTrade()

	uti := agent.GenerateUTI(trade)

	prefix := fmt.Sprintf("%s:%s-", trade.Buyer.LEI, time.Now().Format("20060102"))
	if !strings.HasPrefix(uti, prefix) {
		t.Errorf("UTI %q missing prefix %q", uti, prefix)
	}
	random := strings.TrimPrefix(uti, prefix)
	if len(random) != 8 {
		t.Errorf("Expected 8-char random suffix, got %q", random)
	}
	if random != strings.ToUpper(random) {
		t.Errorf("Random suffix must be uppercase, got %q", random)
	}

	if agent.GenerateUTI(trade) == uti {
		t.Error("Consecutive UTIs must differ")
	}
}

func TestProcessAssignsUTIAndNettingSet(t *testing.T) {
	agent := NewProcessingAgent()
	trade := testTrade()

	result := agent.Process(trade)

	if result.UTI == "" {
		t.Fatal("Expected generated UTI")
	}
	want := "NS-BANK_A-BANK_B_EU-InterestRate"
	if result.NettingSet != want {
		t.Errorf("NettingSet = %q, want %q", result.NettingSet, want)
	}
	if result.Intercompany {
		t.Error("External counterparties must not be intercompany")
	}
	if len(result.Trades) != 1 {
		t.Fatalf("Expected single trade, got %d", len(result.Trades))
	}
	if result.Trades[0].UTI != result.UTI {
		t.Error("Processed trade must carry the generated UTI")
	}
	if trade.UTI != "" {
		t.Error("Input trade must not be mutated")
	}

	if ns, ok := agent.NettingSet(trade.ID); !ok || ns != want {
		t.Errorf("Stored netting set = %q, %v", ns, ok)
	}
}

func TestProcessPreservesExistingUTI(t *testing.T) {
	agent := NewProcessingAgent()
	trade := testTrade()
	trade.UTI = "UTI-PRESET"

	result := agent.Process(trade)
	if result.UTI != "UTI-PRESET" {
		t.Errorf("Expected preset UTI preserved, got %q", result.UTI)
	}
}

func TestProcessIntercompanyMirror(t *testing.T) {
	agent := NewProcessingAgent()
	trade := testTrade()
	trade.Buyer.ID = "ENTITY_LONDON"
	trade.Seller.ID = "ENTITY_NY"

	result := agent.Process(trade)

	if !result.Intercompany {
		t.Fatal("Expected intercompany detection")
	}
	if len(result.Trades) != 2 {
		t.Fatalf("Expected original plus mirror, got %d trades", len(result.Trades))
	}

	mirror := result.Trades[1]
	if mirror.ID != trade.ID+"-MIRROR" {
		t.Errorf("Mirror ID = %q", mirror.ID)
	}
	if mirror.Buyer.ID != "ENTITY_NY" || mirror.Seller.ID != "ENTITY_LONDON" {
		t.Error("Mirror trade must reverse party roles")
	}

	stored, ok := agent.MirrorTrades(trade.ID)
	if !ok || len(stored) != 2 {
		t.Errorf("Mirror group not stored: %v, %v", stored, ok)
	}
}
