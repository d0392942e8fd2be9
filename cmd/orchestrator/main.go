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

// Package main is the entry point for the TradeFlow Orchestrator service.
//
// The Orchestrator runs the post-trade pipeline:
// - Books and validates incoming trades
// - Enriches them with UTIs, netting sets, and intercompany mirrors
// - Fans out to regulatory reporting, confirmation, settlement,
//   ledger, and margin agents in parallel
// - Streams per-agent progress over WebSocket
//
// Usage:
//
//	./orchestrator
//
// Environment Variables:
//
//	PORT - HTTP server port (default: 8081)
//	CONFIG_FILE - platform config YAML path (optional)
//	REDIS_URL - shared execution store (optional)
//	DATABASE_URL - PostgreSQL audit trail (optional)
//	GEMINI_API_KEY - enables LLM-driven regulatory reporting (optional)
//	JWT_SECRET - enables bearer-token authentication (optional)
package main

import (
	"tradeflow/platform/orchestrator"
)

func main() {
	orchestrator.Run()
}
