// Copyright 2025 TradeFlow
// SPDX-License-Identifier: Apache-2.0
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

/*
Package types provides shared type definitions used across TradeFlow components.

# Overview

This package contains the trade domain model shared between the orchestrator,
the pipeline agents, and the regulatory reporting core. It provides a single
source of truth for trade, party, and lifecycle structures.

# Trade Model

A Trade is an immutable input value: product type, asset class, the two
counterparties with their jurisdictions and LEIs, notional, currency, and the
UTI once assigned by the processing agent. Agents never mutate a Trade; derived
values (UTI, netting set, reports) are carried on the pipeline state instead.

# Thread Safety

All types in this package are value types and are safe for concurrent use.
*/
package types
