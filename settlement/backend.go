/*
Copyright 2025 Cardpilot Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package settlement

import (
	"context"

	"github.com/korelabs/cardpilot/model"
)

// Rail identifies a settlement rail family. Routing happens per family, not
// per asset: every EVM-shaped destination lands on the same backend.
type Rail string

const (
	RailEVM     Rail = "evm"
	RailTron    Rail = "tron"
	RailBitcoin Rail = "bitcoin"
)

// TransferResult is the outcome a backend reports for one transfer.
type TransferResult struct {
	Success        bool   `json:"success"`
	TransactionRef string `json:"transaction_ref,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Backend executes transfers for one rail family. Implementations own signing,
// nonce management and fee selection; the core never touches key material.
type Backend interface {
	Rail() Rail
	Transfer(ctx context.Context, instruction *model.SettlementInstruction) (*TransferResult, error)
}
