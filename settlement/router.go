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
	"fmt"
	"regexp"
	"strings"

	"github.com/korelabs/cardpilot/internal/flowerror"
	"github.com/korelabs/cardpilot/model"
	"github.com/sirupsen/logrus"
)

// railHints maps provider-supplied rail labels to rail families. Labels come
// from provider UIs and are messy; everything is compared lowercase.
var railHints = map[string]Rail{
	"eth":        RailEVM,
	"ethereum":   RailEVM,
	"erc20":      RailEVM,
	"usdt_erc20": RailEVM,
	"usdc":       RailEVM,
	"polygon":    RailEVM,
	"arbitrum":   RailEVM,
	"base":       RailEVM,
	"bep20":      RailEVM,
	"bnb":        RailEVM,

	"trc20":      RailTron,
	"usdt_trc20": RailTron,
	"trx":        RailTron,
	"tron":       RailTron,

	"btc":     RailBitcoin,
	"bitcoin": RailBitcoin,
}

var (
	evmAddressRe  = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	tronAddressRe = regexp.MustCompile(`^T[1-9A-HJ-NP-Za-km-z]{33}$`)
)

// Router maps settlement instructions to rail families and dispatches them to
// the configured backends.
type Router struct {
	backends map[Rail]Backend
}

// NewRouter builds a router over the given backends. A rail family with no
// backend stays routable but not executable; ExecuteTransfer reports the gap
// as BACKEND_NOT_CONFIGURED.
func NewRouter(backends ...Backend) *Router {
	indexed := make(map[Rail]Backend, len(backends))
	for _, backend := range backends {
		indexed[backend.Rail()] = backend
	}
	return &Router{backends: indexed}
}

// Backends lists the rail families with a configured backend.
func (r *Router) Backends() []Rail {
	rails := make([]Rail, 0, len(r.backends))
	for rail := range r.backends {
		rails = append(rails, rail)
	}
	return rails
}

// Route resolves the rail family for an instruction. The provider's rail hint
// wins; destination shape is the fallback. A destination that matches no known
// shape is UNRESOLVED_ROUTE.
func (r *Router) Route(instruction *model.SettlementInstruction) (Rail, error) {
	if instruction == nil {
		return "", flowerror.New(flowerror.CodeValidation, "settlement instruction is nil", nil)
	}

	if hint := strings.ToLower(strings.TrimSpace(instruction.Rail)); hint != "" {
		if rail, ok := railHints[hint]; ok {
			return rail, nil
		}
		logrus.Warnf("unknown rail hint %q, falling back to destination shape", instruction.Rail)
	}

	destination := strings.TrimSpace(instruction.Destination)
	switch {
	case evmAddressRe.MatchString(destination):
		return RailEVM, nil
	case tronAddressRe.MatchString(destination):
		return RailTron, nil
	case strings.HasPrefix(destination, "bc1"),
		strings.HasPrefix(destination, "1"),
		strings.HasPrefix(destination, "3"):
		return RailBitcoin, nil
	}

	return "", flowerror.New(flowerror.CodeUnresolvedRoute,
		fmt.Sprintf("cannot resolve rail for destination %s", RedactDestination(destination)), nil)
}

// ExecuteTransfer routes the instruction and runs it on the matching backend.
// A transfer the backend reports as unsuccessful is a BACKEND_EXECUTION error;
// the caller decides whether the attempt fails or retries.
func (r *Router) ExecuteTransfer(ctx context.Context, instruction *model.SettlementInstruction) (*TransferResult, error) {
	rail, err := r.Route(instruction)
	if err != nil {
		return nil, err
	}

	backend, ok := r.backends[rail]
	if !ok {
		return nil, flowerror.New(flowerror.CodeBackendNotConfigured,
			fmt.Sprintf("no backend configured for rail %s", rail), nil)
	}

	logrus.Infof("dispatching settlement of %s %s to rail %s (%s)",
		instruction.Amount, instruction.Currency, rail, RedactDestination(instruction.Destination))

	result, err := backend.Transfer(ctx, instruction)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return result, flowerror.New(flowerror.CodeBackendExecution,
			fmt.Sprintf("transfer rejected on rail %s: %s", rail, result.Error), nil)
	}
	return result, nil
}

// RedactDestination keeps enough of an address to correlate logs without
// recording the full destination.
func RedactDestination(destination string) string {
	if len(destination) <= 10 {
		return destination
	}
	return destination[:6] + "..." + destination[len(destination)-4:]
}
