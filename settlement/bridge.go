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
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/korelabs/cardpilot/config"
	"github.com/korelabs/cardpilot/internal/flowerror"
	"github.com/korelabs/cardpilot/internal/request"
	"github.com/korelabs/cardpilot/model"
	"github.com/sirupsen/logrus"
)

// BridgeBackend executes transfers by delegating to a wallet-bridge HTTP
// service. One bridge instance serves one rail family.
type BridgeBackend struct {
	rail    Rail
	service config.BridgeService
}

// NewBridgeBackend validates the bridge endpoint configuration and returns a
// backend for the given rail family.
func NewBridgeBackend(rail Rail, service config.BridgeService) (*BridgeBackend, error) {
	err := validation.Validate(service.Url, validation.Required, is.URL)
	if err != nil {
		return nil, flowerror.New(flowerror.CodeBackendNotConfigured,
			fmt.Sprintf("invalid bridge url for rail %s: %v", rail, err), nil)
	}
	return &BridgeBackend{rail: rail, service: service}, nil
}

func (b *BridgeBackend) Rail() Rail {
	return b.rail
}

type bridgeTransferRequest struct {
	Destination string `json:"destination"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Rail        string `json:"rail"`
}

type bridgeTransferResponse struct {
	Status         string `json:"status"`
	TransactionRef string `json:"transaction_ref"`
	Message        string `json:"message"`
}

// Transfer posts the instruction to the bridge and maps its response to a
// TransferResult. Transport failures and non-2xx responses come back as
// BACKEND_EXECUTION errors.
func (b *BridgeBackend) Transfer(ctx context.Context, instruction *model.SettlementInstruction) (*TransferResult, error) {
	payload, err := request.ToJsonReq(&bridgeTransferRequest{
		Destination: instruction.Destination,
		Amount:      instruction.Amount.String(),
		Currency:    instruction.Currency,
		Rail:        string(b.rail),
	})
	if err != nil {
		return nil, flowerror.New(flowerror.CodeBackendExecution, err.Error(), nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.service.Url, payload)
	if err != nil {
		return nil, flowerror.New(flowerror.CodeBackendExecution, err.Error(), nil)
	}
	if b.service.Headers.Authorization != "" {
		req.Header.Set("Authorization", b.service.Headers.Authorization)
	}

	var response bridgeTransferResponse
	resp, err := request.CallWithTimeout(req, &response, time.Duration(b.service.Timeout)*time.Second)
	if err != nil {
		return nil, flowerror.New(flowerror.CodeBackendExecution,
			fmt.Sprintf("bridge call failed for rail %s: %v", b.rail, err), nil)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, flowerror.New(flowerror.CodeBackendExecution,
			fmt.Sprintf("bridge returned status %d for rail %s: %s", resp.StatusCode, b.rail, response.Message), nil)
	}

	if response.Status != "success" {
		logrus.Warnf("bridge reported transfer failure on rail %s: %s", b.rail, response.Message)
		return &TransferResult{Success: false, Error: response.Message}, nil
	}

	return &TransferResult{Success: true, TransactionRef: response.TransactionRef}, nil
}
