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

package drivers

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/korelabs/cardpilot/config"
	"github.com/korelabs/cardpilot/driver"
	"github.com/korelabs/cardpilot/internal/flowerror"
	"github.com/korelabs/cardpilot/model"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// DryRunProviderKey is the provider key of the built-in simulator.
const DryRunProviderKey = "dry_run"

// DryRunDriver simulates a full provider flow without touching the network.
// It exercises the orchestrator end to end: session lifecycle, settlement
// demand, delivery polling and health checks. Overrides recognized:
//
//	"direct_issue":   bool   - issue immediately, no settlement step
//	"fail_attempts":  float64 - fail this many attempts before succeeding
//	"polls_required": float64 - delivery polls before the artifact appears
//	"destination":    string - settlement destination to demand
type DryRunDriver struct {
	cfg      config.ProviderConfig
	attempts atomic.Int64
	polls    atomic.Int64
}

// NewDryRunDriver is the registry factory for the simulator.
func NewDryRunDriver(cfg config.ProviderConfig) driver.Driver {
	return &DryRunDriver{cfg: cfg}
}

func (d *DryRunDriver) ProviderKey() string {
	return DryRunProviderKey
}

func (d *DryRunDriver) StartURL() string {
	return "about:blank"
}

type dryRunSession struct {
	released atomic.Bool
}

func (s *dryRunSession) Release(ctx context.Context) error {
	if s.released.Swap(true) {
		return fmt.Errorf("session already released")
	}
	return nil
}

func (d *DryRunDriver) NewSession(ctx context.Context) (driver.Session, error) {
	return &dryRunSession{}, nil
}

func (d *DryRunDriver) PerformAcquisition(ctx context.Context, session driver.Session, record *model.AcquisitionRecord) error {
	attempt := d.attempts.Add(1)
	if fail := d.intOverride("fail_attempts"); attempt <= int64(fail) {
		logrus.Debugf("dry run failing attempt %d of %d", attempt, fail)
		return flowerror.New(flowerror.CodeTransientAutomation,
			fmt.Sprintf("simulated navigation timeout on attempt %d", attempt), nil)
	}

	if direct, _ := d.cfg.Overrides["direct_issue"].(bool); direct {
		return record.AttachArtifact(fakeArtifact())
	}

	// 0x + 40 hex characters, the shape of an EVM address.
	destination := gofakeit.HexUint256()[:42]
	if override, ok := d.cfg.Overrides["destination"].(string); ok && override != "" {
		destination = override
	}
	return record.AttachSettlement(model.SettlementInstruction{
		Destination: destination,
		Rail:        "erc20",
		Amount:      decimal.RequireFromString("25.00"),
		Currency:    "USDT",
	})
}

func (d *DryRunDriver) PollDelivery(ctx context.Context, session driver.Session, record *model.AcquisitionRecord) (bool, error) {
	required := d.intOverride("polls_required")
	if required == 0 {
		required = 1
	}
	if d.polls.Add(1) < int64(required) {
		return false, nil
	}
	if err := record.AttachArtifact(fakeArtifact()); err != nil {
		return false, err
	}
	return true, nil
}

func (d *DryRunDriver) CheckHealth(ctx context.Context, session driver.Session, record *model.AcquisitionRecord) (bool, error) {
	if frozen, _ := d.cfg.Overrides["frozen"].(bool); frozen {
		return false, nil
	}
	return true, nil
}

func (d *DryRunDriver) intOverride(key string) int {
	switch v := d.cfg.Overrides[key].(type) {
	case float64: // JSON numbers decode as float64
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func fakeArtifact() model.IssuedArtifact {
	number := gofakeit.CreditCardNumber(&gofakeit.CreditCardOptions{Types: []string{"visa"}})
	return model.IssuedArtifact{
		BIN:    number[:6],
		Last4:  number[len(number)-4:],
		Expiry: gofakeit.CreditCardExp(),
	}
}
