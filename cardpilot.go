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

package cardpilot

import (
	"time"

	"github.com/korelabs/cardpilot/cache"
	"github.com/korelabs/cardpilot/config"
	"github.com/korelabs/cardpilot/database"
	"github.com/korelabs/cardpilot/driver"
	"github.com/korelabs/cardpilot/drivers"
	"github.com/korelabs/cardpilot/lookup"
	"github.com/korelabs/cardpilot/settlement"
	"github.com/sirupsen/logrus"
)

// deliveryScheduler schedules delivery polling for settlement-sent records.
type deliveryScheduler interface {
	EnqueueDeliveryPoll(recordID string) error
}

// Cardpilot represents the main struct for the Cardpilot application.
type Cardpilot struct {
	registry   *driver.Registry
	router     *settlement.Router
	lookup     *lookup.Engine
	datasource database.IDataSource
	queue      deliveryScheduler
}

// NewCardpilot initializes a new instance of Cardpilot with the provided
// database datasource. It fetches the configuration, registers the builtin
// drivers and builds the settlement router from the configured bridges.
//
// Parameters:
// - db database.IDataSource: The datasource for database operations.
//
// Returns:
// - *Cardpilot: A pointer to the newly created Cardpilot instance.
// - error: An error if any of the initialization steps fail.
func NewCardpilot(db database.IDataSource) (*Cardpilot, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	registry := driver.NewRegistry()
	registry.Discover(drivers.Builtin())

	router, err := buildRouter(configuration)
	if err != nil {
		return nil, err
	}

	var sharedTier cache.Cache
	if configuration.Lookup.SharedCache && configuration.Redis.Dns != "" {
		sharedTier, err = cache.NewCache()
		if err != nil {
			logrus.Warnf("shared lookup tier unavailable, continuing without it: %v", err)
			sharedTier = nil
		}
	}
	engine := lookup.NewEngine(sharedTier, time.Duration(*configuration.Lookup.BatchDelaySec)*time.Second)

	newCardpilot := &Cardpilot{
		registry:   registry,
		router:     router,
		lookup:     engine,
		datasource: db,
	}
	if configuration.Redis.Dns != "" {
		newCardpilot.queue = NewQueue(configuration)
	}
	return newCardpilot, nil
}

// buildRouter creates a settlement backend for every rail family with a
// configured bridge URL. Rails without a bridge stay unconfigured and surface
// as BACKEND_NOT_CONFIGURED when an instruction routes to them.
func buildRouter(configuration *config.Configuration) (*settlement.Router, error) {
	services := map[settlement.Rail]config.BridgeService{
		settlement.RailEVM:     configuration.Settlement.EVM,
		settlement.RailTron:    configuration.Settlement.Tron,
		settlement.RailBitcoin: configuration.Settlement.Bitcoin,
	}

	var backends []settlement.Backend
	for rail, service := range services {
		if service.Url == "" {
			continue
		}
		backend, err := settlement.NewBridgeBackend(rail, service)
		if err != nil {
			return nil, err
		}
		backends = append(backends, backend)
	}
	return settlement.NewRouter(backends...), nil
}

// Registry exposes the driver registry, for registering local drivers before a run.
func (c *Cardpilot) Registry() *driver.Registry {
	return c.registry
}

// Lookup exposes the issuer lookup engine.
func (c *Cardpilot) Lookup() *lookup.Engine {
	return c.lookup
}
