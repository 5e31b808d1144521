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
	"context"
	"sync/atomic"

	"github.com/korelabs/cardpilot/driver"
	"github.com/korelabs/cardpilot/model"
)

// MockSession is a test double that records whether it was released.
type MockSession struct {
	Released  atomic.Bool
	OnRelease func(ctx context.Context) error
}

func (m *MockSession) Release(ctx context.Context) error {
	m.Released.Store(true)
	if m.OnRelease != nil {
		return m.OnRelease(ctx)
	}
	return nil
}

// MockDriver is a function-field driver for orchestrator tests. Nil fields
// fall back to benign defaults.
type MockDriver struct {
	Key                    string
	NewSessionFunc         func(ctx context.Context) (driver.Session, error)
	PerformAcquisitionFunc func(ctx context.Context, session driver.Session, record *model.AcquisitionRecord) error
	CheckHealthFunc        func(ctx context.Context, session driver.Session, record *model.AcquisitionRecord) (bool, error)
	PollDeliveryFunc       func(ctx context.Context, session driver.Session, record *model.AcquisitionRecord) (bool, error)

	Sessions []*MockSession
}

func (m *MockDriver) ProviderKey() string {
	if m.Key == "" {
		return "mock"
	}
	return m.Key
}

func (m *MockDriver) StartURL() string {
	return "https://mock.test"
}

func (m *MockDriver) NewSession(ctx context.Context) (driver.Session, error) {
	if m.NewSessionFunc != nil {
		return m.NewSessionFunc(ctx)
	}
	session := &MockSession{}
	m.Sessions = append(m.Sessions, session)
	return session, nil
}

func (m *MockDriver) PerformAcquisition(ctx context.Context, session driver.Session, record *model.AcquisitionRecord) error {
	if m.PerformAcquisitionFunc != nil {
		return m.PerformAcquisitionFunc(ctx, session, record)
	}
	return record.AttachArtifact(model.IssuedArtifact{BIN: "423768", Last4: "4242", Expiry: "12/27"})
}

func (m *MockDriver) CheckHealth(ctx context.Context, session driver.Session, record *model.AcquisitionRecord) (bool, error) {
	if m.CheckHealthFunc != nil {
		return m.CheckHealthFunc(ctx, session, record)
	}
	return true, nil
}

func (m *MockDriver) PollDelivery(ctx context.Context, session driver.Session, record *model.AcquisitionRecord) (bool, error) {
	if m.PollDeliveryFunc != nil {
		return m.PollDeliveryFunc(ctx, session, record)
	}
	return true, record.AttachArtifact(model.IssuedArtifact{BIN: "423768", Last4: "4242", Expiry: "12/27"})
}
