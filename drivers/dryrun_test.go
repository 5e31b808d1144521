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
	"testing"

	"github.com/korelabs/cardpilot/config"
	"github.com/korelabs/cardpilot/internal/flowerror"
	"github.com/korelabs/cardpilot/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDryRunDemandsSettlement(t *testing.T) {
	d := NewDryRunDriver(config.ProviderConfig{})
	record := model.NewAcquisitionRecord(DryRunProviderKey)

	session, err := d.NewSession(context.Background())
	require.NoError(t, err)
	defer func() { _ = session.Release(context.Background()) }()

	require.NoError(t, d.PerformAcquisition(context.Background(), session, record))
	assert.Equal(t, model.StateAwaitingSettlement, record.State)
	require.NotNil(t, record.Settlement)
	assert.Equal(t, "erc20", record.Settlement.Rail)
}

func TestDryRunDirectIssue(t *testing.T) {
	d := NewDryRunDriver(config.ProviderConfig{
		Overrides: map[string]interface{}{"direct_issue": true},
	})
	record := model.NewAcquisitionRecord(DryRunProviderKey)

	require.NoError(t, d.PerformAcquisition(context.Background(), nil, record))
	assert.Equal(t, model.StateIssued, record.State)
	require.NotNil(t, record.Artifact)
	assert.Len(t, record.Artifact.Last4, 4)
	assert.Equal(t, model.NetworkVisa, record.Network)
}

func TestDryRunFailAttempts(t *testing.T) {
	d := NewDryRunDriver(config.ProviderConfig{
		Overrides: map[string]interface{}{"fail_attempts": float64(2), "direct_issue": true},
	})
	record := model.NewAcquisitionRecord(DryRunProviderKey)

	err := d.PerformAcquisition(context.Background(), nil, record)
	require.Error(t, err)
	assert.Equal(t, flowerror.CodeTransientAutomation, flowerror.CodeOf(err))

	require.Error(t, d.PerformAcquisition(context.Background(), nil, record))
	require.NoError(t, d.PerformAcquisition(context.Background(), nil, record))
	assert.Equal(t, model.StateIssued, record.State)
}

func TestDryRunPollDelivery(t *testing.T) {
	d := NewDryRunDriver(config.ProviderConfig{
		Overrides: map[string]interface{}{"polls_required": float64(2)},
	}).(*DryRunDriver)
	record := model.NewAcquisitionRecord(DryRunProviderKey)

	require.NoError(t, d.PerformAcquisition(context.Background(), nil, record))
	require.NoError(t, record.TransitionTo(model.StateSettlementSent))

	delivered, err := d.PollDelivery(context.Background(), nil, record)
	require.NoError(t, err)
	assert.False(t, delivered)

	delivered, err = d.PollDelivery(context.Background(), nil, record)
	require.NoError(t, err)
	assert.True(t, delivered)
	assert.Equal(t, model.StateIssued, record.State)
}

func TestDryRunSessionReleaseIsSingleUse(t *testing.T) {
	d := NewDryRunDriver(config.ProviderConfig{})
	session, err := d.NewSession(context.Background())
	require.NoError(t, err)

	assert.NoError(t, session.Release(context.Background()))
	assert.Error(t, session.Release(context.Background()))
}

func TestDryRunHealthCheck(t *testing.T) {
	healthy := NewDryRunDriver(config.ProviderConfig{})
	ok, err := healthy.CheckHealth(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	frozen := NewDryRunDriver(config.ProviderConfig{
		Overrides: map[string]interface{}{"frozen": true},
	})
	ok, err = frozen.CheckHealth(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBuiltinDescriptors(t *testing.T) {
	descriptors := Builtin()
	require.NotEmpty(t, descriptors)
	assert.Equal(t, DryRunProviderKey, descriptors[0].ProviderKey)
	assert.NotNil(t, descriptors[0].Factory)
}
