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
	"encoding/json"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/korelabs/cardpilot/config"
	"github.com/korelabs/cardpilot/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEventFromState(t *testing.T) {
	tests := []struct {
		state model.State
		want  string
	}{
		{model.StateIssued, "acquisition.issued"},
		{model.StateFailed, "acquisition.failed"},
		{model.StateFrozen, "acquisition.frozen"},
		{model.StateSettlementSent, "settlement.sent"},
		{model.StatePending, "acquisition.unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, getEventFromState(tt.state))
	}
}

func TestSendWebhookPostsRecord(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	cnf := testConfig()
	cnf.Notification.Webhook.Url = "http://hooks.test/cardpilot"
	cnf.Notification.Webhook.Headers = map[string]string{"X-Api-Key": "secret"}
	config.MockConfig(cnf)

	var received NewWebhook
	httpmock.RegisterResponder(http.MethodPost, "http://hooks.test/cardpilot",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "secret", req.Header.Get("X-Api-Key"))
			require.NoError(t, json.NewDecoder(req.Body).Decode(&received))
			return httpmock.NewJsonResponse(http.StatusOK, map[string]interface{}{"ok": true})
		})

	record := model.NewAcquisitionRecord("cardmoon")
	require.NoError(t, record.AttachArtifact(model.IssuedArtifact{BIN: "423768", Last4: "4242"}))

	SendWebhook(record)

	assert.Equal(t, 1, httpmock.GetTotalCallCount())
	assert.Equal(t, "acquisition.issued", received.Event)
}

func TestSendWebhookSkipsWhenUnconfigured(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	config.MockConfig(testConfig())

	record := model.NewAcquisitionRecord("cardmoon")
	record.MarkFailed("boom")
	SendWebhook(record)

	assert.Zero(t, httpmock.GetTotalCallCount())
}
