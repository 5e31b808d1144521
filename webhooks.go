/*
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
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/korelabs/cardpilot/config"
	"github.com/korelabs/cardpilot/model"
)

// NewWebhook represents the structure of a webhook notification.
// It includes an event type and associated payload data.
type NewWebhook struct {
	Event   string      `json:"event"` // The event type that triggered the webhook.
	Payload interface{} `json:"data"`  // The data associated with the event.
}

// getEventFromState maps a record state to a corresponding event string.
//
// Parameters:
// - state model.State: The state of the acquisition record.
//
// Returns:
// - string: The corresponding event string for the record state.
func getEventFromState(state model.State) string {
	switch state {
	case model.StateIssued:
		return "acquisition.issued"
	case model.StateFailed:
		return "acquisition.failed"
	case model.StateFrozen:
		return "acquisition.frozen"
	case model.StateSettlementSent:
		return "settlement.sent"
	default:
		return "acquisition.unknown"
	}
}

// processHTTP sends a webhook notification via HTTP POST request.
//
// Parameters:
// - data NewWebhook: The webhook notification data to send.
//
// Returns:
// - error: An error if the request or processing fails.
func processHTTP(data NewWebhook) error {
	conf, err := config.Fetch()
	if err != nil {
		log.Println("Error fetching config:", err)
		return err
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Println("Error marshaling data:", err)
		return err
	}
	payload := bytes.NewBuffer(jsonData)

	req, err := http.NewRequest("POST", conf.Notification.Webhook.Url, payload)
	if err != nil {
		log.Println("Error creating request:", err)
		return err
	}

	for key, value := range conf.Notification.Webhook.Headers {
		req.Header.Set(key, value)
	}

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		log.Println("Error sending request:", err)
		return err
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			logrus.Error(err)
		}
	}(resp.Body)

	// Check if the status code is not in the 2XX success range
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("Request failed with status code: %d\n", resp.StatusCode)
		return nil
	}

	log.Println("Webhook notification sent successfully:", data.Event)
	return nil
}

// SendWebhook sends a state-change notification for a record when a webhook
// URL is configured. Failures are logged, never propagated: notification is
// best effort and must not fail an acquisition.
//
// Parameters:
// - record *model.AcquisitionRecord: The record whose state changed.
func SendWebhook(record *model.AcquisitionRecord) {
	conf, err := config.Fetch()
	if err != nil {
		log.Println("Error fetching config:", err)
		return
	}

	if conf.Notification.Webhook.Url == "" {
		return
	}

	webhook := NewWebhook{
		Event:   getEventFromState(record.State),
		Payload: record,
	}
	if err := processHTTP(webhook); err != nil {
		logrus.Warnf("webhook delivery failed for record %s: %v", record.RecordID, err)
	}
}
