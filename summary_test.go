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
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/korelabs/cardpilot/config"
	"github.com/korelabs/cardpilot/lookup"
	"github.com/korelabs/cardpilot/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRunSummary(t *testing.T) {
	pilot, _ := newTestPilot(t)

	issued := model.NewAcquisitionRecord("cardmoon")
	require.NoError(t, issued.AttachArtifact(model.IssuedArtifact{BIN: "423768", Last4: "4242", Expiry: "12/27"}))

	failed := model.NewAcquisitionRecord("paywave")
	failed.MarkFailed("selector timed out")

	settling := model.NewAcquisitionRecord("cardmoon")
	require.NoError(t, settling.AttachSettlement(model.SettlementInstruction{
		Destination: "0x742d35Cc6634C0532925a3b844Bc454e4438f44e",
		Rail:        "erc20",
		Amount:      decimal.NewFromInt(25),
		Currency:    "USDT",
	}))

	summary := pilot.BuildRunSummary(context.Background(), []*model.AcquisitionRecord{issued, failed, settling})

	assert.Equal(t, 3, summary.TotalAttempted)
	assert.Equal(t, 1, summary.Counts[model.StateIssued])
	assert.Equal(t, 1, summary.Counts[model.StateFailed])
	assert.Equal(t, 1, summary.Counts[model.StateAwaitingSettlement])
	require.Len(t, summary.Records, 3)

	// Destinations never land in run output unredacted.
	assert.Equal(t, "0x742d...f44e", summary.Records[2].Settlement)

	// The issued artifact's BIN resolves through the curated table.
	require.NotNil(t, summary.Records[0].Issuer)
	assert.Equal(t, "SUTTON BANK", summary.Records[0].Issuer.IssuerName)
	assert.Equal(t, lookup.ReferenceSourceName, summary.Records[0].Issuer.Source)

	assert.Nil(t, summary.Records[1].Issuer)
	assert.Equal(t, "selector timed out", summary.Records[1].LastError)
}

func TestBuildRunSummaryDeduplicatesBINs(t *testing.T) {
	pilot, _ := newTestPilot(t)

	first := model.NewAcquisitionRecord("cardmoon")
	require.NoError(t, first.AttachArtifact(model.IssuedArtifact{BIN: "423768", Last4: "1111"}))
	second := model.NewAcquisitionRecord("cardmoon")
	require.NoError(t, second.AttachArtifact(model.IssuedArtifact{BIN: "423768", Last4: "2222"}))

	summary := pilot.BuildRunSummary(context.Background(), []*model.AcquisitionRecord{first, second})
	require.NotNil(t, summary.Records[0].Issuer)
	require.NotNil(t, summary.Records[1].Issuer)
	assert.Equal(t, summary.Records[0].Issuer, summary.Records[1].Issuer)
}

func TestBuildRunSummaryEnrichesOddLengthBIN(t *testing.T) {
	pilot, _ := newTestPilot(t)

	// A 7-character BIN resolves under its 6-character prefix; the issuer
	// still has to land on the record.
	issued := model.NewAcquisitionRecord("cardmoon")
	require.NoError(t, issued.AttachArtifact(model.IssuedArtifact{BIN: "4237681", Last4: "4242"}))

	summary := pilot.BuildRunSummary(context.Background(), []*model.AcquisitionRecord{issued})
	require.NotNil(t, summary.Records[0].Issuer)
	assert.Equal(t, "SUTTON BANK", summary.Records[0].Issuer.IssuerName)
}

func TestWriteRunSummary(t *testing.T) {
	pilot, _ := newTestPilot(t)
	outputDir := t.TempDir()

	cnf, err := config.Fetch()
	require.NoError(t, err)
	cnf.OutputDir = outputDir
	config.MockConfig(cnf)

	issued := model.NewAcquisitionRecord("cardmoon")
	require.NoError(t, issued.AttachArtifact(model.IssuedArtifact{BIN: "423768", Last4: "4242"}))
	summary := pilot.BuildRunSummary(context.Background(), []*model.AcquisitionRecord{issued})

	path, err := pilot.WriteRunSummary(context.Background(), summary)
	require.NoError(t, err)
	assert.Equal(t, outputDir, filepath.Dir(path))

	payload, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded RunSummary
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, 1, decoded.TotalAttempted)
	require.Len(t, decoded.Records, 1)
	assert.Equal(t, "SUTTON BANK", decoded.Records[0].Issuer.IssuerName)
}
