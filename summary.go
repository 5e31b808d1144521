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
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/korelabs/cardpilot/config"
	"github.com/korelabs/cardpilot/internal/reports"
	"github.com/korelabs/cardpilot/lookup"
	"github.com/korelabs/cardpilot/model"
	"github.com/korelabs/cardpilot/settlement"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// RecordSummary is one record's line in a run summary, enriched with issuer
// metadata resolved from the artifact's BIN.
type RecordSummary struct {
	RecordID    string                 `json:"record_id"`
	ProviderKey string                 `json:"provider_key"`
	State       model.State            `json:"state"`
	Network     model.Network          `json:"network"`
	Artifact    *model.IssuedArtifact  `json:"artifact,omitempty"`
	Issuer      *lookup.Result         `json:"issuer,omitempty"`
	Settlement  string                 `json:"settlement,omitempty"`
	LastError   string                 `json:"last_error,omitempty"`
	MetaData    map[string]interface{} `json:"meta_data,omitempty"`
}

// RunSummary aggregates the outcome of one acquisition run.
type RunSummary struct {
	GeneratedAt    time.Time           `json:"generated_at"`
	TotalAttempted int                 `json:"total_attempted"`
	Counts         map[model.State]int `json:"counts"`
	Records        []RecordSummary     `json:"records"`
}

// BuildRunSummary assembles a summary for the given records, resolving issuer
// metadata for every issued artifact in one rate-limited batch.
func (c *Cardpilot) BuildRunSummary(ctx context.Context, records []*model.AcquisitionRecord) *RunSummary {
	summary := &RunSummary{
		GeneratedAt:    time.Now(),
		TotalAttempted: len(records),
		Counts:         map[model.State]int{},
	}

	var bins []string
	binIndex := map[string][]int{}
	for i, record := range records {
		summary.Counts[record.State]++
		entry := RecordSummary{
			RecordID:    record.RecordID,
			ProviderKey: record.ProviderKey,
			State:       record.State,
			Network:     record.Network,
			Artifact:    record.Artifact,
			LastError:   record.LastError,
			MetaData:    record.MetaData,
		}
		if record.Settlement != nil {
			// The full destination stays out of run output.
			entry.Settlement = settlement.RedactDestination(record.Settlement.Destination)
		}
		summary.Records = append(summary.Records, entry)
		if record.Artifact != nil && record.Artifact.BIN != "" {
			if _, seen := binIndex[record.Artifact.BIN]; !seen {
				bins = append(bins, record.Artifact.BIN)
			}
			binIndex[record.Artifact.BIN] = append(binIndex[record.Artifact.BIN], i)
		}
	}

	// Results come back in input order; the join is positional because the
	// result key is the normalized prefix, not the raw BIN.
	for j, result := range c.lookup.LookupBatch(ctx, bins) {
		for _, i := range binIndex[bins[j]] {
			summary.Records[i].Issuer = result
		}
	}
	return summary
}

// WriteRunSummary writes the summary as JSON into the configured output
// directory and, when an S3 bucket is configured, uploads a copy. The local
// file is the source of truth; a failed upload only logs.
//
// Returns the local file path.
func (c *Cardpilot) WriteRunSummary(ctx context.Context, summary *RunSummary) (string, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return "", errors.Wrap(err, "failed to create output directory")
	}

	name := fmt.Sprintf("run_summary_%s.json", summary.GeneratedAt.Format("20060102_150405"))
	path := filepath.Join(cfg.OutputDir, name)

	payload, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal run summary")
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", errors.Wrap(err, "failed to write run summary")
	}
	logrus.Infof("run summary written to %s", path)

	if cfg.S3BucketName != "" {
		if err := reports.UploadToS3(ctx, cfg, path, name); err != nil {
			logrus.Errorf("run summary upload failed: %v", err)
		}
	}
	return path, nil
}
