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

package main

import (
	"context"
	"fmt"
	"log"

	"github.com/korelabs/cardpilot/model"
	"github.com/spf13/cobra"
)

// acquireCommands defines the "acquire" command: run acquisitions against one
// provider, several providers, or every registered one.
func acquireCommands(c *cardpilotInstance) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "acquire [provider...]",
		Short: "run card acquisitions against providers",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			providers := args
			if all {
				// Inactive catalog entries (waitlisted, withdrawn) stay out
				// of whole-catalog runs.
				providers = c.pilot.Registry().ActiveProviders()
			}
			if len(providers) == 0 {
				log.Fatal("no providers given; pass provider keys or --all")
			}

			records := c.pilot.AcquireAll(ctx, providers)

			summary := c.pilot.BuildRunSummary(ctx, records)
			path, err := c.pilot.WriteRunSummary(ctx, summary)
			if err != nil {
				log.Fatalf("failed to write run summary: %v", err)
			}

			for _, record := range records {
				printRecord(record)
			}
			fmt.Printf("\n%d attempted, %d issued, %d awaiting delivery, %d failed\nsummary: %s\n",
				summary.TotalAttempted,
				summary.Counts[model.StateIssued],
				summary.Counts[model.StateSettlementSent],
				summary.Counts[model.StateFailed],
				path)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "acquire from every active registered provider")
	return cmd
}

func printRecord(record *model.AcquisitionRecord) {
	line := fmt.Sprintf("%s  %-12s  %s", record.RecordID, record.ProviderKey, record.State)
	if record.Artifact != nil {
		line += fmt.Sprintf("  %s****%s exp %s", record.Artifact.BIN, record.Artifact.Last4, record.Artifact.Expiry)
	}
	if record.LastError != "" {
		line += fmt.Sprintf("  (%s)", record.LastError)
	}
	fmt.Println(line)
}
