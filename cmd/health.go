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

	"github.com/spf13/cobra"
)

// healthCommands defines the "health" command: re-verify issued artifacts,
// either one record or the full sweep.
func healthCommands(c *cardpilotInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "health-check [record-id]",
		Aliases: []string{"health"},
		Short:   "health-check issued cards",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			if len(args) == 1 {
				record, err := c.pilot.HealthCheck(ctx, args[0])
				if err != nil {
					log.Fatalf("health check failed: %v", err)
				}
				printRecord(record)
				return
			}

			records, err := c.pilot.HealthCheckAll(ctx)
			if err != nil {
				log.Fatalf("health sweep failed: %v", err)
			}
			if len(records) == 0 {
				fmt.Println("no issued records to check")
				return
			}
			for _, record := range records {
				printRecord(record)
			}
		},
	}
	return cmd
}
