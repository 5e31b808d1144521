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
	"strings"

	"github.com/korelabs/cardpilot/database"
	"github.com/korelabs/cardpilot/drivers"
	"github.com/spf13/cobra"
)

// listCommands defines the "list" command: show stored acquisition records.
func listCommands(c *cardpilotInstance) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "list acquisition records",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			db, err := database.GetDBConnection(c.cnf)
			if err != nil {
				log.Fatalf("failed to open datasource: %v", err)
			}

			records, err := db.ListActiveRecords(ctx)
			if all {
				records, err = db.ListAllRecords(ctx)
			}
			if err != nil {
				log.Fatalf("failed to list records: %v", err)
			}
			if len(records) == 0 {
				fmt.Println("no records")
				return
			}
			for _, record := range records {
				printRecord(record)
			}
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "include failed and frozen records")
	return cmd
}

// providersCommands defines the "providers" command: render the provider
// catalog, marking which entries have a registered driver.
func providersCommands(c *cardpilotInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "list the provider catalog",
		Run: func(cmd *cobra.Command, args []string) {
			registered := map[string]bool{}
			for _, key := range c.pilot.Registry().Providers() {
				registered[key] = true
			}

			fmt.Printf("%-14s %-10s %-18s %-12s %-10s %s\n", "PROVIDER", "TYPE", "NETWORKS", "RISK", "STATUS", "DRIVER")
			for _, info := range drivers.Catalog() {
				status := "active"
				if !info.Active {
					status = "inactive"
				}
				hasDriver := "-"
				if registered[info.ProviderKey] {
					hasDriver = "yes"
				}
				fmt.Printf("%-14s %-10s %-18s %-12s %-10s %s\n",
					info.ProviderKey, info.SignupType, strings.Join(info.Networks, ","),
					info.RiskLevel, status, hasDriver)
			}
		},
	}
	return cmd
}
