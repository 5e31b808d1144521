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
	"fmt"
	"log"
	"os"

	"github.com/korelabs/cardpilot"
	"github.com/korelabs/cardpilot/config"
	"github.com/korelabs/cardpilot/database"
	"github.com/korelabs/cardpilot/internal/notification"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Cardpilot represents the CLI application, encapsulating the root Cobra command.
type Cardpilot struct {
	cmd *cobra.Command
}

// cardpilotInstance holds the Cardpilot instance and its configuration.
type cardpilotInstance struct {
	pilot *cardpilot.Cardpilot
	cnf   *config.Configuration
}

// recoverPanic handles any panics during program execution and logs the error using Logrus.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun sets up the configuration and initializes the Cardpilot instance
// before running any command.
func preRun(app *cardpilotInstance, configFile *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig(*configFile)
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		newPilot, err := setupCardpilot(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.pilot = newPilot
		app.cnf = cnf

		return nil
	}
}

// setupCardpilot creates and initializes a new Cardpilot instance based on the
// provided configuration.
func setupCardpilot(cfg *config.Configuration) (*cardpilot.Cardpilot, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	newPilot, err := cardpilot.NewCardpilot(db)
	if err != nil {
		return nil, fmt.Errorf("error creating cardpilot: %v", err)
	}
	return newPilot, nil
}

// NewCLI creates the command-line interface (CLI) for the Cardpilot application.
func NewCLI() *Cardpilot {
	var configFile string
	c := &cardpilotInstance{}

	var rootCmd = &cobra.Command{
		Use:   "cardpilot",
		Short: "Card acquisition orchestrator",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./cardpilot.json", "Configuration file for cardpilot")
	rootCmd.PersistentPreRunE = preRun(c, &configFile)

	rootCmd.AddCommand(acquireCommands(c))
	rootCmd.AddCommand(healthCommands(c))
	rootCmd.AddCommand(listCommands(c))
	rootCmd.AddCommand(providersCommands(c))
	rootCmd.AddCommand(workerCommands(c))

	return &Cardpilot{cmd: rootCmd}
}

// executeCLI runs the root command, handling any errors that occur during execution.
func (w Cardpilot) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
