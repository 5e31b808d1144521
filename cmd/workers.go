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
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/korelabs/cardpilot"
	"github.com/korelabs/cardpilot/config"
	redis_db "github.com/korelabs/cardpilot/internal/redis-db"

	"github.com/hibiken/asynq"
)

// processDeliveryPoll runs one delivery poll task from the queue. Returning an
// error for a not-yet-delivered artifact makes asynq retry the task; the fixed
// retry delay plus the MaxRetry set at enqueue time implement the polling
// interval and window.
func (c *cardpilotInstance) processDeliveryPoll(ctx context.Context, t *asynq.Task) error {
	ctx, span := otel.Tracer("cardpilot.workers").Start(ctx, "Process Delivery Poll From Redis Queue")
	defer span.End()

	var payload cardpilot.DeliveryPollPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logrus.Error(err)
		return err
	}

	delivered, err := c.pilot.PollDelivery(ctx, payload.RecordID)
	if err != nil {
		logrus.Errorf("delivery poll errored for record %s: %v", payload.RecordID, err)
		return err
	}
	if !delivered {
		retryCount, _ := asynq.GetRetryCount(ctx)
		logrus.Infof("artifact not delivered yet for record %s (poll %d)", payload.RecordID, retryCount+1)
		return fmt.Errorf("artifact not delivered yet for record %s", payload.RecordID)
	}

	log.Println(" [*] Delivery Confirmed", payload.RecordID)
	return nil
}

func initializeQueues(conf *config.Configuration) map[string]int {
	queues := make(map[string]int)
	queues[conf.Queue.DeliveryQueue] = 3
	return queues
}

func initializeWorkerServer(conf *config.Configuration, queues map[string]int) (*asynq.Server, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %v", err)
	}

	pollInterval := time.Duration(*conf.Poll.IntervalSec) * time.Second

	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     redisOption.Addr,
			Password: redisOption.Password,
			DB:       redisOption.DB,
		},
		asynq.Config{
			Concurrency: 1,
			Queues:      queues,
			// Polls are evenly spaced, not exponentially backed off.
			RetryDelayFunc: func(n int, e error, t *asynq.Task) time.Duration {
				return pollInterval
			},
		},
	), nil
}

// workerCommands defines the "workers" command to start the delivery-poll
// worker process.
func workerCommands(c *cardpilotInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start cardpilot workers",
		Run: func(cmd *cobra.Command, args []string) {
			conf, err := config.Fetch()
			if err != nil {
				log.Fatal("Error fetching config:", err)
			}
			if conf.Redis.Dns == "" {
				log.Fatal("workers need a Redis DNS configured")
			}

			queues := initializeQueues(conf)
			srv, err := initializeWorkerServer(conf, queues)
			if err != nil {
				log.Fatal(err)
			}

			mux := asynq.NewServeMux()
			mux.HandleFunc(conf.Queue.DeliveryQueue, c.processDeliveryPoll)

			if err := srv.Run(mux); err != nil {
				log.Fatalf("could not run server: %v", err)
			}
		},
	}

	return cmd
}
