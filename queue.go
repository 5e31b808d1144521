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
	"log"
	"time"

	"github.com/korelabs/cardpilot/config"
	redis_db "github.com/korelabs/cardpilot/internal/redis-db"

	"github.com/hibiken/asynq"
)

// Queue represents a queue for handling delivery-poll tasks.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
}

// DeliveryPollPayload is the task payload for one delivery poll.
type DeliveryPollPayload struct {
	RecordID string `json:"record_id"`
}

// NewQueue initializes a new Queue instance with the provided configuration.
//
// Parameters:
// - conf *config.Configuration: The configuration for the queue.
//
// Returns:
// - *Queue: A pointer to the newly created Queue instance.
func NewQueue(conf *config.Configuration) *Queue {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		log.Fatalf("Error parsing Redis URL: %v", err)
	}

	queueOptions := asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB}
	client := asynq.NewClient(queueOptions)
	inspector := asynq.NewInspector(queueOptions)
	return &Queue{
		Client:    client,
		Inspector: inspector,
	}
}

// EnqueueDeliveryPoll schedules the first delivery poll for a record that has
// settlement sent. The task ID is the record ID, so re-enqueueing the same
// record is a no-op while a poll task is pending. MaxRetry bounds the polling
// window: window / interval failed polls and the task dies.
//
// Parameters:
// - recordID string: The ID of the record awaiting artifact delivery.
//
// Returns:
// - error: An error if the task could not be enqueued.
func (q *Queue) EnqueueDeliveryPoll(recordID string) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	interval := time.Duration(*cfg.Poll.IntervalSec) * time.Second
	maxPolls := *cfg.Poll.WindowSec / *cfg.Poll.IntervalSec
	if maxPolls < 1 {
		maxPolls = 1
	}

	payload, err := json.Marshal(DeliveryPollPayload{RecordID: recordID})
	if err != nil {
		return err
	}
	taskOptions := []asynq.Option{
		asynq.TaskID(recordID),
		asynq.Queue(cfg.Queue.DeliveryQueue),
		asynq.ProcessIn(interval),
		asynq.MaxRetry(maxPolls - 1),
	}
	task := asynq.NewTask(cfg.Queue.DeliveryQueue, payload, taskOptions...)
	info, err := q.Client.Enqueue(task)
	if err != nil {
		log.Println(err, info)
		return err
	}
	log.Printf(" [*] Successfully enqueued delivery poll: %+v", recordID)
	return nil
}
