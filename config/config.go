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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
	"github.com/wacul/ptr"
)

const (
	DEFAULT_DATA_SOURCE = "cardpilot.db"
	DEFAULT_OUTPUT_DIR  = "output"
)

var ConfigStore atomic.Value

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"CARDPILOT_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"CARDPILOT_REDIS_DNS"`
}

// RetryConfig controls the acquisition retry wrapper: up to MaxAttempts
// attempts with exponential backoff BackoffBaseSec * 2^(attempt-1).
type RetryConfig struct {
	MaxAttempts    *int `json:"max_attempts" envconfig:"CARDPILOT_RETRY_MAX_ATTEMPTS"`
	BackoffBaseSec *int `json:"backoff_base_sec" envconfig:"CARDPILOT_RETRY_BACKOFF_BASE_SEC"`
}

// PollConfig bounds the settlement-artifact delivery polling: one poll every
// IntervalSec within a WindowSec wall-clock window.
type PollConfig struct {
	IntervalSec *int `json:"interval_sec" envconfig:"CARDPILOT_POLL_INTERVAL_SEC"`
	WindowSec   *int `json:"window_sec" envconfig:"CARDPILOT_POLL_WINDOW_SEC"`
}

type LookupConfig struct {
	BatchDelaySec *int `json:"batch_delay_sec" envconfig:"CARDPILOT_LOOKUP_BATCH_DELAY_SEC"`
	SharedCache   bool `json:"shared_cache" envconfig:"CARDPILOT_LOOKUP_SHARED_CACHE"`
}

// BridgeService points at the wallet-bridge HTTP endpoint that executes
// transfers for one rail family. Signing and nonce management live behind it.
type BridgeService struct {
	Url     string `json:"url"`
	Timeout int    `json:"timeout"`
	Headers struct {
		Authorization string `json:"Authorization"`
	} `json:"headers"`
}

type SettlementConfig struct {
	EVM     BridgeService `json:"evm"`
	Tron    BridgeService `json:"tron"`
	Bitcoin BridgeService `json:"bitcoin"`
}

type QueueConfig struct {
	DeliveryQueue string `json:"delivery_queue" envconfig:"CARDPILOT_QUEUE_DELIVERY"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type Notification struct {
	Slack   SlackWebhook `json:"slack"`
	Webhook struct {
		Url     string            `json:"url"`
		Headers map[string]string `json:"headers"`
	} `json:"webhook"`
}

// ProviderConfig carries per-provider driver settings. Overrides is passed
// through to the driver untouched; the core only recognizes the named keys.
type ProviderConfig struct {
	Headless      bool                   `json:"headless"`
	ProxyEndpoint string                 `json:"proxy_endpoint"`
	Overrides     map[string]interface{} `json:"overrides"`
}

type Configuration struct {
	ProjectName        string                    `json:"project_name" envconfig:"CARDPILOT_PROJECT_NAME"`
	OutputDir          string                    `json:"output_dir" envconfig:"CARDPILOT_OUTPUT_DIR"`
	Parallelism        *int                      `json:"parallelism" envconfig:"CARDPILOT_PARALLELISM"`
	DataSource         DataSourceConfig          `json:"data_source"`
	Redis              RedisConfig               `json:"redis"`
	Retry              RetryConfig               `json:"retry"`
	Poll               PollConfig                `json:"poll"`
	Lookup             LookupConfig              `json:"lookup"`
	Settlement         SettlementConfig          `json:"settlement"`
	Queue              QueueConfig               `json:"queue"`
	Notification       Notification              `json:"notification"`
	Providers          map[string]ProviderConfig `json:"providers"`
	AwsAccessKeyId     string                    `json:"aws_access_key_id"`
	AwsSecretAccessKey string                    `json:"aws_secret_access_key"`
	S3BucketName       string                    `json:"s3_bucket_name"`
	S3Region           string                    `json:"s3_region"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}
	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("cardpilot", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called cardpilot.json with your config")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Cardpilot"
	}

	if cnf.DataSource.Dns == "" {
		log.Printf("Warning: Data source DNS is empty. Using local store: %s", DEFAULT_DATA_SOURCE)
		cnf.DataSource.Dns = DEFAULT_DATA_SOURCE
	}

	if cnf.OutputDir == "" {
		cnf.OutputDir = DEFAULT_OUTPUT_DIR
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.OutputDir = strings.TrimSpace(cnf.OutputDir)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	if cnf.Retry.MaxAttempts == nil {
		cnf.Retry.MaxAttempts = ptr.Int(3)
	}
	if *cnf.Retry.MaxAttempts < 1 {
		return errors.New("retry max_attempts must be at least 1")
	}
	if cnf.Retry.BackoffBaseSec == nil {
		cnf.Retry.BackoffBaseSec = ptr.Int(5)
	}

	if cnf.Poll.IntervalSec == nil {
		cnf.Poll.IntervalSec = ptr.Int(60)
	}
	if cnf.Poll.WindowSec == nil {
		cnf.Poll.WindowSec = ptr.Int(1800)
	}
	if *cnf.Poll.IntervalSec < 1 {
		return errors.New("poll interval_sec must be at least 1")
	}

	if cnf.Lookup.BatchDelaySec == nil {
		cnf.Lookup.BatchDelaySec = ptr.Int(2)
	}

	if cnf.Parallelism == nil {
		cnf.Parallelism = ptr.Int(1)
	}
	if *cnf.Parallelism < 1 {
		return errors.New("parallelism must be at least 1")
	}

	if cnf.Queue.DeliveryQueue == "" {
		cnf.Queue.DeliveryQueue = "delivery_poll"
	}

	if cnf.Providers == nil {
		cnf.Providers = map[string]ProviderConfig{}
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	if err := mockConfig.validateAndAddDefaults(); err != nil {
		log.Printf("Warning: mock config validation failed: %v", err)
	}
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
