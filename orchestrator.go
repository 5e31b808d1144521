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
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/korelabs/cardpilot/config"
	"github.com/korelabs/cardpilot/driver"
	"github.com/korelabs/cardpilot/internal/flowerror"
	"github.com/korelabs/cardpilot/internal/notification"
	"github.com/korelabs/cardpilot/model"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("cardpilot.orchestrator")

// Acquire runs one full acquisition against a provider: driver resolution,
// retried automation, settlement when demanded, and persistence after every
// transition. It always returns a record; an acquisition that exhausts its
// retries comes back FAILED with the last error recorded, not as a Go error.
// The returned error is reserved for infrastructure failures (unknown
// provider, persistence).
func (c *Cardpilot) Acquire(ctx context.Context, providerKey string) (*model.AcquisitionRecord, error) {
	ctx, span := tracer.Start(ctx, "Acquire", trace.WithAttributes(
		attribute.String("provider.key", providerKey),
	))
	defer span.End()

	factory, err := c.registry.Resolve(providerKey)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	d := factory(cfg.Providers[providerKey])
	record := model.NewAcquisitionRecord(d.ProviderKey())
	if err := c.datasource.SaveRecord(ctx, record); err != nil {
		return nil, errors.Wrap(err, "failed to persist new record")
	}

	c.acquireWithRetry(ctx, d, record, cfg)

	if err := c.datasource.SaveRecord(ctx, record); err != nil {
		return record, errors.Wrap(err, "failed to persist record outcome")
	}
	if record.State == model.StateSettlementSent && c.queue != nil {
		// Poll workers read the persisted state, so scheduling waits for the
		// save above to land.
		if err := c.queue.EnqueueDeliveryPoll(record.RecordID); err != nil {
			logrus.Errorf("failed to enqueue delivery poll for record %s: %v", record.RecordID, err)
		}
	}
	if record.State.Terminal() || record.State == model.StateSettlementSent {
		go SendWebhook(record)
	}
	span.SetAttributes(attribute.String("record.state", string(record.State)))
	return record, nil
}

// acquireWithRetry drives the attempt loop. Each attempt gets a fresh session;
// transient automation failures back off exponentially, classified permanent
// failures (validation, routing, backend gaps) stop immediately. When the
// budget is spent the record is FAILED with the last attempt's error.
func (c *Cardpilot) acquireWithRetry(ctx context.Context, d driver.Driver, record *model.AcquisitionRecord, cfg *config.Configuration) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Duration(*cfg.Retry.BackoffBaseSec) * time.Second
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.MaxElapsedTime = 0

	attempt := 0
	operation := func() error {
		attempt++
		logrus.Infof("acquisition attempt %d/%d for provider %s (record %s)",
			attempt, *cfg.Retry.MaxAttempts, record.ProviderKey, record.RecordID)

		err := c.runAttempt(ctx, d, record)
		if err == nil {
			return nil
		}
		if !flowerror.Retryable(err) {
			return backoff.Permanent(err)
		}
		logrus.Warnf("attempt %d failed for record %s: %v", attempt, record.RecordID, err)
		return err
	}

	err := backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(policy, uint64(*cfg.Retry.MaxAttempts-1)), ctx))
	if err != nil {
		record.MarkFailed(err.Error())
		notification.NotifyError(errors.Wrapf(err, "acquisition failed for record %s after %d attempt(s)", record.RecordID, attempt))
	}
}

// runAttempt executes one attempt: session, automation, and settlement if the
// provider demanded one. The session is always released, including when ctx
// was cancelled mid-attempt.
func (c *Cardpilot) runAttempt(ctx context.Context, d driver.Driver, record *model.AcquisitionRecord) error {
	ctx, span := tracer.Start(ctx, "runAttempt")
	defer span.End()

	session, err := d.NewSession(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to open session")
	}
	defer func() {
		if session == nil {
			return
		}
		if releaseErr := session.Release(context.WithoutCancel(ctx)); releaseErr != nil {
			logrus.Warnf("session release failed for record %s: %v", record.RecordID, releaseErr)
		}
	}()

	if err := d.PerformAcquisition(ctx, session, record); err != nil {
		return err
	}

	if record.State == model.StateAwaitingSettlement {
		if err := c.settle(ctx, record); err != nil {
			return err
		}
	}

	if err := c.datasource.SaveRecord(ctx, record); err != nil {
		return backoff.Permanent(errors.Wrap(err, "failed to persist record state"))
	}
	return nil
}

// settle routes and executes the record's settlement instruction, then moves
// the record to SETTLEMENT_SENT. Delivery polling is scheduled by Acquire
// once the new state is persisted. Routing and backend-configuration failures
// are permanent; the instruction will not route differently on a retry.
func (c *Cardpilot) settle(ctx context.Context, record *model.AcquisitionRecord) error {
	ctx, span := tracer.Start(ctx, "settle", trace.WithAttributes(
		attribute.String("record.id", record.RecordID),
	))
	defer span.End()

	result, err := c.router.ExecuteTransfer(ctx, record.Settlement)
	if err != nil {
		switch flowerror.CodeOf(err) {
		case flowerror.CodeUnresolvedRoute, flowerror.CodeBackendNotConfigured, flowerror.CodeValidation:
			return backoff.Permanent(err)
		}
		return err
	}

	record.MetaData["settlement_tx"] = result.TransactionRef
	if err := record.TransitionTo(model.StateSettlementSent); err != nil {
		return backoff.Permanent(err)
	}
	return nil
}

// AcquireAll runs acquisitions for several providers concurrently, bounded by
// the configured parallelism. Every provider yields a record in the result:
// an unknown provider key becomes a FAILED record rather than aborting the
// batch.
func (c *Cardpilot) AcquireAll(ctx context.Context, providerKeys []string) []*model.AcquisitionRecord {
	ctx, span := tracer.Start(ctx, "AcquireAll", trace.WithAttributes(
		attribute.Int("provider.count", len(providerKeys)),
	))
	defer span.End()

	cfg, err := config.Fetch()
	parallelism := 1
	if err == nil {
		parallelism = *cfg.Parallelism
	}

	records := make([]*model.AcquisitionRecord, len(providerKeys))
	group := new(errgroup.Group)
	group.SetLimit(parallelism)
	for i, providerKey := range providerKeys {
		i, providerKey := i, providerKey
		group.Go(func() error {
			record, err := c.Acquire(ctx, providerKey)
			if record == nil {
				record = model.NewAcquisitionRecord(providerKey)
				record.MarkFailed(err.Error())
			}
			records[i] = record
			return nil
		})
	}
	_ = group.Wait()
	return records
}

// HealthCheck verifies that an issued artifact is still alive. A single shot:
// a provider portal that cannot be reached is treated as unhealthy, not
// retried, because a false FROZEN is recoverable while silent staleness is
// not. The record moves to FROZEN when the check fails.
func (c *Cardpilot) HealthCheck(ctx context.Context, recordID string) (*model.AcquisitionRecord, error) {
	ctx, span := tracer.Start(ctx, "HealthCheck", trace.WithAttributes(
		attribute.String("record.id", recordID),
	))
	defer span.End()

	record, err := c.datasource.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if record.State != model.StateIssued {
		return record, flowerror.New(flowerror.CodeValidation,
			fmt.Sprintf("record %s is %s, only ISSUED records are health-checked", recordID, record.State), nil)
	}

	factory, err := c.registry.Resolve(record.ProviderKey)
	if err != nil {
		return record, err
	}
	cfg, err := config.Fetch()
	if err != nil {
		return record, err
	}
	d := factory(cfg.Providers[record.ProviderKey])

	session, err := d.NewSession(ctx)
	if err != nil {
		err = errors.Wrap(err, "health check session failed")
	}
	healthy := false
	if err == nil {
		defer func() {
			if releaseErr := session.Release(context.WithoutCancel(ctx)); releaseErr != nil {
				logrus.Warnf("session release failed for record %s: %v", record.RecordID, releaseErr)
			}
		}()
		healthy, err = d.CheckHealth(ctx, session, record)
	}

	if err != nil || !healthy {
		if err != nil {
			logrus.Warnf("health check errored for record %s, treating as unhealthy: %v", recordID, err)
			record.LastError = err.Error()
		}
		if transitionErr := record.TransitionTo(model.StateFrozen); transitionErr != nil {
			return record, transitionErr
		}
		if saveErr := c.datasource.SaveRecord(ctx, record); saveErr != nil {
			return record, saveErr
		}
		go SendWebhook(record)
		return record, nil
	}

	record.UpdatedAt = time.Now()
	return record, c.datasource.SaveRecord(ctx, record)
}

// HealthCheckAll sweeps every ISSUED record.
func (c *Cardpilot) HealthCheckAll(ctx context.Context) ([]*model.AcquisitionRecord, error) {
	records, err := c.datasource.ListActiveRecords(ctx)
	if err != nil {
		return nil, err
	}

	var checked []*model.AcquisitionRecord
	for _, record := range records {
		if record.State != model.StateIssued {
			continue
		}
		result, err := c.HealthCheck(ctx, record.RecordID)
		if err != nil {
			logrus.Errorf("health check failed for record %s: %v", record.RecordID, err)
			continue
		}
		checked = append(checked, result)
	}
	return checked, nil
}

// PollDelivery runs one delivery poll for a SETTLEMENT_SENT record. It reports
// whether the artifact arrived; a false return with nil error means not yet,
// poll again.
func (c *Cardpilot) PollDelivery(ctx context.Context, recordID string) (bool, error) {
	ctx, span := tracer.Start(ctx, "PollDelivery", trace.WithAttributes(
		attribute.String("record.id", recordID),
	))
	defer span.End()

	record, err := c.datasource.GetRecord(ctx, recordID)
	if err != nil {
		return false, err
	}
	if record.State != model.StateSettlementSent {
		// The record moved on (or died) since the task was scheduled.
		logrus.Infof("skipping delivery poll for record %s in state %s", recordID, record.State)
		return true, nil
	}

	factory, err := c.registry.Resolve(record.ProviderKey)
	if err != nil {
		return false, err
	}
	cfg, err := config.Fetch()
	if err != nil {
		return false, err
	}
	d := factory(cfg.Providers[record.ProviderKey])

	poller, ok := d.(driver.DeliveryPoller)
	if !ok {
		return false, flowerror.New(flowerror.CodeValidation,
			fmt.Sprintf("driver %s does not support delivery polling", record.ProviderKey), nil)
	}

	session, err := d.NewSession(ctx)
	if err != nil {
		return false, errors.Wrap(err, "delivery poll session failed")
	}
	defer func() {
		if releaseErr := session.Release(context.WithoutCancel(ctx)); releaseErr != nil {
			logrus.Warnf("session release failed for record %s: %v", record.RecordID, releaseErr)
		}
	}()

	delivered, err := poller.PollDelivery(ctx, session, record)
	if err != nil {
		return false, err
	}
	if !delivered {
		return false, nil
	}

	if err := c.datasource.SaveRecord(ctx, record); err != nil {
		return true, errors.Wrap(err, "failed to persist delivered record")
	}
	go SendWebhook(record)
	return true, nil
}
