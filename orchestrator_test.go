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
	"net/http"
	"sync"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/korelabs/cardpilot/config"
	"github.com/korelabs/cardpilot/database"
	"github.com/korelabs/cardpilot/driver"
	"github.com/korelabs/cardpilot/internal/flowerror"
	"github.com/korelabs/cardpilot/lookup"
	"github.com/korelabs/cardpilot/model"
	"github.com/korelabs/cardpilot/settlement"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wacul/ptr"
)

// memoryStore is an in-memory IDataSource for orchestrator tests.
type memoryStore struct {
	mu      sync.Mutex
	records map[string]*model.AcquisitionRecord
}

var _ database.IDataSource = (*memoryStore)(nil)

func newMemoryStore() *memoryStore {
	return &memoryStore{records: map[string]*model.AcquisitionRecord{}}
}

func (s *memoryStore) SaveRecord(_ context.Context, rec *model.AcquisitionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *rec
	s.records[rec.RecordID] = &clone
	return nil
}

func (s *memoryStore) GetRecord(_ context.Context, recordID string) (*model.AcquisitionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[recordID]
	if !ok {
		return nil, database.ErrRecordNotFound
	}
	clone := *rec
	return &clone, nil
}

func (s *memoryStore) ListActiveRecords(_ context.Context) ([]*model.AcquisitionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.AcquisitionRecord
	for _, rec := range s.records {
		if rec.State == model.StateFailed || rec.State == model.StateFrozen {
			continue
		}
		clone := *rec
		out = append(out, &clone)
	}
	return out, nil
}

func (s *memoryStore) ListAllRecords(_ context.Context) ([]*model.AcquisitionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.AcquisitionRecord
	for _, rec := range s.records {
		clone := *rec
		out = append(out, &clone)
	}
	return out, nil
}

func testConfig() *config.Configuration {
	cnf := &config.Configuration{
		Retry: config.RetryConfig{
			MaxAttempts:    ptr.Int(3),
			BackoffBaseSec: ptr.Int(0), // no sleeping in tests
		},
		Parallelism: ptr.Int(2),
	}
	config.MockConfig(cnf)
	return cnf
}

func newTestPilot(t *testing.T, drivers ...driver.Driver) (*Cardpilot, *memoryStore) {
	t.Helper()
	testConfig()

	registry := driver.NewRegistry()
	for _, d := range drivers {
		d := d
		require.NoError(t, registry.Register(d.ProviderKey(), func(cfg config.ProviderConfig) driver.Driver {
			return d
		}))
	}

	store := newMemoryStore()
	pilot := &Cardpilot{
		registry:   registry,
		router:     settlement.NewRouter(),
		lookup:     lookup.NewEngine(nil, 0),
		datasource: store,
	}
	return pilot, store
}

func evmInstruction() model.SettlementInstruction {
	return model.SettlementInstruction{
		Destination: "0x742d35Cc6634C0532925a3b844Bc454e4438f44e",
		Rail:        "erc20",
		Amount:      decimal.NewFromInt(25),
		Currency:    "USDT",
	}
}

func TestAcquireDirectIssue(t *testing.T) {
	attempts := 0
	mock := &MockDriver{
		Key: "cardmoon",
		PerformAcquisitionFunc: func(ctx context.Context, session driver.Session, record *model.AcquisitionRecord) error {
			attempts++
			return record.AttachArtifact(model.IssuedArtifact{BIN: "423768", Last4: "4242", Expiry: "12/27"})
		},
	}
	pilot, store := newTestPilot(t, mock)

	record, err := pilot.Acquire(context.Background(), "cardmoon")
	require.NoError(t, err)
	assert.Equal(t, model.StateIssued, record.State)
	assert.Equal(t, model.NetworkVisa, record.Network)
	assert.Equal(t, 1, attempts)

	persisted, err := store.GetRecord(context.Background(), record.RecordID)
	require.NoError(t, err)
	assert.Equal(t, model.StateIssued, persisted.State)
}

func TestAcquireRetriesExactlyMaxAttempts(t *testing.T) {
	attempts := 0
	mock := &MockDriver{
		Key: "cardmoon",
		PerformAcquisitionFunc: func(ctx context.Context, session driver.Session, record *model.AcquisitionRecord) error {
			attempts++
			return flowerror.New(flowerror.CodeTransientAutomation, "selector timed out", nil)
		},
	}
	pilot, _ := newTestPilot(t, mock)

	record, err := pilot.Acquire(context.Background(), "cardmoon")
	require.NoError(t, err)
	assert.Equal(t, model.StateFailed, record.State)
	assert.Equal(t, 3, attempts)
	assert.Contains(t, record.LastError, "selector timed out")

	// Every attempt got its own session and every session was released.
	require.Len(t, mock.Sessions, 3)
	for _, session := range mock.Sessions {
		assert.True(t, session.Released.Load())
	}
}

func TestAcquireCancelledMidAttemptReleasesSession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	attempts := 0
	mock := &MockDriver{
		Key: "cardmoon",
		PerformAcquisitionFunc: func(ctx context.Context, session driver.Session, record *model.AcquisitionRecord) error {
			attempts++
			cancel()
			return ctx.Err()
		},
	}
	pilot, store := newTestPilot(t, mock)

	record, err := pilot.Acquire(ctx, "cardmoon")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, model.StateFailed, record.State)
	assert.Contains(t, record.LastError, "context canceled")
	assert.Equal(t, 1, attempts)

	// Abandoning the run must not leak the attempt's session.
	require.Len(t, mock.Sessions, 1)
	assert.True(t, mock.Sessions[0].Released.Load())

	persisted, err := store.GetRecord(context.Background(), record.RecordID)
	require.NoError(t, err)
	assert.Equal(t, model.StateFailed, persisted.State)
}

func TestAcquireValidationErrorNotRetried(t *testing.T) {
	attempts := 0
	mock := &MockDriver{
		Key: "cardmoon",
		PerformAcquisitionFunc: func(ctx context.Context, session driver.Session, record *model.AcquisitionRecord) error {
			attempts++
			return flowerror.New(flowerror.CodeValidation, "malformed provider payload", nil)
		},
	}
	pilot, _ := newTestPilot(t, mock)

	record, err := pilot.Acquire(context.Background(), "cardmoon")
	require.NoError(t, err)
	assert.Equal(t, model.StateFailed, record.State)
	assert.Equal(t, 1, attempts)
}

func TestAcquireUnclassifiedErrorIsRetried(t *testing.T) {
	attempts := 0
	mock := &MockDriver{
		Key: "cardmoon",
		PerformAcquisitionFunc: func(ctx context.Context, session driver.Session, record *model.AcquisitionRecord) error {
			attempts++
			if attempts < 2 {
				return assert.AnError
			}
			return record.AttachArtifact(model.IssuedArtifact{BIN: "517805", Last4: "9999"})
		},
	}
	pilot, _ := newTestPilot(t, mock)

	record, err := pilot.Acquire(context.Background(), "cardmoon")
	require.NoError(t, err)
	assert.Equal(t, model.StateIssued, record.State)
	assert.Equal(t, model.NetworkMastercard, record.Network)
	assert.Equal(t, 2, attempts)
}

func TestAcquireSettlementHappyPath(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodPost, "http://bridge.test/transfer",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]interface{}{
			"status":          "success",
			"transaction_ref": "0xfeed",
		}))

	mock := &MockDriver{
		Key: "cardmoon",
		PerformAcquisitionFunc: func(ctx context.Context, session driver.Session, record *model.AcquisitionRecord) error {
			return record.AttachSettlement(evmInstruction())
		},
	}
	pilot, store := newTestPilot(t, mock)

	bridge, err := settlement.NewBridgeBackend(settlement.RailEVM, config.BridgeService{Url: "http://bridge.test/transfer"})
	require.NoError(t, err)
	pilot.router = settlement.NewRouter(bridge)

	record, err := pilot.Acquire(context.Background(), "cardmoon")
	require.NoError(t, err)
	assert.Equal(t, model.StateSettlementSent, record.State)
	assert.Equal(t, "0xfeed", record.MetaData["settlement_tx"])

	persisted, err := store.GetRecord(context.Background(), record.RecordID)
	require.NoError(t, err)
	require.NotNil(t, persisted.Settlement)
	assert.Equal(t, "USDT", persisted.Settlement.Currency)
}

// recordingScheduler captures the persisted state of a record at the moment
// its delivery poll is scheduled.
type recordingScheduler struct {
	store           *memoryStore
	recordIDs       []string
	persistedStates []model.State
}

func (s *recordingScheduler) EnqueueDeliveryPoll(recordID string) error {
	rec, err := s.store.GetRecord(context.Background(), recordID)
	if err != nil {
		return err
	}
	s.recordIDs = append(s.recordIDs, recordID)
	s.persistedStates = append(s.persistedStates, rec.State)
	return nil
}

func TestAcquireSchedulesDeliveryPollAfterPersist(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodPost, "http://bridge.test/transfer",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]interface{}{
			"status": "success", "transaction_ref": "0xfeed",
		}))

	mock := &MockDriver{
		Key: "cardmoon",
		PerformAcquisitionFunc: func(ctx context.Context, session driver.Session, record *model.AcquisitionRecord) error {
			return record.AttachSettlement(evmInstruction())
		},
	}
	pilot, store := newTestPilot(t, mock)
	bridge, err := settlement.NewBridgeBackend(settlement.RailEVM, config.BridgeService{Url: "http://bridge.test/transfer"})
	require.NoError(t, err)
	pilot.router = settlement.NewRouter(bridge)

	scheduler := &recordingScheduler{store: store}
	pilot.queue = scheduler

	record, err := pilot.Acquire(context.Background(), "cardmoon")
	require.NoError(t, err)
	require.Equal(t, model.StateSettlementSent, record.State)

	// The poll task fires only after SETTLEMENT_SENT is on disk; a worker
	// picking it up immediately must not see the pre-settlement state.
	require.Len(t, scheduler.recordIDs, 1)
	assert.Equal(t, record.RecordID, scheduler.recordIDs[0])
	assert.Equal(t, model.StateSettlementSent, scheduler.persistedStates[0])
}

func TestAcquireBackendNotConfiguredFailsWithoutRetry(t *testing.T) {
	attempts := 0
	mock := &MockDriver{
		Key: "cardmoon",
		PerformAcquisitionFunc: func(ctx context.Context, session driver.Session, record *model.AcquisitionRecord) error {
			attempts++
			return record.AttachSettlement(evmInstruction())
		},
	}
	pilot, _ := newTestPilot(t, mock) // empty router, no backends

	record, err := pilot.Acquire(context.Background(), "cardmoon")
	require.NoError(t, err)
	assert.Equal(t, model.StateFailed, record.State)
	assert.Equal(t, 1, attempts)
	assert.Contains(t, record.LastError, "BACKEND_NOT_CONFIGURED")
}

func TestAcquireUnknownProvider(t *testing.T) {
	pilot, _ := newTestPilot(t, &MockDriver{Key: "cardmoon"})

	_, err := pilot.Acquire(context.Background(), "nope")
	require.Error(t, err)
	assert.Equal(t, flowerror.CodeProviderNotFound, flowerror.CodeOf(err))
}

func TestAcquireAllMixedProviders(t *testing.T) {
	pilot, _ := newTestPilot(t, &MockDriver{Key: "cardmoon"})

	records := pilot.AcquireAll(context.Background(), []string{"cardmoon", "ghost"})
	require.Len(t, records, 2)
	assert.Equal(t, model.StateIssued, records[0].State)
	assert.Equal(t, model.StateFailed, records[1].State)
	assert.Contains(t, records[1].LastError, "no driver registered")
}

func TestHealthCheckHealthy(t *testing.T) {
	mock := &MockDriver{Key: "cardmoon"}
	pilot, store := newTestPilot(t, mock)

	record, err := pilot.Acquire(context.Background(), "cardmoon")
	require.NoError(t, err)
	require.Equal(t, model.StateIssued, record.State)

	checked, err := pilot.HealthCheck(context.Background(), record.RecordID)
	require.NoError(t, err)
	assert.Equal(t, model.StateIssued, checked.State)

	persisted, err := store.GetRecord(context.Background(), record.RecordID)
	require.NoError(t, err)
	assert.Equal(t, model.StateIssued, persisted.State)
}

func TestHealthCheckFreezesDeadArtifact(t *testing.T) {
	mock := &MockDriver{
		Key: "cardmoon",
		CheckHealthFunc: func(ctx context.Context, session driver.Session, record *model.AcquisitionRecord) (bool, error) {
			return false, nil
		},
	}
	pilot, store := newTestPilot(t, mock)

	record, err := pilot.Acquire(context.Background(), "cardmoon")
	require.NoError(t, err)

	checked, err := pilot.HealthCheck(context.Background(), record.RecordID)
	require.NoError(t, err)
	assert.Equal(t, model.StateFrozen, checked.State)

	persisted, err := store.GetRecord(context.Background(), record.RecordID)
	require.NoError(t, err)
	assert.Equal(t, model.StateFrozen, persisted.State)
}

func TestHealthCheckTransientFailureFreezes(t *testing.T) {
	mock := &MockDriver{
		Key: "cardmoon",
		CheckHealthFunc: func(ctx context.Context, session driver.Session, record *model.AcquisitionRecord) (bool, error) {
			return false, flowerror.New(flowerror.CodeTransientAutomation, "portal unreachable", nil)
		},
	}
	pilot, _ := newTestPilot(t, mock)

	record, err := pilot.Acquire(context.Background(), "cardmoon")
	require.NoError(t, err)

	// Single shot: a transient failure is not retried, the artifact freezes.
	checked, err := pilot.HealthCheck(context.Background(), record.RecordID)
	require.NoError(t, err)
	assert.Equal(t, model.StateFrozen, checked.State)
	assert.Contains(t, checked.LastError, "portal unreachable")
}

func TestHealthCheckRejectsNonIssued(t *testing.T) {
	mock := &MockDriver{
		Key: "cardmoon",
		PerformAcquisitionFunc: func(ctx context.Context, session driver.Session, record *model.AcquisitionRecord) error {
			return flowerror.New(flowerror.CodeValidation, "bad input", nil)
		},
	}
	pilot, _ := newTestPilot(t, mock)

	record, err := pilot.Acquire(context.Background(), "cardmoon")
	require.NoError(t, err)
	require.Equal(t, model.StateFailed, record.State)

	_, err = pilot.HealthCheck(context.Background(), record.RecordID)
	require.Error(t, err)
	assert.Equal(t, flowerror.CodeValidation, flowerror.CodeOf(err))
}

func TestPollDeliveryIssues(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodPost, "http://bridge.test/transfer",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]interface{}{
			"status": "success", "transaction_ref": "tx1",
		}))

	polls := 0
	mock := &MockDriver{
		Key: "cardmoon",
		PerformAcquisitionFunc: func(ctx context.Context, session driver.Session, record *model.AcquisitionRecord) error {
			return record.AttachSettlement(evmInstruction())
		},
		PollDeliveryFunc: func(ctx context.Context, session driver.Session, record *model.AcquisitionRecord) (bool, error) {
			polls++
			if polls < 2 {
				return false, nil
			}
			return true, record.AttachArtifact(model.IssuedArtifact{BIN: "423768", Last4: "7777"})
		},
	}
	pilot, store := newTestPilot(t, mock)
	bridge, err := settlement.NewBridgeBackend(settlement.RailEVM, config.BridgeService{Url: "http://bridge.test/transfer"})
	require.NoError(t, err)
	pilot.router = settlement.NewRouter(bridge)

	record, err := pilot.Acquire(context.Background(), "cardmoon")
	require.NoError(t, err)
	require.Equal(t, model.StateSettlementSent, record.State)

	delivered, err := pilot.PollDelivery(context.Background(), record.RecordID)
	require.NoError(t, err)
	assert.False(t, delivered)

	delivered, err = pilot.PollDelivery(context.Background(), record.RecordID)
	require.NoError(t, err)
	assert.True(t, delivered)

	persisted, err := store.GetRecord(context.Background(), record.RecordID)
	require.NoError(t, err)
	assert.Equal(t, model.StateIssued, persisted.State)
	assert.Equal(t, "7777", persisted.Artifact.Last4)
}

func TestPollDeliverySkipsSettledRecords(t *testing.T) {
	mock := &MockDriver{Key: "cardmoon"}
	pilot, _ := newTestPilot(t, mock)

	record, err := pilot.Acquire(context.Background(), "cardmoon")
	require.NoError(t, err)
	require.Equal(t, model.StateIssued, record.State)

	// The record is already ISSUED; the poll task is stale and completes.
	delivered, err := pilot.PollDelivery(context.Background(), record.RecordID)
	require.NoError(t, err)
	assert.True(t, delivered)
}
