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

package model

import (
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// State represents the lifecycle state of an acquisition attempt.
type State string

const (
	StatePending            State = "PENDING"
	StateAwaitingSettlement State = "AWAITING_SETTLEMENT"
	StateSettlementSent     State = "SETTLEMENT_SENT"
	StateIssued             State = "ISSUED"
	StateFailed             State = "FAILED"
	StateFrozen             State = "FROZEN"
)

// stateTransitions lists the forward edges of the acquisition state machine.
// FAILED is additionally reachable from every non-terminal state via MarkFailed.
var stateTransitions = map[State][]State{
	StatePending:            {StateAwaitingSettlement, StateIssued, StateFailed},
	StateAwaitingSettlement: {StateSettlementSent, StateFailed},
	StateSettlementSent:     {StateIssued, StateFailed},
	StateIssued:             {StateFrozen},
	StateFailed:             {},
	StateFrozen:             {},
}

// CanTransitionTo reports whether the state machine allows moving from s to next.
func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range stateTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether s ends an acquisition attempt. FROZEN records may
// still be health-checked but represent a dead artifact.
func (s State) Terminal() bool {
	return s == StateIssued || s == StateFailed || s == StateFrozen
}

// Network identifies the card scheme of an issued artifact.
type Network string

const (
	NetworkVisa       Network = "VISA"
	NetworkMastercard Network = "MASTERCARD"
	NetworkUnknown    Network = "UNKNOWN"
)

// DetectNetwork infers the card scheme from the leading digit of an identifier
// prefix. Scheme is metadata, not a gate: unresolvable prefixes stay UNKNOWN.
func DetectNetwork(identifierPrefix string) Network {
	trimmed := strings.TrimSpace(identifierPrefix)
	if trimmed == "" {
		return NetworkUnknown
	}
	switch trimmed[0] {
	case '4':
		return NetworkVisa
	case '5':
		return NetworkMastercard
	default:
		return NetworkUnknown
	}
}

// SettlementInstruction captures the transfer a provider requires before it
// releases a card: destination identifier, optional rail hint, amount and currency.
type SettlementInstruction struct {
	Destination string          `json:"destination"`
	Rail        string          `json:"rail,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
}

// Validate checks that the instruction is complete enough to route.
func (s SettlementInstruction) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Destination, validation.Required, validation.Length(8, 128)),
		validation.Field(&s.Currency, validation.Required, validation.Length(2, 16)),
		validation.Field(&s.Amount, validation.By(func(value interface{}) error {
			amount, ok := value.(decimal.Decimal)
			if !ok || amount.Sign() <= 0 {
				return errors.New("must be greater than zero")
			}
			return nil
		})),
	)
}

// IssuedArtifact holds redacted fragments of an issued card. The full sensitive
// payload never passes through the core; drivers hand over fragments only.
type IssuedArtifact struct {
	BIN    string `json:"bin,omitempty"`
	Last4  string `json:"last4,omitempty"`
	Expiry string `json:"expiry,omitempty"`
}

// AcquisitionRecord is one attempt to obtain a card from one provider.
type AcquisitionRecord struct {
	RecordID    string                 `json:"record_id"`
	ProviderKey string                 `json:"provider_key"`
	State       State                  `json:"state"`
	Network     Network                `json:"network"`
	Settlement  *SettlementInstruction `json:"settlement,omitempty"`
	Artifact    *IssuedArtifact        `json:"artifact,omitempty"`
	LastError   string                 `json:"last_error,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	MetaData    map[string]interface{} `json:"meta_data,omitempty"`
}

// NewAcquisitionRecord creates a PENDING record for the given provider.
func NewAcquisitionRecord(providerKey string) *AcquisitionRecord {
	now := time.Now()
	return &AcquisitionRecord{
		RecordID:    GenerateUUIDWithSuffix("crd"),
		ProviderKey: providerKey,
		State:       StatePending,
		Network:     NetworkUnknown,
		CreatedAt:   now,
		UpdatedAt:   now,
		MetaData:    map[string]interface{}{},
	}
}

// TransitionTo moves the record to the next state, rejecting any edge the
// state machine does not allow.
func (r *AcquisitionRecord) TransitionTo(next State) error {
	if !r.State.CanTransitionTo(next) {
		return fmt.Errorf("invalid state transition %s -> %s for record %s", r.State, next, r.RecordID)
	}
	r.State = next
	r.UpdatedAt = time.Now()
	return nil
}

// AttachSettlement validates the instruction and moves the record into
// AWAITING_SETTLEMENT. The instruction is only ever set in that state.
func (r *AcquisitionRecord) AttachSettlement(instruction SettlementInstruction) error {
	if err := instruction.Validate(); err != nil {
		return errors.Wrap(err, "invalid settlement instruction")
	}
	if err := r.TransitionTo(StateAwaitingSettlement); err != nil {
		return err
	}
	r.Settlement = &instruction
	return nil
}

// AttachArtifact moves the record to ISSUED and stores the redacted fragments.
// Valid from PENDING (no settlement required) and from SETTLEMENT_SENT (poll
// detected delivery).
func (r *AcquisitionRecord) AttachArtifact(artifact IssuedArtifact) error {
	if err := r.TransitionTo(StateIssued); err != nil {
		return err
	}
	r.Artifact = &artifact
	if r.Network == NetworkUnknown && artifact.BIN != "" {
		r.Network = DetectNetwork(artifact.BIN)
	}
	return nil
}

// MarkFailed moves the record to FAILED from any non-terminal state and stores
// the diagnostic. Terminal records keep their state but record the error.
func (r *AcquisitionRecord) MarkFailed(reason string) {
	if !r.State.Terminal() {
		r.State = StateFailed
	}
	r.LastError = reason
	r.UpdatedAt = time.Now()
}
