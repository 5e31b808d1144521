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

package database

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/korelabs/cardpilot/model"
	"github.com/pkg/errors"
)

// ErrRecordNotFound is returned when a record ID matches nothing.
var ErrRecordNotFound = errors.New("acquisition record not found")

// SaveRecord upserts an acquisition record. Records are written after every
// state transition, so a crash never loses more than the in-flight attempt.
func (d Datasource) SaveRecord(ctx context.Context, rec *model.AcquisitionRecord) error {
	settlement, err := marshalNullable(rec.Settlement)
	if err != nil {
		return errors.Wrap(err, "failed to marshal settlement instruction")
	}
	artifact, err := marshalNullable(rec.Artifact)
	if err != nil {
		return errors.Wrap(err, "failed to marshal issued artifact")
	}
	metaData, err := json.Marshal(rec.MetaData)
	if err != nil {
		return errors.Wrap(err, "failed to marshal metadata")
	}

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO acquisition_records (record_id, provider_key, state, network, settlement, artifact, last_error, created_at, updated_at, meta_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (record_id) DO UPDATE SET
			state = EXCLUDED.state,
			network = EXCLUDED.network,
			settlement = EXCLUDED.settlement,
			artifact = EXCLUDED.artifact,
			last_error = EXCLUDED.last_error,
			updated_at = EXCLUDED.updated_at,
			meta_data = EXCLUDED.meta_data
	`, rec.RecordID, rec.ProviderKey, string(rec.State), string(rec.Network),
		settlement, artifact, rec.LastError, rec.CreatedAt, rec.UpdatedAt, string(metaData))
	if err != nil {
		return errors.Wrap(err, "failed to save acquisition record")
	}
	return nil
}

// GetRecord fetches one record by ID.
func (d Datasource) GetRecord(ctx context.Context, recordID string) (*model.AcquisitionRecord, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT record_id, provider_key, state, network, settlement, artifact, last_error, created_at, updated_at, meta_data
		FROM acquisition_records
		WHERE record_id = $1
	`, recordID)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrap(ErrRecordNotFound, recordID)
	}
	return rec, err
}

// ListActiveRecords returns records that may still make progress. FAILED and
// FROZEN records are dead ends; ISSUED records remain listed because they are
// still health-checked.
func (d Datasource) ListActiveRecords(ctx context.Context) ([]*model.AcquisitionRecord, error) {
	return d.listRecords(ctx, `
		SELECT record_id, provider_key, state, network, settlement, artifact, last_error, created_at, updated_at, meta_data
		FROM acquisition_records
		WHERE state NOT IN ('FAILED', 'FROZEN')
		ORDER BY created_at DESC
	`)
}

// ListAllRecords returns every record, newest first.
func (d Datasource) ListAllRecords(ctx context.Context) ([]*model.AcquisitionRecord, error) {
	return d.listRecords(ctx, `
		SELECT record_id, provider_key, state, network, settlement, artifact, last_error, created_at, updated_at, meta_data
		FROM acquisition_records
		ORDER BY created_at DESC
	`)
}

func (d Datasource) listRecords(ctx context.Context, query string) ([]*model.AcquisitionRecord, error) {
	rows, err := d.Conn.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list acquisition records")
	}
	defer rows.Close()

	var records []*model.AcquisitionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*model.AcquisitionRecord, error) {
	rec := &model.AcquisitionRecord{}
	var state, network string
	var settlement, artifact, metaData sql.NullString

	err := row.Scan(&rec.RecordID, &rec.ProviderKey, &state, &network,
		&settlement, &artifact, &rec.LastError, &rec.CreatedAt, &rec.UpdatedAt, &metaData)
	if err != nil {
		return nil, err
	}
	rec.State = model.State(state)
	rec.Network = model.Network(network)

	if settlement.Valid && settlement.String != "" {
		var instruction model.SettlementInstruction
		if err := json.Unmarshal([]byte(settlement.String), &instruction); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal settlement instruction")
		}
		rec.Settlement = &instruction
	}
	if artifact.Valid && artifact.String != "" {
		var issued model.IssuedArtifact
		if err := json.Unmarshal([]byte(artifact.String), &issued); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal issued artifact")
		}
		rec.Artifact = &issued
	}
	if metaData.Valid && metaData.String != "" {
		if err := json.Unmarshal([]byte(metaData.String), &rec.MetaData); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal metadata")
		}
	}
	return rec, nil
}

func marshalNullable(value interface{}) (sql.NullString, error) {
	switch v := value.(type) {
	case *model.SettlementInstruction:
		if v == nil {
			return sql.NullString{}, nil
		}
	case *model.IssuedArtifact:
		if v == nil {
			return sql.NullString{}, nil
		}
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(payload), Valid: true}, nil
}
