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
	"database/sql"
	"log"
	"strings"
	"sync"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/korelabs/cardpilot/config"
)

// Singleton connection; record persistence shares one pool per process.
var instance *Datasource
var once sync.Once

type Datasource struct {
	Conn *sql.DB
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		instance = &Datasource{Conn: con}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

// ConnectDB opens the record store. A postgres:// DSN selects the Postgres
// driver; anything else is treated as an SQLite file path, which is the
// zero-setup default for single-operator runs.
func ConnectDB(dns string) (*sql.DB, error) {
	driverName := "sqlite3"
	if strings.HasPrefix(dns, "postgres://") || strings.HasPrefix(dns, "postgresql://") {
		driverName = "postgres"
	}

	db, err := sql.Open(driverName, dns)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database Connection error ❌: %v", err)
		return nil, err
	}
	err = createRecordTable(db)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// createRecordTable creates the acquisition record table. Settlement, artifact
// and metadata are stored as JSON text so the schema works on both drivers.
func createRecordTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS acquisition_records (
			record_id TEXT NOT NULL PRIMARY KEY,
			provider_key TEXT NOT NULL,
			state TEXT NOT NULL,
			network TEXT NOT NULL,
			settlement TEXT,
			artifact TEXT,
			last_error TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			meta_data TEXT
		)
	`)
	if err != nil {
		log.Printf("Error creating acquisition_records table: %v", err)
	}
	return err
}
