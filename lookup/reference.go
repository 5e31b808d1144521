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

package lookup

// ReferenceSourceName marks results produced by the curated table.
const ReferenceSourceName = "reference_table"

// ReferenceEntry is one curated issuer mapping for a 6-character prefix.
type ReferenceEntry struct {
	IssuerName  string
	CountryCode string
	Scheme      string
	CardType    string
}

// defaultReference lists prefixes commonly seen from prepaid card programs,
// gathered from community reports and BIN databases. Resolving them here costs
// no external calls.
var defaultReference = map[string]ReferenceEntry{
	// Sutton Bank (common for fintech/prepaid programs)
	"423768": {IssuerName: "SUTTON BANK", CountryCode: "US", Scheme: "visa", CardType: "prepaid"},
	"421783": {IssuerName: "SUTTON BANK", CountryCode: "US", Scheme: "visa", CardType: "prepaid"},
	"434256": {IssuerName: "SUTTON BANK", CountryCode: "US", Scheme: "visa", CardType: "prepaid"},

	// Metropolitan Commercial Bank (prepaid programs)
	"428837": {IssuerName: "METROPOLITAN COMMERCIAL BANK", CountryCode: "US", Scheme: "visa", CardType: "prepaid"},
	"441112": {IssuerName: "METROPOLITAN COMMERCIAL BANK", CountryCode: "US", Scheme: "visa", CardType: "prepaid"},

	"517805": {IssuerName: "FIFTH THIRD BANK", CountryCode: "US", Scheme: "mastercard", CardType: "prepaid"},
	"531993": {IssuerName: "CENTRAL TRUST BANK", CountryCode: "US", Scheme: "mastercard", CardType: "prepaid"},
	"479619": {IssuerName: "REGIONS BANK", CountryCode: "US", Scheme: "visa", CardType: "prepaid"},

	// Peoples Trust Company (Canadian prepaid)
	"516105": {IssuerName: "PEOPLES TRUST COMPANY", CountryCode: "CA", Scheme: "mastercard", CardType: "prepaid"},
	"553691": {IssuerName: "PEOPLES TRUST COMPANY", CountryCode: "CA", Scheme: "mastercard", CardType: "prepaid"},

	// Pathward (formerly MetaBank), common for US prepaid
	"460007": {IssuerName: "PATHWARD, N.A. (FKA METABANK)", CountryCode: "US", Scheme: "visa", CardType: "prepaid"},
	"476194": {IssuerName: "PATHWARD, N.A. (FKA METABANK)", CountryCode: "US", Scheme: "visa", CardType: "prepaid"},

	"440000": {IssuerName: "STRIDE BANK, N.A.", CountryCode: "US", Scheme: "visa", CardType: "prepaid"},
	"413295": {IssuerName: "GREEN DOT BANK", CountryCode: "US", Scheme: "visa", CardType: "prepaid"},
	"520078": {IssuerName: "DC PAYMENTS (CANADA)", CountryCode: "CA", Scheme: "mastercard", CardType: "prepaid"},
}

func (e *Engine) fromReference(key string) *Result {
	e.mu.RLock()
	defer e.mu.RUnlock()
	entry, ok := e.reference[key[:6]]
	if !ok {
		return nil
	}
	return &Result{
		Key:         key,
		Scheme:      entry.Scheme,
		CardType:    entry.CardType,
		Prepaid:     entry.CardType == "prepaid",
		IssuerName:  entry.IssuerName,
		CountryCode: entry.CountryCode,
		Source:      ReferenceSourceName,
	}
}
