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

import (
	"context"
	"fmt"
	"net/http"

	"github.com/korelabs/cardpilot/internal/flowerror"
	"github.com/korelabs/cardpilot/internal/request"
	"github.com/sirupsen/logrus"
)

// DefaultSources returns the external resolvers in their fixed priority order.
func DefaultSources() []Source {
	return []Source{
		&binlistSource{baseURL: "https://lookup.binlist.net"},
		&freeBinCheckerSource{baseURL: "https://api.freebinchecker.com/bin"},
	}
}

// binlistSource queries lookup.binlist.net. Free, no key, 5 req/hr with a
// small burst; 429 responses are treated as "no data" so the next source runs.
type binlistSource struct {
	baseURL string
}

type binlistPayload struct {
	Scheme  string `json:"scheme"`
	Type    string `json:"type"`
	Brand   string `json:"brand"`
	Prepaid bool   `json:"prepaid"`
	Bank    struct {
		Name  string `json:"name"`
		URL   string `json:"url"`
		Phone string `json:"phone"`
	} `json:"bank"`
	Country struct {
		Name     string `json:"name"`
		Alpha2   string `json:"alpha2"`
		Currency string `json:"currency"`
	} `json:"country"`
}

func (s *binlistSource) Name() string {
	return "binlist.net"
}

func (s *binlistSource) Lookup(ctx context.Context, prefix string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s", s.baseURL, prefix), nil)
	if err != nil {
		return nil, flowerror.New(flowerror.CodeSourceUnavailable, err.Error(), s.Name())
	}
	req.Header.Set("Accept-Version", "3")

	var payload binlistPayload
	resp, err := request.Call(req, &payload)
	if resp != nil {
		switch resp.StatusCode {
		case http.StatusNotFound:
			return nil, nil
		case http.StatusTooManyRequests:
			logrus.Warn("binlist.net rate limit hit")
			return nil, nil
		}
	}
	if err != nil {
		return nil, flowerror.New(flowerror.CodeSourceUnavailable, err.Error(), s.Name())
	}
	if resp.StatusCode != http.StatusOK {
		return nil, flowerror.New(flowerror.CodeSourceUnavailable, fmt.Sprintf("unexpected status %d", resp.StatusCode), s.Name())
	}

	return &Result{
		Key:         prefix,
		Scheme:      payload.Scheme,
		CardType:    payload.Type,
		Category:    payload.Brand,
		Prepaid:     payload.Prepaid,
		IssuerName:  payload.Bank.Name,
		IssuerURL:   payload.Bank.URL,
		IssuerPhone: payload.Bank.Phone,
		Country:     payload.Country.Name,
		CountryCode: payload.Country.Alpha2,
		Currency:    payload.Country.Currency,
	}, nil
}

// freeBinCheckerSource queries api.freebinchecker.com. Free, no key, generous
// limits. The country block uses irregular JSON keys, so it is decoded loosely.
type freeBinCheckerSource struct {
	baseURL string
}

type freeBinCheckerPayload struct {
	Valid bool `json:"valid"`
	Card  struct {
		Scheme   string `json:"scheme"`
		Type     string `json:"type"`
		Category string `json:"category"`
	} `json:"card"`
	Issuer struct {
		Name string `json:"name"`
		URL  string `json:"url"`
		Tel  string `json:"tel"`
	} `json:"issuer"`
	Country map[string]interface{} `json:"country"`
}

func (s *freeBinCheckerSource) Name() string {
	return "freebinchecker.com"
}

func (s *freeBinCheckerSource) Lookup(ctx context.Context, prefix string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s", s.baseURL, prefix), nil)
	if err != nil {
		return nil, flowerror.New(flowerror.CodeSourceUnavailable, err.Error(), s.Name())
	}

	var payload freeBinCheckerPayload
	resp, err := request.Call(req, &payload)
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, flowerror.New(flowerror.CodeSourceUnavailable, err.Error(), s.Name())
	}
	if resp.StatusCode != http.StatusOK {
		return nil, flowerror.New(flowerror.CodeSourceUnavailable, fmt.Sprintf("unexpected status %d", resp.StatusCode), s.Name())
	}
	if !payload.Valid {
		return nil, nil
	}

	return &Result{
		Key:         prefix,
		Scheme:      payload.Card.Scheme,
		CardType:    payload.Card.Type,
		Category:    payload.Card.Category,
		IssuerName:  payload.Issuer.Name,
		IssuerURL:   payload.Issuer.URL,
		IssuerPhone: payload.Issuer.Tel,
		Country:     stringField(payload.Country, "name"),
		CountryCode: stringField(payload.Country, "alpha 2 code"),
		Currency:    stringField(payload.Country, "currency"),
	}, nil
}

func stringField(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
