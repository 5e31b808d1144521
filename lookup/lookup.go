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
	"strings"
	"sync"
	"time"

	"github.com/korelabs/cardpilot/cache"
	"github.com/sirupsen/logrus"
)

// Result is the resolution of an identifier prefix to issuer metadata.
// A non-empty Error means no source (reference table or external) produced an
// issuer name; callers never see a raw lookup failure.
type Result struct {
	Key         string `json:"key"`
	Scheme      string `json:"scheme,omitempty"`
	CardType    string `json:"card_type,omitempty"`
	Category    string `json:"category,omitempty"`
	Prepaid     bool   `json:"prepaid,omitempty"`
	IssuerName  string `json:"issuer_name,omitempty"`
	IssuerURL   string `json:"issuer_url,omitempty"`
	IssuerPhone string `json:"issuer_phone,omitempty"`
	Country     string `json:"country,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
	Currency    string `json:"currency,omitempty"`
	Source      string `json:"source,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Summary renders a one-line description for run output.
func (r *Result) Summary() string {
	parts := []string{r.Key}
	if r.Scheme != "" {
		parts = append(parts, strings.ToUpper(r.Scheme))
	}
	if r.CardType != "" {
		parts = append(parts, r.CardType)
	}
	if r.IssuerName != "" {
		parts = append(parts, r.IssuerName)
	}
	if r.CountryCode != "" {
		parts = append(parts, "("+r.CountryCode+")")
	}
	return strings.Join(parts, " | ")
}

// Source resolves a 6-digit prefix against one external provider. A nil result
// with a nil error means the source has no data for the prefix.
type Source interface {
	Name() string
	Lookup(ctx context.Context, prefix string) (*Result, error)
}

// Engine resolves identifier prefixes with an in-process cache, a curated
// reference table and ordered external fallback. Entries are immutable once
// cached and live for the process lifetime; the dataset is small and
// non-expiring, so there is no eviction.
type Engine struct {
	mu         sync.RWMutex
	local      map[string]*Result
	reference  map[string]ReferenceEntry
	shared     cache.Cache
	sources    []Source
	batchDelay time.Duration
}

// NewEngine builds an engine with the curated reference table and the given
// external sources, tried in order. shared is an optional cross-process tier
// consulted before any external call; nil disables it. batchDelay spaces
// external calls in LookupBatch.
func NewEngine(shared cache.Cache, batchDelay time.Duration, sources ...Source) *Engine {
	if len(sources) == 0 {
		sources = DefaultSources()
	}
	reference := make(map[string]ReferenceEntry, len(defaultReference))
	for prefix, entry := range defaultReference {
		reference[prefix] = entry
	}
	return &Engine{
		local:      make(map[string]*Result),
		reference:  reference,
		shared:     shared,
		sources:    sources,
		batchDelay: batchDelay,
	}
}

// AddReference extends the curated table at runtime, for prefixes discovered
// in the field.
func (e *Engine) AddReference(prefix string, entry ReferenceEntry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reference[normalize(prefix)] = entry
}

// Lookup resolves an identifier prefix (6-8 characters). It never fails past
// this boundary: total failure is reported through the result's Error field.
func (e *Engine) Lookup(ctx context.Context, raw string) *Result {
	result, _ := e.lookupOne(ctx, raw)
	return result
}

// LookupBatch resolves several prefixes, spacing external calls by the
// configured delay to respect unauthenticated rate limits. Cache and
// reference-table hits do not pay the delay.
func (e *Engine) LookupBatch(ctx context.Context, raws []string) []*Result {
	results := make([]*Result, 0, len(raws))
	for i, raw := range raws {
		result, remote := e.lookupOne(ctx, raw)
		results = append(results, result)
		if remote && i < len(raws)-1 && e.batchDelay > 0 {
			select {
			case <-ctx.Done():
				for _, rest := range raws[i+1:] {
					results = append(results, &Result{Key: rest, Error: ctx.Err().Error()})
				}
				return results
			case <-time.After(e.batchDelay):
			}
		}
	}
	return results
}

// lookupOne reports whether external sources were consulted alongside the result.
func (e *Engine) lookupOne(ctx context.Context, raw string) (*Result, bool) {
	clean := normalize(raw)
	if len(clean) < 6 {
		return &Result{Key: raw, Error: "identifier prefix must be at least 6 characters"}, false
	}

	key6 := clean[:6]
	key8 := key6
	if len(clean) >= 8 {
		key8 = clean[:8]
	}

	if cached := e.fromLocal(key8, key6); cached != nil {
		logrus.Debugf("lookup cache hit: %s", cached.Key)
		return cached, false
	}

	if shared := e.fromShared(ctx, key8, key6); shared != nil {
		e.storeLocal(key8, shared)
		e.storeLocal(key6, shared)
		return shared, false
	}

	// Curated table before any external source. The reference data is vetted;
	// external sources never override it.
	if ref := e.fromReference(key8); ref != nil {
		e.store(ctx, ref, key8, key6)
		return ref, false
	}

	for _, source := range e.sources {
		result, err := source.Lookup(ctx, key6)
		if err != nil {
			logrus.Warnf("lookup source %s failed for %s: %v", source.Name(), key6, err)
			continue
		}
		if result != nil && result.IssuerName != "" {
			result.Key = key8
			result.Source = source.Name()
			// Resolution happens on the 6-char form, so both forms cache it.
			e.store(ctx, result, key8, key6)
			return result, true
		}
	}

	// Negative results are cached too, so a dead prefix costs the external
	// round trips at most once per process.
	miss := &Result{Key: key8, Error: "no data found in any source"}
	e.store(ctx, miss, key8, key6)
	return miss, true
}

func (e *Engine) fromLocal(keys ...string) *Result {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, key := range keys {
		if result, ok := e.local[key]; ok {
			return result
		}
	}
	return nil
}

func (e *Engine) fromShared(ctx context.Context, keys ...string) *Result {
	if e.shared == nil {
		return nil
	}
	for _, key := range keys {
		var result Result
		if err := e.shared.Get(ctx, sharedKey(key), &result); err != nil {
			logrus.Warnf("shared lookup tier get failed for %s: %v", key, err)
			continue
		}
		if result.Key != "" {
			return &result
		}
	}
	return nil
}

func (e *Engine) store(ctx context.Context, result *Result, keys ...string) {
	for _, key := range keys {
		e.storeLocal(key, result)
	}
	if e.shared == nil || result.Error != "" {
		return
	}
	for _, key := range keys {
		if err := e.shared.Set(ctx, sharedKey(key), result, 0); err != nil {
			logrus.Warnf("shared lookup tier set failed for %s: %v", key, err)
		}
	}
}

func (e *Engine) storeLocal(key string, result *Result) {
	e.mu.Lock()
	defer e.mu.Unlock()
	// A successful entry is immutable; a lower-priority source never
	// overwrites it. Two concurrent misses resolving the same key land on the
	// same data, so last-write is harmless.
	if existing, ok := e.local[key]; ok && existing.IssuerName != "" {
		return
	}
	e.local[key] = result
}

func normalize(raw string) string {
	clean := strings.TrimSpace(raw)
	clean = strings.ReplaceAll(clean, " ", "")
	clean = strings.ReplaceAll(clean, "-", "")
	return clean
}

func sharedKey(key string) string {
	return "lookup:" + key
}
