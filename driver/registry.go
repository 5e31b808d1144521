package driver

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/korelabs/cardpilot/internal/flowerror"
	"github.com/sirupsen/logrus"
	"github.com/texttheater/golang-levenshtein/levenshtein"
)

type registration struct {
	factory Factory
	info    Info
}

// Registry holds the known drivers keyed by provider, each with its catalog
// entry. Registration happens at startup; resolution happens per acquisition.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registration
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registration)}
}

// Register binds a factory to a provider key with a minimal active catalog
// entry. Re-registering a key replaces the previous driver; the replacement
// is logged, not rejected, so a local driver can shadow a builtin.
func (r *Registry) Register(providerKey string, factory Factory) error {
	key := strings.ToLower(strings.TrimSpace(providerKey))
	return r.register(key, factory, Info{ProviderKey: key, Active: true})
}

// Discover registers a batch of descriptors, skipping malformed entries
// instead of aborting the batch.
func (r *Registry) Discover(descriptors []Descriptor) {
	for _, descriptor := range descriptors {
		key := strings.ToLower(strings.TrimSpace(descriptor.ProviderKey))
		info := descriptor.Info
		info.ProviderKey = key
		if info.Name == "" {
			// No catalog metadata came with the descriptor; assume usable.
			info.Active = true
		}
		if err := r.register(key, descriptor.Factory, info); err != nil {
			logrus.Warnf("skipping driver descriptor: %v", err)
		}
	}
}

func (r *Registry) register(key string, factory Factory, info Info) error {
	if key == "" {
		return flowerror.New(flowerror.CodeValidation, "provider key cannot be empty", nil)
	}
	if factory == nil {
		return flowerror.New(flowerror.CodeValidation, fmt.Sprintf("nil factory for provider %s", key), nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[key]; exists {
		logrus.Warnf("driver for provider %s re-registered, replacing previous", key)
	}
	r.entries[key] = registration{factory: factory, info: info}
	return nil
}

// Resolve returns the factory for a provider key. An unknown key is a
// PROVIDER_NOT_FOUND error carrying the closest registered key as a hint.
func (r *Registry) Resolve(providerKey string) (Factory, error) {
	key := strings.ToLower(strings.TrimSpace(providerKey))

	r.mu.RLock()
	defer r.mu.RUnlock()
	if reg, ok := r.entries[key]; ok {
		return reg.factory, nil
	}

	message := fmt.Sprintf("no driver registered for provider %s", key)
	if suggestion := r.closestKey(key); suggestion != "" {
		message = fmt.Sprintf("%s, did you mean %s?", message, suggestion)
	}
	return nil, flowerror.New(flowerror.CodeProviderNotFound, message, nil)
}

// Info returns the catalog entry for a registered provider key.
func (r *Registry) Info(providerKey string) (Info, bool) {
	key := strings.ToLower(strings.TrimSpace(providerKey))

	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.entries[key]
	return reg.info, ok
}

// Providers lists the registered provider keys, sorted.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.entries))
	for key := range r.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// ActiveProviders lists the registered provider keys whose catalog entry is
// active, sorted. Whole-catalog runs use this set, so waitlisted or withdrawn
// providers are skipped without being forgotten.
func (r *Registry) ActiveProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.entries))
	for key, reg := range r.entries {
		if !reg.info.Active {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// closestKey finds the registered key nearest to the given one. Distances
// above 3 edits are noise, not typos.
func (r *Registry) closestKey(key string) string {
	best := ""
	bestDistance := 4
	for registered := range r.entries {
		distance := levenshtein.DistanceForStrings([]rune(key), []rune(registered), levenshtein.DefaultOptions)
		if distance < bestDistance {
			bestDistance = distance
			best = registered
		}
	}
	return best
}
