package search

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Factory holds all registered providers in a case-insensitive id map and
// picks among them by id or by required capability.
type Factory struct {
	mu         sync.RWMutex
	providers  map[string]Provider // keyed by lower-cased id
	defaultID  string
}

// NewFactory builds a Factory with the given providers registered.
// defaultID names the provider returned by GetDefault; it must match one
// of providers' ids (case-insensitively) or NewFactory returns an error.
func NewFactory(defaultID string, providers ...Provider) (*Factory, error) {
	f := &Factory{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		f.providers[strings.ToLower(p.ProviderID())] = p
	}
	f.defaultID = strings.ToLower(defaultID)
	if _, ok := f.providers[f.defaultID]; !ok {
		return nil, fmt.Errorf("search: default provider %q is not among registered providers", defaultID)
	}
	return f, nil
}

// Register adds or replaces a provider at runtime.
func (f *Factory) Register(p Provider) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.providers[strings.ToLower(p.ProviderID())] = p
}

// GetDefault returns the configured default provider.
func (f *Factory) GetDefault() (Provider, error) {
	return f.Get(f.defaultID)
}

// Get returns the provider with the given id (case-insensitive).
func (f *Factory) Get(id string) (Provider, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.providers[strings.ToLower(id)]
	if !ok {
		return nil, newError(id, ErrorProviderNotFound, fmt.Errorf("available providers: %s", f.availableLocked()))
	}
	return p, nil
}

func (f *Factory) availableLocked() string {
	ids := make([]string, 0, len(f.providers))
	for id := range f.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return strings.Join(ids, ", ")
}

// SelectForType picks a provider capable of serving searchType: the
// default provider if it has the capability, otherwise the first
// registered provider that does, otherwise the default with a logged
// warning (degraded mode — the caller will still get a result, just not
// necessarily through the most capable provider).
func (f *Factory) SelectForType(searchType SearchType) (Provider, error) {
	required := searchType.RequiredCapability()

	def, err := f.GetDefault()
	if err != nil {
		return nil, err
	}
	if def.Capabilities().Has(required) {
		return def, nil
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	ids := make([]string, 0, len(f.providers))
	for id := range f.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		p := f.providers[id]
		if p.Capabilities().Has(required) {
			return p, nil
		}
	}

	slog.Warn("search: no provider has required capability, falling back to default",
		"search_type", searchType, "default_provider", def.ProviderID())
	return def, nil
}
