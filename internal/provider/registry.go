package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/seenimoa/finsheet/pkg/models"
)

// Registry is a thread-safe registry of providers keyed by name, with one
// default used when no name is given.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	def       string
}

// NewRegistry creates a new empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider. The first provider registered becomes the
// default. Duplicate registrations overwrite the previous entry.
func (r *Registry) Register(p Provider) error {
	name := p.Info().Name
	if name == "" {
		return fmt.Errorf("provider name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.providers[name] = p
	if r.def == "" {
		r.def = name
	}
	return nil
}

// Unregister removes a provider. If it was the default, the alphabetically
// first remaining provider takes over.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.providers, name)
	if r.def != name {
		return
	}
	r.def = ""
	names := r.namesLocked()
	if len(names) > 0 {
		r.def = names[0]
	}
}

// Get returns a provider by name, or the default when name is empty.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name == "" {
		name = r.def
	}
	p, ok := r.providers[name]
	if !ok {
		return nil, &ErrProviderNotFound{Name: name}
	}
	return p, nil
}

// List returns info about all registered providers, sorted by name.
func (r *Registry) List() []ProviderInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]ProviderInfo, 0, len(r.providers))
	for _, name := range r.namesLocked() {
		infos = append(infos, r.providers[name].Info())
	}
	return infos
}

// Default returns the default provider name.
func (r *Registry) Default() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.def, r.def != ""
}

// SetDefault sets the default provider.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.providers[name]; !ok {
		return &ErrProviderNotFound{Name: name}
	}
	r.def = name
	return nil
}

// Send validates a batch and routes it to the named provider (or the
// default). Failures are returned as *TransportError.
func (r *Registry) Send(ctx context.Context, name string, reqs []models.AtomicRequest) ([]models.RawReplyRow, error) {
	p, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	if err := ValidateBatch(reqs); err != nil {
		return nil, err
	}
	rows, err := p.SendBatch(ctx, reqs)
	if err != nil {
		if IsTransportError(err) || IsConfigError(err) {
			return nil, err
		}
		return nil, &TransportError{Provider: p.Info().Name, Err: err}
	}
	return rows, nil
}

// Transport returns a Transport bound to the named provider.
func (r *Registry) Transport(name string) Transport {
	return TransportFunc(func(ctx context.Context, reqs []models.AtomicRequest) ([]models.RawReplyRow, error) {
		return r.Send(ctx, name, reqs)
	})
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// global is the default global registry.
var global = NewRegistry()

// Global returns the default global provider registry.
func Global() *Registry {
	return global
}

// RegisterProvider adds a provider to the global registry.
func RegisterProvider(p Provider) error {
	return global.Register(p)
}
