// Package providers contains the breach data providers a lookup fans out to
package providers

import (
	"context"

	"github.com/briangreenhill/leaksmap/breach"
)

// Provider defines the interface that all breach data providers must implement
type Provider interface {
	// Name returns the provider identifier (e.g., "leakcheck", "hibp")
	Name() string

	// CacheKey returns the resource and parameters identifying a search for
	// email, so identical searches share a cache slot
	CacheKey(email string) (resource string, params map[string]string)

	// Search fetches and normalizes the breaches known for email. Failures
	// are *breach.ProviderError
	Search(ctx context.Context, email string) ([]breach.Record, error)
}

// UsernameSearcher is implemented by providers that can also look up a
// username. Providers that only accept email addresses don't implement it
type UsernameSearcher interface {
	UsernameCacheKey(username string) (resource string, params map[string]string)
	SearchUsername(ctx context.Context, username string) ([]breach.Record, error)
}

// Registry holds providers in registration order. Order matters: when two
// providers report the same breach, the earlier one's record is kept
type Registry struct {
	order     []Provider
	providers map[string]Provider
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider to the registry. Registering a name twice
// replaces the earlier provider in place
func (r *Registry) Register(provider Provider) {
	name := provider.Name()
	if _, exists := r.providers[name]; exists {
		for i, p := range r.order {
			if p.Name() == name {
				r.order[i] = provider
			}
		}
	} else {
		r.order = append(r.order, provider)
	}
	r.providers[name] = provider
}

// Get retrieves a provider by name
func (r *Registry) Get(name string) (Provider, bool) {
	provider, exists := r.providers[name]
	return provider, exists
}

// List returns all registered provider names in registration order
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.order))
	for _, p := range r.order {
		names = append(names, p.Name())
	}
	return names
}

// All returns the registered providers in registration order
func (r *Registry) All() []Provider {
	return append([]Provider(nil), r.order...)
}

// Len reports how many providers are registered
func (r *Registry) Len() int {
	return len(r.order)
}
