package llm

import (
	"fmt"
	"sort"
)

// Registry holds the configured providers and the embedding backend. It is
// built once at startup and passed to whoever needs a model.
type Registry struct {
	providers   map[string]Provider
	defaultName string
	embedder    Embedder
}

// NewRegistry returns an empty registry whose default provider is defaultName.
func NewRegistry(defaultName string) *Registry {
	return &Registry{
		providers:   make(map[string]Provider),
		defaultName: defaultName,
	}
}

// Register adds p under p.Name(), replacing any previous provider of that name.
func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
}

// SetEmbedder installs the embedding backend.
func (r *Registry) SetEmbedder(e Embedder) {
	r.embedder = e
}

// Embedder returns the embedding backend, or nil when none is configured.
func (r *Registry) Embedder() Embedder {
	return r.embedder
}

// Get returns the named provider. An empty name selects the default.
func (r *Registry) Get(name string) (Provider, error) {
	if name == "" {
		name = r.defaultName
	}
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return p, nil
}

// Default returns the default provider.
func (r *Registry) Default() (Provider, error) {
	return r.Get("")
}

// DefaultName returns the configured default provider name.
func (r *Registry) DefaultName() string {
	return r.defaultName
}

// Names lists registered providers in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
