package oauth

import (
	"sort"

	"github.com/upb/auth-service/config"
	"github.com/upb/auth-service/services"
)

// Registry resolves providers by name
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// NewRegistryFromConfig registers every provider with complete credentials
func NewRegistryFromConfig(cfg config.OAuthConfig) *Registry {
	var providers []Provider
	if cfg.Google.Enabled() {
		providers = append(providers, NewGoogle(cfg.Google))
	}
	if cfg.Yandex.Enabled() {
		providers = append(providers, NewYandex(cfg.Yandex))
	}
	return NewRegistry(providers...)
}

func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, services.ErrProviderNotFound.WithDetail("provider", name)
	}
	return p, nil
}

// Names lists registered providers in alphabetical order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
