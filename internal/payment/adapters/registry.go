package adapters

import (
	"errors"
	"sort"
	"strings"

	"github.com/smallbiznis/fieldops/internal/config"
	"github.com/smallbiznis/fieldops/internal/payment/domain"
	"go.uber.org/zap"
)

// Registry holds the gateways that have credentials configured.
type Registry struct {
	providers map[string]domain.Provider
}

func NewRegistry(cfg config.PaymentConfig, log *zap.Logger, factories ...domain.ProviderFactory) (*Registry, error) {
	log = log.Named("payment.adapters")
	registry := &Registry{providers: map[string]domain.Provider{}}
	for _, factory := range factories {
		if factory == nil {
			continue
		}
		name := normalize(factory.Provider())
		if name == "" {
			continue
		}
		provider, err := factory.New(cfg)
		if errors.Is(err, domain.ErrProviderNotConfigured) {
			log.Info("payment provider not configured", zap.String("provider", name))
			continue
		}
		if err != nil {
			return nil, err
		}
		registry.providers[name] = provider
	}
	return registry, nil
}

// NewStaticRegistry wraps already built providers.
func NewStaticRegistry(providers ...domain.Provider) *Registry {
	registry := &Registry{providers: map[string]domain.Provider{}}
	for _, p := range providers {
		if p != nil {
			registry.providers[normalize(p.Name())] = p
		}
	}
	return registry
}

func (r *Registry) ProviderExists(provider string) bool {
	if r == nil {
		return false
	}
	_, ok := r.providers[normalize(provider)]
	return ok
}

func (r *Registry) Get(provider string) (domain.Provider, error) {
	if r == nil {
		return nil, domain.ErrProviderNotFound
	}
	p, ok := r.providers[normalize(provider)]
	if !ok {
		return nil, domain.ErrProviderNotFound
	}
	return p, nil
}

func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalize(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}
