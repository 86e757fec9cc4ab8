package adapters

import (
	"strings"

	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/gateway/domain"
)

type Registry struct {
	adapters map[string]domain.Adapter
}

func NewRegistry(adapters ...domain.Adapter) *Registry {
	registry := &Registry{adapters: map[string]domain.Adapter{}}
	for _, adapter := range adapters {
		if adapter == nil {
			continue
		}
		gateway := strings.ToLower(strings.TrimSpace(adapter.Gateway()))
		if gateway == "" {
			continue
		}
		registry.adapters[gateway] = adapter
	}
	return registry
}

func (r *Registry) Exists(gateway string) bool {
	if r == nil {
		return false
	}
	gateway = strings.ToLower(strings.TrimSpace(gateway))
	_, ok := r.adapters[gateway]
	return ok
}

func (r *Registry) Get(gateway string) (domain.Adapter, bool) {
	if r == nil {
		return nil, false
	}
	gateway = strings.ToLower(strings.TrimSpace(gateway))
	adapter, ok := r.adapters[gateway]
	return adapter, ok
}
