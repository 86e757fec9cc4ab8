package gateway

import (
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/config"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/gateway/adapters"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/gateway/adapters/paymongo"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/gateway/repository"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/gateway/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("gateway.service",
	fx.Provide(repository.Provide),
	fx.Provide(paymongo.NewClient),
	fx.Provide(newRegistry),
	fx.Provide(service.NewService),
)

func newRegistry(cfg config.Config, log *zap.Logger) *adapters.Registry {
	return adapters.NewRegistry(
		paymongo.NewAdapter(cfg, log),
	)
}
