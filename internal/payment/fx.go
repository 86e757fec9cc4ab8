package payment

import (
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/payment/repository"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
