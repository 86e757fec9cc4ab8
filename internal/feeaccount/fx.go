package feeaccount

import (
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/feeaccount/repository"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/feeaccount/service"
	"go.uber.org/fx"
)

var Module = fx.Module("feeaccount.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
