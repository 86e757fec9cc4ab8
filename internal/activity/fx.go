package activity

import (
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/activity/repository"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/activity/service"
	"go.uber.org/fx"
)

var Module = fx.Module("activity.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
