package notification

import (
	"github.com/smallbiznis/fieldops/internal/notification/domain"
	"github.com/smallbiznis/fieldops/internal/notification/repository"
	"github.com/smallbiznis/fieldops/internal/notification/service"
	"go.uber.org/fx"
)

var Module = fx.Module("notification.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(func(s domain.Service) domain.Dispatcher { return s }),
)
