package calendar

import (
	"github.com/smallbiznis/fieldops/internal/calendar/repository"
	"github.com/smallbiznis/fieldops/internal/calendar/service"
	"go.uber.org/fx"
)

var Module = fx.Module("calendar.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
