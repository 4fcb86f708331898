package jobcard

import (
	"github.com/smallbiznis/fieldops/internal/jobcard/repository"
	"github.com/smallbiznis/fieldops/internal/jobcard/service"
	"go.uber.org/fx"
)

var Module = fx.Module("jobcard.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
