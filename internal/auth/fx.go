package auth

import (
	"github.com/smallbiznis/fieldops/internal/auth/service"
	"github.com/smallbiznis/fieldops/internal/auth/session"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(service.New),
	fx.Provide(session.NewManager),
)
