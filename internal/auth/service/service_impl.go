package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/fieldops/internal/actor"
	"github.com/smallbiznis/fieldops/internal/auth/domain"
	"github.com/smallbiznis/fieldops/internal/clock"
	"github.com/smallbiznis/fieldops/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const leeway = 30 * time.Second

var signingMethods = []string{
	jwt.SigningMethodHS256.Alg(),
	jwt.SigningMethodHS384.Alg(),
	jwt.SigningMethodHS512.Alg(),
}

type Params struct {
	fx.In

	Cfg   config.Config
	Log   *zap.Logger
	Clock clock.Clock
}

type Service struct {
	log    *zap.Logger
	clock  clock.Clock
	secret []byte
	issuer string
}

func New(p Params) domain.Verifier {
	return &Service{
		log:    p.Log.Named("auth.service"),
		clock:  p.Clock,
		secret: []byte(strings.TrimSpace(p.Cfg.AuthJWTSecret)),
		issuer: strings.TrimSpace(p.Cfg.AuthJWTIssuer),
	}
}

func (s *Service) Verify(ctx context.Context, raw string) (actor.Actor, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return actor.Actor{}, domain.ErrMissingToken
	}
	if len(s.secret) == 0 {
		s.log.Error("bearer token received but AUTH_JWT_SECRET is empty")
		return actor.Actor{}, domain.ErrNotConfigured
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(signingMethods),
		jwt.WithLeeway(leeway),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	var claims domain.Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return actor.Actor{}, domain.ErrTokenExpired
	case err != nil:
		s.log.Debug("bearer token rejected", zap.Error(err))
		return actor.Actor{}, domain.ErrInvalidToken
	}

	id, err := snowflake.ParseString(strings.TrimSpace(claims.Subject))
	if err != nil || id == 0 {
		return actor.Actor{}, domain.ErrInvalidToken
	}
	role := actor.Role(strings.ToLower(strings.TrimSpace(claims.Role)))
	switch role {
	case actor.RoleAdmin, actor.RoleTechnician, actor.RoleCustomer:
	default:
		return actor.Actor{}, domain.ErrInvalidRole
	}
	return actor.Actor{ID: id, Role: role}, nil
}
