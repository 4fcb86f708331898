package domain

import "github.com/smallbiznis/fieldops/pkg/errs"

var (
	ErrMissingToken  = errs.New(errs.KindUnauthorized, "missing_token")
	ErrInvalidToken  = errs.New(errs.KindUnauthorized, "invalid_token")
	ErrTokenExpired  = errs.New(errs.KindUnauthorized, "token_expired")
	ErrInvalidRole   = errs.New(errs.KindUnauthorized, "invalid_role")
	ErrNotConfigured = errs.New(errs.KindFatal, "auth_not_configured")
)
