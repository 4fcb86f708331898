package authorization

import (
	"context"

	"github.com/smallbiznis/fieldops/internal/actor"
	"github.com/smallbiznis/fieldops/pkg/errs"
)

// Service answers whether a role may perform an action on an object class.
// Ownership of individual orders and job cards is checked by the owning
// domain service.
type Service interface {
	Authorize(ctx context.Context, a actor.Actor, object string, action string) error
}

var (
	ErrInvalidActor  = errs.New(errs.KindUnauthorized, "invalid_actor")
	ErrInvalidObject = errs.New(errs.KindValidation, "invalid_object")
	ErrInvalidAction = errs.New(errs.KindValidation, "invalid_action")
	ErrForbidden     = errs.New(errs.KindForbidden, "forbidden")
)
