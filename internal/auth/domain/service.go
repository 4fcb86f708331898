package domain

import (
	"context"

	"github.com/smallbiznis/fieldops/internal/actor"
)

// Verifier turns a bearer token into the actor it was issued to. Token
// issuance lives outside this service.
type Verifier interface {
	Verify(ctx context.Context, token string) (actor.Actor, error)
}
