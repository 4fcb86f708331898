// Package actor identifies who performs an operation.
package actor

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleTechnician Role = "technician"
	RoleCustomer   Role = "customer"
	RoleSystem     Role = "system"
	RolePublic     Role = "public"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTechnician, RoleCustomer, RoleSystem, RolePublic:
		return true
	}
	return false
}

// Actor is the authenticated caller. Technicians are identified by their
// technician profile id; customers and admins by their user id.
type Actor struct {
	ID   snowflake.ID `json:"id"`
	Role Role         `json:"role"`
}

// System is used for transitions driven by gateways and background work.
var System = Actor{Role: RoleSystem}

func (a Actor) IsAdmin() bool      { return a.Role == RoleAdmin }
func (a Actor) IsTechnician() bool { return a.Role == RoleTechnician }
func (a Actor) IsCustomer() bool   { return a.Role == RoleCustomer }

// IDPtr returns nil for anonymous and system actors.
func (a Actor) IDPtr() *snowflake.ID {
	if a.ID == 0 {
		return nil
	}
	id := a.ID
	return &id
}

type ctxKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

func FromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	a, ok := ctx.Value(ctxKey{}).(Actor)
	return a, ok
}
