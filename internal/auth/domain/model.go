package domain

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the bearer token payload. The subject carries the actor id and
// Role one of admin, technician or customer.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}
