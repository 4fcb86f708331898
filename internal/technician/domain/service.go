package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/pkg/errs"
)

type CreateRequest struct {
	Name   string   `json:"name"`
	Phone  string   `json:"phone"`
	Email  string   `json:"email"`
	Skills []string `json:"skills"`
}

type ListRequest struct {
	Active *bool
	Skill  string
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Technician, error)
	Get(ctx context.Context, id snowflake.ID) (*Technician, error)
	List(ctx context.Context, req ListRequest) ([]Technician, error)
	SetActive(ctx context.Context, id snowflake.ID, active bool) (*Technician, error)

	// Require returns the profiles for ids in input order. A missing profile
	// fails with ErrNotFound, an inactive one with ErrInactive.
	Require(ctx context.Context, ids []snowflake.ID) ([]Technician, error)
}

var (
	ErrInvalidName       = errs.New(errs.KindValidation, "invalid_name")
	ErrInvalidPhone      = errs.New(errs.KindValidation, "invalid_phone")
	ErrInvalidEmail      = errs.New(errs.KindValidation, "invalid_email")
	ErrNotFound          = errs.New(errs.KindNotFound, "technician_not_found")
	ErrInactive          = errs.New(errs.KindInvalidState, "technician_inactive")
	ErrEmailAlreadyTaken = errs.New(errs.KindConflict, "email_already_registered")
)
