package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/pkg/db/pagination"
	"github.com/smallbiznis/fieldops/pkg/errs"
)

type ListCustomerRequest struct {
	PageToken   string
	PageSize    int32
	Name        string
	Email       string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

type ListCustomerFilter struct {
	Name        string
	Email       string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

type ListCustomerResponse struct {
	pagination.PageInfo
	Customers []Customer `json:"customers"`
}

type CreateCustomerRequest struct {
	Name  string
	Email string
	Phone string
}

type AddAddressRequest struct {
	CustomerID snowflake.ID
	Label      string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Latitude   *float64
	Longitude  *float64
}

type Service interface {
	Create(context.Context, CreateCustomerRequest) (Customer, error)
	List(context.Context, ListCustomerRequest) (ListCustomerResponse, error)
	GetByID(ctx context.Context, id snowflake.ID) (Customer, error)

	AddAddress(context.Context, AddAddressRequest) (Address, error)
	GetAddress(ctx context.Context, customerID, addressID snowflake.ID) (Address, error)
	ListAddresses(ctx context.Context, customerID snowflake.ID) ([]Address, error)
}

var (
	ErrInvalidName       = errs.New(errs.KindValidation, "invalid_name")
	ErrInvalidEmail      = errs.New(errs.KindValidation, "invalid_email")
	ErrInvalidPhone      = errs.New(errs.KindValidation, "invalid_phone")
	ErrInvalidAddress    = errs.New(errs.KindValidation, "invalid_address")
	ErrInvalidPageToken  = errs.New(errs.KindValidation, "invalid_page_token")
	ErrNotFound          = errs.New(errs.KindNotFound, "customer_not_found")
	ErrAddressNotFound   = errs.New(errs.KindNotFound, "address_not_found")
	ErrEmailAlreadyTaken = errs.New(errs.KindConflict, "email_already_registered")
)
