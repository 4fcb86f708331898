package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/pkg/errs"
)

type CreateCategoryRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type CreateItemRequest struct {
	CategoryID  snowflake.ID `json:"category_id"`
	Code        string       `json:"code"`
	Name        string       `json:"name"`
	Description *string      `json:"description"`
	BasePrice   int64        `json:"base_price"`
}

type UpdateItemRequest struct {
	ID          snowflake.ID `json:"-"`
	Name        *string      `json:"name"`
	Description *string      `json:"description"`
	BasePrice   *int64       `json:"base_price"`
	Active      *bool        `json:"active"`
}

type ListItemsRequest struct {
	CategoryID *snowflake.ID
	Active     *bool
}

type Service interface {
	CreateCategory(ctx context.Context, req CreateCategoryRequest) (*Category, error)
	ListCategories(ctx context.Context, activeOnly bool) ([]Category, error)

	CreateItem(ctx context.Context, req CreateItemRequest) (*Item, error)
	UpdateItem(ctx context.Context, req UpdateItemRequest) (*Item, error)
	GetItem(ctx context.Context, id snowflake.ID) (*Item, error)
	ListItems(ctx context.Context, req ListItemsRequest) ([]Item, error)

	// ResolveActiveItem returns the item only when it is active and belongs to
	// categoryID.
	ResolveActiveItem(ctx context.Context, categoryID, itemID snowflake.ID) (*Item, error)
}

var (
	ErrInvalidName       = errs.New(errs.KindValidation, "invalid_name")
	ErrInvalidCode       = errs.New(errs.KindValidation, "invalid_code")
	ErrInvalidPrice      = errs.New(errs.KindValidation, "invalid_base_price")
	ErrCategoryNotFound  = errs.New(errs.KindNotFound, "service_category_not_found")
	ErrItemNotFound      = errs.New(errs.KindNotFound, "service_item_not_found")
	ErrItemInactive      = errs.New(errs.KindInvalidState, "service_item_inactive")
	ErrCategoryMismatch  = errs.New(errs.KindInvalidState, "service_item_category_mismatch")
	ErrCodeAlreadyExists = errs.New(errs.KindConflict, "code_already_exists")
)
