package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertCategory(ctx context.Context, db *gorm.DB, category *Category) error
	FindCategory(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Category, error)
	ListCategories(ctx context.Context, db *gorm.DB, activeOnly bool) ([]Category, error)

	InsertItem(ctx context.Context, db *gorm.DB, item *Item) error
	UpdateItem(ctx context.Context, db *gorm.DB, item *Item) error
	FindItem(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Item, error)
	ListItems(ctx context.Context, db *gorm.DB, filter ListItemsRequest) ([]Item, error)
}
