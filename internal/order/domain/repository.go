package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	Status       *Status
	From         *time.Time
	To           *time.Time
	TechnicianID *snowflake.ID
	CustomerID   *snowflake.ID
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *Order) error
	// Update persists order when the stored version still equals
	// expectedVersion and fails with ErrVersionConflict otherwise.
	Update(ctx context.Context, db *gorm.DB, order *Order, expectedVersion int64) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	CodeExists(ctx context.Context, db *gorm.DB, code string) (bool, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Pagination) ([]*Order, error)
}
