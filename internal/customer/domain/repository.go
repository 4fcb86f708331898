package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, customer *Customer) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Customer, error)
	List(ctx context.Context, db *gorm.DB, filter ListCustomerFilter, page pagination.Pagination) ([]*Customer, error)

	InsertAddress(ctx context.Context, db *gorm.DB, address *Address) error
	FindAddress(ctx context.Context, db *gorm.DB, customerID, id snowflake.ID) (*Address, error)
	ListAddresses(ctx context.Context, db *gorm.DB, customerID snowflake.ID) ([]Address, error)
}
