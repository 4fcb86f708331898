package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, technician *Technician) error
	Update(ctx context.Context, db *gorm.DB, technician *Technician) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Technician, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]Technician, error)
	List(ctx context.Context, db *gorm.DB, filter ListRequest) ([]Technician, error)
}
