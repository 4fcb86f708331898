package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, card *JobCard) error
	// Update persists card when the stored version still equals
	// expectedVersion and fails with ErrVersionConflict otherwise.
	Update(ctx context.Context, db *gorm.DB, card *JobCard, expectedVersion int64) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*JobCard, error)
	FindByOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (*JobCard, error)
	OTPExists(ctx context.Context, db *gorm.DB, otp string) (bool, error)
}
