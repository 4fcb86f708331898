package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, payment *Payment) error
	// Update writes payment only while the stored status is still expected.
	Update(ctx context.Context, db *gorm.DB, payment *Payment, expected Status) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payment, error)
	FindByTransactionRef(ctx context.Context, db *gorm.DB, provider, ref string) (*Payment, error)
	ListByOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]Payment, error)
	SumSuccessful(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (int64, error)

	InsertEvent(ctx context.Context, db *gorm.DB, event *EventRecord) (bool, error)
	FindEvent(ctx context.Context, db *gorm.DB, provider, providerEventID string) (*EventRecord, error)
	MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, paymentID *snowflake.ID, processedAt time.Time) error
}
