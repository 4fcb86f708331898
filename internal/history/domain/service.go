package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/actor"
	"github.com/smallbiznis/fieldops/pkg/errs"
	"gorm.io/gorm"
)

type RecordRequest struct {
	OrderID  snowflake.ID
	Action   string
	Message  string
	Actor    actor.Actor
	Metadata map[string]any
}

// Service is the order timeline. Append writes inside the caller's
// transaction; Publish announces entries once that transaction committed.
type Service interface {
	Append(ctx context.Context, db *gorm.DB, req RecordRequest) (*Entry, error)
	Publish(ctx context.Context, entries ...*Entry)
	Record(ctx context.Context, req RecordRequest) (*Entry, error)
	List(ctx context.Context, orderID snowflake.ID) ([]Entry, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *Entry) error
	ListByOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]Entry, error)
}

var (
	ErrInvalidAction = errs.New(errs.KindValidation, "invalid_history_action")
	ErrInvalidOrder  = errs.New(errs.KindValidation, "invalid_history_order")
)
