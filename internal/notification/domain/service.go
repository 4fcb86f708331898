package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/actor"
	"github.com/smallbiznis/fieldops/pkg/db/pagination"
	"github.com/smallbiznis/fieldops/pkg/errs"
	"gorm.io/gorm"
)

type ListRequest struct {
	pagination.Pagination
	Recipient  actor.Actor
	UnreadOnly bool
}

type ListResponse struct {
	pagination.PageInfo
	Notifications []Notification `json:"notifications"`
}

// Dispatcher persists notifications and forwards them to connected sessions.
// Dispatch is best-effort: failures are logged and never returned.
type Dispatcher interface {
	NotifyAdmins(ctx context.Context, event string, payload map[string]any)
	NotifyUser(ctx context.Context, userID snowflake.ID, role actor.Role, event string, payload map[string]any)
}

type Service interface {
	Dispatcher
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	MarkRead(ctx context.Context, id snowflake.ID, recipient actor.Actor) (Notification, error)
}

type ListFilter struct {
	RecipientID   *snowflake.ID
	RecipientRole string
	UnreadOnly    bool
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, n *Notification) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Notification, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Pagination) ([]*Notification, error)
	MarkRead(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
}

var (
	ErrNotFound         = errs.New(errs.KindNotFound, "notification_not_found")
	ErrInvalidRecipient = errs.New(errs.KindValidation, "invalid_recipient")
	ErrInvalidPageToken = errs.New(errs.KindValidation, "invalid_page_token")
	ErrForbidden        = errs.New(errs.KindForbidden, "notification_forbidden")
)
